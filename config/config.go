// Package config loads the API client configuration from defaults, YAML files
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read by Load: APICLIENT_RETRY_MAX sets retry.max.
const EnvPrefix = "APICLIENT_"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// LoadOptions customises Load. The zero value reads config.yaml,
// config.<env>.yaml and the process environment.
type LoadOptions struct {
	// Files replaces the default YAML file list. Missing files are skipped.
	Files []string
	// YAML is parsed after the files, for configuration embedded in a binary.
	YAML []byte
	// Environ replaces os.Environ.
	Environ func() []string
	// Overrides are applied last, above environment variables.
	Overrides map[string]any
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. YAML configuration files
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions is Load with explicit sources.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	files := opts.Files
	if files == nil {
		files = []string{"config.yaml"}
		if env := k.String("app.env"); env != "" {
			files = append(files, fmt.Sprintf("config.%s.yaml", env))
		}
	}
	for _, path := range files {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if len(opts.YAML) > 0 {
		if err := k.Load(rawbytes.Provider(opts.YAML), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load inline YAML: %w", err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
		EnvironFunc:   opts.Environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envKey converts APICLIENT_UPPER_CASE to upper.case for koanf.
func envKey(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), "_", ".")
	if strings.Contains(value, ",") && (strings.HasSuffix(key, "statuscodes") || strings.HasSuffix(key, "scopes")) {
		return key, strings.Split(value, ",")
	}
	return key, value
}

func defaults() map[string]any {
	return map[string]any{
		"app.name":    "apiclient",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"client.timeout":     "15s",
		"client.maxattempts": 10,
		"client.logpayloads": false,

		"retry.max":         3,
		"retry.basedelay":   "1s",
		"retry.maxdelay":    "4s",
		"retry.statuscodes": []int{408, 429, 500, 502, 503, 504},

		"network.weakthreshold": 3,

		"throttle.enabled":   true,
		"throttle.perminute": 60,
		"throttle.burst":     10,

		"breaker.enabled":  false,
		"breaker.failures": 5,
		"breaker.timeout":  "30s",

		"auth.refreshpath":    "/auth/refresh",
		"auth.skew":           "5m",
		"auth.refreshtimeout": "10s",

		"tokenstore.type":        StoreMemory,
		"tokenstore.prefix":      "@ayska_",
		"tokenstore.redis.port":  6379,
		"tokenstore.sqlite.path": "apiclient.db",

		"log.level":  "info",
		"log.pretty": false,

		"observability.exporter": ExporterNone,
	}
}
