package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config is the full API client configuration. The embedded koanf instance
// gives access to keys not modelled here.
type Config struct {
	App           AppConfig           `koanf:"app" json:"app" yaml:"app"`
	Client        ClientConfig        `koanf:"client" json:"client" yaml:"client"`
	Retry         RetryConfig         `koanf:"retry" json:"retry" yaml:"retry"`
	Network       NetworkConfig       `koanf:"network" json:"network" yaml:"network"`
	Throttle      ThrottleConfig      `koanf:"throttle" json:"throttle" yaml:"throttle"`
	Breaker       BreakerConfig       `koanf:"breaker" json:"breaker" yaml:"breaker"`
	Auth          AuthConfig          `koanf:"auth" json:"auth" yaml:"auth"`
	TokenStore    TokenStoreConfig    `koanf:"tokenstore" json:"tokenstore" yaml:"tokenstore"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig identifies the application in logs and telemetry.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// ClientConfig holds pipeline settings.
type ClientConfig struct {
	BaseURL string `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`
	// Timeout bounds each attempt.
	Timeout     time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxAttempts int           `koanf:"maxattempts" json:"maxattempts" yaml:"maxattempts" validate:"gte=1"`
	LogPayloads bool          `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
}

// RetryConfig holds retry interceptor settings.
type RetryConfig struct {
	Max         int           `koanf:"max" json:"max" yaml:"max" validate:"gte=0,lte=10"`
	BaseDelay   time.Duration `koanf:"basedelay" json:"basedelay" yaml:"basedelay" validate:"gt=0"`
	MaxDelay    time.Duration `koanf:"maxdelay" json:"maxdelay" yaml:"maxdelay" validate:"gtefield=BaseDelay"`
	StatusCodes []int         `koanf:"statuscodes" json:"statuscodes" yaml:"statuscodes" validate:"dive,gte=100,lte=599"`
}

// NetworkConfig holds weak-network detection settings.
type NetworkConfig struct {
	WeakThreshold int `koanf:"weakthreshold" json:"weakthreshold" yaml:"weakthreshold" validate:"gte=1"`
}

// ThrottleConfig holds the client-side request budget.
type ThrottleConfig struct {
	Enabled   bool `koanf:"enabled" json:"enabled" yaml:"enabled"`
	PerMinute int  `koanf:"perminute" json:"perminute" yaml:"perminute" validate:"gte=0"`
	Burst     int  `koanf:"burst" json:"burst" yaml:"burst" validate:"gte=0"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Enabled  bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Failures uint32        `koanf:"failures" json:"failures" yaml:"failures" validate:"gte=1"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// AuthConfig holds token handling settings. With OAuth2.TokenURL set, tokens
// are refreshed through the OAuth2 refresh grant; otherwise RefreshPath is
// called on the API itself.
type AuthConfig struct {
	RefreshPath    string        `koanf:"refreshpath" json:"refreshpath" yaml:"refreshpath"`
	Skew           time.Duration `koanf:"skew" json:"skew" yaml:"skew" validate:"gte=0"`
	RefreshTimeout time.Duration `koanf:"refreshtimeout" json:"refreshtimeout" yaml:"refreshtimeout" validate:"gt=0"`
	OAuth2         OAuth2Config  `koanf:"oauth2" json:"oauth2" yaml:"oauth2"`
}

// OAuth2Config configures the OAuth2 refresher.
type OAuth2Config struct {
	TokenURL     string   `koanf:"tokenurl" json:"tokenurl" yaml:"tokenurl" validate:"omitempty,url"`
	ClientID     string   `koanf:"clientid" json:"clientid" yaml:"clientid" validate:"required_with=TokenURL"`
	ClientSecret string   `koanf:"clientsecret" json:"-" yaml:"clientsecret"`
	Scopes       []string `koanf:"scopes" json:"scopes" yaml:"scopes"`
}

// Token store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// TokenStoreConfig selects and configures the persistent KV backend.
type TokenStoreConfig struct {
	Type   string       `koanf:"type" json:"type" yaml:"type" validate:"oneof=memory redis sqlite"`
	Prefix string       `koanf:"prefix" json:"prefix" yaml:"prefix"`
	Redis  RedisConfig  `koanf:"redis" json:"redis" yaml:"redis"`
	SQLite SQLiteConfig `koanf:"sqlite" json:"sqlite" yaml:"sqlite"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `koanf:"host" json:"host" yaml:"host"`
	Port     int    `koanf:"port" json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Password string `koanf:"password" json:"-" yaml:"password"`
	Database int    `koanf:"database" json:"database" yaml:"database" validate:"gte=0,lte=15"`
}

// SQLiteConfig holds the on-disk database location.
type SQLiteConfig struct {
	Path string `koanf:"path" json:"path" yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// Telemetry exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ObservabilityConfig selects the OpenTelemetry exporters.
type ObservabilityConfig struct {
	Exporter string `koanf:"exporter" json:"exporter" yaml:"exporter" validate:"oneof=none stdout otlp"`
	// Endpoint is the OTLP collector address, e.g. localhost:4318.
	Endpoint string            `koanf:"endpoint" json:"endpoint" yaml:"endpoint" validate:"required_if=Exporter otlp"`
	Protocol string            `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"omitempty,oneof=http grpc"`
	Insecure bool              `koanf:"insecure" json:"insecure" yaml:"insecure"`
	Headers  map[string]string `koanf:"headers" json:"headers" yaml:"headers"`
}
