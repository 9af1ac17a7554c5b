package config

import (
	"fmt"
	"strings"
)

// Categories reported in ConfigError.Category.
const (
	CategoryMissing = "missing"
	CategoryInvalid = "invalid"
)

// ConfigError names the setting that stopped Load and how to fix it. It
// renders as "config_<category>: <field> <message> <action>", lowercase.
//
//nolint:revive // callers match on config.ConfigError
type ConfigError struct {
	Category string
	// Field is the dotted key, indexed for list entries: "retry.statuscodes[0]".
	Field    string
	Message  string
	Action   string
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	if e.Category != "" {
		b.WriteString("config_" + e.Category + ":")
	}
	for _, part := range []string{e.Field, e.Message, e.Action} {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(part)
	}
	return b.String()
}

// Section returns the top-level block of Field: "client", "retry",
// "tokenstore" and so on.
func (e *ConfigError) Section() string {
	section, _, _ := strings.Cut(e.Field, ".")
	section, _, _ = strings.Cut(section, "[")
	return section
}

// EnvVar returns the environment variable that sets key.
// List indexes are dropped: retry.statuscodes[0] maps to APICLIENT_RETRY_STATUSCODES.
func EnvVar(key string) string {
	key, _, _ = strings.Cut(key, "[")
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// NewMissingFieldError reports a required key that has no value.
func NewMissingFieldError(field string) *ConfigError {
	return &ConfigError{
		Category: CategoryMissing,
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to config.yaml", EnvVar(field), field),
	}
}

// NewInvalidFieldError reports a value Load refused. When allowed is given
// the error lists it.
func NewInvalidFieldError(field, message string, allowed ...string) *ConfigError {
	err := &ConfigError{Category: CategoryInvalid, Field: field, Message: message}
	if len(allowed) > 0 {
		err.Action = "must be one of: " + strings.Join(allowed, ", ")
	}
	return err
}
