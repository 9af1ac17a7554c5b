package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("koanf"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks field constraints and the rules that span sections.
// The first problem is returned as a *ConfigError.
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	return validateTokenStore(&cfg.TokenStore)
}

func validateTokenStore(cfg *TokenStoreConfig) error {
	switch cfg.Type {
	case StoreRedis:
		if cfg.Redis.Host == "" {
			return NewMissingFieldError("tokenstore.redis.host")
		}
	case StoreSQLite:
		if cfg.SQLite.Path == "" {
			return NewMissingFieldError("tokenstore.sqlite.path")
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ConfigError {
	// namespace is "Config.section.field"
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	switch fe.Tag() {
	case "required", "required_with", "required_if":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param())...)
	case "url":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid URL %q", fmt.Sprint(fe.Value())))
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value()))
	}
}
