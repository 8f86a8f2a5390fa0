package config

import (
	stderrors "errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conneroisu/paramtrail/internal/errors"
	"github.com/conneroisu/paramtrail/internal/params"
	"github.com/conneroisu/paramtrail/internal/validation"
)

var validate = validator.New()

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateStruct(config); err != nil {
		return err
	}

	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateSessionConfig(&config.Session); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := validateParameters(config); err != nil {
		return fmt.Errorf("parameters config: %w", err)
	}

	if err := validateForms(config); err != nil {
		return fmt.Errorf("forms config: %w", err)
	}

	if err := validateMetricsConfig(&config.Metrics); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

// validateStruct runs the struct-tag rules and reports the first failure.
func validateStruct(config *Config) error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "configuration validation failed").WithCause(err)
	}

	first := verrs[0]
	return errors.NewConfigError(errors.ErrCodeConfigInvalid,
		fmt.Sprintf("field %s failed rule '%s'", first.Namespace(), first.Tag())).
		WithContext("field", first.Namespace()).
		WithContext("value", fmt.Sprintf("%v", first.Value()))
}

func validateServerConfig(config *ServerConfig) error {
	if config.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative")
	}
	return nil
}

func validateSessionConfig(config *SessionConfig) error {
	if config.IdleTimeout < 0 {
		return fmt.Errorf("idle_timeout cannot be negative")
	}

	// RFC 6265 cookie-name token characters.
	for _, r := range config.CookieName {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r) {
			return fmt.Errorf("cookie_name contains invalid character: %q", r)
		}
	}
	return nil
}

// reservedRoutes are served by paramtrail itself. The metrics endpoint may
// neither equal one nor live under one.
var reservedRoutes = []string{"/health", "/inspect", "/api", "/go", "/forms"}

func validateMetricsConfig(config *MetricsConfig) error {
	p := config.Path
	if p == "" {
		return nil
	}

	invalid := func(reason string) error {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "metrics path "+reason).
			WithContext("path", p)
	}

	if p == "/" {
		return invalid("cannot be the site root")
	}
	if path.Clean(p) != p {
		return invalid("must be a clean path without a trailing slash")
	}
	for _, r := range p {
		if !isPathRune(r) {
			return invalid(fmt.Sprintf("contains invalid character %q", r))
		}
	}
	for _, route := range reservedRoutes {
		if p == route || strings.HasPrefix(p, route+"/") {
			return invalid("collides with the reserved route " + route)
		}
	}
	return nil
}

func isPathRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
		strings.ContainsRune("/-._~", r)
}

func validateParameters(config *Config) error {
	if config.Obfuscation.Enabled && config.Obfuscation.SecretKey == "" {
		return errors.NewConfigError(errors.ErrCodeMissingSecret,
			"obfuscation is enabled but no secret_key is set (generate one with 'paramtrail keygen')")
	}

	tracked := config.TrackedParameters()
	if err := params.Validate(tracked); err != nil {
		return err
	}

	for _, p := range tracked {
		if p.RedirectURL == "" {
			continue
		}
		if err := validation.ValidateTargetURL(p.RedirectURL); err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidURL, "invalid redirect_url").
				WithParameter(p.Name).
				WithCause(err)
		}
	}
	return nil
}

func validateForms(config *Config) error {
	tracked := make(map[string]bool, len(config.Parameters))
	for _, p := range config.Parameters {
		tracked[p.Name] = true
	}

	seen := make(map[string]bool, len(config.Forms))
	for _, f := range config.Forms {
		if seen[f.Name] {
			return errors.NewConfigError(errors.ErrCodeDuplicateName, "form name is defined twice").
				WithContext("form", f.Name)
		}
		seen[f.Name] = true

		if err := validation.ValidateTargetURL(f.URL); err != nil {
			return errors.NewConfigError(errors.ErrCodeInvalidURL, "invalid form url").
				WithContext("form", f.Name).
				WithCause(err)
		}

		for _, field := range f.Fields {
			if !tracked[field.Parameter] {
				return errors.NewConfigError(errors.ErrCodeUnknownParameter, "form field maps to an untracked parameter").
					WithContext("form", f.Name).
					WithContext("field", field.Field).
					WithParameter(field.Parameter)
			}
		}
	}
	return nil
}
