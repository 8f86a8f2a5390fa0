// Package config provides configuration management for paramtrail using
// Viper for flexible configuration loading from files, environment
// variables, and command-line flags.
//
// The configuration declares the tracked parameters and their short
// aliases, the obfuscation secret, session cookie behavior, third-party
// forms to prefill, and the HTTP host settings. Environment variables use
// the PARAMTRAIL_ prefix (PARAMTRAIL_SERVER_PORT, PARAMTRAIL_OBFUSCATION_SECRET_KEY).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/paramtrail/internal/errors"
	"github.com/conneroisu/paramtrail/internal/forms"
	"github.com/conneroisu/paramtrail/internal/params"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "PARAMTRAIL"

type Config struct {
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Session     SessionConfig     `mapstructure:"session" yaml:"session"`
	Obfuscation ObfuscationConfig `mapstructure:"obfuscation" yaml:"obfuscation"`
	Parameters  []ParameterConfig `mapstructure:"parameters" yaml:"parameters" validate:"dive"`
	Forms       []FormConfig      `mapstructure:"forms" yaml:"forms" validate:"dive"`
	Inspector   InspectorConfig   `mapstructure:"inspector" yaml:"inspector"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" yaml:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Environment     string        `mapstructure:"environment" yaml:"environment" validate:"omitempty,oneof=development production test"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

type SessionConfig struct {
	CookieName  string        `mapstructure:"cookie_name" yaml:"cookie_name" validate:"required,max=64"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	MaxSessions int           `mapstructure:"max_sessions" yaml:"max_sessions" validate:"gte=0"`
	Secure      bool          `mapstructure:"secure" yaml:"secure"`
}

type ObfuscationConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// ParameterConfig is one tracked parameter as written in the config file.
type ParameterConfig struct {
	Name        string `mapstructure:"name" yaml:"name" validate:"required,max=64"`
	Short       string `mapstructure:"short" yaml:"short,omitempty" validate:"omitempty,max=16"`
	Fallback    string `mapstructure:"fallback" yaml:"fallback,omitempty"`
	RedirectURL string `mapstructure:"redirect_url" yaml:"redirect_url,omitempty"`
}

// FormConfig is a third-party form to prefill from session values.
type FormConfig struct {
	Name     string            `mapstructure:"name" yaml:"name" validate:"required,max=64"`
	Provider string            `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=google googleforms google_forms plain generic"`
	URL      string            `mapstructure:"url" yaml:"url" validate:"required"`
	Fields   []FormFieldConfig `mapstructure:"fields" yaml:"fields" validate:"dive"`
}

// FormFieldConfig maps a form field to a tracked parameter.
type FormFieldConfig struct {
	Field     string `mapstructure:"field" yaml:"field" validate:"required"`
	Parameter string `mapstructure:"parameter" yaml:"parameter" validate:"required"`
}

type InspectorConfig struct {
	Enabled        bool     `mapstructure:"enabled" yaml:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" validate:"omitempty,startswith=/"`
}

// SetDefaults registers default values on v. Every scalar key gets a
// default so AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("session.cookie_name", "paramtrail_session")
	v.SetDefault("session.idle_timeout", 30*time.Minute)
	v.SetDefault("session.max_sessions", 100000)
	v.SetDefault("session.secure", false)

	v.SetDefault("obfuscation.enabled", false)
	v.SetDefault("obfuscation.secret_key", "")

	v.SetDefault("inspector.enabled", false)
	v.SetDefault("inspector.allowed_origins", []string{"localhost:*", "127.0.0.1:*"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// ConfigureEnv wires PARAMTRAIL_<SECTION>_<KEY> overrides into v.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom unmarshals and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "failed to decode configuration").
			WithCause(err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadFile reads path into a fresh viper instance with defaults and
// environment overrides applied. Used for reloads, where the global
// instance still carries flag bindings.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	ConfigureEnv(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "failed to read config file").
			WithContext("path", path).
			WithCause(err)
	}
	return LoadFrom(v)
}

// applyDefaults fills values that viper leaves empty when Load runs on an
// instance without SetDefaults.
func applyDefaults(config *Config) {
	if config.Session.CookieName == "" {
		config.Session.CookieName = "paramtrail_session"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 10 * time.Second
	}
}

// TrackedParameters converts the configured parameters in order.
func (c *Config) TrackedParameters() []params.TrackedParameter {
	out := make([]params.TrackedParameter, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		out = append(out, params.TrackedParameter{
			Name:        p.Name,
			ShortAlias:  p.Short,
			Fallback:    p.Fallback,
			RedirectURL: p.RedirectURL,
		})
	}
	return out
}

// ObfuscationSettings returns the obfuscation settings for the registry.
func (c *Config) ObfuscationSettings() params.Obfuscation {
	return params.Obfuscation{
		Enabled:   c.Obfuscation.Enabled,
		SecretKey: c.Obfuscation.SecretKey,
	}
}

// BuildRegistry builds the parameter registry, rejecting collisions.
func (c *Config) BuildRegistry() (*params.Registry, error) {
	return params.NewRegistry(c.TrackedParameters(), c.ObfuscationSettings())
}

// BuildForms resolves providers and returns forms keyed by name.
func (c *Config) BuildForms() (map[string]forms.Form, error) {
	out := make(map[string]forms.Form, len(c.Forms))
	for _, fc := range c.Forms {
		provider, ok := forms.ProviderByName(fc.Provider)
		if !ok {
			return nil, errors.NewConfigError(errors.ErrCodeConfigInvalid, "unknown form provider").
				WithContext("form", fc.Name).
				WithContext("provider", fc.Provider)
		}
		mappings := make([]forms.FieldMapping, 0, len(fc.Fields))
		for _, f := range fc.Fields {
			mappings = append(mappings, forms.FieldMapping{Field: f.Field, Parameter: f.Parameter})
		}
		out[fc.Name] = forms.Form{
			Name:     fc.Name,
			Provider: provider,
			URL:      fc.URL,
			Fields:   mappings,
		}
	}
	return out, nil
}
