package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/paramtrail/internal/errors"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	SetDefaults(viper.GetViper())
	t.Cleanup(viper.Reset)
}

func errorCode(err error) string {
	var pe *errors.ParamError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, 10*time.Second, config.Server.ShutdownTimeout)
	assert.Equal(t, "paramtrail_session", config.Session.CookieName)
	assert.Equal(t, 30*time.Minute, config.Session.IdleTimeout)
	assert.Equal(t, 100000, config.Session.MaxSessions)
	assert.False(t, config.Obfuscation.Enabled)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, []string{"localhost:*", "127.0.0.1:*"}, config.Inspector.AllowedOrigins)
	assert.Empty(t, config.Parameters)
}

func TestLoadWithoutDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	config, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "paramtrail_session", config.Session.CookieName)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		code        string
	}{
		{
			name: "parameters with aliases",
			setup: func() {
				viper.Set("parameters", []map[string]interface{}{
					{"name": "quelle", "short": "q", "fallback": "direct"},
					{"name": "campaign", "short": "c", "redirect_url": "https://example.com/landing"},
				})
			},
		},
		{
			name: "invalid port type",
			setup: func() {
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "port out of range",
			setup: func() {
				viper.Set("server.port", 70000)
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "unknown environment",
			setup: func() {
				viper.Set("server.environment", "staging")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "host with shell characters",
			setup: func() {
				viper.Set("server.host", "localhost;rm -rf /")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "cookie name with separator",
			setup: func() {
				viper.Set("session.cookie_name", "bad;name")
			},
			expectError: true,
		},
		{
			name: "negative idle timeout",
			setup: func() {
				viper.Set("session.idle_timeout", "-1m")
			},
			expectError: true,
		},
		{
			name: "obfuscation without secret",
			setup: func() {
				viper.Set("obfuscation.enabled", true)
			},
			expectError: true,
			code:        errors.ErrCodeMissingSecret,
		},
		{
			name: "obfuscation with secret",
			setup: func() {
				viper.Set("obfuscation.enabled", true)
				viper.Set("obfuscation.secret_key", "s3cret")
			},
		},
		{
			name: "empty parameter name",
			setup: func() {
				viper.Set("parameters", []map[string]interface{}{{"name": ""}})
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "duplicate parameter name",
			setup: func() {
				viper.Set("parameters", []map[string]interface{}{{"name": "a"}, {"name": "a"}})
			},
			expectError: true,
			code:        errors.ErrCodeDuplicateName,
		},
		{
			name: "alias equals another name",
			setup: func() {
				viper.Set("parameters", []map[string]interface{}{
					{"name": "a"},
					{"name": "b", "short": "a"},
				})
			},
			expectError: true,
			code:        errors.ErrCodeAliasCollision,
		},
		{
			name: "javascript redirect url",
			setup: func() {
				viper.Set("parameters", []map[string]interface{}{
					{"name": "a", "redirect_url": "javascript:alert(1)"},
				})
			},
			expectError: true,
			code:        errors.ErrCodeInvalidURL,
		},
		{
			name: "form mapping to untracked parameter",
			setup: func() {
				viper.Set("parameters", []map[string]interface{}{{"name": "a"}})
				viper.Set("forms", []map[string]interface{}{{
					"name":     "signup",
					"provider": "google",
					"url":      "https://docs.google.com/forms/d/X",
					"fields":   []map[string]interface{}{{"field": "1", "parameter": "b"}},
				}})
			},
			expectError: true,
			code:        errors.ErrCodeUnknownParameter,
		},
		{
			name: "unknown form provider",
			setup: func() {
				viper.Set("forms", []map[string]interface{}{{
					"name":     "signup",
					"provider": "typeform",
					"url":      "https://example.com/f",
				}})
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "duplicate form name",
			setup: func() {
				viper.Set("forms", []map[string]interface{}{
					{"name": "f", "url": "https://example.com/1"},
					{"name": "f", "url": "https://example.com/2"},
				})
			},
			expectError: true,
			code:        errors.ErrCodeDuplicateName,
		},
		{
			name: "metrics path on health route",
			setup: func() {
				viper.Set("metrics.path", "/health")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "metrics path at site root",
			setup: func() {
				viper.Set("metrics.path", "/")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "metrics path under tracked route",
			setup: func() {
				viper.Set("metrics.path", "/go/metrics")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "metrics path with trailing slash",
			setup: func() {
				viper.Set("metrics.path", "/metrics/")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "metrics path with wildcard",
			setup: func() {
				viper.Set("metrics.path", "/{x}")
			},
			expectError: true,
			code:        errors.ErrCodeConfigInvalid,
		},
		{
			name: "custom metrics path",
			setup: func() {
				viper.Set("metrics.path", "/internal/metrics")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			tt.setup()

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				if tt.code != "" {
					assert.Equal(t, tt.code, errorCode(err))
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".paramtrail.yml")
	content := `server:
  port: 9090
  shutdown_timeout: 5s
session:
  idle_timeout: 45m
  secure: true
obfuscation:
  enabled: true
  secret_key: topsecret
parameters:
  - name: quelle
    short: q
    fallback: direct
  - name: campaign
forms:
  - name: signup
    provider: google
    url: https://docs.google.com/forms/d/abc
    fields:
      - field: "123"
        parameter: quelle
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 5*time.Second, config.Server.ShutdownTimeout)
	assert.Equal(t, 45*time.Minute, config.Session.IdleTimeout)
	assert.True(t, config.Session.Secure)
	assert.Equal(t, "topsecret", config.Obfuscation.SecretKey)
	require.Len(t, config.Parameters, 2)
	assert.Equal(t, "q", config.Parameters[0].Short)
	require.Len(t, config.Forms, 1)
	assert.Equal(t, "quelle", config.Forms[0].Fields[0].Parameter)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestLoadFileEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600))
	t.Setenv("PARAMTRAIL_SERVER_PORT", "7070")

	config, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, config.Server.Port)
}

func TestBuildRegistry(t *testing.T) {
	config := &Config{
		Obfuscation: ObfuscationConfig{Enabled: true, SecretKey: "k"},
		Parameters: []ParameterConfig{
			{Name: "quelle", Short: "q", Fallback: "direct"},
			{Name: "campaign"},
		},
	}

	reg, err := config.BuildRegistry()
	require.NoError(t, err)

	canonical, ok := reg.Resolve("q")
	assert.True(t, ok)
	assert.Equal(t, "quelle", canonical)
	assert.True(t, reg.ObfuscationEnabled())
	assert.Equal(t, "k", reg.SecretKey())
	assert.Equal(t, []string{"quelle", "q", "campaign"}, reg.IncomingKeys())
}

func TestBuildForms(t *testing.T) {
	config := &Config{
		Forms: []FormConfig{
			{
				Name:     "signup",
				Provider: "google",
				URL:      "https://docs.google.com/forms/d/abc",
				Fields:   []FormFieldConfig{{Field: "1", Parameter: "quelle"}},
			},
			{Name: "contact", URL: "https://example.com/contact"},
		},
	}

	built, err := config.BuildForms()
	require.NoError(t, err)
	require.Len(t, built, 2)
	assert.Equal(t, "google", built["signup"].Provider.Name())
	assert.Equal(t, "plain", built["contact"].Provider.Name())
	assert.Equal(t, "quelle", built["signup"].Fields[0].Parameter)

	config.Forms[0].Provider = "unknown"
	_, err = config.BuildForms()
	assert.True(t, errors.IsConfigError(err))
}
