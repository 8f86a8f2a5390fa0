// Package testutils holds fixtures shared by paramtrail's tests.
package testutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/paramtrail/internal/config"
	"github.com/conneroisu/paramtrail/internal/params"
	"github.com/conneroisu/paramtrail/internal/session"
)

// ConfigYAML is a complete configuration exercising every section.
const ConfigYAML = `server:
  host: 127.0.0.1
  port: 0
  environment: test
session:
  cookie_name: pt_session
  idle_timeout: 1h
obfuscation:
  enabled: false
  secret_key: s3cret
parameters:
  - name: quelle
    short: q
    fallback: direct
    redirect_url: https://shop.example.com/landing
  - name: campaign
forms:
  - name: signup
    provider: google
    url: https://docs.google.com/forms/d/abc
    fields:
      - field: "111"
        parameter: quelle
      - field: "222"
        parameter: campaign
`

// WriteConfig writes content to a .paramtrail.yml in a fresh temp dir and
// returns its path.
func WriteConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".paramtrail.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestConfig returns the configuration ConfigYAML describes, built
// directly.
func TestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Environment:     "test",
			ShutdownTimeout: time.Second,
		},
		Session: config.SessionConfig{
			CookieName:  "pt_session",
			IdleTimeout: time.Hour,
			MaxSessions: 100,
		},
		Obfuscation: config.ObfuscationConfig{SecretKey: "s3cret"},
		Parameters: []config.ParameterConfig{
			{Name: "quelle", Short: "q", Fallback: "direct", RedirectURL: "https://shop.example.com/landing"},
			{Name: "campaign"},
		},
		Forms: []config.FormConfig{{
			Name:     "signup",
			Provider: "google",
			URL:      "https://docs.google.com/forms/d/abc",
			Fields: []config.FormFieldConfig{
				{Field: "111", Parameter: "quelle"},
				{Field: "222", Parameter: "campaign"},
			},
		}},
		Inspector: config.InspectorConfig{AllowedOrigins: []string{"127.0.0.1:*", "localhost:*"}},
		Logging:   config.LoggingConfig{Level: "info", Format: "text"},
		Metrics:   config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// NewSource builds a registry from list and wraps it in a Source.
func NewSource(t *testing.T, obfuscation params.Obfuscation, list ...params.TrackedParameter) *params.Source {
	t.Helper()
	reg, err := params.NewRegistry(list, obfuscation)
	require.NoError(t, err)
	return params.NewSource(reg)
}

// Store returns a session store holding values.
func Store(values map[string]string) *session.Store {
	store := session.NewStore()
	for k, v := range values {
		store.Set(k, v)
	}
	return store
}
