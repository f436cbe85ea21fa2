package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:3000", cfg.Dispatcher.BaseURL)
	assert.Equal(t, ModeClient, cfg.Dispatcher.Mode)
	assert.Equal(t, 5*time.Minute, cfg.Dispatcher.TokenTTL())
	assert.Equal(t, "/api/", cfg.Dispatcher.InternalPrefix)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.Tools.Allow)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "toolgate", cfg.Tracing.ServiceName)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.Dispatcher.BaseURL = " " },
			wantErr: "dispatcher.base_url is required",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Dispatcher.Mode = "hybrid" },
			wantErr: "invalid dispatcher mode",
		},
		{
			name:    "server mode without secret",
			mutate:  func(c *Config) { c.Dispatcher.Mode = ModeServer },
			wantErr: "internal_secret is required",
		},
		{
			name: "files enabled without dir",
			mutate: func(c *Config) {
				c.Files.Enabled = true
				c.Files.Dir = ""
			},
			wantErr: "files.dir is required",
		},
		{
			name: "server mode with secret",
			mutate: func(c *Config) {
				c.Dispatcher.Mode = ModeServer
				c.Dispatcher.InternalSecret = "s3cret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dispatcher.InternalSecret = "internal-secret-value"
	cfg.Server.SharedSecret = "shared-secret-value"

	out := cfg.String()

	assert.NotContains(t, out, "internal-secret-value")
	assert.NotContains(t, out, "shared-secret-value")
	assert.Contains(t, out, `"base_url": "http://localhost:3000"`)
	assert.Equal(t, "internal-secret-value", cfg.Dispatcher.InternalSecret)
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 9090}
	assert.Equal(t, "127.0.0.1:9090", s.Addr())
}
