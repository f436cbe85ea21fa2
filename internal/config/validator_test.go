package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBaseURL(t *testing.T) {
	v := NewValidator()

	t.Run("valid https url", func(t *testing.T) {
		assert.NoError(t, v.ValidateBaseURL("https://app.example.com"))
	})

	t.Run("empty url", func(t *testing.T) {
		assert.Error(t, v.ValidateBaseURL(""))
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		assert.Error(t, v.ValidateBaseURL("ftp://app.example.com"))
	})

	t.Run("missing host", func(t *testing.T) {
		assert.Error(t, v.ValidateBaseURL("http://"))
	})
}

func TestValidateInternalSecret(t *testing.T) {
	v := NewValidator()

	assert.Error(t, v.ValidateInternalSecret(""))
	assert.Error(t, v.ValidateInternalSecret("short"))
	assert.NoError(t, v.ValidateInternalSecret(strings.Repeat("a", 32)))
}

func TestValidateInternalPrefix(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateInternalPrefix(""))
	assert.NoError(t, v.ValidateInternalPrefix("/api/"))
	assert.Error(t, v.ValidateInternalPrefix("api/"))
	assert.Error(t, v.ValidateInternalPrefix("/api"))
}

func TestValidatePort(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidatePort(8080))
	assert.Error(t, v.ValidatePort(0))
	assert.Error(t, v.ValidatePort(70000))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("verbose"))
}

func TestValidateToolPattern(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateToolPattern("*"))
	assert.NoError(t, v.ValidateToolPattern("mcp-*"))
	assert.NoError(t, v.ValidateToolPattern("http_request"))
	assert.Error(t, v.ValidateToolPattern(""))
	assert.Error(t, v.ValidateToolPattern("mcp-*-search"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("default config is valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every error", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Dispatcher.BaseURL = "not a url"
		cfg.Dispatcher.Mode = ModeServer
		cfg.Server.Port = 0
		cfg.Logging.Level = "loud"
		cfg.Server.Tools.Deny = []string{"*bad"}

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 5)
	})

	t.Run("sample ratio checked only when tracing enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Tracing.SampleRatio = 2
		assert.Empty(t, v.ValidateConfig(cfg))

		cfg.Tracing.Enabled = true
		assert.Len(t, v.ValidateConfig(cfg), 1)
	})
}
