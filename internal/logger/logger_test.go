package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("create logger with console output", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := Config{
			Level:      "info",
			Console:    true,
			ConsoleOut: &buf,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		defer logger.Close()

		logger.Info().Msg("console message")
		assert.Contains(t, buf.String(), "console message")
	})

	t.Run("create logger with file output", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cfg := Config{
			Level: "debug",
			File:  "/var/log/toolgate/toolgate.log",
			Fs:    fs,
		}

		logger, err := New(cfg)
		require.NoError(t, err)

		logger.Info().Msg("file message")
		require.NoError(t, logger.Close())

		content, err := afero.ReadFile(fs, "/var/log/toolgate/toolgate.log")
		require.NoError(t, err)
		assert.Contains(t, string(content), "file message")
	})

	t.Run("create logger with rotation", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		cfg := Config{
			Level:   "info",
			File:    "/logs/toolgate.log",
			MaxSize: 1,
			Fs:      fs,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		defer logger.Close()

		_, ok := logger.closer.(*RotatingWriter)
		assert.True(t, ok)
	})

	t.Run("create logger with redaction", func(t *testing.T) {
		var buf bytes.Buffer
		cfg := Config{
			Level:      "info",
			Console:    true,
			ConsoleOut: &buf,
			Redaction:  true,
		}

		logger, err := New(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger.redactor)

		logger.Info().Str("accessToken", "tok-123").Msg("exchanged")
		assert.NotContains(t, buf.String(), "tok-123")
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		logger, err := New(Config{Level: "loud"})
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, logger.GetZerolog().GetLevel())
	})
}

func TestLoggerMethods(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "debug", Console: true, ConsoleOut: &buf})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug().Msg("debug message")
	logger.Info().Msg("info message")
	logger.Warn().Msg("warn message")
	logger.Error().Msg("error message")

	out := buf.String()
	for _, msg := range []string{"debug message", "info message", "warn message", "error message"} {
		assert.Contains(t, out, msg)
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Console: true, ConsoleOut: &buf})
	require.NoError(t, err)

	child := logger.Component("server")
	child.Info().Msg("listening")

	assert.Contains(t, buf.String(), `"component":"server"`)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.True(t, cfg.Console)
	assert.False(t, cfg.Pretty)
	assert.True(t, cfg.Redaction)
	assert.Equal(t, 100, cfg.MaxSize)
	assert.Equal(t, 7, cfg.MaxAge)
	assert.True(t, cfg.Compress)
}
