package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateBaseURL validates the host application base URL
func (v *Validator) ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base url cannot be empty")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base url scheme: %s (must be http or https)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("base url must include a host")
	}

	return nil
}

// ValidateInternalSecret validates the secret used to sign internal tokens
func (v *Validator) ValidateInternalSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("internal secret cannot be empty")
	}
	if len(secret) < 32 {
		return fmt.Errorf("internal secret too short (min 32 characters), got %d", len(secret))
	}
	return nil
}

// ValidateInternalPrefix validates the internal route prefix
func (v *Validator) ValidateInternalPrefix(prefix string) error {
	if prefix == "" {
		return nil // Use default
	}
	if !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("internal prefix must start and end with '/', got %s", prefix)
	}
	return nil
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateSampleRatio validates a trace sampling ratio
func (v *Validator) ValidateSampleRatio(ratio float64) error {
	if ratio < 0 || ratio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1, got %f", ratio)
	}
	return nil
}

// ValidateToolPattern validates an allow/deny pattern: an exact tool id, "*",
// or a prefix ending in "*"
func (v *Validator) ValidateToolPattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("tool pattern cannot be empty")
	}
	if idx := strings.Index(pattern, "*"); idx >= 0 && idx != len(pattern)-1 {
		return fmt.Errorf("invalid tool pattern %s: '*' is only allowed at the end", pattern)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidateBaseURL(cfg.Dispatcher.BaseURL); err != nil {
		errors = append(errors, fmt.Errorf("dispatcher: %w", err))
	}
	if cfg.Dispatcher.ServerMode() {
		if err := v.ValidateInternalSecret(cfg.Dispatcher.InternalSecret); err != nil {
			errors = append(errors, fmt.Errorf("dispatcher: %w", err))
		}
	}
	if cfg.Dispatcher.InternalTokenTTL < 0 {
		errors = append(errors, fmt.Errorf("dispatcher.internal_token_ttl must be >= 0"))
	}
	if err := v.ValidateInternalPrefix(cfg.Dispatcher.InternalPrefix); err != nil {
		errors = append(errors, fmt.Errorf("dispatcher: %w", err))
	}

	if cfg.Files.Enabled && cfg.Files.PublicBaseURL != "" {
		if err := v.ValidateBaseURL(cfg.Files.PublicBaseURL); err != nil {
			errors = append(errors, fmt.Errorf("files.public_base_url: %w", err))
		}
	}

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, fmt.Errorf("server: %w", err))
	}
	for _, pattern := range append(append([]string{}, cfg.Server.Tools.Allow...), cfg.Server.Tools.Deny...) {
		if err := v.ValidateToolPattern(pattern); err != nil {
			errors = append(errors, fmt.Errorf("server.tools: %w", err))
		}
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	if cfg.Tracing.Enabled {
		if err := v.ValidateSampleRatio(cfg.Tracing.SampleRatio); err != nil {
			errors = append(errors, fmt.Errorf("tracing: %w", err))
		}
	}

	return errors
}
