package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Dispatcher modes
const (
	ModeServer = "server"
	ModeClient = "client"
)

// Config represents the main toolgate configuration
type Config struct {
	// Dispatcher
	Dispatcher DispatcherConfig `json:"dispatcher" mapstructure:"dispatcher"`

	// Built-in tool catalog
	Catalog CatalogConfig `json:"catalog" mapstructure:"catalog"`

	// File outputs
	Files FilesConfig `json:"files" mapstructure:"files"`

	// Inbound server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// DispatcherConfig holds tool dispatch settings
type DispatcherConfig struct {
	BaseURL          string `json:"base_url" mapstructure:"base_url"`
	Mode             string `json:"mode" mapstructure:"mode"` // server, client
	InternalSecret   string `json:"internal_secret" mapstructure:"internal_secret"`
	InternalTokenTTL int    `json:"internal_token_ttl" mapstructure:"internal_token_ttl"` // seconds
	InternalPrefix   string `json:"internal_prefix" mapstructure:"internal_prefix"`
}

// TokenTTL returns the internal token lifetime
func (d DispatcherConfig) TokenTTL() time.Duration {
	return time.Duration(d.InternalTokenTTL) * time.Second
}

// ServerMode reports whether this process signs internal requests
func (d DispatcherConfig) ServerMode() bool {
	return d.Mode == ModeServer
}

// CatalogConfig points at the declarative tool catalog
type CatalogConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// FilesConfig holds file output settings
type FilesConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled"`
	Dir           string `json:"dir" mapstructure:"dir"`
	PublicBaseURL string `json:"public_base_url" mapstructure:"public_base_url"`
}

// ServerConfig holds inbound server configuration
type ServerConfig struct {
	Host         string           `json:"host" mapstructure:"host"`
	Port         int              `json:"port" mapstructure:"port"`
	SharedSecret string           `json:"shared_secret" mapstructure:"shared_secret"`
	Tools        ToolPolicyConfig `json:"tools" mapstructure:"tools"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ToolPolicyConfig defines which tools the inbound server may execute
type ToolPolicyConfig struct {
	Allow []string `json:"allow" mapstructure:"allow"`
	Deny  []string `json:"deny" mapstructure:"deny"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Dispatcher: DispatcherConfig{
			BaseURL:          "http://localhost:3000",
			Mode:             ModeClient,
			InternalTokenTTL: 300,
			InternalPrefix:   "/api/",
		},
		Files: FilesConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Tools: ToolPolicyConfig{
				Allow: []string{"*"},
				Deny:  []string{},
			},
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "toolgate",
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config with secrets masked
func (c *Config) String() string {
	masked := *c
	if masked.Dispatcher.InternalSecret != "" {
		masked.Dispatcher.InternalSecret = "********"
	}
	if masked.Server.SharedSecret != "" {
		masked.Server.SharedSecret = "********"
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Dispatcher.BaseURL) == "" {
		return fmt.Errorf("dispatcher.base_url is required")
	}

	if c.Dispatcher.Mode != ModeServer && c.Dispatcher.Mode != ModeClient {
		return fmt.Errorf("invalid dispatcher mode: %s (must be: server, client)", c.Dispatcher.Mode)
	}

	if c.Dispatcher.ServerMode() && c.Dispatcher.InternalSecret == "" {
		return fmt.Errorf("dispatcher.internal_secret is required in server mode")
	}

	if c.Files.Enabled && c.Files.Dir == "" {
		return fmt.Errorf("files.dir is required when file outputs are enabled")
	}

	return nil
}
