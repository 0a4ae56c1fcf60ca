// Package config defines and loads the chatrelay configuration.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/ferre795/chatrelay/internal/logger"
)

// Config is the root chatrelay configuration.
type Config struct {
	// Server holds the relay server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Provider holds the upstream generative API settings
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Store holds the session snapshot persistence settings
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Client holds the terminal client settings
	Client ClientConfig `json:"client" mapstructure:"client"`

	// Logging
	Logging logger.Config `json:"logging" mapstructure:"logging"`

	// Data directory, defaults to ~/.chatrelay
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds the relay HTTP server configuration
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`

	// RateLimit is the per-client request budget per minute, 0 disables
	RateLimit int `json:"rate_limit" mapstructure:"rate_limit"`

	// SessionTTLMinutes prunes server-side conversation contexts idle
	// longer than this, 0 disables pruning
	SessionTTLMinutes int `json:"session_ttl_minutes" mapstructure:"session_ttl_minutes"`
}

// ProviderConfig holds the upstream generative API configuration
type ProviderConfig struct {
	Name      string `json:"name" mapstructure:"name"` // gemini, openai, anthropic
	APIKey    string `json:"api_key" mapstructure:"api_key"`
	Model     string `json:"model" mapstructure:"model"`
	MaxTokens int    `json:"max_tokens" mapstructure:"max_tokens"`
}

// StoreConfig holds snapshot persistence configuration
type StoreConfig struct {
	Backend string `json:"backend" mapstructure:"backend"` // file, sqlite
	Path    string `json:"path" mapstructure:"path"`
}

// ClientConfig holds terminal client configuration
type ClientConfig struct {
	ServerURL string `json:"server_url" mapstructure:"server_url"`

	// TypeDelayMs paces the typewriter effect, 0 disables it
	TypeDelayMs int `json:"type_delay_ms" mapstructure:"type_delay_ms"`

	// Markdown renders finalized replies with terminal styling
	Markdown bool `json:"markdown" mapstructure:"markdown"`

	// Width wraps rendered markdown at this column
	Width int `json:"width" mapstructure:"width"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			RateLimit:         60,
			SessionTTLMinutes: 120,
		},
		Provider: ProviderConfig{
			Name:      "gemini",
			Model:     "gemini-2.0-flash",
			MaxTokens: 4096,
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Client: ClientConfig{
			ServerURL:   "http://127.0.0.1:8080",
			TypeDelayMs: 0,
			Markdown:    true,
			Width:       80,
		},
		Logging: logger.DefaultConfig(),
		DataDir: "",
	}
}

// String returns a JSON representation of the config with the API key
// masked.
func (c *Config) String() string {
	masked := *c
	if masked.Provider.APIKey != "" {
		masked.Provider.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(&masked, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Provider.Name {
	case "gemini", "openai", "anthropic":
	case "":
		return fmt.Errorf("provider name is required")
	default:
		return fmt.Errorf("invalid provider %s (must be: gemini, openai, anthropic)", c.Provider.Name)
	}

	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider %s: api_key is required", c.Provider.Name)
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider %s: model is required", c.Provider.Name)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}

	switch c.Store.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("invalid store backend %s (must be: file, sqlite)", c.Store.Backend)
	}

	if c.Client.ServerURL == "" {
		return fmt.Errorf("client server_url is required")
	}

	return nil
}
