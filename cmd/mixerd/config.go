// config.go - Configuration management for the mixer daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the daemon configuration.
type Config struct {
	// Protocol settings
	Denomination uint64 `json:"denomination"`

	// Proving
	KeyDir        string `json:"key_dir"`
	UseRealProver bool   `json:"use_real_prover"`

	// Relay
	RelayListen            string `json:"relay_listen"`
	RateLimitTokens        int    `json:"rate_limit_tokens"`
	RateLimitRefill        int    `json:"rate_limit_refill"`
	RateLimitPeriodSeconds int    `json:"rate_limit_period_seconds"`

	// Observability
	HTTPListen string `json:"http_listen"`
	LogLevel   string `json:"log_level"`
	LogFile    string `json:"log_file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Denomination:           1_000_000_000,
		KeyDir:                 "keys",
		UseRealProver:          false,
		RelayListen:            "127.0.0.1:8545",
		RateLimitTokens:        10,
		RateLimitRefill:        10,
		RateLimitPeriodSeconds: 1,
		HTTPListen:             "127.0.0.1:8546",
		LogLevel:               "info",
		LogFile:                "",
	}
}

// LoadConfig loads configuration from file or creates the default.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		var config Config
		if err := json.NewDecoder(file).Decode(&config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return &config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file.
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Denomination == 0 {
		return fmt.Errorf("denomination must be positive")
	}
	if c.RelayListen == "" {
		return fmt.Errorf("relay_listen must be set")
	}
	if c.RateLimitTokens <= 0 {
		return fmt.Errorf("rate_limit_tokens must be positive")
	}
	if c.RateLimitRefill <= 0 {
		return fmt.Errorf("rate_limit_refill must be positive")
	}
	if c.RateLimitPeriodSeconds <= 0 {
		return fmt.Errorf("rate_limit_period_seconds must be positive")
	}
	return nil
}
