package config

import (
	"time"

	"github.com/surecall-ai/surecall/internal/core/policy"
	"github.com/surecall-ai/surecall/internal/infra/counter"
	"github.com/surecall-ai/surecall/internal/infra/policystore"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig                `yaml:"server"`
	Logging  LoggingConfig               `yaml:"logging"`
	Redis    counter.RedisConfig         `yaml:"redis"`
	Database policystore.Config          `yaml:"database"`
	Models   []ModelConfig               `yaml:"models"`
	Defaults policy.Overrides            `yaml:"defaults"`
	Tenants  map[string]policy.Overrides `yaml:"tenants"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ModelConfig holds settings for one upstream model endpoint.
type ModelConfig struct {
	ID       string        `yaml:"id"`
	Provider string        `yaml:"provider"` // e.g., "openai", "sim"
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"` // per-call, 0 = default
	// Cost rates in USD per 1K tokens, used to price each response.
	InputPer1K  float64 `yaml:"input_per_1k"`
	OutputPer1K float64 `yaml:"output_per_1k"`
}

// Model returns the config for a model ID, or nil if unknown.
func (c *AppConfig) Model(id string) *ModelConfig {
	for i := range c.Models {
		if c.Models[i].ID == id {
			return &c.Models[i]
		}
	}
	return nil
}
