// Package config provides environment-variable-first configuration loading
// with optional YAML file fallback for the courier CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultHTTPTimeout bounds a single provider API request.
const defaultHTTPTimeout = 30 * time.Second

// Config holds the complete application configuration.
type Config struct {
	// Courier selects the delivery backend: postmark, sparkpost, ses, graph
	// or stdout. Empty means auto-detect from configured credentials.
	Courier   string          `yaml:"courier"`
	Postmark  PostmarkConfig  `yaml:"postmark"`
	SparkPost SparkPostConfig `yaml:"sparkpost"`
	SES       SESConfig       `yaml:"ses"`
	Graph     GraphConfig     `yaml:"graph"`
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PostmarkConfig holds Postmark API configuration.
type PostmarkConfig struct {
	ServerToken string `yaml:"server_token"`
	BaseURL     string `yaml:"base_url"`
}

// SparkPostConfig holds SparkPost API configuration.
type SparkPostConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// SESConfig holds AWS SES configuration. Static credentials are optional;
// without them the default AWS credential chain is used.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"`
}

// HTTPConfig holds settings for the REST provider clients.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
// Environment variables always take precedence.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file path does not exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Environment variables always override YAML values
	cfg.applyEnvVars()
	cfg.Courier = strings.ToLower(cfg.Courier)

	return cfg, nil
}

// PostmarkConfigured returns true if a Postmark server token is set.
func (c *Config) PostmarkConfigured() bool {
	return c.Postmark.ServerToken != ""
}

// SparkPostConfigured returns true if a SparkPost API key is set.
func (c *Config) SparkPostConfigured() bool {
	return c.SparkPost.APIKey != ""
}

// SESConfigured returns true if an SES region is set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != ""
}

// GraphConfigured returns true if all three Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != ""
}

// applyDefaults sets sensible default values for all configuration fields.
func (c *Config) applyDefaults() {
	c.HTTP.Timeout = defaultHTTPTimeout
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("COURIER"); v != "" {
		c.Courier = strings.ToLower(v)
	}

	if v := os.Getenv("POSTMARK_SERVER_TOKEN"); v != "" {
		c.Postmark.ServerToken = v
	}
	if v := os.Getenv("POSTMARK_BASE_URL"); v != "" {
		c.Postmark.BaseURL = v
	}

	if v := os.Getenv("SPARKPOST_API_KEY"); v != "" {
		c.SparkPost.APIKey = v
	}
	if v := os.Getenv("SPARKPOST_BASE_URL"); v != "" {
		c.SparkPost.BaseURL = v
	}

	if v := os.Getenv("SES_REGION"); v != "" {
		c.SES.Region = v
	}
	if v := os.Getenv("SES_ACCESS_KEY_ID"); v != "" {
		c.SES.AccessKeyID = v
	}
	if v := os.Getenv("SES_SECRET_ACCESS_KEY"); v != "" {
		c.SES.SecretAccessKey = v
	}

	if v := os.Getenv("GRAPH_TENANT_ID"); v != "" {
		c.Graph.TenantID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_ID"); v != "" {
		c.Graph.ClientID = v
	}
	if v := os.Getenv("GRAPH_CLIENT_SECRET"); v != "" {
		c.Graph.ClientSecret = v
	}
	if v := os.Getenv("GRAPH_BASE_URL"); v != "" {
		c.Graph.BaseURL = v
	}

	if v := os.Getenv("HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.HTTP.Timeout = d
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}
