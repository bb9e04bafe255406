// Package wrangle is the service layer: it owns the current dataset, the
// change history, and every operation the HTTP and MCP surfaces expose.
package wrangle

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tidytable configuration.
type Config struct {
	Addr       string          `yaml:"addr"`
	AuditDB    string          `yaml:"audit_db"`
	UploadDir  string          `yaml:"upload_dir"`
	MaxUpload  int64           `yaml:"max_upload_bytes"`
	LogLevel   string          `yaml:"log_level"`
	Preview    PreviewConfig   `yaml:"preview"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
	MCPEnabled bool            `yaml:"mcp_enabled"`
}

// PreviewConfig controls data preview pagination.
type PreviewConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// RateLimitConfig controls the per-IP request budget.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8090"
	}
	if c.AuditDB == "" {
		c.AuditDB = "db/audit.db"
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	if c.MaxUpload <= 0 {
		c.MaxUpload = 16 << 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Preview.DefaultLimit <= 0 {
		c.Preview.DefaultLimit = 50
	}
	if c.Preview.MaxLimit <= 0 {
		c.Preview.MaxLimit = 500
	}
	if c.RateLimit.MaxRequests <= 0 {
		c.RateLimit.MaxRequests = 300
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.defaults()
	return cfg
}

// LoadConfigFile reads a YAML config file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return cfg, nil
}
