package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Security     SecurityConfig     `yaml:"security"`
	Logging      LoggingConfig      `yaml:"logging"`
	Source       SourceConfig       `yaml:"source"`
	Shared       SharedConfig       `yaml:"shared"`
	Cache        CacheConfig        `yaml:"cache"`
	Tracker      TrackerConfig      `yaml:"tracker"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
	Stats        StatsConfig        `yaml:"stats"`
}

// ServerConfig holds http listener and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
	TLS     struct {
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"tls"`
}

// SecurityConfig holds API key, CORS and rate limit settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend     []string `yaml:"backend"`
		Frontend    []string `yaml:"frontend"`
		Admin       []string `yaml:"admin"`
		AllowUnauth bool     `yaml:"allow_unauth"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig configures the remote text provider client.
type SourceConfig struct {
	BaseURL string   `yaml:"base_url"`
	Timeout Duration `yaml:"timeout"`
	Retries int      `yaml:"retries"`
	RPS     float64  `yaml:"rps"`
}

// SharedConfig configures the hosted shared-store client. An empty base URL
// disables the shared tier and remote progress persistence.
type SharedConfig struct {
	BaseURL string   `yaml:"base_url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"` // race timeout applied to reads
}

// CacheConfig tunes the in-process memory tier.
type CacheConfig struct {
	MemorySize int      `yaml:"memory_size"`
	MemoryTTL  Duration `yaml:"memory_ttl"`
}

// TrackerConfig tunes the reading session tracker.
type TrackerConfig struct {
	SaveInterval Duration `yaml:"save_interval"`
}

// HousekeepingConfig holds configuration for the cache sweep runner.
type HousekeepingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// StatsConfig holds aggregation settings.
type StatsConfig struct {
	Timezone        string `yaml:"timezone"`
	LeaderboardSize int    `yaml:"leaderboard_size"`
}

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}
