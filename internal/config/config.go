// Package config loads the service configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/FairForge/metaapi/internal/auth"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Export    ExportConfig    `yaml:"export"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	APIPath  string `yaml:"api_path"`
}

type CacheConfig struct {
	PaginationTTL time.Duration `yaml:"pagination_ttl"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // memory or postgres
	DSN    string `yaml:"dsn"`
}

type AuthConfig struct {
	JWTSecret      string         `yaml:"jwt_secret"`
	Issuer         string         `yaml:"issuer"`
	TTL            time.Duration  `yaml:"ttl"`
	AllowAnonymous bool           `yaml:"allow_anonymous"`
	Accounts       []auth.Account `yaml:"accounts"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type ExportConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Endpoint    string `yaml:"endpoint"`
	Region      string `yaml:"region"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Compression string `yaml:"compression"`
	ZstdLevel   int    `yaml:"zstd_level"`
}

// Default returns a configuration that runs in memory on port 8080.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML file and fills unset values with defaults. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.APIPath == "" {
		c.Server.APIPath = "/api"
	}
	if c.Cache.PaginationTTL == 0 {
		c.Cache.PaginationTTL = time.Minute
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "metaapi"
	}
	if c.Auth.TTL == 0 {
		c.Auth.TTL = 24 * time.Hour
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 50
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 100
	}
	if c.Export.Compression == "" {
		c.Export.Compression = "zstd"
	}
	if c.Export.ZstdLevel == 0 {
		c.Export.ZstdLevel = 3
	}
	if c.Export.Prefix == "" {
		c.Export.Prefix = "exports/"
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := zap.ParseAtomicLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("server.log_level: %w", err)
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive")
	}
	switch c.Export.Compression {
	case "zstd", "snappy", "none":
	default:
		return fmt.Errorf("unknown export.compression %q", c.Export.Compression)
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
