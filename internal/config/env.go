package config

import (
	"os"
	"strconv"
	"time"
)

// LoadFromEnv overrides file settings with METAAPI_* variables.
// Unparseable numbers are ignored.
func LoadFromEnv(cfg *Config) {
	if port := os.Getenv("METAAPI_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if logLevel := os.Getenv("METAAPI_LOG_LEVEL"); logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if apiPath := os.Getenv("METAAPI_API_PATH"); apiPath != "" {
		cfg.Server.APIPath = apiPath
	}
	if ttl := os.Getenv("METAAPI_PAGINATION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.PaginationTTL = d
		}
	}

	// Store
	if driver := os.Getenv("METAAPI_STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if dsn := os.Getenv("METAAPI_DATABASE_URL"); dsn != "" {
		cfg.Store.DSN = dsn
	}

	// Auth
	if secret := os.Getenv("METAAPI_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if anon := os.Getenv("METAAPI_ALLOW_ANONYMOUS"); anon != "" {
		if b, err := strconv.ParseBool(anon); err == nil {
			cfg.Auth.AllowAnonymous = b
		}
	}

	// Rate limiting
	if enabled := os.Getenv("METAAPI_RATE_LIMIT_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.RateLimit.Enabled = b
		}
	}
	if rps := os.Getenv("METAAPI_RATE_LIMIT_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimit.RPS = v
		}
	}
	if burst := os.Getenv("METAAPI_RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimit.Burst = v
		}
	}

	// Export
	cfg.Export.Bucket = GetEnvOrDefault("METAAPI_EXPORT_BUCKET", cfg.Export.Bucket)
	cfg.Export.Endpoint = GetEnvOrDefault("METAAPI_EXPORT_ENDPOINT", cfg.Export.Endpoint)
	cfg.Export.Region = GetEnvOrDefault("METAAPI_EXPORT_REGION", cfg.Export.Region)
	cfg.Export.AccessKey = GetEnvOrDefault("METAAPI_EXPORT_ACCESS_KEY", cfg.Export.AccessKey)
	cfg.Export.SecretKey = GetEnvOrDefault("METAAPI_EXPORT_SECRET_KEY", cfg.Export.SecretKey)
	cfg.Export.Compression = GetEnvOrDefault("METAAPI_EXPORT_COMPRESSION", cfg.Export.Compression)
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
