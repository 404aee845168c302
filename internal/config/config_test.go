package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sample = `
server:
  port: 9000
  log_level: debug
cache:
  pagination_ttl: 30s
store:
  driver: postgres
  dsn: postgres://localhost/metaapi?sslmode=disable
auth:
  jwt_secret: s3cret
  allow_anonymous: true
  accounts:
    - uid: usr00000001
      username: admin
      password_hash: "$2a$10$abc"
      authorities: [ALL]
      totp_secret: JBSWY3DPEHPK3PXP
export:
  bucket: metadata-archive
  compression: snappy
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metaapi.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "/api", cfg.Server.APIPath)
	assert.Equal(t, 30*time.Second, cfg.Cache.PaginationTTL)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.Auth.AllowAnonymous)
	require.Len(t, cfg.Auth.Accounts, 1)
	assert.Equal(t, "admin", cfg.Auth.Accounts[0].Username)
	assert.Equal(t, []string{"ALL"}, cfg.Auth.Accounts[0].Authorities)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", cfg.Auth.Accounts[0].TOTPSecret)
	assert.Equal(t, "snappy", cfg.Export.Compression)
	assert.Equal(t, "exports/", cfg.Export.Prefix)
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, time.Minute, cfg.Cache.PaginationTTL)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TTL)
	assert.Equal(t, "zstd", cfg.Export.Compression)
	assert.Equal(t, 3, cfg.Export.ZstdLevel)

	// no secret yet
	assert.Error(t, cfg.Validate())
	cfg.Auth.JWTSecret = "x"
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"postgres dsn", func(c *Config) { c.Store.Driver = "postgres" }},
		{"rate", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Burst = -1 }},
		{"compression", func(c *Config) { c.Export.Compression = "lz4" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "x"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("METAAPI_PORT", "7000")
	t.Setenv("METAAPI_LOG_LEVEL", "warn")
	t.Setenv("METAAPI_PAGINATION_TTL", "5m")
	t.Setenv("METAAPI_DATABASE_URL", "postgres://db/metaapi")
	t.Setenv("METAAPI_JWT_SECRET", "from-env")
	t.Setenv("METAAPI_ALLOW_ANONYMOUS", "true")
	t.Setenv("METAAPI_RATE_LIMIT_RPS", "2.5")
	t.Setenv("METAAPI_RATE_LIMIT_BURST", "not-a-number")
	t.Setenv("METAAPI_EXPORT_BUCKET", "archive")

	cfg := Default()
	LoadFromEnv(cfg)

	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.Cache.PaginationTTL)
	assert.Equal(t, "postgres://db/metaapi", cfg.Store.DSN)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.True(t, cfg.Auth.AllowAnonymous)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, "archive", cfg.Export.Bucket)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("METAAPI_TEST_VALUE", "set")
	assert.Equal(t, "set", GetEnvOrDefault("METAAPI_TEST_VALUE", "fallback"))
	assert.Equal(t, "fallback", GetEnvOrDefault("METAAPI_TEST_UNSET", "fallback"))
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "server:\n  log_level: info\n")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(c *Config) {
			select {
			case changes <- c:
			default:
			}
		})
	}()

	// keep rewriting until the watcher is registered and reports a change
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(5 * time.Second)
	var got *Config
	for got == nil || got.Server.LogLevel != "debug" {
		select {
		case got = <-changes:
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("server:\n  log_level: debug\n"), 0o600))
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
	assert.Equal(t, "debug", got.Server.LogLevel)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
