// cmd/metaapi/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/api"
	"github.com/FairForge/metaapi/internal/auth"
	"github.com/FairForge/metaapi/internal/cache"
	"github.com/FairForge/metaapi/internal/config"
	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/export"
	"github.com/FairForge/metaapi/internal/importer"
	"github.com/FairForge/metaapi/internal/metadata"
	"github.com/FairForge/metaapi/internal/metrics"
	"github.com/FairForge/metaapi/internal/ratelimit"
	"github.com/FairForge/metaapi/internal/store"
	"github.com/FairForge/metaapi/internal/validation"
)

const auditCapacity = 10000

func main() {
	configPath := flag.String("config", config.GetEnvOrDefault("METAAPI_CONFIG", ""), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	level, _ := zap.ParseAtomicLevel(cfg.Server.LogLevel)
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage
	var (
		backend store.Backend
		ready   func(context.Context) error
	)
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := store.OpenPostgres(cfg.Store.DSN, logger)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		if err := pg.CreateTables(ctx); err != nil {
			logger.Fatal("failed to create tables", zap.Error(err))
		}
		backend, ready = pg, pg.Ping
		logger.Info("using postgres store")
	default:
		backend = store.NewMemory()
		logger.Info("using in-memory store")
	}

	reg := metadata.NewRegistry()
	auditor := acl.NewAuditor(auditCapacity)
	gate := acl.NewGate(reg, auditor, logger)
	docs := store.NewDocuments(backend, reg, gate, logger)

	m := metrics.New()
	imp := importer.New(docs, reg, gate, validation.NewValidator(), logger)
	imp.SetObserver(m)

	cacheCfg := cache.DefaultConfig()
	cacheCfg.TTL = cfg.Cache.PaginationTTL
	pages := cache.NewPaginationCache(cacheCfg, logger)
	m.WatchPaginationCache(pages)

	eng := engine.NewEngine(engine.Config{
		Registry: reg,
		Store:    docs,
		Gate:     gate,
		Importer: imp,
		Pages:    pages,
		BasePath: cfg.Server.APIPath,
	}, logger)

	authSvc := auth.NewService(auth.Config{
		Secret:         cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		TTL:            cfg.Auth.TTL,
		Accounts:       cfg.Auth.Accounts,
		AllowAnonymous: cfg.Auth.AllowAnonymous,
	}, logger)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		// bulk calls get a tenth of the default budget
		limiter.SetLimit("import", cfg.RateLimit.RPS/10, max(cfg.RateLimit.Burst/10, 1))
		limiter.SetLimit("export", cfg.RateLimit.RPS/10, max(cfg.RateLimit.Burst/10, 1))
	}

	archiver, err := newArchiver(ctx, cfg.Export, eng, logger)
	if err != nil {
		logger.Fatal("failed to set up metadata export", zap.Error(err))
	}

	server := api.NewServer(api.Options{
		Addr:     cfg.Addr(),
		APIPath:  cfg.Server.APIPath,
		Engine:   eng,
		Auth:     authSvc,
		Limiter:  limiter,
		Metrics:  m,
		Archiver: archiver,
		Auditor:  auditor,
		Ready:    ready,
	}, logger)

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, logger, func(next *config.Config) {
				if l, err := zap.ParseAtomicLevel(next.Server.LogLevel); err == nil {
					level.SetLevel(l.Level())
				}
				if limiter != nil && next.RateLimit.Enabled {
					limiter.SetDefault(next.RateLimit.RPS, next.RateLimit.Burst)
				}
				logger.Info("configuration reloaded",
					zap.String("log_level", next.Server.LogLevel),
					zap.Float64("rps", next.RateLimit.RPS))
			})
			if err != nil {
				logger.Warn("config watch stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("metadata API started",
		zap.String("addr", cfg.Addr()),
		zap.String("store", cfg.Store.Driver),
		zap.Int("types", len(reg.All())))

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newArchiver stores archives in S3 when a bucket is configured and in
// memory otherwise.
func newArchiver(ctx context.Context, cfg config.ExportConfig, eng *engine.Engine, logger *zap.Logger) (*export.Archiver, error) {
	compressor, err := export.NewCompressor(export.Compression(cfg.Compression), cfg.ZstdLevel)
	if err != nil {
		return nil, err
	}
	var sink export.Sink = export.NewMemorySink()
	if cfg.Bucket != "" {
		s3Sink, err := export.NewS3Sink(ctx, export.S3Config{
			Bucket:    cfg.Bucket,
			Endpoint:  cfg.Endpoint,
			Region:    cfg.Region,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		sink = s3Sink
	} else {
		logger.Warn("no export bucket configured, archives are kept in memory")
	}
	return export.NewArchiver(eng, sink, compressor, cfg.Prefix, logger), nil
}
