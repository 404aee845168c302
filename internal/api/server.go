// Package api exposes the object engine over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
	"github.com/FairForge/metaapi/internal/auth"
	"github.com/FairForge/metaapi/internal/engine"
	"github.com/FairForge/metaapi/internal/export"
	"github.com/FairForge/metaapi/internal/metrics"
	"github.com/FairForge/metaapi/internal/ratelimit"
)

// Options wires the server. Limiter, Metrics, Archiver, Auditor and Ready
// are optional.
type Options struct {
	Addr     string
	APIPath  string
	Engine   *engine.Engine
	Auth     *auth.Service
	Limiter  *ratelimit.Limiter
	Metrics  *metrics.Metrics
	Archiver *export.Archiver
	Auditor  *acl.Auditor
	Ready    func(context.Context) error
}

type Server struct {
	engine   *engine.Engine
	auth     *auth.Service
	limiter  *ratelimit.Limiter
	metrics  *metrics.Metrics
	archiver *export.Archiver
	auditor  *acl.Auditor
	ready    func(context.Context) error
	apiPath  string

	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

func NewServer(opts Options, logger *zap.Logger) *Server {
	apiPath := "/" + strings.Trim(opts.APIPath, "/")
	if apiPath == "/" {
		apiPath = "/api"
	}
	s := &Server{
		engine:    opts.Engine,
		auth:      opts.Auth,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		archiver:  opts.Archiver,
		auditor:   opts.Auditor,
		ready:     opts.Ready,
		apiPath:   apiPath,
		logger:    logger,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc(s.apiPath+"/auth/token", s.auth.LoginHandler).Methods(http.MethodPost)

	// Object API, must be last
	s.router.PathPrefix(s.apiPath + "/").Handler(gzhttp.GzipHandler(s.apiHandler()))
}

func (s *Server) apiHandler() http.Handler {
	r := chi.NewRouter()
	r.Use(suffixMiddleware)
	r.Use(s.auth.Middleware)
	if s.limiter != nil {
		r.Use(s.limiter.Middleware(ratelimit.Options{
			Operation: operationOf,
			OnReject:  s.onRateLimited,
		}, s.logger))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeMessage(w, r, newWebMessage(http.StatusNotFound, "ERROR", "No endpoint for "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeMessage(w, r, newWebMessage(http.StatusMethodNotAllowed, "ERROR", "Method "+r.Method+" not allowed"))
	})

	r.Route(s.apiPath, func(r chi.Router) {
		s.metadataRoutes(r)
		s.auditRoutes(r)
		s.objectRoutes(r)
	})
	return r
}

// operationOf puts bulk metadata calls on their own rate limit budget.
func operationOf(r *http.Request) string {
	if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/metadata") {
		return "import"
	}
	if strings.HasSuffix(r.URL.Path, "/metadata/export") {
		return "export"
	}
	return ""
}

func (s *Server) onRateLimited(key string) {
	if s.metrics != nil {
		s.metrics.IncrementRateLimitHit(key)
	}
}

// Handler returns the root handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("not ready", zap.Error(err))
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "error": err.Error()})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.httpServer.Addr), zap.String("api_path", s.apiPath))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
