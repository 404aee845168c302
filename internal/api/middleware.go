package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/codec"
)

type requestInfoKey struct{}

// requestInfo is filled in while a request is routed and read back by the
// logging middleware.
type requestInfo struct {
	ID     string
	Type   string
	Suffix codec.Format
}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

func requestID(ctx context.Context) string {
	if info := infoFrom(ctx); info != nil {
		return info.ID
	}
	return ""
}

// responseFormat honours a path suffix first, then Accept.
func responseFormat(r *http.Request) codec.Format {
	var suffix codec.Format
	if info := infoFrom(r.Context()); info != nil {
		suffix = info.Suffix
	}
	return codec.Negotiate(r.Header.Get("Accept"), suffix)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{ID: r.Header.Get("X-Request-ID")}
		if info.ID == "" {
			info.ID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", info.ID)
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, info)))

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(info.Type, r.Method, rec.status, elapsed)
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", elapsed),
			zap.String("request_id", info.ID),
		)
	})
}

// suffixMiddleware removes a ".json" or ".xml" suffix from the path before
// routing and remembers it as the response format.
func suffixMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if path, f := codec.StripSuffix(r.URL.Path); f != "" {
			r.URL.Path = path
			r.URL.RawPath = ""
			if info := infoFrom(r.Context()); info != nil {
				info.Suffix = f
			}
		}
		next.ServeHTTP(w, r)
	})
}
