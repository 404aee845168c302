package ratelimit

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
)

// Options customise the middleware. Zero values pick the defaults.
type Options struct {
	// Key identifies the caller. Defaults to ActorKey.
	Key func(*http.Request) string
	// Operation names the budget a request draws from. Defaults to "".
	Operation func(*http.Request) string
	// OnReject is called for every rejected request.
	OnReject func(key string)
}

// ActorKey keys authenticated users by username and everyone else by
// remote address.
func ActorKey(r *http.Request) string {
	if actor, ok := acl.FromContext(r.Context()); ok && actor.UID != "" {
		return "user:" + actor.Username
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// Middleware wraps an HTTP handler with rate limiting
func (l *Limiter) Middleware(opts Options, logger *zap.Logger) func(http.Handler) http.Handler {
	if opts.Key == nil {
		opts.Key = ActorKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.Key(r)
			operation := ""
			if opts.Operation != nil {
				operation = opts.Operation(r)
			}
			info := l.Allow(key, operation)
			SetHeaders(w, info)
			if !info.Allowed {
				logger.Debug("rate limited",
					zap.String("key", key),
					zap.String("operation", operation))
				if opts.OnReject != nil {
					opts.OnReject(key)
				}
				WriteLimitExceeded(w, info)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
