package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/FairForge/metaapi/internal/acl"
)

// Middleware resolves the bearer token of each request into the context
// actor.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := s.actorFor(r)
		if err != nil {
			s.logger.Debug("request rejected",
				zap.String("path", r.URL.Path),
				zap.Error(err))
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(acl.WithActor(r.Context(), actor)))
	})
}

func (s *Service) actorFor(r *http.Request) (*acl.Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if s.anonymous {
			return Guest(), nil
		}
		return nil, ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, ErrInvalidToken
	}
	return s.Parse(strings.TrimSpace(token))
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	message := ErrInvalidToken.Error()
	for _, known := range []error{ErrMissingToken, ErrInvalidCredentials, ErrCodeRequired} {
		if errors.Is(err, known) {
			message = known.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="metaapi"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"httpStatus":     "Unauthorized",
		"httpStatusCode": http.StatusUnauthorized,
		"status":         "ERROR",
		"message":        message,
	})
}

// LoginHandler exchanges {username, password} for a token.
func (s *Service) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	token, err := s.Login(req.Username, req.Password, req.Code)
	if err != nil {
		writeUnauthorized(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   int(s.ttl.Seconds()),
	})
}
