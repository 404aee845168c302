// internal/ratelimit/headers.go
package ratelimit

import (
	"math"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// SetHeaders adds rate limit headers to a response
func SetHeaders(w http.ResponseWriter, info Info) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.Reset.Unix(), 10))
}

// WriteLimitExceeded writes a 429 web message with Retry-After in whole
// seconds, at least one.
func WriteLimitExceeded(w http.ResponseWriter, info Info) {
	retry := max(int(math.Ceil(info.RetryAfter.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"httpStatus":     "Too Many Requests",
		"httpStatusCode": http.StatusTooManyRequests,
		"status":         "ERROR",
		"message":        "Rate limit exceeded, retry in " + strconv.Itoa(retry) + "s",
	})
}
