package middleware

import (
	"encoding/json"
	"net/http"
)

// DefaultMaxBodyBytes is the default maximum request body size (10 MiB).
const DefaultMaxBodyBytes = 10 << 20

// MaxBytes limits the request body size. Requests that declare a larger
// Content-Length are rejected with 413 up front; bodies that grow past the
// limit while being read fail the handler's read instead.
func MaxBytes(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				json.NewEncoder(w).Encode(map[string]string{"message": "Request body too large."})
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
