package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type key string

const UserIDKey key = "user_id"

// TokenVerifier validates an access token and returns the user id it carries.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// JWTMiddleware rejects requests without a valid "Authorization: Bearer <token>"
// header and stores the authenticated user id in the request context.
func JWTMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w)
				return
			}

			scheme, tokenStr, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				unauthorized(w)
				return
			}

			userID, err := verifier.Verify(strings.TrimSpace(tokenStr))
			if err != nil {
				unauthorized(w)
				return
			}

			if h, ok := r.Context().Value(holderKey{}).(*userHolder); ok {
				h.id, h.set = userID, true
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user id set by JWTMiddleware.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return id, ok
}

type holderKey struct{}

// userHolder lets Observe see the user id resolved further down the chain.
type userHolder struct {
	id  uuid.UUID
	set bool
}

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": "Not authenticated."})
}
