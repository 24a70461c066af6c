package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

type stubVerifier struct {
	token string
	id    uuid.UUID
}

func (s stubVerifier) Verify(token string) (uuid.UUID, error) {
	if token != s.token {
		return uuid.Nil, errors.New("bad token")
	}
	return s.id, nil
}

func TestJWTMiddleware(t *testing.T) {
	id := uuid.New()
	var gotID uuid.UUID
	h := JWTMiddleware(stubVerifier{token: "good", id: id})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no scheme", "good", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/feed/posts", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Fatalf("status: got %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized {
				var out map[string]string
				if err := json.NewDecoder(rr.Body).Decode(&out); err != nil || out["message"] != "Not authenticated." {
					t.Errorf("unexpected body: %v %v", out, err)
				}
			}
		})
	}
	if gotID != id {
		t.Errorf("user id in context: got %s, want %s", gotID, id)
	}
}

func TestCORS_AnyOrigin(t *testing.T) {
	h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/feed/post", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status: got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin: got %q", got)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "PATCH") {
		t.Errorf("PATCH should be allowed: %q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestCORS_ListedOrigin(t *testing.T) {
	h := CORS([]string{"https://app.example"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for origin, want := range map[string]string{"https://app.example": "https://app.example", "https://evil.example": ""} {
		req := httptest.NewRequest("GET", "/feed/posts", nil)
		req.Header.Set("Origin", origin)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: got %q, want %q", origin, got, want)
		}
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status: got %d, want 500", rr.Code)
	}
}

func TestMaxBytes_RejectsDeclaredLength(t *testing.T) {
	called := false
	h := MaxBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	req := httptest.NewRequest("POST", "/feed/post", strings.NewReader("0123456789"))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusRequestEntityTooLarge || called {
		t.Errorf("status=%d called=%v", rr.Code, called)
	}
}

func TestObserve_CapturesUser(t *testing.T) {
	id := uuid.New()
	inner := JWTMiddleware(stubVerifier{token: "good", id: id})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := r.Context().Value(holderKey{}).(*userHolder)
		if !ok || !h.set || h.id != id {
			t.Errorf("holder not filled: %+v", h)
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest("GET", "/auth/status", nil)
	req.Header.Set("Authorization", "Bearer good")
	rr := httptest.NewRecorder()
	Observe(inner).ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Errorf("status: got %d", rr.Code)
	}
}

func TestAuthRateLimiter(t *testing.T) {
	h := AuthRateLimiter().Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest("POST", "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[4] != http.StatusOK || codes[5] != http.StatusTooManyRequests {
		t.Errorf("expected burst of 5 then 429, got %v", codes)
	}
}
