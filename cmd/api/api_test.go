package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/crucial707/postfeed/internal/config"
	"golang.org/x/crypto/bcrypt"
)

const aliceID = "0b9e6f3a-1c2d-4e5f-8a9b-0c1d2e3f4a5b"

func testConfig(t *testing.T) config.Config {
	return config.Config{
		JWTSecret:          "test-secret-for-integration",
		ImagesDir:          t.TempDir(),
		MaxUploadBytes:     1 << 20,
		CORSAllowedOrigins: []string{"*"},
	}
}

func newTestServer(t *testing.T, db *sql.DB) *httptest.Server {
	t.Helper()
	a, err := newApp(db, testConfig(t))
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	srv := httptest.NewServer(a.router)
	t.Cleanup(func() {
		srv.Close()
		a.hub.Close()
		a.feed.Wait()
	})
	return srv
}

// TestAPI_SignupLoginListPosts is an integration test: it builds the full router with a
// sqlmock-backed DB, signs up, logs in to get a JWT, then lists posts with the token.
func TestAPI_SignupLoginListPosts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	userCols := []string{"id", "email", "password_hash", "name", "status"}
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	now := time.Now()

	// Signup: email is free, then insert.
	mock.ExpectQuery(`SELECT id, email, password_hash, name, status`).
		WithArgs("ann@example.com").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(sqlmock.AnyArg(), "ann@example.com", sqlmock.AnyArg(), "Ann").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status"}).
			AddRow(aliceID, "ann@example.com", "Ann", "I am new!"))

	// Login
	mock.ExpectQuery(`SELECT id, email, password_hash, name, status`).
		WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow(aliceID, "ann@example.com", string(hash), "Ann", "I am new!"))

	// GET /feed/posts: first page
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`ORDER BY p.created_at DESC`).
		WithArgs(2, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "content", "image_url", "creator_id", "name", "created_at", "updated_at"}).
			AddRow("3f2e1d0c-9b8a-4776-8564-a3b2c1d0e9f8", "First post", "Some content", "images/a.png", aliceID, "Ann", now, now))

	srv := newTestServer(t, db)

	// 1) Signup
	signupBody, _ := json.Marshal(map[string]string{"email": "ann@example.com", "name": "Ann", "password": "secret1"})
	req, _ := http.NewRequest("PUT", srv.URL+"/auth/signup", bytes.NewReader(signupBody))
	req.Header.Set("Content-Type", "application/json")
	signupResp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("signup request: %v", err)
	}
	signupResp.Body.Close()
	if signupResp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status: got %d, want 201", signupResp.StatusCode)
	}

	// 2) Login
	loginBody, _ := json.Marshal(map[string]string{"email": "ann@example.com", "password": "secret1"})
	loginResp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(loginBody))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer loginResp.Body.Close()
	if loginResp.StatusCode != http.StatusOK {
		t.Fatalf("login status: got %d, want 200", loginResp.StatusCode)
	}
	var loginOut struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&loginOut); err != nil || loginOut.Token == "" {
		t.Fatalf("login response: %v", err)
	}
	if loginOut.UserID != aliceID {
		t.Errorf("userId: got %q", loginOut.UserID)
	}

	// 3) GET /feed/posts with Bearer token
	req, _ = http.NewRequest("GET", srv.URL+"/feed/posts", nil)
	req.Header.Set("Authorization", "Bearer "+loginOut.Token)
	postsResp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("posts request: %v", err)
	}
	defer postsResp.Body.Close()
	if postsResp.StatusCode != http.StatusOK {
		t.Fatalf("GET /feed/posts status: got %d, want 200", postsResp.StatusCode)
	}
	var page struct {
		Posts      []map[string]any `json:"posts"`
		TotalItems int              `json:"totalItems"`
	}
	if err := json.NewDecoder(postsResp.Body).Decode(&page); err != nil {
		t.Fatalf("decode posts: %v", err)
	}
	if page.TotalItems != 1 || len(page.Posts) != 1 || page.Posts[0]["title"] != "First post" {
		t.Errorf("unexpected page: %+v", page)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_FeedRequiresToken(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	srv := newTestServer(t, db)

	for _, path := range []string{"/feed/posts", "/feed/activity", "/auth/status"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: got %d, want 401", path, resp.StatusCode)
		}
	}
}

func TestAPI_HealthAndReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	mock.ExpectPing()

	srv := newTestServer(t, db)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: got %d, want 200", path, resp.StatusCode)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestAPI_ImagesServedWithoutListing(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.ImagesDir, "a.png"), []byte("\x89PNG\r\n\x1a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := newApp(db, cfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	srv := httptest.NewServer(a.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/images/a.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /images/a.png: got %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/images/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /images/: got %d, want 404", resp.StatusCode)
	}
}

func TestAPI_Metrics(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	srv := newTestServer(t, db)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /metrics: got %d, want 200", resp.StatusCode)
	}
}
