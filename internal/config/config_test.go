package config

import (
	"reflect"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("IMAGES_DIR", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := Load()
	if cfg.Port != "8080" || cfg.ImagesDir != "images" {
		t.Errorf("unexpected defaults: port=%q images=%q", cfg.Port, cfg.ImagesDir)
	}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, []string{"*"}) {
		t.Errorf("CORS default: got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("MaxUploadBytes: got %d", cfg.MaxUploadBytes)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,http://localhost:3000")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()
	want := []string{"https://a.example", "http://localhost:3000"}
	if !reflect.DeepEqual(cfg.CORSAllowedOrigins, want) {
		t.Errorf("CORS origins: got %v, want %v", cfg.CORSAllowedOrigins, want)
	}
	if cfg.DBMaxOpenConns != 25 {
		t.Errorf("invalid int should fall back: got %d", cfg.DBMaxOpenConns)
	}
}

func TestValidate(t *testing.T) {
	if err := (Config{Env: "prod", JWTSecret: DefaultJWTSecret}).Validate(); err == nil {
		t.Error("expected error for default secret in prod")
	}
	if err := (Config{Env: "dev", JWTSecret: DefaultJWTSecret}).Validate(); err != nil {
		t.Errorf("dev with default secret: %v", err)
	}
	if err := (Config{Env: "dev", TLSCertFile: "cert.pem"}).Validate(); err == nil {
		t.Error("expected error for cert without key")
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := Config{DBHost: "db", DBPort: "5432", DBName: "feed", DBUser: "u", DBPass: "p@ss"}
	want := "postgres://u:p%40ss@db:5432/feed?sslmode=disable"
	if got := cfg.DatabaseURL(); got != want {
		t.Errorf("DatabaseURL: got %q, want %q", got, want)
	}
}
