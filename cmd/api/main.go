package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/crucial707/postfeed/internal/auth"
	"github.com/crucial707/postfeed/internal/config"
	"github.com/crucial707/postfeed/internal/db"
	"github.com/crucial707/postfeed/internal/feed"
	"github.com/crucial707/postfeed/internal/handlers"
	"github.com/crucial707/postfeed/internal/middleware"
	"github.com/crucial707/postfeed/internal/realtime"
	"github.com/crucial707/postfeed/internal/repo"
	"github.com/crucial707/postfeed/internal/scheduler"
	"github.com/crucial707/postfeed/internal/storage"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// authBodyLimit caps JSON bodies on the auth routes.
const authBodyLimit = 1 << 20

const shutdownTimeout = 15 * time.Second

// app is the wired HTTP surface plus the parts that need shutting down.
type app struct {
	router http.Handler
	hub    *realtime.Hub
	feed   *feed.Service
}

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.DBHost, "name", cfg.DBName)

	if err := db.Migrate(cfg.DatabaseURL()); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	a, err := newApp(database, cfg)
	if err != nil {
		slog.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	sched, err := scheduler.Start(cfg.ImagePruneSchedule, a.feed)
	if err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr, "tls", cfg.TLSCertFile != "")
		if cfg.TLSCertFile != "" {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "error", err)
	}
	a.hub.Close()
	sched.Stop(shutdownCtx)
	a.feed.Wait()
	slog.Info("stopped")
}

func setupLogger(format string) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

// newApp wires repositories, services and routes on top of database.
func newApp(database *sql.DB, cfg config.Config) (*app, error) {
	images, err := storage.NewImages(cfg.ImagesDir)
	if err != nil {
		return nil, err
	}

	userRepo := repo.NewUserRepo(database)
	postRepo := repo.NewPostRepo(database)
	auditRepo := repo.NewAuditRepo(database)

	hub := realtime.NewHub(originChecker(cfg.CORSAllowedOrigins))
	authSvc := auth.NewService(userRepo, []byte(cfg.JWTSecret))
	feedSvc := feed.NewService(postRepo, userRepo, images, hub, auditRepo)

	authHandler := &handlers.AuthHandler{Auth: authSvc}
	feedHandler := &handlers.FeedHandler{Feed: feedSvc}
	authLimiter := middleware.AuthRateLimiter()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Observe)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecurityHeaders(cfg.TLSCertFile != ""))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := database.PingContext(ctx); err != nil {
			handlers.JSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(filesOnly{http.Dir(images.Dir)})))
	r.Handle("/socket", hub)

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.MaxBytes(authBodyLimit))
		r.With(authLimiter.Middleware).Put("/signup", authHandler.Signup)
		r.With(authLimiter.Middleware).Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTMiddleware(authSvc))
			r.Get("/status", authHandler.GetStatus)
			r.Patch("/status", authHandler.UpdateStatus)
		})
	})

	r.Route("/feed", func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(authSvc))
		r.Use(middleware.MaxBytes(cfg.MaxUploadBytes))
		r.Get("/posts", feedHandler.ListPosts)
		r.Post("/post", feedHandler.CreatePost)
		r.Get("/post/{postId}", feedHandler.GetPost)
		r.Put("/post/{postId}", feedHandler.UpdatePost)
		r.Delete("/post/{postId}", feedHandler.DeletePost)
		r.Get("/activity", feedHandler.Activity)
	})

	return &app{router: r, hub: hub, feed: feedSvc}, nil
}

// originChecker mirrors the CORS origin list for WebSocket upgrades.
func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			return nil
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed[origin]
	}
}

// filesOnly hides directories so the image store cannot be listed.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}
