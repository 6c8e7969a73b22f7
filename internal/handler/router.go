package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"

	"github.com/simonkvalheim/hm9-console/internal/middleware"
	"github.com/simonkvalheim/hm9-console/internal/session"
)

// RouterConfig holds what the console router is built from
type RouterConfig struct {
	Sessions SessionManager
	Cookie   session.CookieConfig
	CORS     middleware.CORSConfig
	Location *time.Location // Receipt time zone
	Logger   *slog.Logger
	Health   http.HandlerFunc
}

// NewRouter wires every console route
func NewRouter(cfg RouterConfig) http.Handler {
	accountHandler := NewAccountHandler(cfg.Logger)
	transferHandler := NewTransferHandler(cfg.Location, cfg.Logger)
	depositHandler := NewDepositHandler(cfg.Logger)
	notificationHandler := NewNotificationHandler(cfg.Logger)
	adminHandler := NewAdminHandler(cfg.Logger)
	authHandler := NewAuthHandler(cfg.Sessions, cfg.Cookie, cfg.Logger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.Sessions, cfg.Cookie, cfg.Logger)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.CORS(cfg.CORS)) // CORS for the console frontends
	r.Use(httplog.RequestLogger(cfg.Logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaOTEL,
	}))
	r.Use(chimiddleware.Recoverer) // Recovers from panics gracefully

	// Health check (no auth needed)
	if cfg.Health != nil {
		r.Get("/health", cfg.Health)
	}

	// Login and logout work without a live session
	authHandler.RegisterRoutes(r)

	// Everything else requires a session whose account is not suspended
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireSession)
		r.Use(middleware.RequireActive)

		accountHandler.RegisterRoutes(r)
		transferHandler.RegisterRoutes(r)
		depositHandler.RegisterRoutes(r)
		notificationHandler.RegisterRoutes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			adminHandler.RegisterRoutes(r)
		})
	})

	return r
}
