package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/simonkvalheim/hm9-console/internal/apiclient"
	"github.com/simonkvalheim/hm9-console/internal/bootstrap"
	"github.com/simonkvalheim/hm9-console/internal/config"
	"github.com/simonkvalheim/hm9-console/internal/handler"
	"github.com/simonkvalheim/hm9-console/internal/session"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Connect session stores (Redis, or memory for local development)
	stores, err := bootstrap.Initialize(context.Background(), cfg.RedisURL, cfg.RedisPassword, logger)
	if err != nil {
		logger.Error("failed to initialize session stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	api, err := apiclient.New(cfg.APIClient(logger))
	if err != nil {
		logger.Error("failed to create banking api client", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(api, stores.Tokens, stores.Notes, cfg.SessionOptions(), logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	router := handler.NewRouter(handler.RouterConfig{
		Sessions: sessions,
		Cookie:   cfg.Cookie(),
		CORS:     cfg.CORS(),
		Location: loc,
		Logger:   logger,
		Health:   healthHandler(stores),
	})

	// Close sessions nobody has used for a while; their tokens stay valid
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweep(sweepCtx, sessions, cfg.SessionIdle, logger)

	// Start server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown setup
	go func() {
		logger.Info("server starting", "port", cfg.Port, "api", cfg.APIBaseURL, "stores", stores.Backend())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Save pending autosaves before exiting
	stopSweep()
	sessions.Shutdown()

	logger.Info("server stopped")
}

func newLogger(cfg config.Config) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}

	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// sweep closes idle sessions until ctx is cancelled
func sweep(ctx context.Context, sessions *session.Manager, maxIdle time.Duration, logger *slog.Logger) {
	if maxIdle <= 0 {
		return
	}

	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(maxIdle); n > 0 {
				logger.Info("closed idle sessions", "count", n)
			}
		}
	}
}

// healthHandler returns a handler that checks session store connectivity
func healthHandler(stores *bootstrap.Stores) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		// Check store connection
		if err := stores.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, `{"status": "unhealthy", "stores": %q}`, stores.Backend())
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status": "healthy", "stores": %q}`, stores.Backend())
	}
}
