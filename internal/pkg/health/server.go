package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/Vodeneev/vodeneevgames/internal/pkg/config"
	"github.com/Vodeneev/vodeneevgames/internal/pkg/health/handlers"
)

// NewRouter returns a router with /ping, /health and /metrics; register adds service routes
func NewRouter(register ...func(r *mux.Router)) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ping", handlers.HandlePing).Methods(http.MethodGet)
	r.HandleFunc("/health", handlers.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", handlers.HandleMetrics).Methods(http.MethodGet)
	for _, fn := range register {
		if fn != nil {
			fn(r)
		}
	}
	return r
}

// Run serves handler until ctx is cancelled. It returns when the server has shut down.
func Run(ctx context.Context, cfg config.ServerConfig, service string, handler http.Handler) error {
	if cfg.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("read_header_timeout must be specified in config")
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "service", service, "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// AddrFor builds a listen address for port
func AddrFor(port int) (string, error) {
	if port <= 0 {
		return "", fmt.Errorf("port must be greater than 0")
	}
	return fmt.Sprintf(":%d", port), nil
}
