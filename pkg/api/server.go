// Package api serves a read-only admin view of a checkpoint store over HTTP:
// checkpoint listings, snapshot descriptions, deletion and Prometheus
// metrics. Everything under /api/v1 requires the X-API-Key header.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Handler builds the router. /metrics is served from gatherer when it is
// not nil.
func (s *Server) Handler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))

		r.Get("/checkpoints", s.metrics.InstrumentHandler("GET", "/api/v1/checkpoints", s.handleListCheckpoints))
		r.Get("/checkpoints/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/checkpoints/{id}", s.handleGetCheckpoint))
		r.Get("/checkpoints/{id}/snapshot", s.metrics.InstrumentHandler("GET", "/api/v1/checkpoints/{id}/snapshot", s.handleGetSnapshot))
		r.Delete("/checkpoints/{id}", s.metrics.InstrumentHandler("DELETE", "/api/v1/checkpoints/{id}", s.handleDeleteCheckpoint))
	})

	return r
}

// StartServer serves the admin API until ctx is cancelled, then shuts the
// listener down gracefully. API metrics are registered with reg, which is
// also what /metrics exposes.
func StartServer(ctx context.Context, store CheckpointStore, config ServerConfig, logger *zap.Logger, reg *prometheus.Registry) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.APIKey == "" {
		return fmt.Errorf("an API key is required to start the server")
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	server := NewServer(store, config, NewMetrics(reg), logger)
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Bind, strconv.Itoa(config.Port)),
		Handler:           server.Handler(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting admin API server", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin API server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down admin API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down admin API server: %w", err)
	}
	return nil
}
