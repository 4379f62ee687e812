// Package server exposes the HTTP surface of the ingestion service: health
// and readiness probes, Prometheus metrics, and the interactive OAuth flow
// used for first-time authorization. Requests carry correlation IDs and
// tracing spans for consistent logging.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/twitch-ingest/auth"
	"github.com/onnwee/twitch-ingest/config"
	"github.com/onnwee/twitch-ingest/telemetry"
)

// NewMux returns the HTTP handler with all routes. ready reports whether the
// pipeline (chat session + producer) is fully up.
func NewMux(cfg *config.Config, store auth.Store, ready func() bool) http.Handler {
	handlers := NewHandlers(cfg, store, ready)

	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.HandleFunc("/readyz", handlers.HandleReadyz)

	mux.HandleFunc("/auth/twitch/start", handlers.HandleOAuthStart)
	mux.HandleFunc("/auth/twitch/callback", handlers.HandleOAuthCallback)

	// Wrap with correlation ID injector and tracing span.
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)

		ctx, span := telemetry.StartSpan(ctx, "http-server", r.Method+" "+r.URL.Path)
		defer span.End()

		telemetry.LoggerWithCorr(ctx).Debug("request start",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.String("component", "http"))

		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start runs the HTTP server and shuts down gracefully on context cancellation.
func Start(ctx context.Context, cfg *config.Config, store auth.Store, ready func() bool, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      NewMux(cfg, store, ready),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", slog.Any("err", err))
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("http server error", slog.Any("err", err))
		return err
	}
	return nil
}
