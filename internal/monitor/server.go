// Package monitor exposes a read-only HTTP view of a running crawl.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves progress and metrics endpoints while a crawl runs.
type Server struct {
	router       chi.Router
	progressPath string
	logger       *zap.Logger
}

// NewServer constructs a Server reading snapshots from progressPath and
// exporting the provided Prometheus registry.
func NewServer(progressPath string, registry *prometheus.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		progressPath: progressPath,
		logger:       logger,
	}

	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Get("/progress", s.progress)
	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the HTTP server until ctx is canceled.
func (s *Server) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown monitor server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("monitor server: %w", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// progress serves the snapshot file as-is. Writes are atomic renames, so the
// file is always a complete snapshot even mid-crawl.
func (s *Server) progress(w http.ResponseWriter, _ *http.Request) {
	data, err := os.ReadFile(s.progressPath)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no progress snapshot yet"})
			return
		}
		s.logger.Error("read progress snapshot failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "snapshot unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write progress response failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
