package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the /metrics scrape endpoint. Use it only when the
// embedding process does not already serve metrics.
type Server struct {
	srv *http.Server

	mu      sync.Mutex
	lastErr error
}

// NewServer creates a metrics server on the specified address,
// e.g. ":9090" or "localhost:9090".
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{srv: &http.Server{Addr: addr, Handler: mux}}
}

// Start starts the server in a goroutine and returns immediately.
// Check Err to detect bind failures.
func (s *Server) Start() {
	go func() {
		err := s.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}()
}

// Err returns any startup or serve error without blocking; nil when
// none has occurred.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
