package rest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/cinderworks/mechvolt/internal/platform/timeouts"
)

// Server hosts the HTTP API.
type Server struct {
	addr       string
	httpServer *http.Server
}

// NewServer builds a configured API server around the handler.
func NewServer(addr string, service Service) (*Server, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("http address is required")
	}
	if service == nil {
		return nil, errors.New("service is required")
	}

	mux := http.NewServeMux()
	RegisterRoutes(mux, service)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           WithAccessLog(WithRequestID(mux)),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return &Server{addr: addr, httpServer: httpServer}, nil
}

// ListenAndServe runs the HTTP server until the context ends, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("api server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("api listening on %s", s.addr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
