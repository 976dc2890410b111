package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/miradorstack/mirador-ids/internal/config"
)

// HTTPServer serves the facade handler on the configured address.
type HTTPServer struct {
	server   *http.Server
	listener net.Listener
}

// NewHTTPServer binds the facade listener.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) (*HTTPServer, error) {
	lis, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
	}
	return &HTTPServer{
		server: &http.Server{
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		listener: lis,
	}, nil
}

// Start serves until Shutdown is invoked. A clean shutdown returns nil.
func (s *HTTPServer) Start() error {
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Address exposes the bound listener address.
func (s *HTTPServer) Address() string {
	return s.listener.Addr().String()
}
