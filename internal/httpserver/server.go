// v1
// internal/httpserver/server.go
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Server wraps http.Server with a separate bind step.
type Server struct {
	HTTP *http.Server
	Log  *slog.Logger

	ln net.Listener
}

// NewServer configures the server; nothing is bound until Listen.
func NewServer(addr string, h http.Handler, readTimeout, writeTimeout time.Duration, log *slog.Logger) *Server {
	hs := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       writeTimeout,
	}
	return &Server{HTTP: hs, Log: log.With(slog.String("component", "http"))}
}

// Listen binds the address so bind failures surface before serving starts.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.HTTP.Addr, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve blocks until Stop. It returns nil after a graceful shutdown.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("serve called before listen")
	}
	s.Log.Info("http server starting", "addr", s.ln.Addr().String())
	if err := s.HTTP.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop lets in-flight requests finish until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.Log.Info("http server stopping")
	return s.HTTP.Shutdown(ctx)
}
