// Package httpserver carries the HTTP lifecycle defaults for the dashboard
// binary: bounded header reads on the way in, a bounded drain on the way out.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	drainTimeout      = 10 * time.Second
)

// Server wraps http.Server so shutdown always runs under the drain budget.
type Server struct {
	*http.Server
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Shutdown stops accepting connections and drains in-flight requests, giving
// up once the drain budget is spent.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	return s.Server.Shutdown(ctx)
}
