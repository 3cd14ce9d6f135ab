package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer is the API server with a blocking start and a graceful,
// deadline-bound shutdown. In-flight requests, export streams included,
// get to finish within the shutdown context.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the server from the configured timeouts. The write
// timeout must be generous enough for export downloads.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start listens and serves until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests, giving up when ctx expires.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
