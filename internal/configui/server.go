package configui

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/florianilch/ex30link/internal/observability/middleware"
	"github.com/florianilch/ex30link/internal/tokenstore"
)

//go:embed index.html
var indexHTML []byte

// RecordReader exposes the stored token record for the status endpoint.
type RecordReader interface {
	Record(ctx context.Context, vin string) (tokenstore.Record, bool)
}

// Option configures a Server.
type Option func(*Server)

// WithRecords enables GET /api/status.
func WithRecords(records RecordReader) Option {
	return func(s *Server) {
		s.records = records
	}
}

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server is the config UI HTTP server.
type Server struct {
	flow    *Flow
	records RecordReader
	logger  *slog.Logger

	mux    *http.ServeMux
	server *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// Compile-time check that Server implements http.Handler
var _ http.Handler = (*Server)(nil)

// New creates a config UI server driving flow.
func New(flow *Flow, opts ...Option) (*Server, error) {
	if flow == nil {
		return nil, fmt.Errorf("missing authorization flow")
	}

	s := &Server{
		flow:   flow,
		logger: slog.Default(),
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	logged := func(h http.HandlerFunc) http.Handler {
		return applyMiddlewares(h, middleware.Logging(s.logger), Recovery)
	}

	s.mux.Handle("GET /{$}", logged(s.handleIndex))
	s.mux.Handle("POST /api/authorize", logged(s.handleAuthorize))
	s.mux.Handle("GET /api/check-callback", logged(s.handleCheckCallback))
	s.mux.Handle("POST /api/token", logged(s.handleToken))
	s.mux.Handle("GET /api/status", logged(s.handleStatus))
	// the redirect carries the authorization code in its query, keep it out of access logs
	s.mux.Handle("GET /callback", applyMiddlewares(http.HandlerFunc(s.handleCallback), Recovery))

	return s, nil
}

// ServeHTTP implements http.Handler interface
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start starts the HTTP server in the background and returns immediately.
// Returns a channel for runtime errors and a startup error if any.
//
// Startup errors (port in use, permission denied) are returned immediately.
// Runtime errors (network failures during operation) are sent to the error channel.
//
// The caller is responsible for calling Shutdown() to stop the server.
func (s *Server) Start(ctx context.Context, address string) (<-chan error, error) {
	// Startup phase: Create listener synchronously to catch port-in-use errors immediately
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute, // covers the token exchange round trip
		IdleTimeout:       90 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)

	go func() {
		err := s.server.Serve(listener)
		// Only report error if not from graceful shutdown
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the address the server listens on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown performs graceful shutdown of the HTTP server.
// Returns error if shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	if err := s.server.Shutdown(ctx); err != nil {
		// Graceful shutdown failed - force close
		_ = s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	return nil
}
