package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/harun/toolgate/internal/tracing"
	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// Dispatcher executes tool requests
type Dispatcher interface {
	Execute(ctx context.Context, req toolexecutor.Request) toolexecutor.ToolResult
}

// ToolLister lists the built-in tools a server can advertise
type ToolLister interface {
	List() []*toolexecutor.Descriptor
}

// Metrics receives per-route request counts and serves the scrape endpoint
type Metrics interface {
	RecordHTTPRequest(route string, code int)
	Handler() http.Handler
}

// Server is the inbound HTTP and websocket surface over the dispatcher
type Server struct {
	addr       string
	dispatcher Dispatcher
	tools      ToolLister
	policy     *ToolPolicy
	auth       *Authenticator
	metrics    Metrics
	files      http.FileSystem
	logger     zerolog.Logger

	requestsPerMinute int
	maxConcurrent     int
	maxFrameBytes     int64

	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader
	clients  *ClientRegistry

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// Config holds server configuration
type Config struct {
	Host string
	Port int

	// SharedSecret enables bearer authentication with a static secret
	SharedSecret string
	// Signer additionally accepts internal tokens issued by trusted processes
	Signer *toolexecutor.InternalTokenSigner

	Dispatcher Dispatcher
	Tools      ToolLister
	Policy     *ToolPolicy
	Metrics    Metrics
	// Files serves persisted file outputs under /files/ when set
	Files http.FileSystem

	// Per websocket connection limits
	RequestsPerMinute int
	MaxConcurrent     int
	// MaxFrameBytes caps inbound websocket frames, defaulting to the HTTP body limit
	MaxFrameBytes int64

	Logger zerolog.Logger
}

// NewServer creates a server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	logger := cfg.Logger.With().Str("component", "server").Logger()

	policy := cfg.Policy
	if policy == nil {
		policy = AllowAll()
	}
	if err := policy.Validate(logger); err != nil {
		return nil, fmt.Errorf("invalid tool policy: %w", err)
	}

	s := &Server{
		addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		dispatcher:        cfg.Dispatcher,
		tools:             cfg.Tools,
		policy:            policy,
		auth:              NewAuthenticator(cfg.SharedSecret, cfg.Signer),
		metrics:           cfg.Metrics,
		files:             cfg.Files,
		logger:            logger,
		requestsPerMinute: cfg.RequestsPerMinute,
		maxConcurrent:     cfg.MaxConcurrent,
		maxFrameBytes:     cfg.MaxFrameBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: NewClientRegistry(),
	}

	if s.maxFrameBytes <= 0 {
		s.maxFrameBytes = maxRequestBody
	}

	if !s.auth.Enabled() {
		logger.Warn().Msg("Server authentication is disabled")
	}

	return s, nil
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)
	r.Use(s.instrument)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/api/tools", func(r chi.Router) {
			r.Get("/", s.handleListTools)
			r.Post("/execute", s.handleExecute)
		})
		r.Get("/ws", s.handleWebSocket)

		if s.files != nil {
			r.Handle("/files/*", http.StripPrefix("/files", http.FileServer(s.files)))
		}
	})

	return r
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info().Str("addr", listener.Addr().String()).Msg("Starting server")

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Server error")
		}
	}()

	return nil
}

// Addr returns the bound address once started, else the configured one
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop refuses new work, waits for in-flight executions until ctx expires,
// closes websocket clients and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.GetAll() {
		client.Close()
	}

	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info().Msg("Server stopped")
	return nil
}

// beginRequest registers an in-flight execution unless the server is stopping
func (s *Server) beginRequest() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()

	if s.isShuttingDown {
		return false
	}
	s.inFlightReqs.Add(1)
	return true
}

// requestContext reads or creates trace and request ids and echoes the request id
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.FromHeaders(r.Context(), r.Header)
		w.Header().Set(tracing.RequestIDHeader, tracing.GetRequestID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument logs each request and counts it per route pattern
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(route, code)
		}

		logger := tracing.PropagateToLogger(r.Context(), s.logger)
		logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", code).
			Dur("duration", time.Since(start)).
			Str("ip", r.RemoteAddr).
			Msg("HTTP request")
	})
}
