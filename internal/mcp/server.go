// Package mcp exposes claudexec over the Model Context Protocol.
//
// server.go - MCP server and HTTP surface
//
// This file contains:
// - Server holding the store, supervisor and resolver the tools act on
// - ServeStdio for local MCP clients
// - Handler/Serve for streamable HTTP with auth, throttling and metrics

package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/HyphaGroup/claudexec/internal/agent/claude"
	"github.com/HyphaGroup/claudexec/internal/auth"
	"github.com/HyphaGroup/claudexec/internal/execution"
	"github.com/HyphaGroup/claudexec/internal/logger"
	"github.com/HyphaGroup/claudexec/internal/metrics"
	"github.com/HyphaGroup/claudexec/internal/ratelimit"
	"github.com/HyphaGroup/claudexec/internal/task"
)

// Server wraps the MCP server with the execution components
type Server struct {
	store      *task.Store
	supervisor *execution.Supervisor
	launcher   *claude.Launcher
	resolver   *claude.Resolver
	registry   *Registry
	mcpServer  *mcp.Server // Shared by stdio and HTTP transports

	authTokens     []string
	requestLimiter *ratelimit.Limiter
}

// ServerConfig holds the server's collaborators
type ServerConfig struct {
	Store      *task.Store
	Supervisor *execution.Supervisor
	Launcher   *claude.Launcher
	Resolver   *claude.Resolver
	Version    string

	// AuthTokens are the bearer tokens accepted over HTTP; empty disables auth
	AuthTokens []string
	// RequestLimiter throttles HTTP requests per token; defaults to 10/s burst 20
	RequestLimiter *ratelimit.Limiter
}

// NewServer creates a new MCP server instance
func NewServer(cfg ServerConfig) *Server {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	limiter := cfg.RequestLimiter
	if limiter == nil {
		limiter = ratelimit.New(10, 20)
	}

	s := &Server{
		store:          cfg.Store,
		supervisor:     cfg.Supervisor,
		launcher:       cfg.Launcher,
		resolver:       cfg.Resolver,
		registry:       NewRegistry(),
		authTokens:     cfg.AuthTokens,
		requestLimiter: limiter,
	}
	s.registerAllTools(s.registry)

	s.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    "claudexec",
		Version: version,
	}, nil)
	s.registry.RegisterWithMCPServer(s.mcpServer)

	return s
}

// GetRegistry returns the tool registry
func (s *Server) GetRegistry() *Registry {
	return s.registry
}

// ServeStdio serves MCP over stdin/stdout until ctx is done or the client
// disconnects
func (s *Server) ServeStdio(ctx context.Context) error {
	logger.InfoContext(ctx, "serving MCP over stdio", "tools", len(s.registry.GetAllTools()))
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the HTTP handler serving /mcp, /health and /ready
func (s *Server) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(req *http.Request) *mcp.Server {
		return s.mcpServer
	}, &mcp.StreamableHTTPOptions{
		EventStore: mcp.NewMemoryEventStore(nil),
	})

	// Wrap with request ID and logging middleware
	loggingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := logger.WithValue(r.Context(), logger.ContextKeyRequestID, requestID)
		ctx = WithRemoteAddr(ctx, r.RemoteAddr)
		r = r.WithContext(ctx)

		logger.DebugContext(ctx, "http request", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr)
		mcpHandler.ServeHTTP(w, r)
	})

	// Throttling runs inside auth so it is keyed by token
	rateLimitedHandler := auth.RateLimitMiddleware(s.requestLimiter)(loggingHandler)
	authedHandler := auth.Middleware(s.authTokens)(rateLimitedHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealthCheck)
	mux.HandleFunc("/ready", s.handleReadinessCheck)
	mux.Handle("/mcp", metrics.Middleware(authedHandler))
	mux.Handle("/mcp/", metrics.Middleware(authedHandler))
	return mux
}

// Serve listens on addr until ctx is done, then shuts down gracefully
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "MCP server listening", "addr", addr, "auth", len(s.authTokens) > 0)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleHealthCheck is a basic liveness check
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadinessCheck verifies the store can serve requests
func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready","reason":"database unavailable"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
