package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-protocols/internal/audit"
	"github.com/nerrad567/gray-logic-protocols/internal/device"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-protocols/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-protocols/internal/protocol"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a component reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// TokenIssuer signs device tokens for the provisioning endpoint.
type TokenIssuer interface {
	Issue(deviceID string, transport protocol.Transport, ttl time.Duration) (string, time.Time, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Support  *protocol.Support
	Devices  *device.Registry

	// Audit records mutating calls. Optional.
	Audit audit.Repository

	// Tokens issues device tokens. Optional; without it token
	// provisioning is unavailable.
	Tokens TokenIssuer

	// TokenTTL is the default lifetime of issued tokens.
	TokenTTL time.Duration

	// Checks are reported by /health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server exposing the protocol support.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	support   *protocol.Support
	devices   *device.Registry
	audit     audit.Repository
	tokens    TokenIssuer
	tokenTTL  time.Duration
	checks    map[string]HealthChecker
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, protocol support, device registry)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Support == nil {
		return nil, fmt.Errorf("protocol support is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	return &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		support:   deps.Support,
		devices:   deps.Devices,
		audit:     deps.Audit,
		tokens:    deps.Tokens,
		tokenTTL:  deps.TokenTTL,
		checks:    deps.Checks,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server has already been started
func (s *Server) Start(_ context.Context) error {
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
