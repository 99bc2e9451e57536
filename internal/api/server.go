package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/factory-data-core/internal/factorydata"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/config"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/logging"
	"github.com/nerrad567/factory-data-core/internal/infrastructure/metrics"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// FactoryDataService is the application service behind the handlers.
// *factorydata.Service implements it.
type FactoryDataService interface {
	Create(ctx context.Context, req factorydata.CreateRequest, userID string) (factorydata.Result, error)
	CreateGuest(ctx context.Context, req factorydata.CreateRequest, userID string) (factorydata.Result, error)
	UpdateVehicle(ctx context.Context, vin string, patch factorydata.VehiclePatch, userID string) (factorydata.Result, error)
	DeleteVehicle(ctx context.Context, vin string, userID string) (factorydata.Result, error)
	Search(ctx context.Context, q factorydata.SearchQuery) (factorydata.Page, error)
	Count(ctx context.Context, q factorydata.SearchQuery) (int64, error)
	CountByState(ctx context.Context, q factorydata.SearchQuery) (map[factorydata.State]int64, error)
	History(ctx context.Context, serialNumber string, limit int) ([]factorydata.HistoryEntry, error)
}

// HealthChecker is implemented by infrastructure clients reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Service  FactoryDataService
	Metrics  *metrics.Metrics

	// Checks are reported by /health, keyed by component name. The
	// database check is required for a healthy status; the rest are
	// informational.
	Checks  map[string]HealthChecker
	Version string
}

// Server is the HTTP API server for the factory data service.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	secCfg  config.SecurityConfig
	logger  *logging.Logger
	service FactoryDataService
	metrics *metrics.Metrics
	checks  map[string]HealthChecker
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, service, metrics)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Service == nil {
		return nil, fmt.Errorf("factory data service is required")
	}
	if deps.Metrics == nil {
		return nil, fmt.Errorf("metrics is required")
	}
	if deps.Security.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:     deps.Config,
		secCfg:  deps.Security,
		logger:  deps.Logger.With("component", "api"),
		service: deps.Service,
		metrics: deps.Metrics,
		checks:  deps.Checks,
		version: deps.Version,
	}, nil
}

// Handler returns the fully wired router. Start serves the same handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
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
