package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/busmap-core/internal/audit"
	"github.com/nerrad567/busmap-core/internal/devbus"
	"github.com/nerrad567/busmap-core/internal/infrastructure/config"
	"github.com/nerrad567/busmap-core/internal/infrastructure/logging"
	"github.com/nerrad567/busmap-core/internal/record"
	"github.com/nerrad567/busmap-core/internal/scan"
)

const gracefulShutdownTimeout = 10 * time.Second

// Reporter pushes a record's state to every scanner sink if it changed.
type Reporter interface {
	Report(ctx context.Context, rec *record.Record) bool
}

// HealthChecker is implemented by the infrastructure clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports whether an optional client is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies of the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Bus      *devbus.Registry
	Records  *record.Database

	// Optional.
	Reporter     Reporter
	Audit        audit.Repository
	MQTT         ConnectionStatus
	HealthChecks map[string]HealthChecker

	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	secCfg       config.SecurityConfig
	logger       *logging.Logger
	bus          *devbus.Registry
	records      *record.Database
	reporter     Reporter
	audit        audit.Repository
	mqtt         ConnectionStatus
	healthChecks map[string]HealthChecker
	version      string
	startTime    time.Time

	server *http.Server
	hub    *Hub
	cancel context.CancelFunc
}

// New creates a server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bus == nil {
		return nil, fmt.Errorf("bus registry is required")
	}
	if deps.Records == nil {
		return nil, fmt.Errorf("record database is required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		secCfg:       deps.Security,
		logger:       deps.Logger,
		bus:          deps.Bus,
		records:      deps.Records,
		reporter:     deps.Reporter,
		audit:        deps.Audit,
		mqtt:         deps.MQTT,
		healthChecks: deps.HealthChecks,
		version:      deps.Version,
		startTime:    time.Now(),
		hub:          NewHub(deps.WS, deps.Logger),
	}, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HandleUpdate broadcasts a scanner update to WebSocket clients. It
// implements scan.Sink.
func (s *Server) HandleUpdate(_ context.Context, u scan.Update) {
	s.hub.Broadcast(EventRecordValueChanged, u)
}

// Start launches the listener and the hub in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close shuts the server down, waiting up to 10 seconds for in-flight
// requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
