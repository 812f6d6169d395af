// Package api provides the HTTP REST API and WebSocket server for
// ThermoGuard Core.
//
// It exposes facility and sensor management, reading ingestion, alert
// handling, and AC actuation to dashboards and operator tooling, plus a
// WebSocket hub for live event fan-out.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thermoguard/thermoguard-core/internal/aircon"
	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/auth"
	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/config"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/ingest"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Pipeline    *ingest.Pipeline
	Facilities  datacenter.Repository
	Sensors     sensor.Repository
	Alerts      *alert.Engine
	AlertStore  alert.Repository
	Control     *aircon.Controller
	ACs         aircon.Repository
	Users       auth.UserRepository
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for ThermoGuard Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	pipeline    *ingest.Pipeline
	facilities  datacenter.Repository
	sensors     sensor.Repository
	alerts      *alert.Engine
	alertStore  alert.Repository
	control     *aircon.Controller
	acs         aircon.Repository
	users       auth.UserRepository
	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool // true if hub was injected externally
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("ingestion pipeline is required")
	}
	if deps.Facilities == nil {
		return nil, fmt.Errorf("facility repository is required")
	}
	if deps.Sensors == nil {
		return nil, fmt.Errorf("sensor repository is required")
	}
	if deps.Alerts == nil || deps.AlertStore == nil {
		return nil, fmt.Errorf("alert engine and repository are required")
	}
	if deps.Control == nil || deps.ACs == nil {
		return nil, fmt.Errorf("AC controller and repository are required")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user repository is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		pipeline:   deps.Pipeline,
		facilities: deps.Facilities,
		sensors:    deps.Sensors,
		alerts:     deps.Alerts,
		alertStore: deps.AlertStore,
		control:    deps.Control,
		acs:        deps.ACs,
		users:      deps.Users,
		version:    deps.Version,
		tickets:    newTicketStore(),
	}

	// Use externally-provided hub if available (needed when the event
	// broadcaster also requires the hub for WebSocket fan-out).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Start periodic ticket cleanup to prevent memory leaks
	go s.tickets.cleanLoop(srvCtx)

	// Build router
	router := s.buildRouter()

	// Create HTTP server
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
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
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup)
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

// HealthCheck verifies the API server is running and responsive.
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
