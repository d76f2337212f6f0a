package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smazurov/livebridge/internal/api/models"
	"github.com/smazurov/livebridge/internal/calendar"
	"github.com/smazurov/livebridge/internal/encoder"
	"github.com/smazurov/livebridge/internal/events"
	"github.com/smazurov/livebridge/internal/gateway"
	"github.com/smazurov/livebridge/internal/ingest"
	"github.com/smazurov/livebridge/internal/logging"
	"github.com/smazurov/livebridge/internal/metrics"
	"github.com/smazurov/livebridge/internal/status"
	"github.com/smazurov/livebridge/internal/version"
)

// Options wires the API to the application components. Nil components
// leave their routes unregistered.
type Options struct {
	AuthUsername string
	AuthPassword string
	// AuthDisabled opens admin routes to anonymous clients. Otherwise a
	// missing username or password rejects every admin request.
	AuthDisabled bool
	CORSOrigins  []string

	EventBus   *events.Bus
	Status     *status.Aggregator
	Supervisor *encoder.Supervisor
	Ingest     *ingest.Bridge
	Gateway    *gateway.Gateway
	HookToken  string
	Calendar   *calendar.Store

	// Metrics exposes GET /metrics when set.
	Metrics bool
}

// Server is the Huma v2 API server on a chi router.
type Server struct {
	api        huma.API
	router     chi.Router
	httpServer *http.Server
	options    *Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the router, registers middleware and every route.
func NewServer(opts *Options) *Server {
	router := chi.NewRouter()

	corsConfig := DefaultCORSConfig()
	if len(opts.CORSOrigins) > 0 {
		corsConfig.AllowedOrigins = opts.CORSOrigins
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(NewCORSHandler(corsConfig))
	router.Use(metrics.Middleware)

	config := huma.DefaultConfig("livebridge API", version.Get().Version)
	config.Info.Description = "Browser-to-RTMP live bridge, stream status and event calendar"
	// Empty servers list will make OpenAPI use relative paths, working with any host
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humachi.New(router, config)

	server := &Server{
		api:      api,
		router:   router,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(HTTPLoggingMiddleware)

	switch {
	case opts.AuthDisabled:
		server.logger.Warn("Admin authentication disabled, admin routes are open")
	case opts.AuthUsername == "" || opts.AuthPassword == "":
		server.logger.Error("Admin credentials not configured, admin routes reject every request")
		api.UseMiddleware(server.basicAuthMiddleware())
	default:
		api.UseMiddleware(server.basicAuthMiddleware())
	}

	if opts.Metrics {
		router.Handle("/metrics", metrics.Handler())
	}

	server.registerRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// GetAPI returns the Huma API instance
func (s *Server) GetAPI() huma.API {
	return s.api
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting livebridge API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
// Hijacked WebSocket connections are closed by the ingest bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Stopping API server")
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes sets up all API endpoints
func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		return &models.VersionResponse{Body: version.Get()}, nil
	})

	if s.options.Status != nil {
		s.registerStatusRoutes()
	}
	if s.options.Supervisor != nil {
		s.registerEncoderRoutes()
	}
	if s.options.Ingest != nil {
		s.router.Handle("/api/ingest", s.requireAuth(s.options.Ingest))
	}
	if s.options.Gateway != nil {
		s.registerGatewayRoutes()
	}
	if s.options.Calendar != nil {
		s.registerCalendarRoutes()
	}
	s.registerSSERoutes()
	s.registerLogRoutes()
}
