package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"calheat/internal/config"
	apierrors "calheat/internal/errors"
	"calheat/internal/files"
	"calheat/internal/infrastructure"
	customMiddleware "calheat/internal/middleware"
	"calheat/internal/pipeline"
	renderer "calheat/internal/render"
	"calheat/internal/services"
	handlers "calheat/internal/transport/http"
	ws "calheat/internal/websocket"
)

// AppName is logged at startup
const AppName = "calheat"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	WebSocketHub  *ws.Hub
	Pipeline      *pipeline.Service
	Services      *ServiceContainer
	ErrorHandler  *apierrors.ErrorHandler
}

// ServiceContainer holds all application services
type ServiceContainer struct {
	Heatmap *services.HeatmapService
	Health  *services.HealthService
	Files   *files.Manager
}

// NewApplication loads the configuration at configPath (empty uses the
// well-known locations) and builds the application from it
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", config.AppVersion),
		slog.String("output_path", cfg.Render.OutputPath))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		ErrorHandler:  apierrors.NewErrorHandler(logger, cfg.Telemetry.Environment == "development"),
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices creates the rendering pipeline and the services on top of it
func (a *Application) initializeServices() error {
	fm := files.NewManager("", a.Logger)

	style := renderer.DefaultStyle().WithCellSize(a.Config.Render.CellSize, a.Config.Render.FontSize)
	r, err := renderer.NewRenderer(style, fm, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		return fmt.Errorf("failed to create websocket metrics: %w", err)
	}
	a.WebSocketHub = ws.NewHub(a.Logger, wsMetrics)

	telemetry, err := pipeline.NewTelemetry(a.OTelProviders)
	if err != nil {
		return fmt.Errorf("failed to create pipeline telemetry: %w", err)
	}

	a.Pipeline = pipeline.NewService(r, a.Logger,
		pipeline.WithReporter(pipeline.MultiReporter{
			pipeline.NewLogReporter(a.Logger),
			ws.NewReporter(a.WebSocketHub),
		}),
		pipeline.WithTelemetry(telemetry),
		pipeline.WithDefaultDestination(a.Config.Render.OutputPath),
	)

	outputDir := filepath.Dir(fm.ResolvePath(a.Config.Render.OutputPath))
	a.Services = &ServiceContainer{
		Heatmap: services.NewHeatmapService(a.Pipeline, fm, a.Config.Render, a.Logger),
		Health:  services.NewHealthService(config.AppVersion, outputDir, a.WebSocketHub, a.Logger),
		Files:   fm,
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Order: RequestID, OTel, Logger, Recoverer
	r.Use(customMiddleware.RequestID)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
	if err != nil {
		a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
	} else {
		r.Use(otelMiddleware.Handler)
	}

	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.ErrorHandler))
	r.Use(customMiddleware.SecurityHeaders)
	r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	}))

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	upgrader := ws.NewUpgrader(a.Config.Server.AllowedOrigins, a.Logger)
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(a.WebSocketHub, upgrader, w, r, a.Logger)
	})

	healthHandler := handlers.NewHealthHandler(a.Services.Health, a.Logger)
	r.Get("/healthz", healthHandler.LivenessCheck)
	r.Get("/readyz", healthHandler.ReadinessCheck)

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.setupAPIRoutes(r)

	a.Router = r
}

// setupAPIRoutes configures the rate limited API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	heatmapHandler := handlers.NewHeatmapHandler(
		a.Services.Heatmap,
		customMiddleware.NewValidator(),
		a.ErrorHandler,
		a.Config.Upload.MaxBytes,
		a.Logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		if limit := a.Config.Server.RateLimit; limit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(limit.RPS, limit.Burst, a.Logger).Handler)
		}

		r.Mount("/", heatmapHandler.Routes())
	})
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run serves HTTP until ctx is cancelled or the process is interrupted,
// then shuts down gracefully
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.WebSocketHub.Start()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "Starting server",
			slog.String("address", a.Server.Addr),
			slog.String("level", a.Config.Logging.Level))

		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(gctx, "Shutdown requested")
		return a.Stop(context.Background())
	})

	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}
