package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fiirank/internal/config"
	apierrors "fiirank/internal/errors"
	"fiirank/internal/infrastructure"
	customMiddleware "fiirank/internal/middleware"
	"fiirank/internal/services"
	handlers "fiirank/internal/transport/http"
)

var (
	// Version is set at build time with -ldflags "-X fiirank/internal/app.Version=...".
	Version = "dev"
	// BuildTime is set at compile time
	BuildTime = time.Now().Format(time.RFC3339)
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.PipelineMetrics
	Components    *Components
	HealthService *services.HealthService

	serveErr chan error
}

// New creates the application with every dependency wired. in selects file
// inputs instead of the live sites.
func New(ctx context.Context, cfg *config.Config, in Inputs, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreatePipelineMetrics(otelProviders.Meter)
	if err != nil {
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	components, err := BuildComponents(ctx, cfg, in, metrics, logger)
	if err != nil {
		otelProviders.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		Components:    components,
		HealthService: services.NewHealthService(Version, components.Ranking, cfg.Server.StaleAfter, logger),
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	errorHandler := apierrors.NewErrorHandler(a.Logger, a.Config.Telemetry.Environment == "development")

	// RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders → RateLimit
	r.Use(customMiddleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Telemetry(a.OTelProviders.Tracer, a.Metrics))
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(errorHandler.Recoverer)
	r.Use(customMiddleware.SecurityHeaders)

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	// Prometheus scrapes outside the rate limit
	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		if rl := a.Config.Server.RateLimit; rl.Enabled {
			r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, errorHandler, a.Logger).Handler)
		}

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get(config.HealthEndpoint, healthHandler.LivenessCheck)
		r.Get(config.HealthEndpoint+"/ready", healthHandler.ReadinessCheck)
		r.Get("/version", healthHandler.Version)

		rankingHandler := handlers.NewRankingHandler(
			a.Components.Ranking,
			a.Config.Server.CacheTTL,
			a.Config.Server.RefreshTimeout,
			a.Logger,
			errorHandler,
		)
		r.Mount(config.RankingEndpoint, rankingHandler.Routes())
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.writeTimeout(),
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
	a.serveErr = make(chan error, 1)
}

// writeTimeout leaves room for a refresh request to finish.
func (a *Application) writeTimeout() time.Duration {
	if a.Config.Server.RefreshTimeout > a.Config.Server.WriteTimeout {
		return a.Config.Server.RefreshTimeout + 5*time.Second
	}
	return a.Config.Server.WriteTimeout
}

// Start starts serving in the background. A listen failure cancels ctx
// through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", config.AppName),
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.Int("port", a.Config.Server.Port),
		slog.Bool("storage", a.Components.Store != nil))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			a.serveErr <- err
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if err := a.Close(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return errors.Join(errs...)
}

// Close releases the store and flushes telemetry without touching the
// server. The CLI uses it after a one-shot run.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if err := a.Components.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}
	return errors.Join(errs...)
}

// Run serves until ctx is done or an interrupt arrives.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()

	select {
	case err := <-a.serveErr:
		return errors.Join(fmt.Errorf("listen: %w", err), a.Close(context.WithoutCancel(ctx)))
	default:
	}

	a.Logger.InfoContext(ctx, "Received shutdown signal")
	return a.Stop(ctx)
}
