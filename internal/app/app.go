package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"leadpulse/internal/config"
	"leadpulse/internal/enrich"
	"leadpulse/internal/files"
	"leadpulse/internal/infrastructure"
	customMiddleware "leadpulse/internal/middleware"
	"leadpulse/internal/pipeline"
	"leadpulse/internal/scrape"
	"leadpulse/internal/services"
	handlers "leadpulse/internal/transport/http"

	"github.com/go-chi/chi/v5"
)

const AppName = "LeadPulse"

// Application is the composition root: it owns configuration, the pipeline
// registry, the HTTP server, and the observability providers.
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Registry      *pipeline.Registry
	JobService    *services.JobService
	HealthService *services.HealthService
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders

	// cancelJanitor stops the terminal-job eviction loop on shutdown.
	cancelJanitor context.CancelFunc
}

// NewApplication wires the full application from configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", services.Version),
		slog.Int("port", cfg.Server.Port))

	if missing := cfg.MissingCredentials(); len(missing) > 0 {
		logger.Warn("provider credentials missing, dependent stages degrade or skip",
			slog.Any("missing", missing))
	}

	otelProviders, err := infrastructure.InitializeOTel(context.Background(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	app := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices builds the pipeline providers, the registry and the
// service layer. Optional providers (contact, AI) stay nil when their
// credentials are absent; the runner skips those stages.
func (a *Application) initializeServices() error {
	pc := a.Config.Providers

	providers := pipeline.Providers{
		Scraper: scrape.NewBrowserScraper(scrape.Config{
			Headless:     pc.Headless,
			CookiesPath:  pc.CookiesPath,
			RequestDelay: pc.RequestDelay,
		}, a.Logger),
		Web: enrich.NewWebSearcher(enrich.WebSearchConfig{
			APIKey:       pc.GoogleAPIKey,
			CX:           pc.GoogleCX,
			RequestDelay: pc.RequestDelay,
			FetchExcerpt: true,
		}, nil, a.Logger),
		Profile: scrape.NewProfileFetcher(scrape.ProfileConfig{
			CookiesPath:  pc.ProfileCookiesPath,
			RequestDelay: pc.RequestDelay,
		}, a.Logger),
	}

	if cc := enrich.NewContactClient(enrich.ContactConfig{
		APIKey:  pc.ContactAPIKey,
		BaseURL: pc.ContactBaseURL,
	}, nil, a.Logger); cc != nil {
		providers.Contact = cc
	}

	ai, err := enrich.NewAIEnricher(context.Background(), enrich.AIConfig{
		APIKey: pc.GeminiAPIKey,
		Model:  pc.GeminiModel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize AI enricher: %w", err)
	}
	if ai != nil {
		providers.AI = ai
	}

	a.Registry = pipeline.NewRegistry(providers, pipeline.RegistryConfig{
		Runner: pipeline.RunnerConfig{
			HitThreshold:     a.Config.Pipeline.HitThreshold,
			StageConcurrency: a.Config.Pipeline.StageConcurrency,
			ContactBatchSize: pc.ContactBatchSize,
			CallTimeout:      pc.CallTimeout,
		},
		MaxLeadsDefault: a.Config.Pipeline.MaxLeadsDefault,
		MaxLeadsLimit:   a.Config.Pipeline.MaxLeadsLimit,
		EventLogCap:     a.Config.Pipeline.EventLogCap,
		RetentionTTL:    a.Config.Pipeline.RetentionTTL,
	}, a.Logger)

	janitorCtx, cancel := context.WithCancel(context.Background())
	a.cancelJanitor = cancel
	a.Registry.StartJanitor(janitorCtx)

	a.JobService = services.NewJobService(a.Registry, a.Logger, a.OTelProviders.Tracer)
	a.HealthService = services.NewHealthService(a.Config, a.Logger)

	return nil
}

// setupRouter assembles the middleware chain and mounts the API routes.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(customMiddleware.Recoverer(a.Logger))
	r.Use(customMiddleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(customMiddleware.CORSConfig{
			AllowedOrigins: a.Config.Security.AllowedOrigins,
		}))
	}

	if a.Config.Security.RateLimit.Enabled {
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Security.RateLimit.RPS,
			a.Config.Security.RateLimit.Burst,
			a.Logger,
		).Handler)
	}

	jobsHandler := handlers.NewJobsHandler(a.JobService, a.Logger)
	if dir := a.Config.Pipeline.ExportDir; dir != "" {
		jobsHandler.SetExportArchive(files.NewArchive(dir, a.Logger))
	}
	jobsHandler.SetStreamTimings(handlers.StreamTimings{
		WriteWait:  a.Config.Stream.WriteWait,
		PongWait:   a.Config.Stream.PongWait,
		PingPeriod: a.Config.Stream.PingPeriod,
	})

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/version", healthHandler.Version)
		r.Mount("/jobs", jobsHandler.Routes())
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start launches the HTTP server. A listen failure cancels the run context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting HTTP server",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	return nil
}

// Stop gracefully shuts the application down.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.cancelJanitor != nil {
		a.cancelJanitor()
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down tracing",
				slog.String("error", err.Error()))
		}
	}

	if err := infrastructure.CloseLogFile(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted.
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
