package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/statement-extractor/internal/domain/categorization"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/handler"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/normalizer"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/search"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service"
	"github.com/FACorreiaa/statement-extractor/pkg/config"
	"github.com/FACorreiaa/statement-extractor/pkg/cron"
	"github.com/FACorreiaa/statement-extractor/pkg/db"
	"github.com/FACorreiaa/statement-extractor/pkg/logger"
	"github.com/FACorreiaa/statement-extractor/pkg/metrics"
	"github.com/FACorreiaa/statement-extractor/pkg/middleware"
	"github.com/FACorreiaa/statement-extractor/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Repositories
	CategorizationRepo *categorization.Repository

	// Services
	CategorizationService *categorization.Service
	Pipeline              *service.Pipeline
	PipelineConfig        service.Config
	SearchIndex           *search.Index
	FileStorage           storage.Storage
	Scheduler             *cron.Scheduler

	// Handlers
	ExtractionHandler *handler.Handler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: log,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initServices(); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	deps.initHandlers()

	log.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase connects and migrates when DATABASE_URL is set. Without it
// every issuer uses the base rules.
func (d *Dependencies) initDatabase(ctx context.Context) error {
	database, err := db.New(ctx, db.Config{
		DSN:             d.Config.Database.URL,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if errors.Is(err, db.ErrNoDSN) {
		d.Logger.Info("no database configured, issuer rule sets disabled")
		return nil
	}
	if err != nil {
		return err
	}
	d.DB = database

	if err := d.DB.RunMigrations(ctx); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.CategorizationRepo = categorization.NewRepository(d.DB.Pool)
	return nil
}

func (d *Dependencies) initServices() error {
	base := categorization.DefaultRuleSet()
	if path := d.Config.Rules.File; path != "" {
		rs, err := categorization.LoadRuleSetFile(path)
		if err != nil {
			return err
		}
		base = rs
		d.Logger.Info("loaded rule file", slog.String("path", path), slog.Int("categories", len(rs)))
	}

	// A nil *Repository stored in the interface would not compare equal to nil.
	var source categorization.RuleSource
	if d.CategorizationRepo != nil {
		source = d.CategorizationRepo
	}
	d.CategorizationService = categorization.NewService(source, base, d.Logger)

	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = metrics.New(d.Registry)

	compactor := normalizer.NewCompactor(normalizer.CompactorConfig{
		Boilerplate: normalizer.DefaultCompactorConfig().Boilerplate,
		MaxLen:      d.Config.Extract.ShopNameMax,
	})
	d.Pipeline = service.NewPipeline(d.CategorizationService, compactor, d.Metrics, d.Logger)

	pcfg, err := service.FromSettings(d.Config.Extract)
	if err != nil {
		return err
	}
	pcfg.Issuer = d.Config.Rules.Issuer
	d.PipelineConfig = pcfg

	index, err := search.NewIndex(d.Config.Search.IndexPath)
	if err != nil {
		return err
	}
	d.SearchIndex = index

	files, err := storage.New(storage.Config{LocalPath: d.Config.Storage.LocalPath})
	if err != nil {
		return err
	}
	d.FileStorage = files

	if d.Config.Inbox.Dir != "" {
		d.Scheduler = cron.NewScheduler(cron.InboxConfig{
			Dir:      d.Config.Inbox.Dir,
			Schedule: d.Config.Inbox.Schedule,
			Password: d.Config.Extract.Password,
			Extract:  pcfg,
		}, d.Pipeline, d.FileStorage, d.SearchIndex, d.Logger)
	}

	d.Logger.Info("services initialized",
		slog.String("mode", string(pcfg.Mode)),
		slog.Int("keywords", d.CategorizationService.Base().PatternCount()),
		slog.Bool("inbox", d.Scheduler != nil),
	)
	return nil
}

func (d *Dependencies) initHandlers() {
	// Same nil-interface concern as the rule source.
	var store handler.RuleStore
	if d.CategorizationRepo != nil {
		store = d.CategorizationRepo
	}

	d.ExtractionHandler = handler.New(
		d.Pipeline,
		d.CategorizationService,
		store,
		d.SearchIndex,
		d.FileStorage,
		handler.Options{
			Defaults:       d.PipelineConfig,
			Password:       d.Config.Extract.Password,
			MaxUploadBytes: d.Config.Server.MaxUploadBytes,
		},
		d.Logger,
	)
}

// Routes builds the HTTP handler with middleware applied.
func (d *Dependencies) Routes() http.Handler {
	mux := http.NewServeMux()
	d.ExtractionHandler.Register(mux)
	if d.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	limiter := middleware.NewRateLimiter(float64(d.Config.Server.RateLimitPerSecond), d.Config.Server.RateLimitBurst)
	return middleware.Chain(mux,
		logger.HTTPMiddleware(d.Logger),
		middleware.CORS(d.Config.Server.CORSAllowedOrigins),
		limiter.Middleware,
	)
}

// Close releases everything that holds files or connections.
func (d *Dependencies) Close() {
	if d.SearchIndex != nil {
		if err := d.SearchIndex.Close(); err != nil {
			d.Logger.Warn("failed to close search index", slog.Any("error", err))
		}
	}
	d.DB.Close()
}
