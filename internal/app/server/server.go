package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"hrdocs/internal/domain/audit"
	"hrdocs/internal/domain/auth"
	"hrdocs/internal/domain/directory"
	"hrdocs/internal/domain/documents"
	"hrdocs/internal/platform/config"
	"hrdocs/internal/platform/db"
	"hrdocs/internal/platform/jobs"
	"hrdocs/internal/platform/metrics"
	"hrdocs/internal/platform/storage"
	"hrdocs/internal/transport/http/api"
	audithandler "hrdocs/internal/transport/http/handlers/audit"
	authhandler "hrdocs/internal/transport/http/handlers/auth"
	documentshandler "hrdocs/internal/transport/http/handlers/documents"
	"hrdocs/internal/transport/http/middleware"
)

type App struct {
	Config    config.Config
	DB        *pgxpool.Pool
	Documents *documents.Service
	Jobs      *jobs.Service
	Metrics   *metrics.Collector
	Router    http.Handler
}

// Pinger reports database readiness for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the router mounts.
type Deps struct {
	DB        Pinger
	Auth      authhandler.Authenticator
	Audit     *audit.Service
	Documents *documents.Service
	Jobs      documentshandler.JobRunner
	Metrics   *metrics.Collector
}

// New connects to the database, prepares storage and builds the router.
// Background jobs are not started until Start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	objects, err := newObjectStorage(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := objects.EnsureBucket(ctx, cfg.StorageBucket); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	docStore := documents.NewStore(pool)
	if cfg.RunSeed {
		created, err := documents.SeedCatalog(ctx, docStore)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("seed document catalog: %w", err)
		}
		if created > 0 {
			slog.Info("document catalog seeded", "created", created)
		}
	}

	collector := metrics.New()
	auditSvc := audit.New(pool)
	docSvc := documents.NewService(docStore, directory.NewStore(pool), objects, auditSvc, collector, documents.Options{
		Bucket:                cfg.StorageBucket,
		ShareLinkDefaultHours: cfg.ShareLinkDefaultHours,
	})
	jobSvc := jobs.New(pool, cfg, docSvc)

	router := NewRouter(cfg, Deps{
		DB:        pool,
		Auth:      auth.NewService(auth.NewStore(pool), cfg.JWTSecret),
		Audit:     auditSvc,
		Documents: docSvc,
		Jobs:      jobSvc,
		Metrics:   collector,
	})

	return &App{
		Config:    cfg,
		DB:        pool,
		Documents: docSvc,
		Jobs:      jobSvc,
		Metrics:   collector,
		Router:    router,
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (storage.ObjectStorage, error) {
	if cfg.S3Endpoint == "" && cfg.S3AccessKey == "" {
		slog.Warn("no S3 endpoint configured, using in-memory object storage")
		return storage.NewMemoryStorage(), nil
	}
	objects, err := storage.NewS3Storage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return objects, nil
}

func (a *App) Start(ctx context.Context) {
	a.Jobs.Start(ctx)
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// NewRouter assembles the middleware chain and mounts every API surface under /api/v1.
func NewRouter(cfg config.Config, deps Deps) http.Handler {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(chimw.Recoverer)
	router.Use(middleware.Logger(deps.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Total-Count"},
		AllowCredentials: true,
	}).Handler)
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes, cfg.MaxImportBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.DB == nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := deps.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, deps.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))

		if deps.Auth != nil {
			authhandler.NewHandler(deps.Auth).RegisterRoutes(r)
		}
		if deps.Audit != nil {
			audithandler.NewHandler(deps.Audit).RegisterRoutes(r)
		}
		if deps.Documents != nil {
			documentshandler.NewHandler(deps.Documents, deps.Jobs, deps.Audit).RegisterRoutes(r)
		}
	})

	return router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, cfg config.Config) error {
	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	app.Start(jobsCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("hr document server listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
