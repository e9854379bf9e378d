// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fieldbase/fieldbase/adapters/auth"
	"github.com/fieldbase/fieldbase/adapters/clock"
	"github.com/fieldbase/fieldbase/adapters/hasher"
	"github.com/fieldbase/fieldbase/adapters/idgen"
	"github.com/fieldbase/fieldbase/adapters/memory"
	"github.com/fieldbase/fieldbase/adapters/metrics"
	"github.com/fieldbase/fieldbase/adapters/sqlite"
	"github.com/fieldbase/fieldbase/app"
	"github.com/fieldbase/fieldbase/config"
	"github.com/fieldbase/fieldbase/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Version is stamped at build time.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	compose     *app.ComposeService
	schemaCache *memory.SchemaCache
}

// New creates and initializes the application from a config file path. An
// empty path falls back to environment-only configuration.
func New(configPath string) (*App, error) {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	holder, err := newHolder(configPath, logger)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger = setupLogger(cfg.Logging)
	logger.Info().Str("version", Version).Msg("initializing fieldbase")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if err := a.initDatabase(cfg); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initHTTPServer(cfg); err != nil {
		a.DB.Close()
		return nil, fmt.Errorf("init http server: %w", err)
	}

	return a, nil
}

func newHolder(path string, logger zerolog.Logger) (*config.Holder, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			holder, err := config.NewHolder(path, logger)
			if err != nil {
				return nil, err
			}
			return holder, nil
		}
	}

	// No file: environment-only, no hot reload.
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return config.NewStaticHolder(cfg), nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

func (a *App) initDatabase(cfg *config.Config) error {
	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")
	return nil
}

func (a *App) initHTTPServer(cfg *config.Config) error {
	// Adapters
	clk := clock.Real{}
	ids := idgen.UUID{}
	bcryptHasher := hasher.NewBcrypt(0)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)

	// Stores
	workspaceStore := sqlite.NewWorkspaceStore(a.DB)
	collectionStore := sqlite.NewCollectionStore(a.DB)
	fieldStore := sqlite.NewFieldStore(a.DB)
	recordStore := sqlite.NewRecordStore(a.DB)
	compositionStore := sqlite.NewCompositionStore(a.DB)
	userStore := sqlite.NewUserStore(a.DB)

	// Schema registry cache
	a.schemaCache = memory.NewSchemaCache(collectionStore, fieldStore, clk, cfg.Cache.SchemaTTL)
	if a.Metrics != nil {
		a.schemaCache.Observe(a.Metrics.SchemaCacheHits.Inc, a.Metrics.SchemaCacheMisses.Inc)
	}

	// Query executor
	executor := sqlite.NewExecutor(a.DB)

	// Services
	authService := app.NewAuthService(workspaceStore, userStore, tokens, bcryptHasher, ids, clk, a.Logger)
	workspaceService := app.NewWorkspaceService(workspaceStore, clk, a.Logger)
	schemaService := app.NewSchemaService(collectionStore, fieldStore, a.schemaCache, ids, a.Logger)
	recordService := app.NewRecordService(recordStore, a.schemaCache, ids, clk, a.Logger)
	compositionService := app.NewCompositionService(compositionStore, ids, clk, a.Logger)
	a.compose = app.NewComposeService(
		workspaceStore, compositionStore, a.schemaCache, executor, clk, a.Logger,
		app.ComposeConfig{MaxLimit: cfg.Query.MaxLimit},
	)
	if a.Metrics != nil {
		a.compose.SetMetrics(a.Metrics)
	}

	// HTTP surface
	handler := web.NewHandler(web.Deps{
		Auth:         authService,
		Workspaces:   workspaceService,
		Schemas:      schemaService,
		Records:      recordService,
		Compositions: compositionService,
		Compose:      a.compose,
		Metrics:      a.Metrics,
		Logger:       a.Logger,
		Version:      Version,
	})

	router := handler.Router()
	if a.Metrics != nil {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	// Hot reload: config file changes and SIGHUP both reload.
	a.Config.OnChange(func(cfg *config.Config) {
		a.compose.SetMaxLimit(cfg.Query.MaxLimit)
		a.Logger.Info().Int("max_limit", cfg.Query.MaxLimit).Msg("applied reloaded configuration")
	})
	if err := a.Config.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}
	a.Config.WatchSignals()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a.Config.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}
