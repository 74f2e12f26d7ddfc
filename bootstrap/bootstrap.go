// Package bootstrap wires all dependencies and starts the application.
// Configuration comes from a YAML file that is watched for changes; services
// deployed through the admin API are persisted in SQLite when enabled.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artpar/svcroute/adapters/clock"
	apihttp "github.com/artpar/svcroute/adapters/http"
	"github.com/artpar/svcroute/adapters/http/admin"
	"github.com/artpar/svcroute/adapters/idgen"
	"github.com/artpar/svcroute/adapters/memory"
	"github.com/artpar/svcroute/adapters/metrics"
	"github.com/artpar/svcroute/adapters/openapi"
	"github.com/artpar/svcroute/adapters/sqlite"
	"github.com/artpar/svcroute/app"
	"github.com/artpar/svcroute/config"
	"github.com/artpar/svcroute/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger      zerolog.Logger
	Config      *config.Holder
	DB          *sqlite.DB
	Metrics     *metrics.Collector
	Registry    *app.Registry
	Deployments *app.DeploymentService
	Handlers    *apihttp.Builtins
	Handler     http.Handler
	HTTPServer  *http.Server

	version string
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML configuration file. Required.
	ConfigPath string

	// Version is reported by /version and the OpenAPI document.
	Version string

	// Watch enables reloading on file changes and SIGHUP.
	Watch bool

	// Registry receives the Prometheus metrics instead of the default
	// registerer; /metrics then serves this registry.
	Registry *prometheus.Registry
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Info().Str("config", opts.ConfigPath).Msg("initializing svcroute")

	holder, err := config.NewHolder(opts.ConfigPath, logger)
	if err != nil {
		return nil, err
	}
	cfg = holder.Get()

	a := &App{
		Logger:  logger,
		Config:  holder,
		version: opts.Version,
	}

	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
		} else {
			a.Metrics = metrics.New()
		}
		logger.Info().Msg("prometheus metrics enabled")
	}

	store, err := a.initStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.Registry = app.NewRegistry(clock.System{}, idgen.TimeOrdered{}, logger, app.RegistryConfig{Metrics: a.routingMetrics()})
	a.Deployments = app.NewDeploymentService(a.Registry, store, logger)
	a.Handlers = apihttp.NewBuiltins()

	ctx := context.Background()
	if err := a.Deployments.SyncConfig(ctx, cfg.Definitions()); err != nil {
		logger.Error().Err(err).Msg("some configured services failed to deploy")
	}
	if err := a.Deployments.LoadStored(ctx); err != nil {
		logger.Error().Err(err).Msg("some stored services failed to deploy")
	}

	a.initHTTPServer(cfg, opts.Registry)

	holder.OnChange(a.applyConfig)
	holder.OnError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
	if opts.Watch {
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
	}

	return a, nil
}

func (a *App) initStore(cfg config.DatabaseConfig) (ports.ServiceStore, error) {
	if !cfg.Enabled {
		a.Logger.Info().Msg("database disabled, runtime deployments are kept in memory")
		return memory.NewServiceStore(), nil
	}

	db, err := sqlite.Open(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a.DB = db
	a.Logger.Info().Str("dsn", cfg.DSN).Msg("database ready")
	return sqlite.NewServiceStore(db), nil
}

func (a *App) initHTTPServer(cfg *config.Config, reg *prometheus.Registry) {
	gateway := apihttp.NewGateway(a.Registry, a.Handlers, a.Logger, apihttp.GatewayConfig{
		Metrics:      a.routingMetrics(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})

	rc := apihttp.RouterConfig{
		Version: a.version,
		Timeout: cfg.Server.WriteTimeout,
	}
	if a.Metrics != nil && cfg.Metrics.Enabled {
		rc.Metrics = a.Metrics
		rc.MetricsPath = cfg.Metrics.Path
		if reg != nil {
			rc.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		}
	}
	if cfg.Admin.Enabled {
		if cfg.Admin.Token == "" {
			a.Logger.Warn().Msg("admin API enabled without a token")
		}
		rc.AdminHandler = admin.NewHandler(admin.Deps{
			Deployments: a.Deployments,
			Token:       cfg.Admin.Token,
			BasePath:    cfg.Admin.Path,
			Logger:      a.Logger,
		}).Router()
		rc.AdminPath = cfg.Admin.Path
	}
	if cfg.OpenAPI.Enabled {
		rc.OpenAPIHandler = openapi.NewGenerator(a.Registry, cfg.OpenAPI.Title, a.version, a.Logger)
		rc.OpenAPIPath = cfg.OpenAPI.Path
	}
	if a.DB != nil {
		rc.Readiness = append(rc.Readiness, a.DB.PingContext)
	}

	a.Handler = apihttp.NewRouter(gateway, a.Logger, rc)
	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func (a *App) routingMetrics() ports.RoutingMetrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

// applyConfig re-deploys the configured services after a reload.
// Settings that need a restart are only reported by the holder.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := a.Deployments.SyncConfig(context.Background(), cfg.Definitions()); err != nil {
		a.Logger.Error().Err(err).Msg("some services failed to redeploy")
	}

	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
		a.Metrics.ConfigLastReload.SetToCurrentTime()
	}
}

// Reload reloads the configuration file.
func (a *App) Reload() error {
	return a.Config.Reload()
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Int("services", len(a.Registry.Services())).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	timeout := a.Config.Get().Server.ShutdownTimeout
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.Config.Stop()

	var errs []error
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
			errs = append(errs, err)
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
			errs = append(errs, err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return errors.Join(errs...)
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
