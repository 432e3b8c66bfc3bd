// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/paymock/adapters/clock"
	"github.com/artpar/paymock/adapters/idgen"
	"github.com/artpar/paymock/adapters/memory"
	"github.com/artpar/paymock/adapters/metrics"
	"github.com/artpar/paymock/adapters/sqlite"
	"github.com/artpar/paymock/app"
	"github.com/artpar/paymock/config"
	"github.com/artpar/paymock/ports"
	"github.com/artpar/paymock/web"
)

// stores groups the persistence adapters behind their ports.
type stores struct {
	customers     ports.CustomerStore
	subscriptions ports.SubscriptionStore
	invoices      ports.InvoiceStore
	charges       ports.ChargeStore
	events        ports.EventStore
	endpoints     ports.WebhookEndpointStore
}

// App represents the running application.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *sqlite.DB
	Metrics *metrics.Collector

	Clock *clock.Virtual
	Chaos *app.Coordinator

	HTTPServer *http.Server

	webhooks *app.WebhookService
	holder   *config.Holder
}

// New creates and initializes the application from a loaded configuration.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	a := &App{
		Config: cfg,
		Logger: logger,
	}

	logger.Info().
		Str("driver", cfg.Database.Driver).
		Str("clock_mode", cfg.Clock.Mode).
		Msg("initializing paymock")

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	clk, err := setupClock(cfg.Clock)
	if err != nil {
		return nil, fmt.Errorf("init clock: %w", err)
	}
	a.Clock = clk

	st, err := a.initStores(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init stores: %w", err)
	}

	a.Chaos = app.NewCoordinator(clk, a.Metrics, logger)
	if err := a.Chaos.Configure(cfg.Chaos); err != nil {
		return nil, fmt.Errorf("apply chaos config: %w", err)
	}

	ids := idgen.UUID{}
	a.webhooks = app.NewWebhookService(st.endpoints, st.events, a.Chaos, clk, ids, a.Metrics, logger)
	billing := app.NewBillingEngine(st.subscriptions, st.invoices, st.charges, a.Chaos, a.webhooks, clk, ids, a.Metrics, logger)

	handler := web.NewHandler(web.Deps{
		Customers:     st.customers,
		Subscriptions: st.subscriptions,
		Invoices:      st.invoices,
		Charges:       st.charges,
		Events:        st.events,
		Endpoints:     st.endpoints,
		Clock:         clk,
		Chaos:         a.Chaos,
		Billing:       billing,
		Webhooks:      a.webhooks,
		Idempotency:   app.NewIdempotencyCache(logger),
		IDs:           ids,
		Metrics:       a.Metrics,
		Logger:        logger,
	})

	router := handler.Router()
	if a.Metrics != nil {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info().Str("addr", addr).Msg("http server configured")
	return a, nil
}

func (a *App) initStores(cfg config.DatabaseConfig) (stores, error) {
	if cfg.Driver == "sqlite" {
		db, err := sqlite.Open(cfg.DSN)
		if err != nil {
			return stores{}, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Logger.Info().Str("dsn", cfg.DSN).Msg("sqlite storage initialized")
		return stores{
			customers:     sqlite.NewCustomerStore(db),
			subscriptions: sqlite.NewSubscriptionStore(db),
			invoices:      sqlite.NewInvoiceStore(db),
			charges:       sqlite.NewChargeStore(db),
			events:        sqlite.NewEventStore(db),
			endpoints:     sqlite.NewWebhookEndpointStore(db),
		}, nil
	}

	a.Logger.Info().Msg("in-memory storage initialized")
	return stores{
		customers:     memory.NewCustomerStore(),
		subscriptions: memory.NewSubscriptionStore(),
		invoices:      memory.NewInvoiceStore(),
		charges:       memory.NewChargeStore(),
		events:        memory.NewEventStore(),
		endpoints:     memory.NewWebhookEndpointStore(),
	}, nil
}

// setupClock builds the virtual clock in the configured starting mode.
func setupClock(cfg config.ClockConfig) (*clock.Virtual, error) {
	clk := clock.New()
	switch cfg.Mode {
	case "accelerated":
		if err := clk.SetAccelerated(cfg.Multiplier); err != nil {
			return nil, err
		}
	case "manual":
		var at time.Time
		if cfg.StartAt > 0 {
			at = time.Unix(cfg.StartAt, 0)
		}
		clk.SetManual(at)
	}
	return clk, nil
}

// AttachConfigWatcher wires a config holder so reloadable sections take
// effect on file change or SIGHUP. Chaos settings and the log level reload;
// server, database and clock settings require a restart.
func (a *App) AttachConfigWatcher(holder *config.Holder) {
	a.holder = holder
	holder.OnChange(func(cfg *config.Config) {
		if err := a.Chaos.Configure(cfg.Chaos); err != nil {
			a.Logger.Error().Err(err).Msg("failed to apply reloaded chaos config")
			return
		}
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		a.Logger.Info().Msg("reloadable configuration applied")
	})
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
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

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Stop in-flight webhook deliveries after the server stops accepting
	// requests, so nothing new gets queued behind them.
	if a.webhooks != nil {
		a.webhooks.Stop()
	}

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
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
