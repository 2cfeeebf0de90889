package cmd

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

	"github.com/frahmantamala/refund-management/internal"
	"github.com/frahmantamala/refund-management/internal/core/events"
	paymentPostgres "github.com/frahmantamala/refund-management/internal/payment/postgres"
	"github.com/frahmantamala/refund-management/internal/paymentgateway"
	"github.com/frahmantamala/refund-management/internal/refund"
	refundPostgres "github.com/frahmantamala/refund-management/internal/refund/postgres"
	"github.com/frahmantamala/refund-management/internal/scheduler"
	"github.com/frahmantamala/refund-management/internal/transport"
	"github.com/frahmantamala/refund-management/internal/transport/rest"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

var withSweeper bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle refund API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config   *internal.Config
	DB       *sqlx.DB
	Gorm     *gorm.DB
	EventBus *events.EventBus
	Refunds  *refund.Service
	Stats    *refund.StatsService
	Router   *chi.Mux
	Logger   *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	lg := deps.Logger

	setupRoutes(deps)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sweeper *scheduler.Manager
	if withSweeper {
		sweeper, err = startSweeper(ctx, deps)
		if err != nil {
			lg.Error("failed to start reconciliation sweeper", "error", err)
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		lg.Info("starting HTTP server", "address", addr)
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		lg.Info("received signal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	if sweeper != nil {
		_ = sweeper.Stop()
	}
	deps.EventBus.Wait()
	if err := deps.DB.Close(); err != nil {
		lg.Error("database close error", "error", err)
	}
	lg.Info("server stopped")
}

func setupRoutes(deps *Dependencies) {
	handler := refund.NewHandler(transport.NewBaseHandler(deps.Logger), deps.Refunds, deps.Stats)
	rest.RegisterAllRoutes(deps.Router, rest.RouterConfig{
		DB:             deps.DB.DB,
		RefundHandler:  handler,
		JWTSecret:      []byte(deps.Config.Security.JWTSecret),
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		Logger:         deps.Logger,
	})
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := setupLogger(config)

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db, lg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	bus := events.NewEventBus(lg)
	refund.NewEventHandler(lg).RegisterEventHandlers(bus)

	refundRepo := refundPostgres.NewRefundRepository(gdb)
	service := refund.NewService(refundRepo, newPaymentGateway(config, db, lg), bus, lg, refundOptions(config))

	return &Dependencies{
		Config:   config,
		DB:       db,
		Gorm:     gdb,
		EventBus: bus,
		Refunds:  service,
		Stats:    refund.NewStatsService(refundRepo, lg),
		Router:   chi.NewRouter(),
		Logger:   lg,
	}, nil
}

// newPaymentGateway picks the remote payments service when one is configured
// and the local payments table otherwise.
func newPaymentGateway(cfg *internal.Config, db *sqlx.DB, lg *slog.Logger) refund.PaymentGateway {
	if cfg.Gateway.Remote() {
		lg.Info("using remote payment gateway", "base_url", cfg.Gateway.BaseURL)
		return paymentgateway.NewClient(paymentgateway.Config{
			BaseURL: cfg.Gateway.BaseURL,
			APIKey:  cfg.Gateway.APIKey,
			Timeout: cfg.Gateway.Timeout,
		}, lg)
	}
	return paymentPostgres.NewPaymentRepository(db)
}

func refundOptions(cfg *internal.Config) refund.Options {
	rc := cfg.Refund.Reconciliation
	return refund.Options{
		OperationTimeout:        cfg.Refund.OperationTimeout,
		ReconcileMaxRetries:     rc.MaxRetries,
		ReconcileInitialBackoff: rc.InitialBackoff,
		ReconcileMaxBackoff:     rc.MaxBackoff,
	}
}

func startSweeper(ctx context.Context, deps *Dependencies) (*scheduler.Manager, error) {
	rc := deps.Config.Refund.Reconciliation
	manager, err := scheduler.NewManager(deps.Logger)
	if err != nil {
		return nil, err
	}
	job := scheduler.NewReconcileJob(ctx, deps.Refunds, rc.SweepInterval, rc.SweepBatchSize, deps.Logger)
	if err := manager.Register(job, true); err != nil {
		return nil, err
	}
	manager.Start()
	return manager, nil
}

// initDB opens the pgx-backed sqlx pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func initGorm(db *sqlx.DB, lg *slog.Logger) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.New(slog.NewLogLogger(lg.Handler(), slog.LevelWarn), gormLogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
}

func init() {
	httpServerCmd.Flags().BoolVar(&withSweeper, "with-sweeper", true, "run the reconciliation sweep inside the server process")
}
