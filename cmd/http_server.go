package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jameskipngetich/paymentService/internal"
	"github.com/jameskipngetich/paymentService/internal/core/events"
	memberpkg "github.com/jameskipngetich/paymentService/internal/member"
	memberpostgres "github.com/jameskipngetich/paymentService/internal/member/postgres"
	"github.com/jameskipngetich/paymentService/internal/mpesa"
	"github.com/jameskipngetich/paymentService/internal/payment"
	paymentpostgres "github.com/jameskipngetich/paymentService/internal/payment/postgres"
	"github.com/jameskipngetich/paymentService/internal/transport"
	"github.com/jameskipngetich/paymentService/internal/transport/rest"
	"github.com/jameskipngetich/paymentService/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle payment initiation and gateway callbacks`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config     *internal.Config
	DB         *sqlx.DB
	GormDB     *gorm.DB
	Router     *chi.Mux
	Logger     *slog.Logger
	Reconciler *payment.Reconciler
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	if deps.Reconciler != nil {
		deps.Reconciler.Start(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if deps.Reconciler != nil {
			deps.Reconciler.Stop()
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		Conn: db.DB,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	gatewayClient, err := mpesa.NewClient(context.Background(), mpesa.Config{
		BaseURL:        config.Mpesa.BaseURL,
		ConsumerKey:    config.Mpesa.ConsumerKey,
		ConsumerSecret: config.Mpesa.ConsumerSecret,
		ShortCode:      config.Mpesa.ShortCode,
		Passkey:        config.Mpesa.Passkey,
		CallbackURL:    config.Mpesa.CallbackURL,
		RequestTimeout: config.Mpesa.RequestTimeout,
	}, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mpesa client: %w", err)
	}

	eventBus := events.NewEventBus(lg)
	registerEventHandlers(eventBus, lg)

	paymentRepo := paymentpostgres.NewPaymentRepository(gormDB)
	memberRepo := memberpostgres.NewMemberRepository(gormDB)
	memberService := memberpkg.NewService(memberRepo, lg)

	paymentService := payment.NewService(paymentRepo, gatewayClient, memberService, config.Mpesa.AccountPrefix, lg)
	ledger := payment.NewLedger(paymentRepo, eventBus, lg)

	baseHandler := transport.NewBaseHandler(lg)
	paymentHandler := payment.NewHandler(baseHandler, paymentService, lg)
	webhookHandler := payment.NewWebhookHandler(baseHandler, ledger, eventBus, config.Mpesa.CallbackToken, lg)

	var reconciler *payment.Reconciler
	if config.Reconciler.Enabled {
		reconciler = payment.NewReconciler(ledger, paymentRepo,
			config.Reconciler.Interval, config.Reconciler.PendingTimeout, lg)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, paymentHandler, webhookHandler, lg)

	return &Dependencies{
		Config:     config,
		Logger:     lg,
		DB:         db,
		GormDB:     gormDB,
		Router:     router,
		Reconciler: reconciler,
	}, nil
}

// registerEventHandlers attaches the audit-trail subscribers. Notification
// delivery (SMS, dashboard pushes) subscribes here when it lands.
func registerEventHandlers(eventBus *events.EventBus, lg *slog.Logger) {
	eventBus.Subscribe(events.EventTypePaymentCompleted, func(ctx context.Context, event events.Event) error {
		lg.Info("payment completed", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})
	eventBus.Subscribe(events.EventTypePaymentFailed, func(ctx context.Context, event events.Event) error {
		lg.Info("payment failed", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})
	eventBus.Subscribe(events.EventTypeCallbackOrphaned, func(ctx context.Context, event events.Event) error {
		lg.Warn("orphan callback recorded for review", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})
}

// initDB initializes the database connection
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
