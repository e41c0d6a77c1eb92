package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jameskipngetich/paymentService/internal/core/events"
	"github.com/jameskipngetich/paymentService/internal/payment"
	paymentpostgres "github.com/jameskipngetich/paymentService/internal/payment/postgres"
	"github.com/jameskipngetich/paymentService/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the pending-payment reconciler`,
}

var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the pending-payment reconciler",
	Long:  `Periodically fail payments left PENDING beyond the configured timeout with no gateway callback`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	reconcileInterval time.Duration
	pendingTimeout    time.Duration
)

func startReconcileWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(config.Observability.Logging.Format)
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}

	gormDB, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize gorm: %v\n", err)
		os.Exit(1)
	}

	interval := config.Reconciler.Interval
	if reconcileInterval > 0 {
		interval = reconcileInterval
	}
	timeout := config.Reconciler.PendingTimeout
	if pendingTimeout > 0 {
		timeout = pendingTimeout
	}

	repo := paymentpostgres.NewPaymentRepository(gormDB)
	eventBus := events.NewEventBus(lg)
	registerEventHandlers(eventBus, lg)
	ledger := payment.NewLedger(repo, eventBus, lg)
	reconciler := payment.NewReconciler(ledger, repo, interval, timeout, lg)

	ctx := context.Background()
	reconciler.Start(ctx)

	lg.Info("reconcile worker is running. Press Ctrl+C to stop.",
		"interval", interval.String(),
		"pending_timeout", timeout.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	lg.Info("received signal, shutting down reconcile worker", "signal", sig)

	reconciler.Stop()
	if err := db.Close(); err != nil {
		lg.Error("database close error", "error", err)
	}
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&reconcileInterval, "interval", 0, "sweep interval (overrides config)")
	reconcileWorkerCmd.Flags().DurationVar(&pendingTimeout, "pending-timeout", 0, "how long a payment may stay PENDING (overrides config)")

	workerCmd.AddCommand(reconcileWorkerCmd)
}
