package payment

import (
	"context"
	"log/slog"
	"time"
)

const staleBatchSize = 100

// Reconciler ages out payments left PENDING beyond the configured timeout
// with no matching callback. Runs outside the request path; each sweep is
// idempotent against callbacks arriving mid-flight because expiry goes
// through the ledger's conditional transition.
type Reconciler struct {
	ledger         *Ledger
	repo           Repository
	interval       time.Duration
	pendingTimeout time.Duration
	logger         *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReconciler(ledger *Ledger, repo Repository, interval, pendingTimeout time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if pendingTimeout <= 0 {
		pendingTimeout = 15 * time.Minute
	}
	return &Reconciler{
		ledger:         ledger,
		repo:           repo,
		interval:       interval,
		pendingTimeout: pendingTimeout,
		logger:         logger,
	}
}

// Start launches the periodic sweep until Stop or context cancellation.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("reconciler started",
			"interval", r.interval.String(),
			"pending_timeout", r.pendingTimeout.String())

		for {
			select {
			case <-ticker.C:
				if _, err := r.Sweep(ctx); err != nil {
					r.logger.Error("reconciliation sweep failed", "error", err)
				}
			case <-ctx.Done():
				r.logger.Info("reconciler stopped")
				return
			}
		}
	}()
}

func (r *Reconciler) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

// Sweep fails every payment that has been PENDING longer than the timeout.
// Returns how many payments it expired.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.pendingTimeout)

	stale, err := r.repo.ListStalePending(cutoff, staleBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range stale {
		ok, err := r.ledger.Expire(ctx, p.TransactionRef, "no callback received within timeout")
		if err != nil {
			r.logger.Error("failed to expire stale payment",
				"transaction_ref", p.TransactionRef,
				"error", err)
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		r.logger.Info("reconciliation sweep finished",
			"stale_candidates", len(stale),
			"expired", expired)
	}

	return expired, nil
}
