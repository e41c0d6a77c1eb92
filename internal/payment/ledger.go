package payment

import (
	"context"
	"log/slog"
	"time"

	errors "github.com/jameskipngetich/paymentService/internal"
	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/core/events"
)

// Outcome is a terminal result reported for a payment, either by a gateway
// callback or by the reconciliation sweep.
type Outcome struct {
	Success       bool
	ReceiptNumber string
	FailureReason string
}

// Ledger applies terminal outcomes to payments. Transitions are monotonic:
// PENDING moves to COMPLETED or FAILED exactly once. Duplicate reports of
// the same outcome are no-ops; divergent reports on an already-terminal
// payment are conflicts surfaced to operators, never overwritten.
type Ledger struct {
	repo     Repository
	eventBus *events.EventBus
	logger   *slog.Logger
}

func NewLedger(repo Repository, eventBus *events.EventBus, logger *slog.Logger) *Ledger {
	return &Ledger{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Resolve correlates an inbound callback to a payment. The transaction
// reference is authoritative when the gateway echoes it; otherwise the
// oldest PENDING payment for the phone number wins. A member with several
// concurrent pushes is ambiguous, and oldest-first keeps the fallback
// deterministic.
func (l *Ledger) Resolve(transactionRef, phoneNumber string) (*paymentmodel.Payment, error) {
	if transactionRef != "" {
		p, err := l.repo.GetByTransactionRef(transactionRef)
		if err != nil {
			return nil, errors.ErrPaymentNotFound
		}
		return p, nil
	}

	if phoneNumber == "" {
		return nil, errors.ErrPaymentNotFound
	}

	p, err := l.repo.OldestPendingByPhone(phoneNumber)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

// RecordOutcome finalizes the payment identified by transactionRef. Safe
// to call more than once with the same outcome. Exactly one caller wins a
// race; the loser observes the terminal state and takes the no-op or
// conflict path.
func (l *Ledger) RecordOutcome(ctx context.Context, transactionRef string, outcome Outcome) (*paymentmodel.Payment, error) {
	var (
		rows int64
		err  error
	)

	if outcome.Success {
		rows, err = l.repo.CompletePending(transactionRef, outcome.ReceiptNumber, time.Now().UTC())
	} else {
		rows, err = l.repo.FailPending(transactionRef, outcome.FailureReason)
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to apply payment transition", err)
	}

	p, getErr := l.repo.GetByTransactionRef(transactionRef)
	if getErr != nil {
		return nil, errors.ErrPaymentNotFound
	}

	if rows == 1 {
		l.publishOutcome(ctx, p, outcome)
		l.logger.Info("payment finalized",
			"payment_id", p.ID,
			"transaction_ref", transactionRef,
			"status", p.Status)
		return p, nil
	}

	// Conditional update touched nothing: the record was already terminal.
	wantStatus := paymentmodel.StatusFailed
	if outcome.Success {
		wantStatus = paymentmodel.StatusCompleted
	}

	if p.Status == wantStatus {
		l.logger.Info("duplicate outcome ignored",
			"payment_id", p.ID,
			"transaction_ref", transactionRef,
			"status", p.Status)
		return p, nil
	}

	l.logger.Error("conflicting outcome for finalized payment",
		"payment_id", p.ID,
		"transaction_ref", transactionRef,
		"recorded_status", p.Status,
		"reported_status", wantStatus)

	return p, errors.NewConflictError("payment already finalized with a different outcome", errors.ErrCodeOutcomeConflict)
}

// Expire fails a payment left PENDING beyond the reconciliation timeout.
// A callback landing concurrently simply wins the conditional update, and
// the sweep moves on; unlike RecordOutcome this never reports a conflict.
func (l *Ledger) Expire(ctx context.Context, transactionRef, reason string) (bool, error) {
	rows, err := l.repo.FailPending(transactionRef, reason)
	if err != nil {
		return false, errors.NewInternalError("failed to expire payment", err)
	}
	if rows == 0 {
		l.logger.Debug("payment no longer pending, skipping expiry",
			"transaction_ref", transactionRef)
		return false, nil
	}

	p, getErr := l.repo.GetByTransactionRef(transactionRef)
	if getErr == nil {
		l.publishOutcome(ctx, p, Outcome{Success: false, FailureReason: reason})
	}

	l.logger.Warn("pending payment expired without callback",
		"transaction_ref", transactionRef,
		"reason", reason)
	return true, nil
}

func (l *Ledger) publishOutcome(ctx context.Context, p *paymentmodel.Payment, outcome Outcome) {
	if l.eventBus == nil {
		return
	}
	if outcome.Success {
		event := events.NewPaymentCompletedEvent(p.ID, p.MemberID, p.TransactionRef, p.Amount.String(), outcome.ReceiptNumber)
		l.eventBus.Publish(ctx, event)
	} else {
		event := events.NewPaymentFailedEvent(p.ID, p.MemberID, p.TransactionRef, outcome.FailureReason)
		l.eventBus.Publish(ctx, event)
	}
}
