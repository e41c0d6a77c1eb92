package postgres

import (
	"time"

	"gorm.io/gorm"

	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	paymentpkg "github.com/jameskipngetich/paymentService/internal/payment"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{
		db: db,
	}
}

var _ paymentpkg.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(p *paymentmodel.Payment) error {
	return r.db.Create(p).Error
}

func (r *PaymentRepository) GetByTransactionRef(ref string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.Where("transaction_ref = ?", ref).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// OldestPendingByPhone backs the phone-number fallback correlation: oldest
// PENDING payment first, so concurrent payments from one member resolve
// deterministically.
func (r *PaymentRepository) OldestPendingByPhone(phone string) (*paymentmodel.Payment, error) {
	var p paymentmodel.Payment
	err := r.db.
		Where("phone_number = ? AND status = ?", phone, paymentmodel.StatusPending).
		Order("created_at ASC").
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CompletePending applies PENDING -> COMPLETED as a conditional update.
// The status predicate is the per-record mutual exclusion: of two racing
// callers exactly one sees RowsAffected == 1.
func (r *PaymentRepository) CompletePending(ref, receiptNumber string, completedAt time.Time) (int64, error) {
	res := r.db.Model(&paymentmodel.Payment{}).
		Where("transaction_ref = ? AND status = ?", ref, paymentmodel.StatusPending).
		Updates(map[string]interface{}{
			"status":         paymentmodel.StatusCompleted,
			"receipt_number": receiptNumber,
			"completed_at":   completedAt,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// FailPending applies PENDING -> FAILED under the same conditional-update
// discipline as CompletePending.
func (r *PaymentRepository) FailPending(ref, reason string) (int64, error) {
	res := r.db.Model(&paymentmodel.Payment{}).
		Where("transaction_ref = ? AND status = ?", ref, paymentmodel.StatusPending).
		Updates(map[string]interface{}{
			"status":         paymentmodel.StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *PaymentRepository) ListStalePending(olderThan time.Time, limit int) ([]*paymentmodel.Payment, error) {
	var payments []*paymentmodel.Payment
	err := r.db.
		Where("status = ? AND created_at < ?", paymentmodel.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}

func (r *PaymentRepository) List(filter paymentpkg.ListFilter) ([]*paymentmodel.Payment, error) {
	q := r.db.Model(&paymentmodel.Payment{})

	if filter.MemberID != 0 {
		q = q.Where("member_id = ?", filter.MemberID)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var payments []*paymentmodel.Payment
	err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&payments).Error
	return payments, err
}
