package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Payment is one push-payment attempt. Identity fields are set at creation
// and never change; only status, receipt and failure metadata mutate, and
// only through the PENDING -> COMPLETED/FAILED transition.
type Payment struct {
	ID             int64           `gorm:"primaryKey"`
	MemberID       int64           `gorm:"column:member_id;not null;index"`
	Category       string          `gorm:"column:category;not null"`
	MissionSubtype *string         `gorm:"column:mission_subtype"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(10,2);not null"`
	PhoneNumber    string          `gorm:"column:phone_number;not null;index"`
	TransactionRef string          `gorm:"column:transaction_ref;not null;uniqueIndex"`
	AccountRef     string          `gorm:"column:account_ref;not null"`
	Status         string          `gorm:"column:status;default:PENDING;index"`
	ReceiptNumber  *string         `gorm:"column:receipt_number"`
	FailureReason  *string         `gorm:"column:failure_reason"`
	MerchantReqID  *string         `gorm:"column:merchant_request_id"`
	CompletedAt    *time.Time      `gorm:"column:completed_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;default:now()"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) IsTerminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}
