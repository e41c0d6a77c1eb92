package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeCallbackOrphaned = "payment.callback.orphaned"
)

type PaymentCompletedEvent struct {
	BaseEvent
	PaymentID      int64  `json:"payment_id"`
	MemberID       int64  `json:"member_id"`
	TransactionRef string `json:"transaction_ref"`
	Amount         string `json:"amount"`
	ReceiptNumber  string `json:"receipt_number"`
}

func NewPaymentCompletedEvent(paymentID, memberID int64, transactionRef, amount, receiptNumber string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":      paymentID,
				"member_id":       memberID,
				"transaction_ref": transactionRef,
				"amount":          amount,
				"receipt_number":  receiptNumber,
			},
		},
		PaymentID:      paymentID,
		MemberID:       memberID,
		TransactionRef: transactionRef,
		Amount:         amount,
		ReceiptNumber:  receiptNumber,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	PaymentID      int64  `json:"payment_id"`
	MemberID       int64  `json:"member_id"`
	TransactionRef string `json:"transaction_ref"`
	FailureReason  string `json:"failure_reason"`
}

func NewPaymentFailedEvent(paymentID, memberID int64, transactionRef, failureReason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"payment_id":      paymentID,
				"member_id":       memberID,
				"transaction_ref": transactionRef,
				"failure_reason":  failureReason,
			},
		},
		PaymentID:      paymentID,
		MemberID:       memberID,
		TransactionRef: transactionRef,
		FailureReason:  failureReason,
	}
}

// CallbackOrphanedEvent records a callback that matched no known payment.
// Kept for manual review; the callback itself is still acknowledged.
type CallbackOrphanedEvent struct {
	BaseEvent
	TransactionRef string `json:"transaction_ref"`
	PhoneNumber    string `json:"phone_number"`
	ResultCode     int    `json:"result_code"`
}

func NewCallbackOrphanedEvent(transactionRef, phoneNumber string, resultCode int) *CallbackOrphanedEvent {
	return &CallbackOrphanedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeCallbackOrphaned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_ref": transactionRef,
				"phone_number":    phoneNumber,
				"result_code":     resultCode,
			},
		},
		TransactionRef: transactionRef,
		PhoneNumber:    phoneNumber,
		ResultCode:     resultCode,
	}
}
