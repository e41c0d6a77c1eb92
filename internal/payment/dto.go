package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/jameskipngetich/paymentService/internal"
	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/core/common/validation"
)

// InitiatePaymentRequest is the member-facing initiation payload. Either
// member_id or phone_number identifies the payer.
type InitiatePaymentRequest struct {
	MemberID       int64  `json:"member_id,omitempty"`
	PhoneNumber    string `json:"phone_number,omitempty"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	MissionSubtype string `json:"mission_subtype,omitempty"`
}

// Validate checks the request and returns the parsed amount. No network
// call is made before this passes.
func (r *InitiatePaymentRequest) Validate() (decimal.Decimal, error) {
	validator := validation.NewValidator()

	validator.Field("amount", r.Amount).Required()
	validator.Field("category", r.Category).Required().OneOf(Categories, errors.ErrCodeInvalidCategory)

	if appErr := validator.Validate(); appErr != nil {
		return decimal.Zero, appErr
	}

	if r.MemberID == 0 && r.PhoneNumber == "" {
		return decimal.Zero, errors.NewValidationError("member_id or phone_number is required", errors.ErrCodeValidationFailed)
	}

	if r.Category == CategoryMission {
		if r.MissionSubtype == "" {
			return decimal.Zero, errors.NewValidationError("mission_subtype is required for MISSION payments", errors.ErrCodeInvalidSubtype)
		}
		if !IsValidMissionSubtype(r.MissionSubtype) {
			return decimal.Zero, errors.NewValidationError("unknown mission_subtype", errors.ErrCodeInvalidSubtype)
		}
	} else if r.MissionSubtype != "" {
		return decimal.Zero, errors.NewValidationError("mission_subtype is only valid for MISSION payments", errors.ErrCodeInvalidSubtype)
	}

	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return decimal.Zero, errors.NewValidationError("amount must be a number", errors.ErrCodeInvalidAmount)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, errors.NewValidationError("amount must be positive", errors.ErrCodeInvalidAmount)
	}

	return amount, nil
}

// FlexString decodes from either a JSON string or a JSON number. The
// gateway is inconsistent about quoting numeric fields like PhoneNumber,
// and a decode failure here would silently drop a valid callback.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

// CallbackPayload is the gateway's asynchronous result notification.
// TransactionRef is the merchant reference when the gateway echoes it;
// correlation falls back to the phone number when absent.
type CallbackPayload struct {
	ResultCode         int         `json:"ResultCode"`
	ResultDesc         string      `json:"ResultDesc"`
	PhoneNumber        FlexString  `json:"PhoneNumber"`
	Amount             json.Number `json:"Amount"`
	TransactionID      string      `json:"TransactionID"`
	MpesaReceiptNumber string      `json:"MpesaReceiptNumber"`
	TransactionRef     string      `json:"TransactionRef,omitempty"`
}

func (p *CallbackPayload) Succeeded() bool {
	return p.ResultCode == 0
}

// CallbackAck is the unconditional 200 response body returned to the
// gateway. The delivery contract drops callbacks on non-2xx replies, so
// internal failures never surface here.
type CallbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func AcceptedAck() CallbackAck {
	return CallbackAck{ResultCode: 0, ResultDesc: "Callback received successfully"}
}

// PaymentView is the API representation of a payment record.
type PaymentView struct {
	ID             int64      `json:"id"`
	MemberID       int64      `json:"member_id"`
	Category       string     `json:"category"`
	MissionSubtype *string    `json:"mission_subtype,omitempty"`
	Amount         string     `json:"amount"`
	PhoneNumber    string     `json:"phone_number"`
	TransactionRef string     `json:"transaction_ref"`
	AccountRef     string     `json:"account_ref"`
	Status         string     `json:"status"`
	ReceiptNumber  *string    `json:"receipt_number,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func ToView(p *paymentmodel.Payment) *PaymentView {
	return &PaymentView{
		ID:             p.ID,
		MemberID:       p.MemberID,
		Category:       p.Category,
		MissionSubtype: p.MissionSubtype,
		Amount:         p.Amount.String(),
		PhoneNumber:    p.PhoneNumber,
		TransactionRef: p.TransactionRef,
		AccountRef:     p.AccountRef,
		Status:         p.Status,
		ReceiptNumber:  p.ReceiptNumber,
		FailureReason:  p.FailureReason,
		CompletedAt:    p.CompletedAt,
		CreatedAt:      p.CreatedAt,
	}
}
