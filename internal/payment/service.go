package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	errors "github.com/jameskipngetich/paymentService/internal"
	membermodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/member"
	paymentmodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/payment"
	"github.com/jameskipngetich/paymentService/internal/mpesa"
)

// Repository is the persistence contract for payment records. Status
// transitions go through the conditional Complete/Fail methods, which
// report how many rows changed so the ledger can distinguish a won race
// from an already-terminal record.
type Repository interface {
	Create(p *paymentmodel.Payment) error
	GetByTransactionRef(ref string) (*paymentmodel.Payment, error)
	OldestPendingByPhone(phone string) (*paymentmodel.Payment, error)
	CompletePending(ref, receiptNumber string, completedAt time.Time) (int64, error)
	FailPending(ref, reason string) (int64, error)
	ListStalePending(olderThan time.Time, limit int) ([]*paymentmodel.Payment, error)
	List(filter ListFilter) ([]*paymentmodel.Payment, error)
}

// ListFilter narrows payment history queries.
type ListFilter struct {
	MemberID int64
	Category string
	Status   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// Gateway is the outbound push-payment contract.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phoneNumber string, amount decimal.Decimal, accountReference string) (*mpesa.STKPushAck, error)
}

// MemberDirectory resolves payers from the registration subsystem.
type MemberDirectory interface {
	GetByID(id int64) (*membermodel.Member, error)
	GetByPhone(phone string) (*membermodel.Member, error)
}

// Service owns payment initiation: it validates input, submits the push to
// the gateway, and records a PENDING payment only once the gateway has
// accepted the push. A rejected push leaves no record behind.
type Service struct {
	repo          Repository
	gateway       Gateway
	members       MemberDirectory
	accountPrefix string
	logger        *slog.Logger
}

func NewService(repo Repository, gateway Gateway, members MemberDirectory, accountPrefix string, logger *slog.Logger) *Service {
	if accountPrefix == "" {
		accountPrefix = "MMUSDA"
	}
	return &Service{
		repo:          repo,
		gateway:       gateway,
		members:       members,
		accountPrefix: accountPrefix,
		logger:        logger,
	}
}

// Initiate runs the full initiation flow and returns the PENDING payment.
func (s *Service) Initiate(ctx context.Context, req InitiatePaymentRequest) (*paymentmodel.Payment, error) {
	amount, err := req.Validate()
	if err != nil {
		s.logger.Error("payment initiation validation failed", "error", err)
		return nil, err
	}

	member, err := s.resolveMember(req)
	if err != nil {
		return nil, err
	}

	phone, appErr := mpesa.NormalizePhone(member.PhoneNumber)
	if appErr != nil {
		s.logger.Error("member phone number cannot be normalized",
			"member_id", member.ID,
			"error", appErr)
		return nil, appErr
	}

	var subtype *string
	if req.MissionSubtype != "" {
		subtype = &req.MissionSubtype
	}

	accountRef := BuildAccountReference(s.accountPrefix, req.Category, subtype)
	transactionRef := NewTransactionRef()

	s.logger.Info("initiating payment",
		"member_id", member.ID,
		"category", req.Category,
		"amount", amount.String(),
		"transaction_ref", transactionRef,
		"account_ref", accountRef)

	ack, err := s.gateway.InitiateSTKPush(ctx, phone, amount, accountRef)
	if err != nil {
		s.logger.Error("gateway rejected push",
			"member_id", member.ID,
			"transaction_ref", transactionRef,
			"error", err)
		return nil, err
	}

	p := &paymentmodel.Payment{
		MemberID:       member.ID,
		Category:       req.Category,
		MissionSubtype: subtype,
		Amount:         amount,
		PhoneNumber:    phone,
		TransactionRef: transactionRef,
		AccountRef:     accountRef,
		Status:         paymentmodel.StatusPending,
	}
	if ack.MerchantRequestID != "" {
		p.MerchantReqID = &ack.MerchantRequestID
	}

	if err := s.repo.Create(p); err != nil {
		// The push is already in flight; losing the record here means the
		// callback will land as an orphan and needs manual review.
		s.logger.Error("failed to record pending payment after accepted push",
			"transaction_ref", transactionRef,
			"member_id", member.ID,
			"error", err)
		return nil, errors.NewInternalError("failed to record payment", err)
	}

	s.logger.Info("payment recorded as pending",
		"payment_id", p.ID,
		"transaction_ref", transactionRef)

	return p, nil
}

func (s *Service) resolveMember(req InitiatePaymentRequest) (*membermodel.Member, error) {
	if req.MemberID != 0 {
		member, err := s.members.GetByID(req.MemberID)
		if err != nil {
			s.logger.Error("member lookup failed", "member_id", req.MemberID, "error", err)
			return nil, errors.ErrMemberNotFound
		}
		return member, nil
	}

	phone, appErr := mpesa.NormalizePhone(req.PhoneNumber)
	if appErr != nil {
		return nil, appErr
	}
	member, err := s.members.GetByPhone(phone)
	if err != nil {
		s.logger.Error("member lookup by phone failed", "phone_number", phone, "error", err)
		return nil, errors.ErrMemberNotFound
	}
	return member, nil
}

// GetByTransactionRef returns one payment for admin lookup.
func (s *Service) GetByTransactionRef(ref string) (*paymentmodel.Payment, error) {
	p, err := s.repo.GetByTransactionRef(ref)
	if err != nil {
		return nil, errors.ErrPaymentNotFound
	}
	return p, nil
}

// List returns payment history matching the filter.
func (s *Service) List(filter ListFilter) ([]*paymentmodel.Payment, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	return s.repo.List(filter)
}
