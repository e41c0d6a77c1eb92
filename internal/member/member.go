package member

import (
	"log/slog"

	errors "github.com/jameskipngetich/paymentService/internal"
	membermodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/member"
)

// Repository is the read-side contract the payment core needs from the
// registration subsystem. Registration itself (forms, CRUD) lives
// elsewhere.
type Repository interface {
	GetByID(id int64) (*membermodel.Member, error)
	GetByPhone(phone string) (*membermodel.Member, error)
}

// Service exposes member lookups to the payment core.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetByID(id int64) (*membermodel.Member, error) {
	m, err := s.repo.GetByID(id)
	if err != nil {
		s.logger.Debug("member not found", "member_id", id, "error", err)
		return nil, errors.ErrMemberNotFound
	}
	return m, nil
}

func (s *Service) GetByPhone(phone string) (*membermodel.Member, error) {
	m, err := s.repo.GetByPhone(phone)
	if err != nil {
		s.logger.Debug("member not found by phone", "phone_number", phone, "error", err)
		return nil, errors.ErrMemberNotFound
	}
	return m, nil
}
