package postgres

import (
	"gorm.io/gorm"

	membermodel "github.com/jameskipngetich/paymentService/internal/core/datamodel/member"
	memberpkg "github.com/jameskipngetich/paymentService/internal/member"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{
		db: db,
	}
}

var _ memberpkg.Repository = (*MemberRepository)(nil)

func (r *MemberRepository) GetByID(id int64) (*membermodel.Member, error) {
	var m membermodel.Member
	err := r.db.First(&m, id).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MemberRepository) GetByPhone(phone string) (*membermodel.Member, error) {
	var m membermodel.Member
	err := r.db.Where("phone_number = ?", phone).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}
