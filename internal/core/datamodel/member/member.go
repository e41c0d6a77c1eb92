package member

import "time"

// Member is owned by the registration subsystem; the payment core only
// reads identity and phone number.
type Member struct {
	ID          int64     `gorm:"primaryKey"`
	FirstName   string    `gorm:"column:first_name"`
	LastName    string    `gorm:"column:last_name"`
	Email       string    `gorm:"column:email"`
	PhoneNumber string    `gorm:"column:phone_number;not null;index"`
	FamilyID    *int64    `gorm:"column:family_id"`
	CohortID    *int64    `gorm:"column:cohort_id"`
	IsAMO       bool      `gorm:"column:is_amo;default:false"`
	IsALO       bool      `gorm:"column:is_alo;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt   time.Time `gorm:"column:updated_at;default:now()"`
}

func (Member) TableName() string {
	return "members"
}

type Family struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"column:name;not null"`
	Description string `gorm:"column:description"`
}

func (Family) TableName() string {
	return "families"
}

type Cohort struct {
	ID          int64  `gorm:"primaryKey"`
	Year        int    `gorm:"column:year;not null"`
	Name        string `gorm:"column:name;not null"`
	Description string `gorm:"column:description"`
}

func (Cohort) TableName() string {
	return "cohorts"
}
