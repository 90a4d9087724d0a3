package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PendingPlaceholder   = "Pendiente"
	DefaultApplicantName = "Solicitante"
	DefaultPhone         = "No registrado"
)

type ApplicantModel struct {
	ApplicantID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ApplicantFullName        string    `gorm:"column:full_name;type:text;not null" json:"full_name"`
	ApplicantPhone           *string   `gorm:"column:phone;type:varchar(64)" json:"phone"`
	ApplicantNationalID      *string   `gorm:"column:national_id;type:varchar(64)" json:"national_id"`
	ApplicantHouseholdSize   *int      `gorm:"column:household_size" json:"household_size"`
	ApplicantCurrentLocation *string   `gorm:"column:current_location;type:text" json:"current_location"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ApplicantModel) TableName() string { return "applicants" }

func (m *ApplicantModel) BeforeCreate(tx *gorm.DB) error {
	if m.ApplicantID == uuid.Nil {
		m.ApplicantID = uuid.New()
	}
	return nil
}

// NewPendingApplicant is the placeholder row a submission starts from.
func NewPendingApplicant() *ApplicantModel {
	p := PendingPlaceholder
	return &ApplicantModel{
		ApplicantID:       uuid.New(),
		ApplicantFullName: PendingPlaceholder,
		ApplicantPhone:    &p,
	}
}
