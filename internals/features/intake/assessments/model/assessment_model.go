package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	fmodel "vivienda_backend/internals/features/intake/forms/model"
)

type AssessmentStatus string

const (
	StatusSubmitted   AssessmentStatus = "submitted"
	StatusUnderReview AssessmentStatus = "under_review"
	StatusApproved    AssessmentStatus = "approved"
	StatusDenied      AssessmentStatus = "denied"
	StatusWaitlisted  AssessmentStatus = "waitlisted"
)

var statusLabels = map[AssessmentStatus]string{
	StatusSubmitted:   "Pendiente",
	StatusUnderReview: "En revisión",
	StatusApproved:    "Aprobado",
	StatusDenied:      "Denegado",
	StatusWaitlisted:  "Lista de espera",
}

func (s AssessmentStatus) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label is the display text; unknown statuses read "Sin estado".
func (s AssessmentStatus) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return "Sin estado"
}

// NormalizeStatus lowercases, joins spaces with "_" and falls back to submitted.
func NormalizeStatus(raw string) AssessmentStatus {
	s := strings.Join(strings.Fields(strings.ToLower(raw)), "_")
	st := AssessmentStatus(s)
	if st.Valid() {
		return st
	}
	return StatusSubmitted
}

type AssessmentModel struct {
	AssessmentID          uuid.UUID        `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AssessmentApplicantID uuid.UUID        `gorm:"column:applicant_id;type:uuid;not null;index" json:"applicant_id"`
	AssessmentFormID      uuid.UUID        `gorm:"column:form_id;type:uuid;not null;index" json:"form_id"`
	AssessmentStatus      AssessmentStatus `gorm:"column:status;type:varchar(24);not null;index" json:"status"`
	AssessmentTotalScore  *float64         `gorm:"column:total_score;type:numeric(10,2)" json:"total_score"`
	AssessmentSubmittedAt *time.Time       `gorm:"column:submitted_at;index" json:"submitted_at"`
	AssessmentReviewedAt  *time.Time       `gorm:"column:reviewed_at" json:"reviewed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Applicant *ApplicantModel   `gorm:"foreignKey:AssessmentApplicantID;references:ApplicantID;constraint:OnDelete:RESTRICT" json:"-"`
	Form      *fmodel.FormModel `gorm:"foreignKey:AssessmentFormID;references:FormID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (AssessmentModel) TableName() string { return "assessments" }

func (m *AssessmentModel) BeforeCreate(tx *gorm.DB) error {
	if m.AssessmentID == uuid.Nil {
		m.AssessmentID = uuid.New()
	}
	return nil
}
