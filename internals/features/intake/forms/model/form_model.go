package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultFormTitle       = "Formulario de Informacion Familiar y Vivienda"
	DefaultFormDescription = "Complete cada seccion con informacion clara para evaluar su solicitud de vivienda."
)

type FormModel struct {
	FormID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	FormSlug        string    `gorm:"column:slug;type:varchar(160);not null;uniqueIndex:uq_assessment_forms_slug" json:"slug"`
	FormTitle       string    `gorm:"column:title;type:text;not null" json:"title"`
	FormDescription string    `gorm:"column:description;type:text" json:"description"`
	FormIsActive    bool      `gorm:"column:is_active;not null" json:"is_active"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (FormModel) TableName() string { return "assessment_forms" }

func (m *FormModel) BeforeCreate(tx *gorm.DB) error {
	if m.FormID == uuid.Nil {
		m.FormID = uuid.New()
	}
	return nil
}

// NewDefaultForm builds an active form with the platform title and description.
func NewDefaultForm(slug string) *FormModel {
	return &FormModel{
		FormID:          uuid.New(),
		FormSlug:        slug,
		FormTitle:       DefaultFormTitle,
		FormDescription: DefaultFormDescription,
		FormIsActive:    true,
	}
}
