package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	fmodel "vivienda_backend/internals/features/intake/forms/model"
)

// AnswerModel stores one question's value inside one assessment.
// (assessment_id, question_id) is unique.
type AnswerModel struct {
	AnswerID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AnswerAssessmentID uuid.UUID  `gorm:"column:assessment_id;type:uuid;not null;uniqueIndex:uq_answers_assessment_question,priority:1" json:"assessment_id"`
	AnswerQuestionID   uuid.UUID  `gorm:"column:question_id;type:uuid;not null;uniqueIndex:uq_answers_assessment_question,priority:2;index" json:"question_id"`
	AnswerOptionID     *uuid.UUID `gorm:"column:option_id;type:uuid" json:"option_id"`
	AnswerText         *string    `gorm:"column:answer_text;type:text" json:"answer_text"`
	AnswerNumber       *float64   `gorm:"column:answer_number" json:"answer_number"`
	AnswerBoolean      *bool      `gorm:"column:answer_boolean" json:"answer_boolean"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Assessment *AssessmentModel      `gorm:"foreignKey:AnswerAssessmentID;references:AssessmentID;constraint:OnDelete:CASCADE" json:"-"`
	Question   *fmodel.QuestionModel `gorm:"foreignKey:AnswerQuestionID;references:QuestionID;constraint:OnDelete:RESTRICT" json:"-"`
	Option     *fmodel.OptionModel   `gorm:"foreignKey:AnswerOptionID;references:OptionID;constraint:OnDelete:SET NULL" json:"-"`
}

func (AnswerModel) TableName() string { return "assessment_answers" }

func (m *AnswerModel) BeforeCreate(tx *gorm.DB) error {
	if m.AnswerID == uuid.Nil {
		m.AnswerID = uuid.New()
	}
	return nil
}

// AnswerValue is the polymorphic payload. At most one field is authoritative
// for a given input type; number answers also echo their text.
type AnswerValue struct {
	OptionID *uuid.UUID
	Text     *string
	Number   *float64
	Boolean  *bool
}

func (v AnswerValue) IsEmpty() bool {
	return v.OptionID == nil && v.Text == nil && v.Number == nil && v.Boolean == nil
}

func (m AnswerModel) Value() AnswerValue {
	return AnswerValue{
		OptionID: m.AnswerOptionID,
		Text:     m.AnswerText,
		Number:   m.AnswerNumber,
		Boolean:  m.AnswerBoolean,
	}
}

type StatusHistoryModel struct {
	HistoryID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	HistoryAssessmentID uuid.UUID         `gorm:"column:assessment_id;type:uuid;not null;index" json:"assessment_id"`
	HistoryFromStatus   *AssessmentStatus `gorm:"column:from_status;type:varchar(24)" json:"from_status"`
	HistoryToStatus     AssessmentStatus  `gorm:"column:to_status;type:varchar(24);not null" json:"to_status"`
	HistoryNotes        datatypes.JSON    `gorm:"column:notes" json:"notes"`
	HistoryChangedAt    time.Time         `gorm:"column:changed_at;not null" json:"changed_at"`

	Assessment *AssessmentModel `gorm:"foreignKey:HistoryAssessmentID;references:AssessmentID;constraint:OnDelete:CASCADE" json:"-"`
}

func (StatusHistoryModel) TableName() string { return "assessment_status_history" }

func (m *StatusHistoryModel) BeforeCreate(tx *gorm.DB) error {
	if m.HistoryID == uuid.Nil {
		m.HistoryID = uuid.New()
	}
	if m.HistoryChangedAt.IsZero() {
		m.HistoryChangedAt = time.Now().UTC()
	}
	return nil
}
