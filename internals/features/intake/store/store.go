// Package store is the row-level persistence contract used by the intake
// engines, with a GORM adapter for Postgres/SQLite and an in-memory adapter.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
)

var ErrNotFound = errors.New("store: record not found")

type ConflictKind string

const (
	ConflictUnique     ConflictKind = "unique"
	ConflictForeignKey ConflictKind = "foreign_key"
)

// ConflictError is a unique or foreign-key violation reported by the store.
type ConflictError struct {
	Kind  ConflictKind
	Table string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: %s conflict on %s: %v", e.Kind, e.Table, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// StoreError is any other persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

func IsConflict(err error, kind ConflictKind) bool {
	var ce *ConflictError
	return errors.As(err, &ce) && ce.Kind == kind
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

type QuestionFilter struct {
	FormID     uuid.UUID
	ActiveOnly bool
	Keys       []string
}

// QuestionPatch updates only the non-nil fields.
type QuestionPatch struct {
	Label      *string
	InputType  *fmodel.InputType
	IsRequired *bool
	HelpText   *string
	OrderIndex *int
	IsActive   *bool
}

type AnswerFilter struct {
	AssessmentIDs []uuid.UUID
	QuestionIDs   []uuid.UUID
}

type AssessmentFilter struct {
	Year   *int
	Status *amodel.AssessmentStatus
	Offset int
	Limit  int
}

// Store is the transactional row store behind the form schema and the
// submissions. Lookups return ErrNotFound; constraint violations come back
// as *ConflictError and everything else as *StoreError.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error

	FindFormBySlug(ctx context.Context, slug string) (*fmodel.FormModel, error)
	FindFormByID(ctx context.Context, id uuid.UUID) (*fmodel.FormModel, error)
	ListFormsByIDs(ctx context.Context, ids []uuid.UUID) ([]fmodel.FormModel, error)
	InsertForm(ctx context.Context, form *fmodel.FormModel) error

	CountQuestions(ctx context.Context, formID uuid.UUID) (int64, error)
	FindQuestion(ctx context.Context, id uuid.UUID) (*fmodel.QuestionModel, error)
	ListQuestions(ctx context.Context, f QuestionFilter) ([]fmodel.QuestionModel, error)
	QuestionKeyExists(ctx context.Context, formID uuid.UUID, key string) (bool, error)
	MaxQuestionOrder(ctx context.Context, formID uuid.UUID) (int, error)
	InsertQuestion(ctx context.Context, q *fmodel.QuestionModel) error
	UpdateQuestion(ctx context.Context, id uuid.UUID, patch QuestionPatch) error
	DeleteQuestion(ctx context.Context, id uuid.UUID) error

	ListOptions(ctx context.Context, questionIDs []uuid.UUID) ([]fmodel.OptionModel, error)
	InsertOptions(ctx context.Context, opts []fmodel.OptionModel) error
	DeleteOptionsByQuestion(ctx context.Context, questionID uuid.UUID) error

	InsertApplicant(ctx context.Context, a *amodel.ApplicantModel) error
	FindApplicant(ctx context.Context, id uuid.UUID) (*amodel.ApplicantModel, error)
	ListApplicantsByIDs(ctx context.Context, ids []uuid.UUID) ([]amodel.ApplicantModel, error)
	UpdateApplicant(ctx context.Context, a *amodel.ApplicantModel) error
	DeleteApplicant(ctx context.Context, id uuid.UUID) error
	ListOrphanApplicantIDs(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error)

	InsertAssessment(ctx context.Context, a *amodel.AssessmentModel) error
	FindAssessment(ctx context.Context, id uuid.UUID) (*amodel.AssessmentModel, error)
	ListAssessments(ctx context.Context, f AssessmentFilter) ([]amodel.AssessmentModel, int64, error)
	CountAssessmentsByApplicant(ctx context.Context, applicantID uuid.UUID) (int64, error)
	UpdateAssessment(ctx context.Context, a *amodel.AssessmentModel) error
	DeleteAssessment(ctx context.Context, id uuid.UUID) error

	ListAnswers(ctx context.Context, f AnswerFilter) ([]amodel.AnswerModel, error)
	InsertAnswers(ctx context.Context, rows []amodel.AnswerModel) error
	UpdateAnswer(ctx context.Context, id uuid.UUID, v amodel.AnswerValue) error
	DeleteAnswer(ctx context.Context, id uuid.UUID) error
	DeleteAnswersByAssessment(ctx context.Context, assessmentID uuid.UUID) error

	InsertStatusHistory(ctx context.Context, h *amodel.StatusHistoryModel) error
	ListStatusHistory(ctx context.Context, assessmentID uuid.UUID) ([]amodel.StatusHistoryModel, error)
	DeleteStatusHistoryByAssessment(ctx context.Context, assessmentID uuid.UUID) error
}

// AllModels lists every table in migration order.
func AllModels() []any {
	return []any{
		&fmodel.FormModel{},
		&fmodel.QuestionModel{},
		&fmodel.OptionModel{},
		&amodel.ApplicantModel{},
		&amodel.AssessmentModel{},
		&amodel.AnswerModel{},
		&amodel.StatusHistoryModel{},
	}
}
