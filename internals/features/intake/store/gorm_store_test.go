package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(db), mock
}

func TestGormStore_MapsForeignKeyViolation(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "assessment_questions"`).
		WillReturnError(&pgconn.PgError{Code: "23503", Message: "violates foreign key constraint"})

	err := st.DeleteQuestion(context.Background(), uuid.New())

	var ce *ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, ConflictForeignKey, ce.Kind)
	assert.Equal(t, "assessment_questions", ce.Table)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_MapsUniqueViolationFromLibPQ(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE "assessment_answers"`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	text := "x"
	err := st.UpdateAnswer(context.Background(), uuid.New(), amodel.AnswerValue{Text: &text})

	assert.True(t, IsConflict(err, ConflictUnique), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_WrapsOtherFailures(t *testing.T) {
	st, mock := newMockStore(t)
	cause := errors.New("connection reset")
	mock.ExpectExec(`DELETE FROM "applicants"`).WillReturnError(cause)

	err := st.DeleteApplicant(context.Background(), uuid.New())

	var se *StoreError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "delete applicant", se.Op)
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsConflict(err, ConflictUnique))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_EmptyLookupIsNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "assessments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := st.FindAssessment(context.Background(), uuid.New())

	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UpdateWithoutRowsIsNotFound(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE "applicants"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.UpdateApplicant(context.Background(), amodel.NewPendingApplicant())

	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ShortCircuitsEmptyBatches(t *testing.T) {
	st, mock := newMockStore(t)
	ctx := context.Background()

	assert.NoError(t, st.InsertAnswers(ctx, nil))
	assert.NoError(t, st.InsertOptions(ctx, nil))
	rows, err := st.ListAnswers(ctx, AnswerFilter{AssessmentIDs: []uuid.UUID{uuid.New()}, QuestionIDs: []uuid.UUID{}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}
