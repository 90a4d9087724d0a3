package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
	helper "vivienda_backend/internals/helpers"
)

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func wrap(op, table string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case helper.IsUniqueViolation(err):
		return &ConflictError{Kind: ConflictUnique, Table: table, Err: err}
	case helper.IsForeignKeyViolation(err):
		return &ConflictError{Kind: ConflictForeignKey, Table: table, Err: err}
	}
	return &StoreError{Op: op, Err: err}
}

func (s *GormStore) q(ctx context.Context) *gorm.DB { return s.DB.WithContext(ctx) }

func (s *GormStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	return s.q(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{DB: tx})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return wrap("ping", "", sqlDB.PingContext(ctx))
}

/* =========================================================
   Forms
========================================================= */

func (s *GormStore) FindFormBySlug(ctx context.Context, slug string) (*fmodel.FormModel, error) {
	var m fmodel.FormModel
	if err := s.q(ctx).Where("slug = ?", slug).Take(&m).Error; err != nil {
		return nil, wrap("find form by slug", "assessment_forms", err)
	}
	return &m, nil
}

func (s *GormStore) FindFormByID(ctx context.Context, id uuid.UUID) (*fmodel.FormModel, error) {
	var m fmodel.FormModel
	if err := s.q(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, wrap("find form", "assessment_forms", err)
	}
	return &m, nil
}

func (s *GormStore) ListFormsByIDs(ctx context.Context, ids []uuid.UUID) ([]fmodel.FormModel, error) {
	var rows []fmodel.FormModel
	if len(ids) == 0 {
		return rows, nil
	}
	if err := s.q(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, wrap("list forms", "assessment_forms", err)
	}
	return rows, nil
}

func (s *GormStore) InsertForm(ctx context.Context, form *fmodel.FormModel) error {
	return wrap("insert form", "assessment_forms", s.q(ctx).Create(form).Error)
}

/* =========================================================
   Questions & options
========================================================= */

func (s *GormStore) CountQuestions(ctx context.Context, formID uuid.UUID) (int64, error) {
	var n int64
	err := s.q(ctx).Model(&fmodel.QuestionModel{}).Where("form_id = ?", formID).Count(&n).Error
	return n, wrap("count questions", "assessment_questions", err)
}

func (s *GormStore) FindQuestion(ctx context.Context, id uuid.UUID) (*fmodel.QuestionModel, error) {
	var m fmodel.QuestionModel
	if err := s.q(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, wrap("find question", "assessment_questions", err)
	}
	return &m, nil
}

func (s *GormStore) ListQuestions(ctx context.Context, f QuestionFilter) ([]fmodel.QuestionModel, error) {
	db := s.q(ctx).Where("form_id = ?", f.FormID)
	if f.ActiveOnly {
		db = db.Where("is_active = ?", true)
	}
	if len(f.Keys) > 0 {
		db = db.Where("question_key IN ?", f.Keys)
	}
	var rows []fmodel.QuestionModel
	if err := db.Order("order_index ASC").Find(&rows).Error; err != nil {
		return nil, wrap("list questions", "assessment_questions", err)
	}
	return rows, nil
}

func (s *GormStore) QuestionKeyExists(ctx context.Context, formID uuid.UUID, key string) (bool, error) {
	var n int64
	err := s.q(ctx).Model(&fmodel.QuestionModel{}).
		Where("form_id = ? AND question_key = ?", formID, key).
		Count(&n).Error
	return n > 0, wrap("probe question key", "assessment_questions", err)
}

func (s *GormStore) MaxQuestionOrder(ctx context.Context, formID uuid.UUID) (int, error) {
	var maxOrder int
	err := s.q(ctx).Model(&fmodel.QuestionModel{}).
		Where("form_id = ?", formID).
		Select("COALESCE(MAX(order_index), 0)").
		Scan(&maxOrder).Error
	return maxOrder, wrap("max question order", "assessment_questions", err)
}

func (s *GormStore) InsertQuestion(ctx context.Context, q *fmodel.QuestionModel) error {
	return wrap("insert question", "assessment_questions", s.q(ctx).Omit(clause.Associations).Create(q).Error)
}

func (s *GormStore) UpdateQuestion(ctx context.Context, id uuid.UUID, p QuestionPatch) error {
	set := map[string]any{}
	if p.Label != nil {
		set["label"] = *p.Label
	}
	if p.InputType != nil {
		set["input_type"] = *p.InputType
	}
	if p.IsRequired != nil {
		set["is_required"] = *p.IsRequired
	}
	if p.HelpText != nil {
		set["help_text"] = *p.HelpText
	}
	if p.OrderIndex != nil {
		set["order_index"] = *p.OrderIndex
	}
	if p.IsActive != nil {
		set["is_active"] = *p.IsActive
	}
	if len(set) == 0 {
		return nil
	}
	res := s.q(ctx).Model(&fmodel.QuestionModel{}).Where("id = ?", id).Updates(set)
	if res.Error != nil {
		return wrap("update question", "assessment_questions", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	return wrap("delete question", "assessment_questions",
		s.q(ctx).Where("id = ?", id).Delete(&fmodel.QuestionModel{}).Error)
}

func (s *GormStore) ListOptions(ctx context.Context, questionIDs []uuid.UUID) ([]fmodel.OptionModel, error) {
	var rows []fmodel.OptionModel
	if len(questionIDs) == 0 {
		return rows, nil
	}
	err := s.q(ctx).Where("question_id IN ?", questionIDs).
		Order("order_index ASC").
		Find(&rows).Error
	return rows, wrap("list options", "assessment_question_options", err)
}

func (s *GormStore) InsertOptions(ctx context.Context, opts []fmodel.OptionModel) error {
	if len(opts) == 0 {
		return nil
	}
	return wrap("insert options", "assessment_question_options", s.q(ctx).Omit(clause.Associations).Create(&opts).Error)
}

func (s *GormStore) DeleteOptionsByQuestion(ctx context.Context, questionID uuid.UUID) error {
	return wrap("delete options", "assessment_question_options",
		s.q(ctx).Where("question_id = ?", questionID).Delete(&fmodel.OptionModel{}).Error)
}

/* =========================================================
   Applicants
========================================================= */

func (s *GormStore) InsertApplicant(ctx context.Context, a *amodel.ApplicantModel) error {
	return wrap("insert applicant", "applicants", s.q(ctx).Create(a).Error)
}

func (s *GormStore) FindApplicant(ctx context.Context, id uuid.UUID) (*amodel.ApplicantModel, error) {
	var m amodel.ApplicantModel
	if err := s.q(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, wrap("find applicant", "applicants", err)
	}
	return &m, nil
}

func (s *GormStore) ListApplicantsByIDs(ctx context.Context, ids []uuid.UUID) ([]amodel.ApplicantModel, error) {
	var rows []amodel.ApplicantModel
	if len(ids) == 0 {
		return rows, nil
	}
	err := s.q(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, wrap("list applicants", "applicants", err)
}

func (s *GormStore) UpdateApplicant(ctx context.Context, a *amodel.ApplicantModel) error {
	res := s.q(ctx).Model(&amodel.ApplicantModel{}).Where("id = ?", a.ApplicantID).Updates(map[string]any{
		"full_name":        a.ApplicantFullName,
		"phone":            a.ApplicantPhone,
		"national_id":      a.ApplicantNationalID,
		"household_size":   a.ApplicantHouseholdSize,
		"current_location": a.ApplicantCurrentLocation,
	})
	if res.Error != nil {
		return wrap("update applicant", "applicants", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteApplicant(ctx context.Context, id uuid.UUID) error {
	return wrap("delete applicant", "applicants",
		s.q(ctx).Where("id = ?", id).Delete(&amodel.ApplicantModel{}).Error)
}

func (s *GormStore) ListOrphanApplicantIDs(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.q(ctx).Model(&amodel.ApplicantModel{}).
		Where("created_at < ?", createdBefore).
		Where("NOT EXISTS (SELECT 1 FROM assessments s WHERE s.applicant_id = applicants.id)").
		Pluck("id", &ids).Error
	return ids, wrap("list orphan applicants", "applicants", err)
}

/* =========================================================
   Assessments
========================================================= */

func (s *GormStore) InsertAssessment(ctx context.Context, a *amodel.AssessmentModel) error {
	return wrap("insert assessment", "assessments", s.q(ctx).Omit(clause.Associations).Create(a).Error)
}

func (s *GormStore) FindAssessment(ctx context.Context, id uuid.UUID) (*amodel.AssessmentModel, error) {
	var m amodel.AssessmentModel
	if err := s.q(ctx).Where("id = ?", id).Take(&m).Error; err != nil {
		return nil, wrap("find assessment", "assessments", err)
	}
	return &m, nil
}

func (s *GormStore) ListAssessments(ctx context.Context, f AssessmentFilter) ([]amodel.AssessmentModel, int64, error) {
	db := s.q(ctx).Model(&amodel.AssessmentModel{})
	if f.Year != nil {
		from := time.Date(*f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		db = db.Where("submitted_at >= ? AND submitted_at < ?", from, from.AddDate(1, 0, 0))
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, wrap("count assessments", "assessments", err)
	}

	var rows []amodel.AssessmentModel
	q := db.Order("submitted_at DESC").Order("id ASC").Offset(f.Offset)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, wrap("list assessments", "assessments", err)
	}
	return rows, total, nil
}

func (s *GormStore) CountAssessmentsByApplicant(ctx context.Context, applicantID uuid.UUID) (int64, error) {
	var n int64
	err := s.q(ctx).Model(&amodel.AssessmentModel{}).Where("applicant_id = ?", applicantID).Count(&n).Error
	return n, wrap("count assessments", "assessments", err)
}

func (s *GormStore) UpdateAssessment(ctx context.Context, a *amodel.AssessmentModel) error {
	res := s.q(ctx).Model(&amodel.AssessmentModel{}).Where("id = ?", a.AssessmentID).Updates(map[string]any{
		"status":       a.AssessmentStatus,
		"total_score":  a.AssessmentTotalScore,
		"submitted_at": a.AssessmentSubmittedAt,
		"reviewed_at":  a.AssessmentReviewedAt,
	})
	if res.Error != nil {
		return wrap("update assessment", "assessments", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteAssessment(ctx context.Context, id uuid.UUID) error {
	return wrap("delete assessment", "assessments",
		s.q(ctx).Where("id = ?", id).Delete(&amodel.AssessmentModel{}).Error)
}

/* =========================================================
   Answers & history
========================================================= */

func (s *GormStore) ListAnswers(ctx context.Context, f AnswerFilter) ([]amodel.AnswerModel, error) {
	var rows []amodel.AnswerModel
	if len(f.AssessmentIDs) == 0 {
		return rows, nil
	}
	db := s.q(ctx).Where("assessment_id IN ?", f.AssessmentIDs)
	if f.QuestionIDs != nil {
		if len(f.QuestionIDs) == 0 {
			return rows, nil
		}
		db = db.Where("question_id IN ?", f.QuestionIDs)
	}
	err := db.Order("created_at ASC").Find(&rows).Error
	return rows, wrap("list answers", "assessment_answers", err)
}

func (s *GormStore) InsertAnswers(ctx context.Context, rows []amodel.AnswerModel) error {
	if len(rows) == 0 {
		return nil
	}
	return wrap("insert answers", "assessment_answers", s.q(ctx).Omit(clause.Associations).Create(&rows).Error)
}

func (s *GormStore) UpdateAnswer(ctx context.Context, id uuid.UUID, v amodel.AnswerValue) error {
	res := s.q(ctx).Model(&amodel.AnswerModel{}).Where("id = ?", id).Updates(map[string]any{
		"option_id":      v.OptionID,
		"answer_text":    v.Text,
		"answer_number":  v.Number,
		"answer_boolean": v.Boolean,
	})
	if res.Error != nil {
		return wrap("update answer", "assessment_answers", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteAnswer(ctx context.Context, id uuid.UUID) error {
	return wrap("delete answer", "assessment_answers",
		s.q(ctx).Where("id = ?", id).Delete(&amodel.AnswerModel{}).Error)
}

func (s *GormStore) DeleteAnswersByAssessment(ctx context.Context, assessmentID uuid.UUID) error {
	return wrap("delete answers", "assessment_answers",
		s.q(ctx).Where("assessment_id = ?", assessmentID).Delete(&amodel.AnswerModel{}).Error)
}

func (s *GormStore) InsertStatusHistory(ctx context.Context, h *amodel.StatusHistoryModel) error {
	return wrap("insert status history", "assessment_status_history", s.q(ctx).Omit(clause.Associations).Create(h).Error)
}

func (s *GormStore) ListStatusHistory(ctx context.Context, assessmentID uuid.UUID) ([]amodel.StatusHistoryModel, error) {
	var rows []amodel.StatusHistoryModel
	err := s.q(ctx).Where("assessment_id = ?", assessmentID).Order("changed_at ASC").Find(&rows).Error
	return rows, wrap("list status history", "assessment_status_history", err)
}

func (s *GormStore) DeleteStatusHistoryByAssessment(ctx context.Context, assessmentID uuid.UUID) error {
	return wrap("delete status history", "assessment_status_history",
		s.q(ctx).Where("assessment_id = ?", assessmentID).Delete(&amodel.StatusHistoryModel{}).Error)
}

var _ Store = (*GormStore)(nil)
