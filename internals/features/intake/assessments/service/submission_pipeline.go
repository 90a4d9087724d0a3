package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
	fservice "vivienda_backend/internals/features/intake/forms/service"
	"vivienda_backend/internals/features/intake/store"
	"vivienda_backend/internals/helpers/filestore"
	helper "vivienda_backend/internals/helpers"
	"vivienda_backend/internals/metrics"
)

var (
	ErrNoActiveQuestions = errors.New("no active questions for this form")
	ErrPersistence       = errors.New("could not save the submission")
)

const defaultUploadConcurrency = 4

type UploadedFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// SubmissionInput carries the raw public form: Values and Files are keyed
// by question key.
type SubmissionInput struct {
	FormSlug string
	Values   map[string]string
	Files    map[string]*UploadedFile
}

type SubmissionResult struct {
	AssessmentID uuid.UUID
	ApplicantID  uuid.UUID
	FormSlug     string
	Status       amodel.AssessmentStatus
	SubmittedAt  time.Time
	AnswersCount int
}

type SubmissionService struct {
	Store   store.Store
	Schema  *fservice.SchemaEngine
	Files   filestore.FileStore
	Bucket  string
	Log     *logrus.Logger
	Metrics *metrics.Metrics

	UploadConcurrency int
	Now               func() time.Time
}

func NewSubmissionService(st store.Store, schema *fservice.SchemaEngine, files filestore.FileStore, bucket string, log *logrus.Logger, m *metrics.Metrics) *SubmissionService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SubmissionService{
		Store:             st,
		Schema:            schema,
		Files:             files,
		Bucket:            bucket,
		Log:               log,
		Metrics:           m,
		UploadConcurrency: defaultUploadConcurrency,
		Now:               func() time.Time { return time.Now().UTC() },
	}
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

type pendingAnswer struct {
	question fmodel.Question
	value    amodel.AnswerValue
	file     *UploadedFile
}

/* =========================================================
   Submit
========================================================= */

// Submit stores one public submission. Field errors come back together as
// a *helper.ValidationError and leave nothing behind; failures after the
// applicant exists are compensated and reported as ErrPersistence.
func (s *SubmissionService) Submit(ctx context.Context, in SubmissionInput) (*SubmissionResult, error) {
	if strings.TrimSpace(in.FormSlug) == "" {
		s.Metrics.SubmissionResult(metrics.ResultRejected)
		return nil, helper.NewValidationError("form_slug", "Formulario invalido.")
	}

	form, err := s.Schema.GetOrCreateFormBySlug(ctx, in.FormSlug)
	if err != nil {
		return nil, s.fail(persistenceError(err))
	}
	if _, err := s.Schema.SeedTemplateQuestionsIfEmpty(ctx, form.FormID); err != nil {
		return nil, s.fail(persistenceError(err))
	}
	questions, err := s.Schema.FetchFormQuestions(ctx, form.FormID)
	if err != nil {
		return nil, s.fail(persistenceError(err))
	}
	if len(questions) == 0 {
		s.Metrics.SubmissionResult(metrics.ResultRejected)
		return nil, ErrNoActiveQuestions
	}

	log := s.Log.WithField("form_slug", form.FormSlug)
	now := s.Now()

	applicant := amodel.NewPendingApplicant()
	if err := s.Store.InsertApplicant(ctx, applicant); err != nil {
		return nil, s.fail(persistenceError(err))
	}
	assessment := &amodel.AssessmentModel{
		AssessmentID:          uuid.New(),
		AssessmentApplicantID: applicant.ApplicantID,
		AssessmentFormID:      form.FormID,
		AssessmentStatus:      amodel.StatusSubmitted,
		AssessmentSubmittedAt: &now,
	}
	if err := s.Store.InsertAssessment(ctx, assessment); err != nil {
		s.compensate(log, assessment.AssessmentID, applicant.ApplicantID, nil, false)
		return nil, s.fail(persistenceError(err))
	}
	log = log.WithField("assessment_id", assessment.AssessmentID)

	pending, verr := collectAnswers(questions, in)
	if verr != nil {
		s.compensate(log, assessment.AssessmentID, applicant.ApplicantID, nil, true)
		s.Metrics.SubmissionResult(metrics.ResultRejected)
		return nil, verr
	}

	uploaded, err := s.uploadFiles(ctx, form.FormSlug, assessment.AssessmentID, pending, now)
	if err != nil {
		s.compensate(log, assessment.AssessmentID, applicant.ApplicantID, uploaded, true)
		return nil, s.fail(persistenceError(err))
	}

	rows := make([]amodel.AnswerModel, 0, len(pending))
	byKey := make(map[string]amodel.AnswerValue, len(pending))
	for _, p := range pending {
		if p.value.IsEmpty() {
			continue
		}
		rows = append(rows, newAnswerRow(assessment.AssessmentID, p.question.QuestionID, p.value))
		byKey[p.question.QuestionKey] = p.value
	}
	if len(rows) > 0 {
		if err := s.Store.InsertAnswers(ctx, rows); err != nil {
			s.compensate(log, assessment.AssessmentID, applicant.ApplicantID, uploaded, true)
			return nil, s.fail(persistenceError(err))
		}
	}

	deriveApplicant(applicant, byKey)
	if err := s.Store.UpdateApplicant(ctx, applicant); err != nil {
		s.compensate(log, assessment.AssessmentID, applicant.ApplicantID, uploaded, true)
		return nil, s.fail(persistenceError(err))
	}

	s.appendSubmittedHistory(ctx, log, assessment.AssessmentID, len(rows), form.FormSlug, now)

	s.Metrics.SubmissionResult(metrics.ResultCreated)
	log.WithField("answers", len(rows)).Info("✅ submission stored")
	return &SubmissionResult{
		AssessmentID: assessment.AssessmentID,
		ApplicantID:  applicant.ApplicantID,
		FormSlug:     form.FormSlug,
		Status:       assessment.AssessmentStatus,
		SubmittedAt:  now,
		AnswersCount: len(rows),
	}, nil
}

func (s *SubmissionService) fail(err error) error {
	s.Metrics.SubmissionResult(metrics.ResultFailed)
	return err
}

// collectAnswers validates every active question and returns all field
// errors at once.
func collectAnswers(questions []fmodel.Question, in SubmissionInput) ([]pendingAnswer, error) {
	verr := &helper.ValidationError{}
	out := make([]pendingAnswer, 0, len(questions))
	for _, q := range questions {
		res := validateSubmissionField(q, in.Values[q.QuestionKey], in.Files[q.QuestionKey])
		if res.Err != "" {
			verr.Add(q.QuestionKey, res.Err)
			continue
		}
		if !res.HasValue {
			continue
		}
		out = append(out, pendingAnswer{question: q, value: res.Value, file: res.File})
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// uploadFiles stores every file answer in parallel and fills in its
// locator. It returns the locators written so far even on error.
func (s *SubmissionService) uploadFiles(ctx context.Context, formSlug string, assessmentID uuid.UUID, pending []pendingAnswer, now time.Time) ([]string, error) {
	var (
		mu       sync.Mutex
		uploaded []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, s.UploadConcurrency))

	for i := range pending {
		p := &pending[i]
		if p.file == nil {
			continue
		}
		path := fmt.Sprintf("%s/%s/%s-%d-%s", formSlug, assessmentID, p.question.QuestionKey, now.UnixMilli(), helper.SafeFileName(p.file.FileName))
		g.Go(func() error {
			ct := p.file.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			loc, err := s.Files.Put(gctx, s.Bucket, path, p.file.Data, ct)
			s.Metrics.Upload(err == nil)
			if err != nil {
				return fmt.Errorf("upload %s: %w", p.question.QuestionKey, err)
			}
			p.value = amodel.AnswerValue{Text: ptr(loc)}
			mu.Lock()
			uploaded = append(uploaded, loc)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return uploaded, err
}

// deriveApplicant fills the applicant row from the well-known answers.
func deriveApplicant(a *amodel.ApplicantModel, byKey map[string]amodel.AnswerValue) {
	name := questionText(byKey, KeyHeadOfHousehold)
	if name == "" {
		name = questionText(byKey, KeySignatureName)
	}
	if name == "" {
		name = amodel.DefaultApplicantName
	}
	a.ApplicantFullName = name

	phone := questionText(byKey, KeyPhone)
	if phone == "" {
		phone = amodel.DefaultPhone
	}
	a.ApplicantPhone = &phone

	a.ApplicantHouseholdSize = nil
	if v, ok := byKey[KeyHouseholdSize]; ok {
		n := v.Number
		if n == nil && v.Text != nil {
			n = helper.ParseNullableNumber(*v.Text)
		}
		a.ApplicantHouseholdSize = helper.NullableRoundedInt(n)
	}

	a.ApplicantNationalID = nil
	if id := questionText(byKey, KeyNationalID); id != "" {
		a.ApplicantNationalID = &id
	}

	parts := make([]string, len(AddressKeys))
	for i, k := range AddressKeys {
		parts[i] = questionText(byKey, k)
	}
	a.ApplicantCurrentLocation = composeLocation(parts...)
}

func (s *SubmissionService) appendSubmittedHistory(ctx context.Context, log *logrus.Entry, assessmentID uuid.UUID, answers int, formSlug string, at time.Time) {
	notes, _ := sonic.Marshal(map[string]any{"answers_count": answers, "form_slug": formSlug})
	h := &amodel.StatusHistoryModel{
		HistoryID:           uuid.New(),
		HistoryAssessmentID: assessmentID,
		HistoryToStatus:     amodel.StatusSubmitted,
		HistoryNotes:        datatypes.JSON(notes),
		HistoryChangedAt:    at,
	}
	if err := s.Store.InsertStatusHistory(ctx, h); err != nil {
		log.WithError(err).Warn("[Submission] status history not written")
	}
}

// compensate undoes a half-written submission. It runs on a context of its
// own so a cancelled request still cleans up.
func (s *SubmissionService) compensate(log *logrus.Entry, assessmentID, applicantID uuid.UUID, locators []string, assessmentCreated bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Metrics.Compensated()

	for _, loc := range locators {
		if err := s.Files.Delete(ctx, loc); err != nil {
			log.WithError(err).WithField("locator", loc).Warn("[Submission] compensation: file not deleted")
		}
	}
	if assessmentCreated {
		if err := s.Store.DeleteStatusHistoryByAssessment(ctx, assessmentID); err != nil {
			log.WithError(err).Warn("[Submission] compensation: history not deleted")
		}
		if err := s.Store.DeleteAnswersByAssessment(ctx, assessmentID); err != nil {
			log.WithError(err).Warn("[Submission] compensation: answers not deleted")
		}
		if err := s.Store.DeleteAssessment(ctx, assessmentID); err != nil && !store.IsNotFound(err) {
			log.WithError(err).Error("[Submission] compensation: assessment not deleted")
		}
	}
	if err := s.Store.DeleteApplicant(ctx, applicantID); err != nil && !store.IsNotFound(err) {
		// the orphan sweeper picks it up later
		log.WithError(err).WithField("applicant_id", applicantID).Error("[Submission] compensation: applicant not deleted")
	}
}
