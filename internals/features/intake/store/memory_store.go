package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
)

// MemoryStore keeps every table in process memory and enforces the same
// unique and foreign-key rules as the migrated schema. Transactions are
// serialized and roll back by restoring a snapshot.
type MemoryStore struct {
	sh   *memShared
	inTx bool
}

type memShared struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	data   *memTables
	faults map[string]error
}

type memTables struct {
	seq         int64
	order       map[uuid.UUID]int64
	forms       map[uuid.UUID]fmodel.FormModel
	questions   map[uuid.UUID]fmodel.QuestionModel
	options     map[uuid.UUID]fmodel.OptionModel
	applicants  map[uuid.UUID]amodel.ApplicantModel
	assessments map[uuid.UUID]amodel.AssessmentModel
	answers     map[uuid.UUID]amodel.AnswerModel
	history     map[uuid.UUID]amodel.StatusHistoryModel
}

func newMemTables() *memTables {
	return &memTables{
		order:       map[uuid.UUID]int64{},
		forms:       map[uuid.UUID]fmodel.FormModel{},
		questions:   map[uuid.UUID]fmodel.QuestionModel{},
		options:     map[uuid.UUID]fmodel.OptionModel{},
		applicants:  map[uuid.UUID]amodel.ApplicantModel{},
		assessments: map[uuid.UUID]amodel.AssessmentModel{},
		answers:     map[uuid.UUID]amodel.AnswerModel{},
		history:     map[uuid.UUID]amodel.StatusHistoryModel{},
	}
}

func (t *memTables) clone() *memTables {
	return &memTables{
		seq:         t.seq,
		order:       maps.Clone(t.order),
		forms:       maps.Clone(t.forms),
		questions:   maps.Clone(t.questions),
		options:     maps.Clone(t.options),
		applicants:  maps.Clone(t.applicants),
		assessments: maps.Clone(t.assessments),
		answers:     maps.Clone(t.answers),
		history:     maps.Clone(t.history),
	}
}

func (t *memTables) track(id uuid.UUID) {
	t.seq++
	t.order[id] = t.seq
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sh: &memShared{data: newMemTables(), faults: map[string]error{}}}
}

// FailNext makes the next call of the named operation return err.
// Operation names match the StoreError ops, e.g. "insert answers".
func (s *MemoryStore) FailNext(op string, err error) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.faults[op] = err
}

func (s *MemoryStore) enter(op string) (*memTables, error) {
	s.sh.mu.Lock()
	if err, ok := s.sh.faults[op]; ok {
		delete(s.sh.faults, op)
		s.sh.mu.Unlock()
		return nil, &StoreError{Op: op, Err: err}
	}
	return s.sh.data, nil
}

func (s *MemoryStore) leave() { s.sh.mu.Unlock() }

func conflict(kind ConflictKind, table, format string, args ...any) error {
	return &ConflictError{Kind: kind, Table: table, Err: fmt.Errorf(format, args...)}
}

// WithTx serializes transactions against each other only. A rollback puts
// back the snapshot taken at the start, dropping any write made meanwhile
// outside a transaction. Tests only, not isolation-safe.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.sh.txMu.Lock()
	defer s.sh.txMu.Unlock()

	s.sh.mu.Lock()
	snapshot := s.sh.data.clone()
	s.sh.mu.Unlock()

	if err := fn(&MemoryStore{sh: s.sh, inTx: true}); err != nil {
		s.sh.mu.Lock()
		s.sh.data = snapshot
		s.sh.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	if _, err := s.enter("ping"); err != nil {
		return err
	}
	s.leave()
	return ctx.Err()
}

/* =========================================================
   Forms
========================================================= */

func (s *MemoryStore) FindFormBySlug(ctx context.Context, slug string) (*fmodel.FormModel, error) {
	t, err := s.enter("find form by slug")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	for _, f := range t.forms {
		if f.FormSlug == slug {
			return &f, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindFormByID(ctx context.Context, id uuid.UUID) (*fmodel.FormModel, error) {
	t, err := s.enter("find form")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	f, ok := t.forms[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (s *MemoryStore) ListFormsByIDs(ctx context.Context, ids []uuid.UUID) ([]fmodel.FormModel, error) {
	t, err := s.enter("list forms")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	out := []fmodel.FormModel{}
	for _, id := range ids {
		if f, ok := t.forms[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemoryStore) InsertForm(ctx context.Context, form *fmodel.FormModel) error {
	t, err := s.enter("insert form")
	if err != nil {
		return err
	}
	defer s.leave()
	for _, f := range t.forms {
		if f.FormSlug == form.FormSlug {
			return conflict(ConflictUnique, "assessment_forms", "duplicate slug %q", form.FormSlug)
		}
	}
	if form.FormID == uuid.Nil {
		form.FormID = uuid.New()
	}
	now := time.Now().UTC()
	form.CreatedAt, form.UpdatedAt = now, now
	t.forms[form.FormID] = *form
	t.track(form.FormID)
	return nil
}

/* =========================================================
   Questions & options
========================================================= */

func (s *MemoryStore) CountQuestions(ctx context.Context, formID uuid.UUID) (int64, error) {
	t, err := s.enter("count questions")
	if err != nil {
		return 0, err
	}
	defer s.leave()
	var n int64
	for _, q := range t.questions {
		if q.QuestionFormID == formID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) FindQuestion(ctx context.Context, id uuid.UUID) (*fmodel.QuestionModel, error) {
	t, err := s.enter("find question")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	q, ok := t.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &q, nil
}

func (s *MemoryStore) ListQuestions(ctx context.Context, f QuestionFilter) ([]fmodel.QuestionModel, error) {
	t, err := s.enter("list questions")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	var keys map[string]struct{}
	if len(f.Keys) > 0 {
		keys = make(map[string]struct{}, len(f.Keys))
		for _, k := range f.Keys {
			keys[k] = struct{}{}
		}
	}
	out := []fmodel.QuestionModel{}
	for _, q := range t.questions {
		if q.QuestionFormID != f.FormID || (f.ActiveOnly && !q.QuestionIsActive) {
			continue
		}
		if keys != nil {
			if _, ok := keys[q.QuestionKey]; !ok {
				continue
			}
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionOrderIndex < out[j].QuestionOrderIndex })
	return out, nil
}

func (s *MemoryStore) QuestionKeyExists(ctx context.Context, formID uuid.UUID, key string) (bool, error) {
	t, err := s.enter("probe question key")
	if err != nil {
		return false, err
	}
	defer s.leave()
	for _, q := range t.questions {
		if q.QuestionFormID == formID && q.QuestionKey == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) MaxQuestionOrder(ctx context.Context, formID uuid.UUID) (int, error) {
	t, err := s.enter("max question order")
	if err != nil {
		return 0, err
	}
	defer s.leave()
	maxOrder := 0
	for _, q := range t.questions {
		if q.QuestionFormID == formID && q.QuestionOrderIndex > maxOrder {
			maxOrder = q.QuestionOrderIndex
		}
	}
	return maxOrder, nil
}

func (t *memTables) orderTaken(formID, except uuid.UUID, order int) bool {
	for _, q := range t.questions {
		if q.QuestionID != except && q.QuestionFormID == formID && q.QuestionOrderIndex == order {
			return true
		}
	}
	return false
}

func (s *MemoryStore) InsertQuestion(ctx context.Context, q *fmodel.QuestionModel) error {
	t, err := s.enter("insert question")
	if err != nil {
		return err
	}
	defer s.leave()
	if _, ok := t.forms[q.QuestionFormID]; !ok {
		return conflict(ConflictForeignKey, "assessment_questions", "form %s does not exist", q.QuestionFormID)
	}
	for _, other := range t.questions {
		if other.QuestionFormID == q.QuestionFormID && other.QuestionKey == q.QuestionKey {
			return conflict(ConflictUnique, "assessment_questions", "duplicate key %q", q.QuestionKey)
		}
	}
	if t.orderTaken(q.QuestionFormID, uuid.Nil, q.QuestionOrderIndex) {
		return conflict(ConflictUnique, "assessment_questions", "duplicate order_index %d", q.QuestionOrderIndex)
	}
	if q.QuestionID == uuid.Nil {
		q.QuestionID = uuid.New()
	}
	now := time.Now().UTC()
	q.CreatedAt, q.UpdatedAt = now, now
	row := *q
	row.Form = nil
	t.questions[q.QuestionID] = row
	t.track(q.QuestionID)
	return nil
}

func (s *MemoryStore) UpdateQuestion(ctx context.Context, id uuid.UUID, p QuestionPatch) error {
	t, err := s.enter("update question")
	if err != nil {
		return err
	}
	defer s.leave()
	q, ok := t.questions[id]
	if !ok {
		return ErrNotFound
	}
	if p.OrderIndex != nil && *p.OrderIndex != q.QuestionOrderIndex &&
		t.orderTaken(q.QuestionFormID, id, *p.OrderIndex) {
		return conflict(ConflictUnique, "assessment_questions", "duplicate order_index %d", *p.OrderIndex)
	}
	if p.Label != nil {
		q.QuestionLabel = *p.Label
	}
	if p.InputType != nil {
		q.QuestionInputType = *p.InputType
	}
	if p.IsRequired != nil {
		q.QuestionIsRequired = *p.IsRequired
	}
	if p.HelpText != nil {
		q.QuestionHelpText = *p.HelpText
	}
	if p.OrderIndex != nil {
		q.QuestionOrderIndex = *p.OrderIndex
	}
	if p.IsActive != nil {
		q.QuestionIsActive = *p.IsActive
	}
	q.UpdatedAt = time.Now().UTC()
	t.questions[id] = q
	return nil
}

func (s *MemoryStore) DeleteQuestion(ctx context.Context, id uuid.UUID) error {
	t, err := s.enter("delete question")
	if err != nil {
		return err
	}
	defer s.leave()
	for _, a := range t.answers {
		if a.AnswerQuestionID == id {
			return conflict(ConflictForeignKey, "assessment_answers", "question %s is still referenced", id)
		}
	}
	t.dropOptions(id)
	delete(t.questions, id)
	return nil
}

func (s *MemoryStore) ListOptions(ctx context.Context, questionIDs []uuid.UUID) ([]fmodel.OptionModel, error) {
	t, err := s.enter("list options")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	want := make(map[uuid.UUID]struct{}, len(questionIDs))
	for _, id := range questionIDs {
		want[id] = struct{}{}
	}
	out := []fmodel.OptionModel{}
	for _, o := range t.options {
		if _, ok := want[o.OptionQuestionID]; ok {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OptionOrderIndex != out[j].OptionOrderIndex {
			return out[i].OptionOrderIndex < out[j].OptionOrderIndex
		}
		return t.order[out[i].OptionID] < t.order[out[j].OptionID]
	})
	return out, nil
}

func (s *MemoryStore) InsertOptions(ctx context.Context, opts []fmodel.OptionModel) error {
	t, err := s.enter("insert options")
	if err != nil {
		return err
	}
	defer s.leave()
	for _, o := range opts {
		if _, ok := t.questions[o.OptionQuestionID]; !ok {
			return conflict(ConflictForeignKey, "assessment_question_options", "question %s does not exist", o.OptionQuestionID)
		}
	}
	now := time.Now().UTC()
	for i := range opts {
		if opts[i].OptionID == uuid.Nil {
			opts[i].OptionID = uuid.New()
		}
		opts[i].CreatedAt = now
		row := opts[i]
		row.Question = nil
		t.options[row.OptionID] = row
		t.track(row.OptionID)
	}
	return nil
}

// dropOptions removes a question's options and nulls answers that pointed at them.
func (t *memTables) dropOptions(questionID uuid.UUID) {
	gone := map[uuid.UUID]struct{}{}
	for id, o := range t.options {
		if o.OptionQuestionID == questionID {
			gone[id] = struct{}{}
			delete(t.options, id)
		}
	}
	for id, a := range t.answers {
		if a.AnswerOptionID == nil {
			continue
		}
		if _, ok := gone[*a.AnswerOptionID]; ok {
			a.AnswerOptionID = nil
			t.answers[id] = a
		}
	}
}

func (s *MemoryStore) DeleteOptionsByQuestion(ctx context.Context, questionID uuid.UUID) error {
	t, err := s.enter("delete options")
	if err != nil {
		return err
	}
	defer s.leave()
	t.dropOptions(questionID)
	return nil
}

/* =========================================================
   Applicants
========================================================= */

func (s *MemoryStore) InsertApplicant(ctx context.Context, a *amodel.ApplicantModel) error {
	t, err := s.enter("insert applicant")
	if err != nil {
		return err
	}
	defer s.leave()
	if a.ApplicantID == uuid.Nil {
		a.ApplicantID = uuid.New()
	}
	if _, dup := t.applicants[a.ApplicantID]; dup {
		return conflict(ConflictUnique, "applicants", "duplicate id %s", a.ApplicantID)
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	t.applicants[a.ApplicantID] = *a
	t.track(a.ApplicantID)
	return nil
}

func (s *MemoryStore) FindApplicant(ctx context.Context, id uuid.UUID) (*amodel.ApplicantModel, error) {
	t, err := s.enter("find applicant")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	a, ok := t.applicants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListApplicantsByIDs(ctx context.Context, ids []uuid.UUID) ([]amodel.ApplicantModel, error) {
	t, err := s.enter("list applicants")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	out := []amodel.ApplicantModel{}
	for _, id := range ids {
		if a, ok := t.applicants[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateApplicant(ctx context.Context, a *amodel.ApplicantModel) error {
	t, err := s.enter("update applicant")
	if err != nil {
		return err
	}
	defer s.leave()
	cur, ok := t.applicants[a.ApplicantID]
	if !ok {
		return ErrNotFound
	}
	cur.ApplicantFullName = a.ApplicantFullName
	cur.ApplicantPhone = a.ApplicantPhone
	cur.ApplicantNationalID = a.ApplicantNationalID
	cur.ApplicantHouseholdSize = a.ApplicantHouseholdSize
	cur.ApplicantCurrentLocation = a.ApplicantCurrentLocation
	cur.UpdatedAt = time.Now().UTC()
	t.applicants[a.ApplicantID] = cur
	return nil
}

func (s *MemoryStore) DeleteApplicant(ctx context.Context, id uuid.UUID) error {
	t, err := s.enter("delete applicant")
	if err != nil {
		return err
	}
	defer s.leave()
	for _, as := range t.assessments {
		if as.AssessmentApplicantID == id {
			return conflict(ConflictForeignKey, "assessments", "applicant %s is still referenced", id)
		}
	}
	delete(t.applicants, id)
	return nil
}

func (s *MemoryStore) ListOrphanApplicantIDs(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	t, err := s.enter("list orphan applicants")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	referenced := map[uuid.UUID]struct{}{}
	for _, as := range t.assessments {
		referenced[as.AssessmentApplicantID] = struct{}{}
	}
	out := []uuid.UUID{}
	for id, a := range t.applicants {
		if _, ok := referenced[id]; ok || !a.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

/* =========================================================
   Assessments
========================================================= */

func (s *MemoryStore) InsertAssessment(ctx context.Context, a *amodel.AssessmentModel) error {
	t, err := s.enter("insert assessment")
	if err != nil {
		return err
	}
	defer s.leave()
	if _, ok := t.applicants[a.AssessmentApplicantID]; !ok {
		return conflict(ConflictForeignKey, "assessments", "applicant %s does not exist", a.AssessmentApplicantID)
	}
	if _, ok := t.forms[a.AssessmentFormID]; !ok {
		return conflict(ConflictForeignKey, "assessments", "form %s does not exist", a.AssessmentFormID)
	}
	if a.AssessmentID == uuid.Nil {
		a.AssessmentID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	row := *a
	row.Applicant, row.Form = nil, nil
	t.assessments[a.AssessmentID] = row
	t.track(a.AssessmentID)
	return nil
}

func (s *MemoryStore) FindAssessment(ctx context.Context, id uuid.UUID) (*amodel.AssessmentModel, error) {
	t, err := s.enter("find assessment")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	a, ok := t.assessments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ListAssessments(ctx context.Context, f AssessmentFilter) ([]amodel.AssessmentModel, int64, error) {
	t, err := s.enter("list assessments")
	if err != nil {
		return nil, 0, err
	}
	defer s.leave()
	rows := []amodel.AssessmentModel{}
	for _, a := range t.assessments {
		if f.Status != nil && a.AssessmentStatus != *f.Status {
			continue
		}
		if f.Year != nil && (a.AssessmentSubmittedAt == nil || a.AssessmentSubmittedAt.UTC().Year() != *f.Year) {
			continue
		}
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := rows[i].AssessmentSubmittedAt, rows[j].AssessmentSubmittedAt
		switch {
		case ti == nil && tj == nil:
		case ti == nil:
			return false
		case tj == nil:
			return true
		case !ti.Equal(*tj):
			return ti.After(*tj)
		}
		return rows[i].AssessmentID.String() < rows[j].AssessmentID.String()
	})
	total := int64(len(rows))
	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			rows = rows[:0]
		} else {
			rows = rows[f.Offset:]
		}
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, total, nil
}

func (s *MemoryStore) CountAssessmentsByApplicant(ctx context.Context, applicantID uuid.UUID) (int64, error) {
	t, err := s.enter("count assessments")
	if err != nil {
		return 0, err
	}
	defer s.leave()
	var n int64
	for _, a := range t.assessments {
		if a.AssessmentApplicantID == applicantID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpdateAssessment(ctx context.Context, a *amodel.AssessmentModel) error {
	t, err := s.enter("update assessment")
	if err != nil {
		return err
	}
	defer s.leave()
	cur, ok := t.assessments[a.AssessmentID]
	if !ok {
		return ErrNotFound
	}
	cur.AssessmentStatus = a.AssessmentStatus
	cur.AssessmentTotalScore = a.AssessmentTotalScore
	cur.AssessmentSubmittedAt = a.AssessmentSubmittedAt
	cur.AssessmentReviewedAt = a.AssessmentReviewedAt
	cur.UpdatedAt = time.Now().UTC()
	t.assessments[a.AssessmentID] = cur
	return nil
}

func (s *MemoryStore) DeleteAssessment(ctx context.Context, id uuid.UUID) error {
	t, err := s.enter("delete assessment")
	if err != nil {
		return err
	}
	defer s.leave()
	for aid, a := range t.answers {
		if a.AnswerAssessmentID == id {
			delete(t.answers, aid)
		}
	}
	for hid, h := range t.history {
		if h.HistoryAssessmentID == id {
			delete(t.history, hid)
		}
	}
	delete(t.assessments, id)
	return nil
}

/* =========================================================
   Answers & history
========================================================= */

func (s *MemoryStore) ListAnswers(ctx context.Context, f AnswerFilter) ([]amodel.AnswerModel, error) {
	t, err := s.enter("list answers")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	assessments := make(map[uuid.UUID]struct{}, len(f.AssessmentIDs))
	for _, id := range f.AssessmentIDs {
		assessments[id] = struct{}{}
	}
	var questions map[uuid.UUID]struct{}
	if f.QuestionIDs != nil {
		questions = make(map[uuid.UUID]struct{}, len(f.QuestionIDs))
		for _, id := range f.QuestionIDs {
			questions[id] = struct{}{}
		}
	}
	out := []amodel.AnswerModel{}
	for _, a := range t.answers {
		if _, ok := assessments[a.AnswerAssessmentID]; !ok {
			continue
		}
		if questions != nil {
			if _, ok := questions[a.AnswerQuestionID]; !ok {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return t.order[out[i].AnswerID] < t.order[out[j].AnswerID] })
	return out, nil
}

func (t *memTables) checkAnswerRefs(a amodel.AnswerModel) error {
	if _, ok := t.assessments[a.AnswerAssessmentID]; !ok {
		return conflict(ConflictForeignKey, "assessment_answers", "assessment %s does not exist", a.AnswerAssessmentID)
	}
	if _, ok := t.questions[a.AnswerQuestionID]; !ok {
		return conflict(ConflictForeignKey, "assessment_answers", "question %s does not exist", a.AnswerQuestionID)
	}
	if a.AnswerOptionID != nil {
		if _, ok := t.options[*a.AnswerOptionID]; !ok {
			return conflict(ConflictForeignKey, "assessment_answers", "option %s does not exist", *a.AnswerOptionID)
		}
	}
	return nil
}

type answerPair struct{ assessment, question uuid.UUID }

func (s *MemoryStore) InsertAnswers(ctx context.Context, rows []amodel.AnswerModel) error {
	t, err := s.enter("insert answers")
	if err != nil {
		return err
	}
	defer s.leave()
	seen := map[answerPair]struct{}{}
	for _, a := range t.answers {
		seen[answerPair{a.AnswerAssessmentID, a.AnswerQuestionID}] = struct{}{}
	}
	for _, a := range rows {
		if err := t.checkAnswerRefs(a); err != nil {
			return err
		}
		p := answerPair{a.AnswerAssessmentID, a.AnswerQuestionID}
		if _, dup := seen[p]; dup {
			return conflict(ConflictUnique, "assessment_answers", "duplicate answer for question %s", a.AnswerQuestionID)
		}
		seen[p] = struct{}{}
	}
	now := time.Now().UTC()
	for i := range rows {
		if rows[i].AnswerID == uuid.Nil {
			rows[i].AnswerID = uuid.New()
		}
		rows[i].CreatedAt, rows[i].UpdatedAt = now, now
		row := rows[i]
		row.Assessment, row.Question, row.Option = nil, nil, nil
		t.answers[row.AnswerID] = row
		t.track(row.AnswerID)
	}
	return nil
}

func (s *MemoryStore) UpdateAnswer(ctx context.Context, id uuid.UUID, v amodel.AnswerValue) error {
	t, err := s.enter("update answer")
	if err != nil {
		return err
	}
	defer s.leave()
	a, ok := t.answers[id]
	if !ok {
		return ErrNotFound
	}
	a.AnswerOptionID, a.AnswerText, a.AnswerNumber, a.AnswerBoolean = v.OptionID, v.Text, v.Number, v.Boolean
	if err := t.checkAnswerRefs(a); err != nil {
		return err
	}
	a.UpdatedAt = time.Now().UTC()
	t.answers[id] = a
	return nil
}

func (s *MemoryStore) DeleteAnswer(ctx context.Context, id uuid.UUID) error {
	t, err := s.enter("delete answer")
	if err != nil {
		return err
	}
	defer s.leave()
	delete(t.answers, id)
	return nil
}

func (s *MemoryStore) DeleteAnswersByAssessment(ctx context.Context, assessmentID uuid.UUID) error {
	t, err := s.enter("delete answers")
	if err != nil {
		return err
	}
	defer s.leave()
	for id, a := range t.answers {
		if a.AnswerAssessmentID == assessmentID {
			delete(t.answers, id)
		}
	}
	return nil
}

func (s *MemoryStore) InsertStatusHistory(ctx context.Context, h *amodel.StatusHistoryModel) error {
	t, err := s.enter("insert status history")
	if err != nil {
		return err
	}
	defer s.leave()
	if _, ok := t.assessments[h.HistoryAssessmentID]; !ok {
		return conflict(ConflictForeignKey, "assessment_status_history", "assessment %s does not exist", h.HistoryAssessmentID)
	}
	if h.HistoryID == uuid.Nil {
		h.HistoryID = uuid.New()
	}
	if h.HistoryChangedAt.IsZero() {
		h.HistoryChangedAt = time.Now().UTC()
	}
	row := *h
	row.Assessment = nil
	t.history[h.HistoryID] = row
	t.track(h.HistoryID)
	return nil
}

func (s *MemoryStore) ListStatusHistory(ctx context.Context, assessmentID uuid.UUID) ([]amodel.StatusHistoryModel, error) {
	t, err := s.enter("list status history")
	if err != nil {
		return nil, err
	}
	defer s.leave()
	out := []amodel.StatusHistoryModel{}
	for _, h := range t.history {
		if h.HistoryAssessmentID == assessmentID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].HistoryChangedAt.Equal(out[j].HistoryChangedAt) {
			return out[i].HistoryChangedAt.Before(out[j].HistoryChangedAt)
		}
		return t.order[out[i].HistoryID] < t.order[out[j].HistoryID]
	})
	return out, nil
}

func (s *MemoryStore) DeleteStatusHistoryByAssessment(ctx context.Context, assessmentID uuid.UUID) error {
	t, err := s.enter("delete status history")
	if err != nil {
		return err
	}
	defer s.leave()
	for id, h := range t.history {
		if h.HistoryAssessmentID == assessmentID {
			delete(t.history, id)
		}
	}
	return nil
}

// ErrInjected is a convenience cause for FailNext.
var ErrInjected = errors.New("injected failure")

var _ Store = (*MemoryStore)(nil)
