package service

import (
	"context"
	"strings"
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
	helper "vivienda_backend/internals/helpers"
)

const (
	NoProvince      = "Sin provincia"
	DefaultFormSlug = "sin-slug"
	DefaultFormName = "Formulario"
)

// Provinces of Costa Rica, matched loosely against free-text locations.
var Provinces = []string{"San Jose", "Alajuela", "Cartago", "Heredia", "Guanacaste", "Puntarenas", "Limon"}

type AdminService struct {
	Store store.Store
	Log   *logrus.Logger
	Now   func() time.Time
}

func NewAdminService(st store.Store, log *logrus.Logger) *AdminService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AdminService{Store: st, Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

/* =========================================================
   Edit
========================================================= */

// EditInput is the admin edit form. Answers is keyed by question id and
// must hold the complete answer set: missing questions are cleared.
type EditInput struct {
	Status        string
	FullName      string
	Phone         string
	HouseholdSize string
	Province      string
	City          string
	Neighborhood  string
	StreetAddress string
	Score         string
	SubmittedAt   string
	Answers       map[uuid.UUID]string
}

func (in EditInput) address() map[string]string {
	return map[string]string{
		KeyProvince:      in.Province,
		KeyCity:          in.City,
		KeyNeighborhood:  in.Neighborhood,
		KeyStreetAddress: in.StreetAddress,
	}
}

// Edit rewrites the applicant, the assessment and its answers in one
// transaction. A status change appends a history row.
func (s *AdminService) Edit(ctx context.Context, assessmentID uuid.UUID, in EditInput) (SyncStats, error) {
	var stats SyncStats
	err := s.Store.WithTx(ctx, func(tx store.Store) error {
		a, err := tx.FindAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		applicant, err := tx.FindApplicant(ctx, a.AssessmentApplicantID)
		if err != nil {
			return err
		}

		applicant.ApplicantFullName = strings.TrimSpace(in.FullName)
		if applicant.ApplicantFullName == "" {
			applicant.ApplicantFullName = amodel.DefaultApplicantName
		}
		applicant.ApplicantPhone = nil
		if p := strings.TrimSpace(in.Phone); p != "" {
			applicant.ApplicantPhone = &p
		}
		applicant.ApplicantHouseholdSize = helper.NullableRoundedInt(helper.ParseNullableNumber(in.HouseholdSize))
		applicant.ApplicantCurrentLocation = composeLocation(in.Province, in.City, in.Neighborhood, in.StreetAddress)
		if err := tx.UpdateApplicant(ctx, applicant); err != nil {
			return err
		}

		prev := a.AssessmentStatus
		next := amodel.NormalizeStatus(in.Status)
		a.AssessmentStatus = next
		a.AssessmentTotalScore = helper.ParseNullableNumber(in.Score)
		a.AssessmentSubmittedAt = helper.ParseNullableISODate(in.SubmittedAt)
		if prev != next {
			now := s.Now()
			a.AssessmentReviewedAt = &now
		}
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return err
		}
		if prev != next {
			notes, _ := sonic.Marshal(map[string]string{"source": "admin_edit"})
			from := prev
			if err := tx.InsertStatusHistory(ctx, &amodel.StatusHistoryModel{
				HistoryID:           uuid.New(),
				HistoryAssessmentID: a.AssessmentID,
				HistoryFromStatus:   &from,
				HistoryToStatus:     next,
				HistoryNotes:        datatypes.JSON(notes),
				HistoryChangedAt:    s.Now(),
			}); err != nil {
				return err
			}
		}

		addr := in.address()
		addressIDs, err := SyncAddressAnswers(ctx, tx, a.AssessmentFormID, a.AssessmentID, addr)
		if err != nil {
			return err
		}
		// the address fields win over whatever the answer map says
		incoming := make(map[uuid.UUID]string, len(in.Answers)+len(addressIDs))
		for id, v := range in.Answers {
			incoming[id] = v
		}
		for key, id := range addressIDs {
			incoming[id] = addr[key]
		}

		stats, err = SyncAnswerSet(ctx, tx, a.AssessmentFormID, a.AssessmentID, incoming)
		return err
	})
	if err != nil {
		return SyncStats{}, err
	}
	s.Log.WithFields(logrus.Fields{
		"assessment_id": assessmentID,
		"inserted":      stats.Inserted,
		"updated":       stats.Updated,
		"deleted":       stats.Deleted,
	}).Info("✅ submission updated")
	return stats, nil
}

/* =========================================================
   Delete
========================================================= */

// Delete removes the assessment with its history and answers, then the
// applicant when no other assessment points at it.
func (s *AdminService) Delete(ctx context.Context, assessmentID uuid.UUID) (applicantDeleted bool, err error) {
	err = s.Store.WithTx(ctx, func(tx store.Store) error {
		a, err := tx.FindAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		if err := tx.DeleteStatusHistoryByAssessment(ctx, assessmentID); err != nil {
			return err
		}
		if err := tx.DeleteAnswersByAssessment(ctx, assessmentID); err != nil {
			return err
		}
		if err := tx.DeleteAssessment(ctx, assessmentID); err != nil {
			return err
		}
		left, err := tx.CountAssessmentsByApplicant(ctx, a.AssessmentApplicantID)
		if err != nil {
			return err
		}
		if left > 0 {
			return nil
		}
		applicantDeleted = true
		return tx.DeleteApplicant(ctx, a.AssessmentApplicantID)
	})
	if err != nil {
		return false, err
	}
	s.Log.WithField("assessment_id", assessmentID).Info("✅ submission deleted")
	return applicantDeleted, nil
}

/* =========================================================
   Detail
========================================================= */

type DetailField struct {
	Question fmodel.Question
	Value    string
}

type SubmissionDetail struct {
	Assessment amodel.AssessmentModel
	Applicant  amodel.ApplicantModel
	Form       fmodel.FormModel
	Fields     []DetailField
	// Archived holds answers to questions deactivated after the submission.
	Archived []DetailField
	History  []amodel.StatusHistoryModel
}

func (s *AdminService) Detail(ctx context.Context, assessmentID uuid.UUID) (*SubmissionDetail, error) {
	a, err := s.Store.FindAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	applicant, err := s.Store.FindApplicant(ctx, a.AssessmentApplicantID)
	if err != nil {
		return nil, err
	}
	form, err := s.Store.FindFormByID(ctx, a.AssessmentFormID)
	if err != nil {
		return nil, err
	}
	questions, err := fservice.FetchQuestions(ctx, s.Store, a.AssessmentFormID, false)
	if err != nil {
		return nil, err
	}
	answers, err := answersByQuestion(ctx, s.Store, a.AssessmentID)
	if err != nil {
		return nil, err
	}
	history, err := s.Store.ListStatusHistory(ctx, a.AssessmentID)
	if err != nil {
		return nil, err
	}

	out := &SubmissionDetail{
		Assessment: *a,
		Applicant:  *applicant,
		Form:       *form,
		Fields:     []DetailField{},
		Archived:   []DetailField{},
		History:    history,
	}
	for _, q := range questions {
		ans, has := answers[q.QuestionID]
		switch {
		case q.QuestionIsActive:
			var ap *amodel.AnswerModel
			if has {
				ap = &ans
			}
			out.Fields = append(out.Fields, DetailField{Question: q, Value: ResolveStoredAnswer(q, ap)})
		case has:
			out.Archived = append(out.Archived, DetailField{Question: q, Value: ResolveStoredAnswer(q, &ans)})
		}
	}
	return out, nil
}

/* =========================================================
   Summaries
========================================================= */

type SummaryFilter struct {
	Year   *int
	Status *amodel.AssessmentStatus
	Offset int
	Limit  int
}

type Summary struct {
	ID             uuid.UUID
	Status         amodel.AssessmentStatus
	StatusLabel    string
	StatusTone     string
	Score          *float64
	SubmittedAt    *time.Time
	ApplicantName  string
	ApplicantPhone string
	HouseholdSize  *int
	Address        *string
	Province       string
	City           *string
	Neighborhood   *string
	FormSlug       string
	FormTitle      string
}

// StatusTone is the badge color the admin list uses.
func StatusTone(s amodel.AssessmentStatus) string {
	switch s {
	case amodel.StatusSubmitted:
		return "pink"
	case amodel.StatusUnderReview:
		return "blue"
	case amodel.StatusApproved:
		return "success"
	}
	return "neutral"
}

// DetectProvince finds a province name inside free text, ignoring case and
// accents.
func DetectProvince(text string) string {
	lookup := helper.LookupKey(text)
	if lookup == "" {
		return ""
	}
	for _, p := range Provinces {
		if strings.Contains(lookup, helper.LookupKey(p)) {
			return p
		}
	}
	return ""
}

// Summaries lists assessments newest first with their applicant, form and
// address answers loaded side by side.
func (s *AdminService) Summaries(ctx context.Context, f SummaryFilter) ([]Summary, int64, error) {
	rows, total, err := s.Store.ListAssessments(ctx, store.AssessmentFilter{
		Year: f.Year, Status: f.Status, Offset: f.Offset, Limit: f.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return []Summary{}, total, nil
	}

	assessmentIDs := make([]uuid.UUID, 0, len(rows))
	applicantIDs := make([]uuid.UUID, 0, len(rows))
	formIDs := make([]uuid.UUID, 0, 1)
	seenForm := map[uuid.UUID]bool{}
	for _, r := range rows {
		assessmentIDs = append(assessmentIDs, r.AssessmentID)
		applicantIDs = append(applicantIDs, r.AssessmentApplicantID)
		if !seenForm[r.AssessmentFormID] {
			seenForm[r.AssessmentFormID] = true
			formIDs = append(formIDs, r.AssessmentFormID)
		}
	}

	var (
		applicants = map[uuid.UUID]amodel.ApplicantModel{}
		forms      = map[uuid.UUID]fmodel.FormModel{}
		addresses  map[uuid.UUID]map[string]string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := s.Store.ListApplicantsByIDs(gctx, applicantIDs)
		for _, a := range list {
			applicants[a.ApplicantID] = a
		}
		return err
	})
	g.Go(func() error {
		list, err := s.Store.ListFormsByIDs(gctx, formIDs)
		for _, fm := range list {
			forms[fm.FormID] = fm
		}
		return err
	})
	g.Go(func() error {
		var err error
		addresses, err = s.addressParts(gctx, formIDs, assessmentIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]Summary, 0, len(rows))
	for _, r := range rows {
		out = append(out, buildSummary(r, applicants[r.AssessmentApplicantID], forms[r.AssessmentFormID], addresses[r.AssessmentID]))
	}
	return out, total, nil
}

// addressParts returns assessment id -> address key -> trimmed text.
func (s *AdminService) addressParts(ctx context.Context, formIDs, assessmentIDs []uuid.UUID) (map[uuid.UUID]map[string]string, error) {
	keyOf := map[uuid.UUID]string{}
	for _, fid := range formIDs {
		qs, err := s.Store.ListQuestions(ctx, store.QuestionFilter{FormID: fid, Keys: AddressKeys})
		if err != nil {
			return nil, err
		}
		for _, q := range qs {
			keyOf[q.QuestionID] = q.QuestionKey
		}
	}
	out := map[uuid.UUID]map[string]string{}
	if len(keyOf) == 0 {
		return out, nil
	}
	qids := make([]uuid.UUID, 0, len(keyOf))
	for id := range keyOf {
		qids = append(qids, id)
	}
	answers, err := s.Store.ListAnswers(ctx, store.AnswerFilter{AssessmentIDs: assessmentIDs, QuestionIDs: qids})
	if err != nil {
		return nil, err
	}
	for _, a := range answers {
		v := strings.TrimSpace(deref(a.AnswerText))
		if v == "" {
			continue
		}
		if out[a.AnswerAssessmentID] == nil {
			out[a.AnswerAssessmentID] = map[string]string{}
		}
		out[a.AnswerAssessmentID][keyOf[a.AnswerQuestionID]] = v
	}
	return out, nil
}

func buildSummary(a amodel.AssessmentModel, ap amodel.ApplicantModel, form fmodel.FormModel, parts map[string]string) Summary {
	status := a.AssessmentStatus
	if status == "" {
		status = amodel.StatusSubmitted
	}

	name := strings.TrimSpace(ap.ApplicantFullName)
	if name == "" {
		name = amodel.DefaultApplicantName
	}
	phone := strings.TrimSpace(deref(ap.ApplicantPhone))
	if phone == "" {
		phone = amodel.DefaultPhone
	}

	address := composeLocation(parts[KeyProvince], parts[KeyCity], parts[KeyNeighborhood], parts[KeyStreetAddress])
	if address == nil && ap.ApplicantCurrentLocation != nil && strings.TrimSpace(*ap.ApplicantCurrentLocation) != "" {
		loc := strings.TrimSpace(*ap.ApplicantCurrentLocation)
		address = &loc
	}

	province := parts[KeyProvince]
	if province == "" {
		province = DetectProvince(deref(ap.ApplicantCurrentLocation))
	}
	if province == "" {
		province = DetectProvince(deref(address))
	}
	if province == "" {
		province = NoProvince
	}

	slug := strings.TrimSpace(form.FormSlug)
	if slug == "" {
		slug = DefaultFormSlug
	}
	title := strings.TrimSpace(form.FormTitle)
	if title == "" {
		title = DefaultFormName
	}

	return Summary{
		ID:             a.AssessmentID,
		Status:         status,
		StatusLabel:    status.Label(),
		StatusTone:     StatusTone(status),
		Score:          a.AssessmentTotalScore,
		SubmittedAt:    a.AssessmentSubmittedAt,
		ApplicantName:  name,
		ApplicantPhone: phone,
		HouseholdSize:  ap.ApplicantHouseholdSize,
		Address:        address,
		Province:       province,
		City:           optional(parts[KeyCity]),
		Neighborhood:   optional(parts[KeyNeighborhood]),
		FormSlug:       slug,
		FormTitle:      title,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
