package dto

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	"vivienda_backend/internals/features/intake/assessments/service"
	fdto "vivienda_backend/internals/features/intake/forms/dto"
	helper "vivienda_backend/internals/helpers"
)

/* ===============================
   Edit
=================================*/

// EditSubmissionRequest must carry every answer of the form: questions
// left out of Answers are cleared.
type EditSubmissionRequest struct {
	Status        string            `json:"status" validate:"max=32"`
	FullName      string            `json:"full_name" validate:"max=200"`
	Phone         string            `json:"phone" validate:"max=64"`
	HouseholdSize string            `json:"household_size" validate:"max=16"`
	Province      string            `json:"province" validate:"max=120"`
	City          string            `json:"city" validate:"max=120"`
	Neighborhood  string            `json:"neighborhood" validate:"max=200"`
	StreetAddress string            `json:"street_address" validate:"max=500"`
	Score         string            `json:"score" validate:"max=16"`
	SubmittedAt   string            `json:"submitted_at" validate:"omitempty,datetime=2006-01-02"`
	Answers       map[string]string `json:"answers" validate:"required,dive,keys,uuid,endkeys"`
}

// ToInput assumes the request passed validation, so every answer key is a uuid.
func (r EditSubmissionRequest) ToInput() service.EditInput {
	answers := make(map[uuid.UUID]string, len(r.Answers))
	for k, v := range r.Answers {
		if id, err := uuid.Parse(strings.TrimSpace(k)); err == nil {
			answers[id] = v
		}
	}
	return service.EditInput{
		Status:        r.Status,
		FullName:      r.FullName,
		Phone:         r.Phone,
		HouseholdSize: r.HouseholdSize,
		Province:      r.Province,
		City:          r.City,
		Neighborhood:  r.Neighborhood,
		StreetAddress: r.StreetAddress,
		Score:         r.Score,
		SubmittedAt:   r.SubmittedAt,
		Answers:       answers,
	}
}

type EditSubmissionResponse struct {
	ID        uuid.UUID `json:"id"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Unchanged int       `json:"unchanged"`
}

func ToEditSubmissionResponse(id uuid.UUID, s service.SyncStats) EditSubmissionResponse {
	return EditSubmissionResponse{ID: id, Inserted: s.Inserted, Updated: s.Updated, Deleted: s.Deleted, Unchanged: s.Unchanged}
}

/* ===============================
   List
=================================*/

type SummaryQuery struct {
	Year   string `query:"year" validate:"omitempty,numeric,len=4"`
	Status string `query:"status" validate:"omitempty,oneof=submitted under_review approved denied waitlisted"`
}

func (q SummaryQuery) Filter(p helper.Paging) service.SummaryFilter {
	f := service.SummaryFilter{Offset: p.Offset, Limit: p.Limit}
	if y, err := strconv.Atoi(strings.TrimSpace(q.Year)); err == nil && y > 0 {
		f.Year = &y
	}
	if s := strings.TrimSpace(q.Status); s != "" {
		st := amodel.AssessmentStatus(s)
		f.Status = &st
	}
	return f
}

type SummaryResponse struct {
	ID             uuid.UUID               `json:"id"`
	Status         amodel.AssessmentStatus `json:"status"`
	StatusLabel    string                  `json:"status_label"`
	StatusTone     string                  `json:"status_tone"`
	Score          *float64                `json:"score"`
	SubmittedAt    *time.Time              `json:"submitted_at"`
	ApplicantName  string                  `json:"applicant_name"`
	ApplicantPhone string                  `json:"applicant_phone"`
	HouseholdSize  *int                    `json:"household_size"`
	Address        *string                 `json:"address"`
	Province       string                  `json:"province"`
	City           *string                 `json:"city"`
	Neighborhood   *string                 `json:"neighborhood"`
	FormSlug       string                  `json:"form_slug"`
	FormTitle      string                  `json:"form_title"`
}

func ToSummaryResponses(rows []service.Summary) []SummaryResponse {
	out := make([]SummaryResponse, 0, len(rows))
	for _, s := range rows {
		out = append(out, SummaryResponse{
			ID:             s.ID,
			Status:         s.Status,
			StatusLabel:    s.StatusLabel,
			StatusTone:     s.StatusTone,
			Score:          s.Score,
			SubmittedAt:    s.SubmittedAt,
			ApplicantName:  s.ApplicantName,
			ApplicantPhone: s.ApplicantPhone,
			HouseholdSize:  s.HouseholdSize,
			Address:        s.Address,
			Province:       s.Province,
			City:           s.City,
			Neighborhood:   s.Neighborhood,
			FormSlug:       s.FormSlug,
			FormTitle:      s.FormTitle,
		})
	}
	return out
}

/* ===============================
   Detail
=================================*/

type DetailFieldResponse struct {
	Question fdto.QuestionResponse `json:"question"`
	Value    string                `json:"value"`
}

type ApplicantResponse struct {
	ID              uuid.UUID `json:"id"`
	FullName        string    `json:"full_name"`
	Phone           *string   `json:"phone"`
	NationalID      *string   `json:"national_id"`
	HouseholdSize   *int      `json:"household_size"`
	CurrentLocation *string   `json:"current_location"`
}

type HistoryResponse struct {
	FromStatus *amodel.AssessmentStatus `json:"from_status"`
	ToStatus   amodel.AssessmentStatus  `json:"to_status"`
	Notes      any                      `json:"notes"`
	ChangedAt  time.Time                `json:"changed_at"`
}

type SubmissionDetailResponse struct {
	ID          uuid.UUID               `json:"id"`
	Status      amodel.AssessmentStatus `json:"status"`
	StatusLabel string                  `json:"status_label"`
	Score       *float64                `json:"score"`
	SubmittedAt *time.Time              `json:"submitted_at"`
	ReviewedAt  *time.Time              `json:"reviewed_at"`
	Applicant   ApplicantResponse       `json:"applicant"`
	Form        fdto.FormResponse       `json:"form"`
	Fields      []DetailFieldResponse   `json:"fields"`
	Archived    []DetailFieldResponse   `json:"archived"`
	History     []HistoryResponse       `json:"history"`
}

func toDetailFields(in []service.DetailField) []DetailFieldResponse {
	out := make([]DetailFieldResponse, 0, len(in))
	for _, f := range in {
		out = append(out, DetailFieldResponse{Question: fdto.ToQuestionResponse(f.Question), Value: f.Value})
	}
	return out
}

func ToSubmissionDetailResponse(d *service.SubmissionDetail) SubmissionDetailResponse {
	history := make([]HistoryResponse, 0, len(d.History))
	for _, h := range d.History {
		var notes any
		if len(h.HistoryNotes) > 0 {
			notes = h.HistoryNotes
		}
		history = append(history, HistoryResponse{
			FromStatus: h.HistoryFromStatus,
			ToStatus:   h.HistoryToStatus,
			Notes:      notes,
			ChangedAt:  h.HistoryChangedAt,
		})
	}
	a := d.Assessment
	ap := d.Applicant
	return SubmissionDetailResponse{
		ID:          a.AssessmentID,
		Status:      a.AssessmentStatus,
		StatusLabel: a.AssessmentStatus.Label(),
		Score:       a.AssessmentTotalScore,
		SubmittedAt: a.AssessmentSubmittedAt,
		ReviewedAt:  a.AssessmentReviewedAt,
		Applicant: ApplicantResponse{
			ID:              ap.ApplicantID,
			FullName:        ap.ApplicantFullName,
			Phone:           ap.ApplicantPhone,
			NationalID:      ap.ApplicantNationalID,
			HouseholdSize:   ap.ApplicantHouseholdSize,
			CurrentLocation: ap.ApplicantCurrentLocation,
		},
		Form:     fdto.ToFormResponse(d.Form),
		Fields:   toDetailFields(d.Fields),
		Archived: toDetailFields(d.Archived),
		History:  history,
	}
}

/* ===============================
   Admin login
=================================*/

type AdminLoginRequest struct {
	Password string `json:"password" form:"password" validate:"required,max=200"`
}

type AdminLoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
