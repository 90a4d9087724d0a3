package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	"vivienda_backend/internals/features/intake/store"
)

func currentAnswers(t *testing.T, f *fixture, assessmentID uuid.UUID) map[uuid.UUID]string {
	t.Helper()
	detail, err := f.admin.Detail(context.Background(), assessmentID)
	require.NoError(t, err)
	out := map[uuid.UUID]string{}
	for _, fld := range detail.Fields {
		out[fld.Question.QuestionID] = fld.Value
	}
	return out
}

func TestEditRewritesSubmission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _, qs := submitted(t, f)

	answers := currentAnswers(t, f, res.AssessmentID)
	answers[byKey(qs, "ocupacion_actual").QuestionID] = "Carpintero"

	stats, err := f.admin.Edit(ctx, res.AssessmentID, EditInput{
		Status:        "Under Review",
		HouseholdSize: "5.2",
		Province:      "Heredia",
		City:          "Barva",
		StreetAddress: "Casa 3",
		Score:         "87.5",
		SubmittedAt:   "2026-02-01",
		Answers:       answers,
	})
	require.NoError(t, err)
	// address answers are written before the full sync, which only sees ocupacion
	assert.Zero(t, stats.Deleted)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, len(qs)-2, stats.Unchanged)

	ap, err := f.store.FindApplicant(ctx, res.ApplicantID)
	require.NoError(t, err)
	assert.Equal(t, amodel.DefaultApplicantName, ap.ApplicantFullName)
	assert.Nil(t, ap.ApplicantPhone)
	assert.Equal(t, 5, *ap.ApplicantHouseholdSize)
	assert.Equal(t, "Heredia, Barva, Casa 3", *ap.ApplicantCurrentLocation)

	a, err := f.store.FindAssessment(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, amodel.StatusUnderReview, a.AssessmentStatus)
	assert.Equal(t, 87.5, *a.AssessmentTotalScore)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), *a.AssessmentSubmittedAt)
	require.NotNil(t, a.AssessmentReviewedAt)

	after := currentAnswers(t, f, res.AssessmentID)
	assert.Equal(t, "Carpintero", after[byKey(qs, "ocupacion_actual").QuestionID])
	assert.Equal(t, "Heredia", after[byKey(qs, KeyProvince).QuestionID])
	assert.Equal(t, "", after[byKey(qs, KeyNeighborhood).QuestionID])

	history, err := f.store.ListStatusHistory(ctx, res.AssessmentID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	var change *amodel.StatusHistoryModel
	for i := range history {
		if history[i].HistoryFromStatus != nil {
			change = &history[i]
		}
	}
	require.NotNil(t, change)
	assert.Equal(t, amodel.StatusSubmitted, *change.HistoryFromStatus)
	assert.Equal(t, amodel.StatusUnderReview, change.HistoryToStatus)
	var notes map[string]string
	require.NoError(t, json.Unmarshal(change.HistoryNotes, &notes))
	assert.Equal(t, "admin_edit", notes["source"])
}

func TestEditUnknownStatusFallsBackAndSameStatusAddsNoHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _, _ := submitted(t, f)

	_, err := f.admin.Edit(ctx, res.AssessmentID, EditInput{
		Status:   "archivada",
		FullName: "Ana Rojas",
		Answers:  currentAnswers(t, f, res.AssessmentID),
	})
	require.NoError(t, err)

	a, err := f.store.FindAssessment(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, amodel.StatusSubmitted, a.AssessmentStatus)
	assert.Nil(t, a.AssessmentSubmittedAt)

	history, err := f.store.ListStatusHistory(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestEditRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _, _ := submitted(t, f)
	before := currentAnswers(t, f, res.AssessmentID)

	f.store.FailNext("update answer", assert.AnError)
	_, err := f.admin.Edit(ctx, res.AssessmentID, EditInput{Status: "approved", FullName: "Otra", Province: "Limon"})
	require.Error(t, err)

	ap, err := f.store.FindApplicant(ctx, res.ApplicantID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Rojas", ap.ApplicantFullName)
	a, err := f.store.FindAssessment(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, amodel.StatusSubmitted, a.AssessmentStatus)
	assert.Equal(t, before, currentAnswers(t, f, res.AssessmentID))
}

func TestEditMissingAssessment(t *testing.T) {
	f := newFixture(t)
	_, err := f.admin.Edit(context.Background(), uuid.New(), EditInput{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteCascadesToApplicantOnLastAssessment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, formID, _ := submitted(t, f)

	second := &amodel.AssessmentModel{
		AssessmentApplicantID: res.ApplicantID,
		AssessmentFormID:      formID,
		AssessmentStatus:      amodel.StatusSubmitted,
	}
	require.NoError(t, f.store.InsertAssessment(ctx, second))

	gone, err := f.admin.Delete(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.False(t, gone)
	assert.Empty(t, answersOf(t, f.store, res.AssessmentID))
	history, err := f.store.ListStatusHistory(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.Empty(t, history)
	_, err = f.store.FindApplicant(ctx, res.ApplicantID)
	require.NoError(t, err)

	gone, err = f.admin.Delete(ctx, second.AssessmentID)
	require.NoError(t, err)
	assert.True(t, gone)
	_, err = f.store.FindApplicant(ctx, res.ApplicantID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.admin.Delete(ctx, second.AssessmentID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDetailSeparatesArchivedAnswers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, _, qs := submitted(t, f)

	gone := byKey(qs, "nacionalidad")
	soft, err := f.schema.DeleteQuestion(ctx, gone.QuestionID)
	require.NoError(t, err)
	require.True(t, soft)

	detail, err := f.admin.Detail(ctx, res.AssessmentID)
	require.NoError(t, err)
	assert.Len(t, detail.Fields, len(qs)-1)
	require.Len(t, detail.Archived, 1)
	assert.Equal(t, "nacionalidad", detail.Archived[0].Question.QuestionKey)
	assert.Equal(t, "dato nacionalidad", detail.Archived[0].Value)
	assert.Equal(t, testSlug, detail.Form.FormSlug)
	assert.Equal(t, "Ana Rojas", detail.Applicant.ApplicantFullName)

	for i := 1; i < len(detail.Fields); i++ {
		assert.Less(t, detail.Fields[i-1].Question.QuestionOrderIndex, detail.Fields[i].Question.QuestionOrderIndex)
	}
	for _, fld := range detail.Fields {
		if fld.Question.QuestionKey == KeyHouseholdSize {
			assert.Equal(t, "4", fld.Value)
		}
	}
}

func insertBare(t *testing.T, f *fixture, formID uuid.UUID, location *string, at time.Time, status amodel.AssessmentStatus) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	ap := &amodel.ApplicantModel{ApplicantFullName: " ", ApplicantCurrentLocation: location}
	require.NoError(t, f.store.InsertApplicant(ctx, ap))
	a := &amodel.AssessmentModel{
		AssessmentApplicantID: ap.ApplicantID,
		AssessmentFormID:      formID,
		AssessmentStatus:      status,
		AssessmentSubmittedAt: &at,
	}
	require.NoError(t, f.store.InsertAssessment(ctx, a))
	return a.AssessmentID
}

func TestSummaries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	res, formID, _ := submitted(t, f)

	loc := "Barrio El Carmen, puntarenas"
	withLocation := insertBare(t, f, formID, &loc, f.now.Add(time.Hour), amodel.StatusApproved)
	bare := insertBare(t, f, formID, nil, f.now.Add(2*time.Hour), amodel.StatusWaitlisted)

	list, total, err := f.admin.Summaries(ctx, SummaryFilter{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, list, 3)
	assert.Equal(t, []uuid.UUID{bare, withLocation, res.AssessmentID}, []uuid.UUID{list[0].ID, list[1].ID, list[2].ID})

	full := list[2]
	assert.Equal(t, "Ana Rojas", full.ApplicantName)
	assert.Equal(t, "8888-0000", full.ApplicantPhone)
	assert.Equal(t, "Cartago", full.Province)
	assert.Equal(t, "Paraiso", *full.City)
	assert.Equal(t, "Centro", *full.Neighborhood)
	assert.Equal(t, "Cartago, Paraiso, Centro, 200 m norte de la iglesia", *full.Address)
	assert.Equal(t, "Pendiente", full.StatusLabel)
	assert.Equal(t, "pink", full.StatusTone)
	assert.Equal(t, testSlug, full.FormSlug)

	located := list[1]
	assert.Equal(t, "Puntarenas", located.Province)
	assert.Equal(t, loc, *located.Address)
	assert.Nil(t, located.City)
	assert.Equal(t, "success", located.StatusTone)
	assert.Equal(t, amodel.DefaultApplicantName, located.ApplicantName)
	assert.Equal(t, amodel.DefaultPhone, located.ApplicantPhone)

	empty := list[0]
	assert.Equal(t, NoProvince, empty.Province)
	assert.Nil(t, empty.Address)
	assert.Equal(t, "Lista de espera", empty.StatusLabel)
	assert.Equal(t, "neutral", empty.StatusTone)

	approved := amodel.StatusApproved
	list, total, err = f.admin.Summaries(ctx, SummaryFilter{Status: &approved, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, withLocation, list[0].ID)

	list, total, err = f.admin.Summaries(ctx, SummaryFilter{Offset: 3, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Empty(t, list)
}

func TestDetectProvince(t *testing.T) {
	assert.Equal(t, "San Jose", DetectProvince("Desamparados, SAN JOSÉ"))
	assert.Equal(t, "Limon", DetectProvince("limón centro"))
	assert.Equal(t, "", DetectProvince("Managua"))
	assert.Equal(t, "", DetectProvince(""))
}
