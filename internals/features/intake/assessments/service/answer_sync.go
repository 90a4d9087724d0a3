package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fservice "vivienda_backend/internals/features/intake/forms/service"
	"vivienda_backend/internals/features/intake/store"
)

// Well-known question keys the applicant row is derived from.
const (
	KeyHeadOfHousehold = "nombre_jefe_familia"
	KeySignatureName   = "nombre_firma"
	KeyPhone           = "telefono_contacto"
	KeyHouseholdSize   = "numero_total_miembros"
	KeyNationalID      = "documento_identificacion"
	KeyProvince        = "provincia"
	KeyCity            = "ciudad"
	KeyNeighborhood    = "barrio_comunidad"
	KeyStreetAddress   = "direccion_exacta"
)

// AddressKeys in display order.
var AddressKeys = []string{KeyProvince, KeyCity, KeyNeighborhood, KeyStreetAddress}

type SyncStats struct {
	Inserted  int
	Updated   int
	Deleted   int
	Unchanged int
}

func sameValue(a, b amodel.AnswerValue) bool {
	return eqPtr(a.OptionID, b.OptionID) && eqPtr(a.Text, b.Text) &&
		eqPtr(a.Number, b.Number) && eqPtr(a.Boolean, b.Boolean)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func answersByQuestion(ctx context.Context, st store.Store, assessmentID uuid.UUID) (map[uuid.UUID]amodel.AnswerModel, error) {
	rows, err := st.ListAnswers(ctx, store.AnswerFilter{AssessmentIDs: []uuid.UUID{assessmentID}})
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]amodel.AnswerModel, len(rows))
	for _, r := range rows {
		out[r.AnswerQuestionID] = r
	}
	return out, nil
}

// SyncAnswerSet makes the stored answers of an assessment match incoming
// for every active question of the form. A question missing from incoming
// is cleared, so callers always send the complete answer set. Answers to
// deactivated questions are left alone.
func SyncAnswerSet(ctx context.Context, st store.Store, formID, assessmentID uuid.UUID, incoming map[uuid.UUID]string) (SyncStats, error) {
	var stats SyncStats

	questions, err := fservice.FetchQuestions(ctx, st, formID, true)
	if err != nil {
		return stats, err
	}
	existing, err := answersByQuestion(ctx, st, assessmentID)
	if err != nil {
		return stats, err
	}

	var inserts []amodel.AnswerModel
	for _, q := range questions {
		res := ResolveIncomingAnswer(q, incoming[q.QuestionID])
		cur, has := existing[q.QuestionID]

		switch {
		case res.Delete && has:
			if err := st.DeleteAnswer(ctx, cur.AnswerID); err != nil {
				return stats, err
			}
			stats.Deleted++
		case res.Delete:
		case has && sameValue(cur.Value(), res.Value):
			stats.Unchanged++
		case has:
			if err := st.UpdateAnswer(ctx, cur.AnswerID, res.Value); err != nil {
				return stats, err
			}
			stats.Updated++
		default:
			inserts = append(inserts, newAnswerRow(assessmentID, q.QuestionID, res.Value))
		}
	}

	if len(inserts) > 0 {
		if err := st.InsertAnswers(ctx, inserts); err != nil {
			return stats, err
		}
		stats.Inserted = len(inserts)
	}
	return stats, nil
}

func newAnswerRow(assessmentID, questionID uuid.UUID, v amodel.AnswerValue) amodel.AnswerModel {
	return amodel.AnswerModel{
		AnswerID:           uuid.New(),
		AnswerAssessmentID: assessmentID,
		AnswerQuestionID:   questionID,
		AnswerOptionID:     v.OptionID,
		AnswerText:         v.Text,
		AnswerNumber:       v.Number,
		AnswerBoolean:      v.Boolean,
	}
}

// SyncAddressAnswers writes the address fields as plain text answers,
// including on deactivated address questions. It returns the question id of
// every address question it found so the caller can keep a later full sync
// consistent.
func SyncAddressAnswers(ctx context.Context, st store.Store, formID, assessmentID uuid.UUID, address map[string]string) (map[string]uuid.UUID, error) {
	rows, err := st.ListQuestions(ctx, store.QuestionFilter{FormID: formID, Keys: AddressKeys})
	if err != nil {
		return nil, err
	}
	existing, err := answersByQuestion(ctx, st, assessmentID)
	if err != nil {
		return nil, err
	}

	found := make(map[string]uuid.UUID, len(rows))
	var inserts []amodel.AnswerModel
	for _, q := range rows {
		found[q.QuestionKey] = q.QuestionID
		v := strings.TrimSpace(address[q.QuestionKey])
		cur, has := existing[q.QuestionID]

		if v == "" {
			if has {
				if err := st.DeleteAnswer(ctx, cur.AnswerID); err != nil {
					return nil, err
				}
			}
			continue
		}
		val := amodel.AnswerValue{Text: ptr(v)}
		if has {
			if sameValue(cur.Value(), val) {
				continue
			}
			if err := st.UpdateAnswer(ctx, cur.AnswerID, val); err != nil {
				return nil, err
			}
			continue
		}
		inserts = append(inserts, newAnswerRow(assessmentID, q.QuestionID, val))
	}
	if len(inserts) > 0 {
		if err := st.InsertAnswers(ctx, inserts); err != nil {
			return nil, err
		}
	}
	return found, nil
}

// questionText returns the trimmed text of the answer to key, if any.
func questionText(byKey map[string]amodel.AnswerValue, key string) string {
	v, ok := byKey[key]
	if !ok || v.Text == nil {
		return ""
	}
	return strings.TrimSpace(*v.Text)
}

// composeLocation joins the non-empty parts with ", ".
func composeLocation(parts ...string) *string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	s := strings.Join(kept, ", ")
	return &s
}
