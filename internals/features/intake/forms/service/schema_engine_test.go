package service

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
	"vivienda_backend/internals/features/intake/store"
	helper "vivienda_backend/internals/helpers"
	"vivienda_backend/internals/metrics"
)

const testSlug = "housing-relief-2026"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newEngine(t *testing.T, st store.Store) *SchemaEngine {
	t.Helper()
	return NewSchemaEngine(st, quietLogger(), metrics.NewMetrics("test"), testSlug, nil)
}

func emptyForm(t *testing.T, e *SchemaEngine, slug string) *fmodel.FormModel {
	t.Helper()
	form, err := e.GetOrCreateFormBySlug(context.Background(), slug)
	require.NoError(t, err)
	return form
}

func orderOf(t *testing.T, st store.Store, id uuid.UUID) int {
	t.Helper()
	q, err := st.FindQuestion(context.Background(), id)
	require.NoError(t, err)
	return q.QuestionOrderIndex
}

func TestGetOrCreateFormBySlug(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, store.NewMemoryStore())

	first, err := e.GetOrCreateFormBySlug(ctx, "  vivienda%2D2027 ")
	require.NoError(t, err)
	assert.Equal(t, "vivienda-2027", first.FormSlug)
	assert.Equal(t, fmodel.DefaultFormTitle, first.FormTitle)
	assert.True(t, first.FormIsActive)

	again, err := e.GetOrCreateFormBySlug(ctx, "vivienda-2027")
	require.NoError(t, err)
	assert.Equal(t, first.FormID, again.FormID)

	def, err := e.GetOrCreateFormBySlug(ctx, "   ")
	require.NoError(t, err)
	assert.Equal(t, testSlug, def.FormSlug)

	bad, err := e.GetOrCreateFormBySlug(ctx, "%zz")
	require.NoError(t, err)
	assert.Equal(t, testSlug, bad.FormSlug)

	for _, raw := range []string{"%FF%FE", strings.Repeat("x", helper.MaxFormSlugLen+1)} {
		got, err := e.GetOrCreateFormBySlug(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, def.FormID, got.FormID)
	}
}

// racingStore hides existing forms from the first lookups, the way a reader
// sees the table just before a concurrent insert commits.
type racingStore struct {
	*store.MemoryStore
	misses int
}

func (r *racingStore) FindFormBySlug(ctx context.Context, slug string) (*fmodel.FormModel, error) {
	if r.misses > 0 {
		r.misses--
		return nil, store.ErrNotFound
	}
	return r.MemoryStore.FindFormBySlug(ctx, slug)
}

func TestGetOrCreateFormBySlugRace(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	winner := fmodel.NewDefaultForm("raced")
	require.NoError(t, mem.InsertForm(ctx, winner))

	e := newEngine(t, &racingStore{MemoryStore: mem, misses: 1})
	form, err := e.GetOrCreateFormBySlug(ctx, "raced")
	require.NoError(t, err)
	assert.Equal(t, winner.FormID, form.FormID)

	// A second conflict in a row is not retried.
	e = newEngine(t, &racingStore{MemoryStore: mem, misses: 2})
	_, err = e.GetOrCreateFormBySlug(ctx, "raced")
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err))
}

func TestSeedTemplateQuestionsIfEmpty(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, testSlug)

	seeded, err := e.SeedTemplateQuestionsIfEmpty(ctx, form.FormID)
	require.NoError(t, err)
	assert.True(t, seeded)

	seeded, err = e.SeedTemplateQuestionsIfEmpty(ctx, form.FormID)
	require.NoError(t, err)
	assert.False(t, seeded)

	n, err := st.CountQuestions(ctx, form.FormID)
	require.NoError(t, err)
	assert.EqualValues(t, 20, n)

	questions, err := e.FetchFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	require.Len(t, questions, 20)
	for i, q := range questions {
		assert.Equal(t, i+1, q.QuestionOrderIndex)
		assert.True(t, q.QuestionIsActive)
		assert.EqualValues(t, 1, q.QuestionScoringWeight)
	}
	assert.Equal(t, "estado_civil", questions[3].QuestionKey)
	require.Len(t, questions[3].Options, 5)
	assert.Equal(t, "soltero", questions[3].Options[0].OptionValue)
	assert.Equal(t, 1, questions[3].Options[0].OptionOrderIndex)
	assert.Equal(t, "direccion", questions[8].Meta.SectionKey)
}

func TestSeedSkipsFormWithOnlyInactiveQuestions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "solo-inactivas")

	q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Vieja"})
	require.NoError(t, err)
	inactive := false
	require.NoError(t, st.UpdateQuestion(ctx, q.QuestionID, store.QuestionPatch{IsActive: &inactive}))

	seeded, err := e.SeedTemplateQuestionsIfEmpty(ctx, form.FormID)
	require.NoError(t, err)
	assert.False(t, seeded)

	active, err := e.FetchFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := e.FetchAllFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLoadSchemaGroupsSections(t *testing.T) {
	e := newEngine(t, store.NewMemoryStore())

	schema, err := e.LoadSchema(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, testSlug, schema.Form.FormSlug)

	keys := []string{}
	for _, s := range schema.Sections {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{
		"informacion_familiar", "direccion", "situacion_terreno",
		"situacion_vivienda", "registro_fotografico", "datos_finales",
	}, keys)
	assert.Len(t, schema.Sections[0].Questions, 8)
	assert.Equal(t, "Situacion del Terreno", schema.Sections[2].Title)
}

func TestCreateQuestionDisambiguatesKeys(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, store.NewMemoryStore())
	form := emptyForm(t, e, "keys")

	a, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Nombre", InputType: "text"})
	require.NoError(t, err)
	b, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: " Nómbre ", InputType: "text"})
	require.NoError(t, err)
	c, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "¿¿??"})
	require.NoError(t, err)

	assert.Equal(t, "nombre", a.QuestionKey)
	assert.Equal(t, "nombre_2", b.QuestionKey)
	assert.Equal(t, "pregunta", c.QuestionKey)
	assert.Equal(t, 1, a.QuestionOrderIndex)
	assert.Equal(t, 2, b.QuestionOrderIndex)
	assert.Equal(t, 3, c.QuestionOrderIndex)

	questions, err := e.FetchFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	byKey := map[string]uuid.UUID{}
	for _, q := range questions {
		byKey[q.QuestionKey] = q.QuestionID
	}
	assert.Equal(t, a.QuestionID, byKey["nombre"])
	assert.Equal(t, b.QuestionID, byKey["nombre_2"])
}

func TestCreateQuestionInputs(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, store.NewMemoryStore())
	form := emptyForm(t, e, "inputs")

	_, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "   "})
	v, ok := helper.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, v.Fields, "label")

	q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Color", InputType: "checkbox"})
	require.NoError(t, err)
	assert.Equal(t, fmodel.InputText, q.QuestionInputType)
	assert.Empty(t, q.Options)
	assert.Equal(t, fmodel.DefaultSectionKey, q.Meta.SectionKey)

	sel, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{
		Label:        "Tiene agua potable",
		InputType:    " RADIO ",
		IsRequired:   true,
		SectionTitle: "Servicios Básicos",
		Placeholder:  " Elija ",
		OptionsCSV:   "Sí, No, , Tal vez",
	})
	require.NoError(t, err)
	assert.Equal(t, fmodel.InputRadio, sel.QuestionInputType)
	assert.Equal(t, "servicios_basicos", sel.Meta.SectionKey)
	assert.Equal(t, "Servicios Básicos", sel.Meta.SectionTitle)
	assert.Equal(t, "Elija", sel.Meta.Placeholder)
	require.Len(t, sel.Options, 3)
	assert.Equal(t, []string{"si", "no", "tal_vez"}, []string{
		sel.Options[0].OptionValue, sel.Options[1].OptionValue, sel.Options[2].OptionValue,
	})
	assert.Equal(t, 3, sel.Options[2].OptionOrderIndex)

	// Options are ignored for types that do not use them.
	txt, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Notas", InputType: "textarea", OptionsCSV: "a,b"})
	require.NoError(t, err)
	assert.Empty(t, txt.Options)
}

func TestParseOptionList(t *testing.T) {
	opts := ParseOptionList(" Casa propia ,, ???, Alquiler ")
	require.Len(t, opts, 3)
	assert.Equal(t, "casa_propia", opts[0].OptionValue)
	assert.Equal(t, "opcion_2", opts[1].OptionValue)
	assert.Equal(t, "???", opts[1].OptionLabel)
	assert.Equal(t, "alquiler", opts[2].OptionValue)
	assert.Empty(t, ParseOptionList("  "))

	long := ParseOptionList("Una opcion con una etiqueta extremadamente larga que supera los sesenta caracteres")
	assert.Len(t, long[0].OptionValue, 60)
}

func TestUpdateQuestionReplacesOptions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "update")

	q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Techo", InputType: "select", OptionsCSV: "Zinc, Teja"})
	require.NoError(t, err)
	oldIDs := []uuid.UUID{q.Options[0].OptionID, q.Options[1].OptionID}

	up, err := e.UpdateQuestion(ctx, q.QuestionID, QuestionInput{
		Label: "Material del techo", InputType: "select", IsRequired: true,
		SectionTitle: "Vivienda", OptionsCSV: "Concreto, Madera, Otro",
	})
	require.NoError(t, err)
	assert.Equal(t, "techo", up.QuestionKey, "key survives label changes")
	assert.Equal(t, "Material del techo", up.QuestionLabel)
	assert.True(t, up.QuestionIsRequired)
	assert.Equal(t, "vivienda", up.Meta.SectionKey)
	require.Len(t, up.Options, 3)

	opts, err := st.ListOptions(ctx, []uuid.UUID{q.QuestionID})
	require.NoError(t, err)
	require.Len(t, opts, 3)
	for _, o := range opts {
		assert.NotContains(t, oldIDs, o.OptionID)
	}

	// Switching to a free-text type drops the options.
	up, err = e.UpdateQuestion(ctx, q.QuestionID, QuestionInput{Label: "Material del techo", InputType: "text"})
	require.NoError(t, err)
	assert.Empty(t, up.Options)

	_, err = e.UpdateQuestion(ctx, q.QuestionID, QuestionInput{Label: ""})
	_, ok := helper.AsValidationError(err)
	assert.True(t, ok)

	_, err = e.UpdateQuestion(ctx, uuid.New(), QuestionInput{Label: "x"})
	assert.True(t, store.IsNotFound(err))
}

func TestReorderPreservesOtherSections(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "reorder")

	var a, b []uuid.UUID
	for _, label := range []string{"A1", "A2", "A3"} {
		q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: label, SectionTitle: "Seccion A"})
		require.NoError(t, err)
		a = append(a, q.QuestionID)
	}
	for _, label := range []string{"B1", "B2"} {
		q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: label, SectionTitle: "Seccion B"})
		require.NoError(t, err)
		b = append(b, q.QuestionID)
	}

	applied, err := e.ReorderSectionQuestions(ctx, form.FormID, "seccion_a", []uuid.UUID{a[2], a[1], a[0]})
	require.NoError(t, err)
	require.True(t, applied)

	assert.Equal(t, 1, orderOf(t, st, a[2]))
	assert.Equal(t, 2, orderOf(t, st, a[1]))
	assert.Equal(t, 3, orderOf(t, st, a[0]))
	assert.Equal(t, 4, orderOf(t, st, b[0]))
	assert.Equal(t, 5, orderOf(t, st, b[1]))
}

func TestReorderUsesExistingSlots(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "slots")

	// Interleave two sections so section X owns slots 1, 3 and 5.
	var x []uuid.UUID
	for i, title := range []string{"X", "Y", "X", "Y", "X"} {
		q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: title + string(rune('a'+i)), SectionTitle: title})
		require.NoError(t, err)
		if title == "X" {
			x = append(x, q.QuestionID)
		}
	}

	applied, err := e.ReorderSectionQuestions(ctx, form.FormID, "x", []uuid.UUID{x[1], x[2], x[0]})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, 1, orderOf(t, st, x[1]))
	assert.Equal(t, 3, orderOf(t, st, x[2]))
	assert.Equal(t, 5, orderOf(t, st, x[0]))
}

func TestReorderRejectsMismatchedIDs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "mismatch")

	var ids []uuid.UUID
	for _, label := range []string{"Nombre", "Telefono"} {
		q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: label})
		require.NoError(t, err)
		ids = append(ids, q.QuestionID)
	}
	edad, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Edad", InputType: "number"})
	require.NoError(t, err)

	cases := map[string][]uuid.UUID{
		"missing new question": {ids[1], ids[0]},
		"duplicate id":         {ids[1], ids[0], ids[0]},
		"foreign id":           {ids[1], ids[0], uuid.New()},
		"empty":                {},
	}
	for name, list := range cases {
		applied, err := e.ReorderSectionQuestions(ctx, form.FormID, "general", list)
		require.NoError(t, err, name)
		assert.False(t, applied, name)
	}

	assert.Equal(t, 1, orderOf(t, st, ids[0]))
	assert.Equal(t, 2, orderOf(t, st, ids[1]))
	assert.Equal(t, 3, orderOf(t, st, edad.QuestionID))
}

func TestRenameSection(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "rename")

	g1, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Uno", Placeholder: "p1"})
	require.NoError(t, err)
	other, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Dos", SectionTitle: "Otra"})
	require.NoError(t, err)
	g2, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Tres"})
	require.NoError(t, err)

	newKey, touched, err := e.RenameSection(ctx, form.FormID, "general", "Datos")
	require.NoError(t, err)
	assert.Equal(t, "datos", newKey)
	assert.Equal(t, 2, touched)

	questions, err := e.FetchFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	meta := map[uuid.UUID]fmodel.QuestionMeta{}
	for _, q := range questions {
		meta[q.QuestionID] = q.Meta
	}
	assert.Equal(t, fmodel.QuestionMeta{SectionKey: "datos", SectionTitle: "Datos", Placeholder: "p1"}, meta[g1.QuestionID])
	assert.Equal(t, "datos", meta[g2.QuestionID].SectionKey)
	assert.Equal(t, "otra", meta[other.QuestionID].SectionKey)
	assert.Equal(t, "Otra", meta[other.QuestionID].SectionTitle)

	_, _, err = e.RenameSection(ctx, form.FormID, "datos", "  ")
	_, ok := helper.AsValidationError(err)
	assert.True(t, ok)
}

func TestRenameSectionRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "rollback")

	for _, label := range []string{"Uno", "Dos"} {
		_, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: label})
		require.NoError(t, err)
	}

	// The second write fails after the first one went through.
	failing := &failAfterStore{MemoryStore: st, allow: 1}
	e.Store = failing
	_, _, err := e.RenameSection(ctx, form.FormID, "general", "Datos")
	require.Error(t, err)

	e.Store = st
	questions, err := e.FetchFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	for _, q := range questions {
		assert.Equal(t, "general", q.Meta.SectionKey)
	}
}

// failAfterStore lets `allow` question updates through and fails the rest.
type failAfterStore struct {
	*store.MemoryStore
	allow int
}

func (f *failAfterStore) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return f.MemoryStore.WithTx(ctx, func(tx store.Store) error {
		return fn(&failAfterStore{MemoryStore: tx.(*store.MemoryStore), allow: f.allow})
	})
}

func (f *failAfterStore) UpdateQuestion(ctx context.Context, id uuid.UUID, p store.QuestionPatch) error {
	if f.allow <= 0 {
		return &store.StoreError{Op: "update question", Err: store.ErrInjected}
	}
	f.allow--
	return f.MemoryStore.UpdateQuestion(ctx, id, p)
}

// openSQLite runs the engine over the GORM adapter with foreign keys enforced.
func openSQLite(t *testing.T) store.Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "engine.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(store.AllModels()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.NewGormStore(db)
}

func TestDeleteQuestion(t *testing.T) {
	stores := map[string]func(t *testing.T) store.Store{
		"memory":      func(t *testing.T) store.Store { return store.NewMemoryStore() },
		"gorm-sqlite": openSQLite,
	}
	for name, open := range stores {
		t.Run(name, func(t *testing.T) { deleteQuestionFlow(t, open(t)) })
	}
}

func deleteQuestionFlow(t *testing.T, st store.Store) {
	ctx := context.Background()
	e := newEngine(t, st)
	form := emptyForm(t, e, "delete")

	unused, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Sin respuestas", InputType: "select", OptionsCSV: "a,b"})
	require.NoError(t, err)
	answered, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Con respuestas"})
	require.NoError(t, err)

	applicant := amodel.NewPendingApplicant()
	require.NoError(t, st.InsertApplicant(ctx, applicant))
	now := time.Now().UTC()
	assessment := &amodel.AssessmentModel{
		AssessmentApplicantID: applicant.ApplicantID,
		AssessmentFormID:      form.FormID,
		AssessmentStatus:      amodel.StatusSubmitted,
		AssessmentSubmittedAt: &now,
	}
	require.NoError(t, st.InsertAssessment(ctx, assessment))
	text := "hola"
	require.NoError(t, st.InsertAnswers(ctx, []amodel.AnswerModel{{
		AnswerAssessmentID: assessment.AssessmentID,
		AnswerQuestionID:   answered.QuestionID,
		AnswerText:         &text,
	}}))

	soft, err := e.DeleteQuestion(ctx, unused.QuestionID)
	require.NoError(t, err)
	assert.False(t, soft)
	_, err = st.FindQuestion(ctx, unused.QuestionID)
	assert.True(t, store.IsNotFound(err))
	opts, err := st.ListOptions(ctx, []uuid.UUID{unused.QuestionID})
	require.NoError(t, err)
	assert.Empty(t, opts)

	soft, err = e.DeleteQuestion(ctx, answered.QuestionID)
	require.NoError(t, err)
	assert.True(t, soft)
	row, err := st.FindQuestion(ctx, answered.QuestionID)
	require.NoError(t, err)
	assert.False(t, row.QuestionIsActive)

	active, err := e.FetchFormQuestions(ctx, form.FormID)
	require.NoError(t, err)
	assert.Empty(t, active)

	_, err = e.DeleteQuestion(ctx, uuid.New())
	assert.True(t, store.IsNotFound(err))
}

func TestDeleteQuestionPropagatesOtherErrors(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	e := newEngine(t, st)
	form := emptyForm(t, e, "errors")

	q, err := e.CreateQuestion(ctx, form.FormID, QuestionInput{Label: "Uno"})
	require.NoError(t, err)

	st.FailNext("delete question", store.ErrInjected)
	_, err = e.DeleteQuestion(ctx, q.QuestionID)
	require.ErrorIs(t, err, store.ErrInjected)

	row, err := st.FindQuestion(ctx, q.QuestionID)
	require.NoError(t, err)
	assert.True(t, row.QuestionIsActive)
}
