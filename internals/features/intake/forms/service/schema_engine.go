package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	fmodel "vivienda_backend/internals/features/intake/forms/model"
	"vivienda_backend/internals/features/intake/store"
	helper "vivienda_backend/internals/helpers"
	"vivienda_backend/internals/metrics"
	templatequestions "vivienda_backend/internals/seeds/intake/template_questions"
)

const (
	maxQuestionKeyLen = 150
	maxOptionValueLen = 60
	maxKeyProbes      = 500
)

const msgRequired = "Campo requerido."

// QuestionInput is what the form builder sends for create and update.
type QuestionInput struct {
	Label        string
	InputType    string
	IsRequired   bool
	SectionTitle string
	Placeholder  string
	OptionsCSV   string
}

// Schema is a form with its active questions grouped by section.
type Schema struct {
	Form     fmodel.FormModel
	Sections []fmodel.Section
}

type SchemaEngine struct {
	Store       store.Store
	Log         *logrus.Logger
	Metrics     *metrics.Metrics
	DefaultSlug string
	Template    []templatequestions.QuestionSeed
}

func NewSchemaEngine(st store.Store, log *logrus.Logger, m *metrics.Metrics, defaultSlug string, template []templatequestions.QuestionSeed) *SchemaEngine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if len(template) == 0 {
		template = templatequestions.Default()
	}
	return &SchemaEngine{Store: st, Log: log, Metrics: m, DefaultSlug: defaultSlug, Template: template}
}

/* =========================================================
   Forms
========================================================= */

// GetOrCreateFormBySlug returns the form for slug, creating it on first use.
// A concurrent insert of the same slug is resolved with one extra lookup.
func (e *SchemaEngine) GetOrCreateFormBySlug(ctx context.Context, rawSlug string) (*fmodel.FormModel, error) {
	slug := helper.NormalizeFormSlug(rawSlug, e.DefaultSlug)

	form, err := e.Store.FindFormBySlug(ctx, slug)
	if err == nil {
		return form, nil
	}
	if !store.IsNotFound(err) {
		return nil, err
	}

	form = fmodel.NewDefaultForm(slug)
	err = e.Store.InsertForm(ctx, form)
	if err == nil {
		e.Log.WithField("form_slug", slug).Info("✅ form created")
		return form, nil
	}
	if !store.IsConflict(err, store.ConflictUnique) {
		return nil, err
	}

	e.Log.WithField("form_slug", slug).Debug("[SchemaEngine] form created concurrently, reloading")
	form, err = e.Store.FindFormBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("reload form %q after concurrent create: %w", slug, err)
	}
	return form, nil
}

// SeedTemplateQuestionsIfEmpty inserts the template when the form has no
// questions at all, active or not. It reports whether it seeded.
func (e *SchemaEngine) SeedTemplateQuestionsIfEmpty(ctx context.Context, formID uuid.UUID) (bool, error) {
	seeded := false
	err := e.Store.WithTx(ctx, func(tx store.Store) error {
		n, err := tx.CountQuestions(ctx, formID)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		for i, item := range e.Template {
			q := &fmodel.QuestionModel{
				QuestionID:            uuid.New(),
				QuestionFormID:        formID,
				QuestionKey:           item.QuestionKey,
				QuestionLabel:         item.Label,
				QuestionHelpText:      fmodel.EncodeQuestionMeta(item.Meta()),
				QuestionInputType:     fmodel.InputType(item.InputType),
				QuestionIsRequired:    item.IsRequired,
				QuestionOrderIndex:    i + 1,
				QuestionScoringWeight: 1,
				QuestionIsActive:      true,
			}
			if err := tx.InsertQuestion(ctx, q); err != nil {
				return err
			}
			if len(item.Options) == 0 {
				continue
			}
			opts := make([]fmodel.OptionModel, 0, len(item.Options))
			for j, o := range item.Options {
				opts = append(opts, fmodel.OptionModel{
					OptionQuestionID: q.QuestionID,
					OptionLabel:      o.OptionLabel,
					OptionValue:      o.OptionValue,
					OptionOrderIndex: j + 1,
				})
			}
			if err := tx.InsertOptions(ctx, opts); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})

	switch {
	case err == nil:
	case store.IsConflict(err, store.ConflictUnique):
		// Another request seeded the same form between our count and insert.
		e.Log.WithField("form_id", formID).Debug("[SchemaEngine] template already seeded concurrently")
		return false, nil
	default:
		return false, err
	}

	if seeded {
		e.Log.WithFields(logrus.Fields{"form_id": formID, "questions": len(e.Template)}).Info("✅ template questions seeded")
	}
	return seeded, nil
}

// FetchFormQuestions returns the active questions ordered by order_index,
// each with its ordered options and decoded metadata.
func (e *SchemaEngine) FetchFormQuestions(ctx context.Context, formID uuid.UUID) ([]fmodel.Question, error) {
	return FetchQuestions(ctx, e.Store, formID, true)
}

// FetchAllFormQuestions also returns deactivated questions, for resolving
// answers collected before a soft delete.
func (e *SchemaEngine) FetchAllFormQuestions(ctx context.Context, formID uuid.UUID) ([]fmodel.Question, error) {
	return FetchQuestions(ctx, e.Store, formID, false)
}

// FetchQuestions loads and hydrates questions through st, which may be a
// transaction.
func FetchQuestions(ctx context.Context, st store.Store, formID uuid.UUID, activeOnly bool) ([]fmodel.Question, error) {
	rows, err := st.ListQuestions(ctx, store.QuestionFilter{FormID: formID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []fmodel.Question{}, nil
	}

	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		ids[i] = r.QuestionID
	}
	opts, err := st.ListOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	byQuestion := make(map[uuid.UUID][]fmodel.OptionModel, len(rows))
	for _, o := range opts {
		byQuestion[o.OptionQuestionID] = append(byQuestion[o.OptionQuestionID], o)
	}

	out := make([]fmodel.Question, len(rows))
	for i, r := range rows {
		out[i] = fmodel.HydrateQuestion(r, byQuestion[r.QuestionID])
	}
	return out, nil
}

// LoadSchema get-or-creates the form, seeds it when empty and groups its
// active questions by section.
func (e *SchemaEngine) LoadSchema(ctx context.Context, rawSlug string) (*Schema, error) {
	form, err := e.GetOrCreateFormBySlug(ctx, rawSlug)
	if err != nil {
		return nil, err
	}
	if _, err := e.SeedTemplateQuestionsIfEmpty(ctx, form.FormID); err != nil {
		return nil, err
	}
	questions, err := e.FetchFormQuestions(ctx, form.FormID)
	if err != nil {
		return nil, err
	}
	return &Schema{Form: *form, Sections: fmodel.GroupQuestionsBySection(questions)}, nil
}

/* =========================================================
   Questions
========================================================= */

// ParseOptionList splits a comma separated list of labels into option rows
// with slugged values and 1-based order.
func ParseOptionList(raw string) []fmodel.OptionModel {
	out := []fmodel.OptionModel{}
	for _, part := range strings.Split(raw, ",") {
		label := strings.TrimSpace(part)
		if label == "" {
			continue
		}
		n := len(out) + 1
		out = append(out, fmodel.OptionModel{
			OptionLabel:      label,
			OptionValue:      helper.TruncateKey(helper.SlugKey(label, fmt.Sprintf("opcion_%d", n)), maxOptionValueLen),
			OptionOrderIndex: n,
		})
	}
	return out
}

func metaFromInput(in QuestionInput) fmodel.QuestionMeta {
	title := strings.TrimSpace(in.SectionTitle)
	if title == "" {
		title = fmodel.DefaultSectionTitle
	}
	return fmodel.QuestionMeta{
		SectionKey:   helper.SlugKey(title, fmodel.DefaultSectionKey),
		SectionTitle: title,
		Placeholder:  in.Placeholder,
	}.Normalized()
}

func optionsFor(t fmodel.InputType, csv string, questionID uuid.UUID) []fmodel.OptionModel {
	if !t.HasOptions() {
		return nil
	}
	opts := ParseOptionList(csv)
	for i := range opts {
		opts[i].OptionQuestionID = questionID
	}
	return opts
}

// CreateQuestion appends a question to the form. The key is derived from the
// label and disambiguated with _2, _3, ... inside the form.
func (e *SchemaEngine) CreateQuestion(ctx context.Context, formID uuid.UUID, in QuestionInput) (*fmodel.Question, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return nil, helper.NewValidationError("label", msgRequired)
	}
	inputType := fmodel.NormalizeInputType(in.InputType)
	meta := metaFromInput(in)

	var created fmodel.Question
	err := e.Store.WithTx(ctx, func(tx store.Store) error {
		base := helper.TruncateKey(helper.SlugKey(label, "pregunta"), maxQuestionKeyLen)
		key, err := helper.UniqueKey(ctx, base, maxKeyProbes, func(ctx context.Context, candidate string) (bool, error) {
			return tx.QuestionKeyExists(ctx, formID, candidate)
		})
		if err != nil {
			return err
		}

		maxOrder, err := tx.MaxQuestionOrder(ctx, formID)
		if err != nil {
			return err
		}

		row := fmodel.QuestionModel{
			QuestionID:            uuid.New(),
			QuestionFormID:        formID,
			QuestionKey:           key,
			QuestionLabel:         label,
			QuestionHelpText:      fmodel.EncodeQuestionMeta(meta),
			QuestionInputType:     inputType,
			QuestionIsRequired:    in.IsRequired,
			QuestionOrderIndex:    maxOrder + 1,
			QuestionScoringWeight: 1,
			QuestionIsActive:      true,
		}
		if err := tx.InsertQuestion(ctx, &row); err != nil {
			return err
		}
		opts := optionsFor(inputType, in.OptionsCSV, row.QuestionID)
		if err := tx.InsertOptions(ctx, opts); err != nil {
			return err
		}
		created = fmodel.HydrateQuestion(row, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Metrics.SchemaEdit("create")
	e.Log.WithFields(logrus.Fields{"form_id": formID, "question_key": created.QuestionKey}).Info("✅ question created")
	return &created, nil
}

// UpdateQuestion overwrites label, type, required flag and metadata, then
// replaces the option set. Option ids do not survive the replace; answers that
// pointed at a dropped option keep their stored text.
func (e *SchemaEngine) UpdateQuestion(ctx context.Context, questionID uuid.UUID, in QuestionInput) (*fmodel.Question, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return nil, helper.NewValidationError("label", msgRequired)
	}
	inputType := fmodel.NormalizeInputType(in.InputType)
	helpText := fmodel.EncodeQuestionMeta(metaFromInput(in))

	var updated fmodel.Question
	err := e.Store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.UpdateQuestion(ctx, questionID, store.QuestionPatch{
			Label:      &label,
			InputType:  &inputType,
			IsRequired: &in.IsRequired,
			HelpText:   &helpText,
		}); err != nil {
			return err
		}
		if err := tx.DeleteOptionsByQuestion(ctx, questionID); err != nil {
			return err
		}
		opts := optionsFor(inputType, in.OptionsCSV, questionID)
		if err := tx.InsertOptions(ctx, opts); err != nil {
			return err
		}
		row, err := tx.FindQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		updated = fmodel.HydrateQuestion(*row, opts)
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.Metrics.SchemaEdit("update")
	return &updated, nil
}

// DeleteQuestion removes the question, or deactivates it when answers still
// reference it. It reports whether the soft path was taken.
func (e *SchemaEngine) DeleteQuestion(ctx context.Context, questionID uuid.UUID) (softDeleted bool, err error) {
	if _, err := e.Store.FindQuestion(ctx, questionID); err != nil {
		return false, err
	}

	err = e.Store.DeleteQuestion(ctx, questionID)
	switch {
	case err == nil:
		e.Metrics.SchemaEdit("delete")
		return false, nil
	case !store.IsConflict(err, store.ConflictForeignKey):
		return false, err
	}

	inactive := false
	if err := e.Store.UpdateQuestion(ctx, questionID, store.QuestionPatch{IsActive: &inactive}); err != nil {
		return false, err
	}
	e.Metrics.SchemaEdit("soft_delete")
	e.Log.WithField("question_id", questionID).Info("[SchemaEngine] question has answers, deactivated instead of deleted")
	return true, nil
}

/* =========================================================
   Sections
========================================================= */

// RenameSection retitles every active question of sectionKey and moves them
// to the key derived from the new title. Returns the new key and the number
// of questions touched.
func (e *SchemaEngine) RenameSection(ctx context.Context, formID uuid.UUID, sectionKey, newTitle string) (string, int, error) {
	sectionKey = strings.TrimSpace(sectionKey)
	if sectionKey == "" {
		sectionKey = fmodel.DefaultSectionKey
	}
	newTitle = strings.TrimSpace(newTitle)
	if newTitle == "" {
		return "", 0, helper.NewValidationError("section_title", msgRequired)
	}
	newKey := helper.SlugKey(newTitle, fmodel.DefaultSectionKey)

	touched := 0
	err := e.Store.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.ListQuestions(ctx, store.QuestionFilter{FormID: formID, ActiveOnly: true})
		if err != nil {
			return err
		}
		for _, r := range rows {
			meta := fmodel.DecodeQuestionMeta(r.QuestionHelpText)
			if meta.SectionKey != sectionKey {
				continue
			}
			meta.SectionKey, meta.SectionTitle = newKey, newTitle
			helpText := fmodel.EncodeQuestionMeta(meta)
			if err := tx.UpdateQuestion(ctx, r.QuestionID, store.QuestionPatch{HelpText: &helpText}); err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	if err != nil {
		return "", 0, err
	}

	if touched > 0 {
		e.Metrics.SchemaEdit("rename_section")
	}
	return newKey, touched, nil
}

// ReorderSectionQuestions reassigns the section's existing order slots to
// orderedIDs positionally. The list must be exactly the section's active
// question ids; anything else is ignored and reported as not applied.
func (e *SchemaEngine) ReorderSectionQuestions(ctx context.Context, formID uuid.UUID, sectionKey string, orderedIDs []uuid.UUID) (bool, error) {
	sectionKey = strings.TrimSpace(sectionKey)
	if sectionKey == "" {
		sectionKey = fmodel.DefaultSectionKey
	}

	applied := false
	err := e.Store.WithTx(ctx, func(tx store.Store) error {
		rows, err := tx.ListQuestions(ctx, store.QuestionFilter{FormID: formID, ActiveOnly: true})
		if err != nil {
			return err
		}

		current := map[uuid.UUID]int{}
		slots := []int{}
		for _, r := range rows {
			if fmodel.DecodeQuestionMeta(r.QuestionHelpText).SectionKey != sectionKey {
				continue
			}
			current[r.QuestionID] = r.QuestionOrderIndex
			slots = append(slots, r.QuestionOrderIndex)
		}
		if !sameMembers(current, orderedIDs) {
			return nil
		}
		sort.Ints(slots)

		moves := map[uuid.UUID]int{}
		for i, id := range orderedIDs {
			if current[id] != slots[i] {
				moves[id] = slots[i]
			}
		}

		// (form_id, order_index) is unique, so park moved rows on their
		// negated slot before writing the final values.
		for id := range moves {
			parked := -current[id]
			if err := tx.UpdateQuestion(ctx, id, store.QuestionPatch{OrderIndex: &parked}); err != nil {
				return err
			}
		}
		for id, slot := range moves {
			if err := tx.UpdateQuestion(ctx, id, store.QuestionPatch{OrderIndex: &slot}); err != nil {
				return err
			}
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		e.Metrics.SchemaEdit("reorder")
	} else {
		e.Log.WithFields(logrus.Fields{"form_id": formID, "section_key": sectionKey}).
			Debug("[SchemaEngine] reorder ignored, id list does not match section")
	}
	return applied, nil
}

func sameMembers(current map[uuid.UUID]int, ids []uuid.UUID) bool {
	if len(ids) != len(current) || len(ids) == 0 {
		return false
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := current[id]; !ok {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}
