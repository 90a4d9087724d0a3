package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InputType string

const (
	InputText     InputType = "text"
	InputTextarea InputType = "textarea"
	InputNumber   InputType = "number"
	InputSelect   InputType = "select"
	InputRadio    InputType = "radio"
	InputDate     InputType = "date"
	InputFile     InputType = "file"

	// InputBoolean only shows up on rows written outside the form builder.
	InputBoolean InputType = "boolean"
)

var schemaInputTypes = map[InputType]struct{}{
	InputText: {}, InputTextarea: {}, InputNumber: {}, InputSelect: {},
	InputRadio: {}, InputDate: {}, InputFile: {},
}

// Valid reports whether t is one of the types the form builder can assign.
func (t InputType) Valid() bool {
	_, ok := schemaInputTypes[t]
	return ok
}

func (t InputType) HasOptions() bool { return t == InputSelect || t == InputRadio }

// NormalizeInputType lowercases and trims; unknown values become text.
func NormalizeInputType(raw string) InputType {
	t := InputType(strings.ToLower(strings.TrimSpace(raw)))
	if t.Valid() {
		return t
	}
	return InputText
}

type QuestionModel struct {
	QuestionID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	QuestionFormID        uuid.UUID `gorm:"column:form_id;type:uuid;not null;uniqueIndex:uq_questions_form_key,priority:1;uniqueIndex:uq_questions_form_order,priority:1" json:"form_id"`
	QuestionKey           string    `gorm:"column:question_key;type:varchar(160);not null;uniqueIndex:uq_questions_form_key,priority:2" json:"key"`
	QuestionLabel         string    `gorm:"column:label;type:text;not null" json:"label"`
	QuestionHelpText      string    `gorm:"column:help_text;type:text" json:"-"`
	QuestionInputType     InputType `gorm:"column:input_type;type:varchar(16);not null" json:"input_type"`
	QuestionIsRequired    bool      `gorm:"column:is_required;not null" json:"is_required"`
	QuestionOrderIndex    int       `gorm:"column:order_index;not null;uniqueIndex:uq_questions_form_order,priority:2" json:"order_index"`
	QuestionScoringWeight float64   `gorm:"column:scoring_weight;not null" json:"scoring_weight"`
	QuestionIsActive      bool      `gorm:"column:is_active;not null;index" json:"is_active"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Form *FormModel `gorm:"foreignKey:QuestionFormID;references:FormID;constraint:OnDelete:CASCADE" json:"-"`
}

func (QuestionModel) TableName() string { return "assessment_questions" }

func (m *QuestionModel) BeforeCreate(tx *gorm.DB) error {
	if m.QuestionID == uuid.Nil {
		m.QuestionID = uuid.New()
	}
	return nil
}

type OptionModel struct {
	OptionID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OptionQuestionID uuid.UUID `gorm:"column:question_id;type:uuid;not null;index" json:"question_id"`
	OptionLabel      string    `gorm:"column:option_label;type:text;not null" json:"label"`
	OptionValue      string    `gorm:"column:option_value;type:varchar(160);not null" json:"value"`
	OptionOrderIndex int       `gorm:"column:order_index;not null" json:"order_index"`
	OptionScoreValue float64   `gorm:"column:score_value;not null" json:"score_value"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	Question *QuestionModel `gorm:"foreignKey:OptionQuestionID;references:QuestionID;constraint:OnDelete:CASCADE" json:"-"`
}

func (OptionModel) TableName() string { return "assessment_question_options" }

func (m *OptionModel) BeforeCreate(tx *gorm.DB) error {
	if m.OptionID == uuid.Nil {
		m.OptionID = uuid.New()
	}
	return nil
}

// Question is a question row hydrated with its decoded meta and ordered options.
type Question struct {
	QuestionModel
	Meta    QuestionMeta
	Options []OptionModel
}

func HydrateQuestion(row QuestionModel, options []OptionModel) Question {
	return Question{
		QuestionModel: row,
		Meta:          DecodeQuestionMeta(row.QuestionHelpText),
		Options:       options,
	}
}

// OptionByValue returns the first option whose value equals v.
func (q Question) OptionByValue(v string) (OptionModel, bool) {
	for _, o := range q.Options {
		if o.OptionValue == v {
			return o, true
		}
	}
	return OptionModel{}, false
}

// OptionByID returns the option with the given id, accepting the id in text form.
func (q Question) OptionByID(raw string) (OptionModel, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return OptionModel{}, false
	}
	for _, o := range q.Options {
		if o.OptionID == id {
			return o, true
		}
	}
	return OptionModel{}, false
}

// Section groups questions that share a section key.
type Section struct {
	Key       string
	Title     string
	Questions []Question
}

// GroupQuestionsBySection keeps sections in first-occurrence order and
// questions in input order.
func GroupQuestionsBySection(questions []Question) []Section {
	var out []Section
	idx := map[string]int{}
	for _, q := range questions {
		key := q.Meta.SectionKey
		if key == "" {
			key = DefaultSectionKey
		}
		i, ok := idx[key]
		if !ok {
			title := q.Meta.SectionTitle
			if title == "" {
				title = DefaultSectionTitle
			}
			out = append(out, Section{Key: key, Title: title})
			i = len(out) - 1
			idx[key] = i
		}
		out[i].Questions = append(out[i].Questions, q)
	}
	return out
}
