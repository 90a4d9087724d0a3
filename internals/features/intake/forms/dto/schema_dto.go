package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"

	fmodel "vivienda_backend/internals/features/intake/forms/model"
	fservice "vivienda_backend/internals/features/intake/forms/service"
)

/* ===============================
   Requests
=================================*/

// QuestionRequest is the form builder payload for create and update. Options
// is a comma separated list of labels, only read for select and radio.
type QuestionRequest struct {
	Label        string `json:"label" form:"label" validate:"max=500"`
	InputType    string `json:"input_type" form:"input_type" validate:"max=32"`
	IsRequired   bool   `json:"is_required" form:"is_required"`
	SectionTitle string `json:"section_title" form:"section_title" validate:"max=200"`
	Placeholder  string `json:"placeholder" form:"placeholder" validate:"max=300"`
	Options      string `json:"options" form:"options"`
}

func (r QuestionRequest) ToInput() fservice.QuestionInput {
	return fservice.QuestionInput{
		Label:        r.Label,
		InputType:    r.InputType,
		IsRequired:   r.IsRequired,
		SectionTitle: r.SectionTitle,
		Placeholder:  r.Placeholder,
		OptionsCSV:   r.Options,
	}
}

type RenameSectionRequest struct {
	SectionTitle string `json:"section_title" form:"section_title" validate:"max=200"`
}

type ReorderSectionRequest struct {
	QuestionIDs []string `json:"question_ids" validate:"required,min=1,dive,uuid"`
}

// ParsedIDs assumes the request passed validation.
func (r ReorderSectionRequest) ParsedIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(r.QuestionIDs))
	for _, raw := range r.QuestionIDs {
		if id, err := uuid.Parse(strings.TrimSpace(raw)); err == nil {
			out = append(out, id)
		}
	}
	return out
}

/* ===============================
   Responses
=================================*/

type FormResponse struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type OptionResponse struct {
	ID         uuid.UUID `json:"id"`
	Label      string    `json:"label"`
	Value      string    `json:"value"`
	OrderIndex int       `json:"order_index"`
}

type QuestionResponse struct {
	ID           uuid.UUID        `json:"id"`
	Key          string           `json:"key"`
	Label        string           `json:"label"`
	InputType    fmodel.InputType `json:"input_type"`
	IsRequired   bool             `json:"is_required"`
	IsActive     bool             `json:"is_active"`
	OrderIndex   int              `json:"order_index"`
	SectionKey   string           `json:"section_key"`
	SectionTitle string           `json:"section_title"`
	Placeholder  string           `json:"placeholder"`
	Options      []OptionResponse `json:"options"`
}

type SectionResponse struct {
	Key       string             `json:"key"`
	Title     string             `json:"title"`
	Questions []QuestionResponse `json:"questions"`
}

type SchemaResponse struct {
	Form     FormResponse      `json:"form"`
	Sections []SectionResponse `json:"sections"`
}

func ToFormResponse(f fmodel.FormModel) FormResponse {
	return FormResponse{
		ID:          f.FormID,
		Slug:        f.FormSlug,
		Title:       f.FormTitle,
		Description: f.FormDescription,
		IsActive:    f.FormIsActive,
		CreatedAt:   f.CreatedAt,
	}
}

func ToQuestionResponse(q fmodel.Question) QuestionResponse {
	opts := make([]OptionResponse, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, OptionResponse{
			ID:         o.OptionID,
			Label:      o.OptionLabel,
			Value:      o.OptionValue,
			OrderIndex: o.OptionOrderIndex,
		})
	}
	return QuestionResponse{
		ID:           q.QuestionID,
		Key:          q.QuestionKey,
		Label:        q.QuestionLabel,
		InputType:    q.QuestionInputType,
		IsRequired:   q.QuestionIsRequired,
		IsActive:     q.QuestionIsActive,
		OrderIndex:   q.QuestionOrderIndex,
		SectionKey:   q.Meta.SectionKey,
		SectionTitle: q.Meta.SectionTitle,
		Placeholder:  q.Meta.Placeholder,
		Options:      opts,
	}
}

func ToSectionResponses(sections []fmodel.Section) []SectionResponse {
	out := make([]SectionResponse, 0, len(sections))
	for _, s := range sections {
		qs := make([]QuestionResponse, 0, len(s.Questions))
		for _, q := range s.Questions {
			qs = append(qs, ToQuestionResponse(q))
		}
		out = append(out, SectionResponse{Key: s.Key, Title: s.Title, Questions: qs})
	}
	return out
}

func ToSchemaResponse(s *fservice.Schema) SchemaResponse {
	return SchemaResponse{
		Form:     ToFormResponse(s.Form),
		Sections: ToSectionResponses(s.Sections),
	}
}
