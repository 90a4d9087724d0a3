package model

import (
	"encoding/json"
	"strings"
)

const (
	DefaultSectionKey   = "general"
	DefaultSectionTitle = "General"
)

// QuestionMeta is the per-question sub-document stored in help_text.
// Unknown fields are ignored on decode.
type QuestionMeta struct {
	SectionKey   string `json:"sectionKey"`
	SectionTitle string `json:"sectionTitle"`
	Placeholder  string `json:"placeholder"`
}

func DefaultQuestionMeta() QuestionMeta {
	return QuestionMeta{SectionKey: DefaultSectionKey, SectionTitle: DefaultSectionTitle}
}

// Normalized trims every field and fills the section defaults.
func (m QuestionMeta) Normalized() QuestionMeta {
	out := QuestionMeta{
		SectionKey:   strings.TrimSpace(m.SectionKey),
		SectionTitle: strings.TrimSpace(m.SectionTitle),
		Placeholder:  strings.TrimSpace(m.Placeholder),
	}
	if out.SectionKey == "" {
		out.SectionKey = DefaultSectionKey
	}
	if out.SectionTitle == "" {
		out.SectionTitle = DefaultSectionTitle
	}
	return out
}

// EncodeQuestionMeta serializes the normalized meta. Field order is fixed by
// the struct, so equal input gives identical bytes.
func EncodeQuestionMeta(m QuestionMeta) string {
	b, err := json.Marshal(m.Normalized())
	if err != nil {
		return `{"sectionKey":"general","sectionTitle":"General","placeholder":""}`
	}
	return string(b)
}

// DecodeQuestionMeta never fails: blank, malformed or non-object input yields
// the defaults, and missing fields are defaulted one by one.
func DecodeQuestionMeta(raw string) QuestionMeta {
	if strings.TrimSpace(raw) == "" {
		return DefaultQuestionMeta()
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil || probe == nil {
		return DefaultQuestionMeta()
	}
	out := QuestionMeta{
		SectionKey:   stringField(probe["sectionKey"]),
		SectionTitle: stringField(probe["sectionTitle"]),
		Placeholder:  stringField(probe["placeholder"]),
	}
	if out.SectionKey == "" {
		out.SectionKey = DefaultSectionKey
	}
	if out.SectionTitle == "" {
		out.SectionTitle = DefaultSectionTitle
	}
	return out
}

// stringField accepts strings and scalar JSON values; objects, arrays and null give "".
func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "true"
		}
		return "false"
	}
	return ""
}
