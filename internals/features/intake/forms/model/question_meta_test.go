package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQuestionMetaRoundTrip(t *testing.T) {
	cases := []QuestionMeta{
		{SectionKey: "general", SectionTitle: "General", Placeholder: ""},
		{SectionKey: "datos_familia", SectionTitle: "Datos de la familia", Placeholder: "Ej: 4"},
		{SectionKey: "vivienda", SectionTitle: "Vivienda \"actual\"", Placeholder: "Línea 1\nLínea 2"},
	}
	for _, m := range cases {
		encoded := EncodeQuestionMeta(m)
		assert.Equal(t, m, DecodeQuestionMeta(encoded))
		assert.Equal(t, encoded, EncodeQuestionMeta(DecodeQuestionMeta(encoded)), "stable bytes")
	}
}

func TestEncodeQuestionMetaFillsDefaults(t *testing.T) {
	assert.Equal(t, `{"sectionKey":"general","sectionTitle":"General","placeholder":""}`, EncodeQuestionMeta(QuestionMeta{}))
	assert.Equal(t, `{"sectionKey":"general","sectionTitle":"General","placeholder":"x"}`, EncodeQuestionMeta(QuestionMeta{Placeholder: "  x "}))
}

func TestDecodeQuestionMetaIsTolerant(t *testing.T) {
	def := DefaultQuestionMeta()
	for _, raw := range []string{"", "   ", "not json", `{"sectionKey":`, "[1,2]", "null", `"text"`, "42"} {
		assert.Equal(t, def, DecodeQuestionMeta(raw), raw)
	}

	// partial and foreign documents keep what they can
	m := DecodeQuestionMeta(`{"sectionTitle":"Casa","version":2,"placeholder":7}`)
	assert.Equal(t, QuestionMeta{SectionKey: "general", SectionTitle: "Casa", Placeholder: "7"}, m)

	m = DecodeQuestionMeta(`{"sectionKey":{"nested":true},"sectionTitle":null}`)
	assert.Equal(t, def, m)
}

func TestGroupQuestionsBySectionKeepsFirstOccurrence(t *testing.T) {
	mk := func(section string, order int) Question {
		return Question{
			QuestionModel: QuestionModel{QuestionID: uuid.New(), QuestionOrderIndex: order},
			Meta:          QuestionMeta{SectionKey: section, SectionTitle: section},
		}
	}
	qs := []Question{mk("zeta", 1), mk("alfa", 2), mk("zeta", 3), mk("", 4)}
	sections := GroupQuestionsBySection(qs)

	assert.Len(t, sections, 3)
	assert.Equal(t, "zeta", sections[0].Key)
	assert.Equal(t, "alfa", sections[1].Key)
	assert.Equal(t, "general", sections[2].Key)
	assert.Equal(t, []int{1, 3}, []int{sections[0].Questions[0].QuestionOrderIndex, sections[0].Questions[1].QuestionOrderIndex})
}

func TestNormalizeInputType(t *testing.T) {
	assert.Equal(t, InputSelect, NormalizeInputType(" SELECT "))
	assert.Equal(t, InputText, NormalizeInputType("checkbox"))
	assert.Equal(t, InputText, NormalizeInputType("boolean"))
	assert.True(t, InputRadio.HasOptions())
	assert.False(t, InputDate.HasOptions())
}
