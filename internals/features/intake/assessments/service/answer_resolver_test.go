package service

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
)

func question(t fmodel.InputType, required bool, opts ...string) fmodel.Question {
	q := fmodel.Question{QuestionModel: fmodel.QuestionModel{
		QuestionID:         uuid.New(),
		QuestionKey:        string(t) + "_q",
		QuestionInputType:  t,
		QuestionIsRequired: required,
		QuestionIsActive:   true,
	}}
	for i, v := range opts {
		q.Options = append(q.Options, fmodel.OptionModel{
			OptionID:         uuid.New(),
			OptionQuestionID: q.QuestionID,
			OptionLabel:      v,
			OptionValue:      v,
			OptionOrderIndex: i + 1,
		})
	}
	return q
}

func TestResolveIncomingAnswer(t *testing.T) {
	num := question(fmodel.InputNumber, true)
	sel := question(fmodel.InputSelect, true, "soltero", "casado")
	boolean := question(fmodel.InputBoolean, false)
	text := question(fmodel.InputText, false)

	t.Run("blank clears", func(t *testing.T) {
		for _, q := range []fmodel.Question{num, sel, boolean, text} {
			assert.True(t, ResolveIncomingAnswer(q, "   ").Delete)
		}
	})

	t.Run("number", func(t *testing.T) {
		r := ResolveIncomingAnswer(num, " 4.50 ")
		require.False(t, r.Delete)
		assert.Equal(t, 4.5, *r.Value.Number)
		assert.Equal(t, "4.5", *r.Value.Text)

		assert.True(t, ResolveIncomingAnswer(num, "cuatro").Delete)
		assert.True(t, ResolveIncomingAnswer(num, "NaN").Delete)
		assert.True(t, ResolveIncomingAnswer(num, "Inf").Delete)
	})

	t.Run("option by value then id", func(t *testing.T) {
		r := ResolveIncomingAnswer(sel, "casado")
		assert.Equal(t, sel.Options[1].OptionID, *r.Value.OptionID)
		assert.Equal(t, "casado", *r.Value.Text)

		r = ResolveIncomingAnswer(sel, sel.Options[0].OptionID.String())
		assert.Equal(t, sel.Options[0].OptionID, *r.Value.OptionID)
		assert.Equal(t, "soltero", *r.Value.Text)

		r = ResolveIncomingAnswer(sel, "otro")
		assert.False(t, r.Delete)
		assert.Nil(t, r.Value.OptionID)
		assert.Equal(t, "otro", *r.Value.Text)
	})

	t.Run("boolean", func(t *testing.T) {
		r := ResolveIncomingAnswer(boolean, "Sí")
		require.NotNil(t, r.Value.Boolean)
		assert.True(t, *r.Value.Boolean)
		assert.Nil(t, r.Value.Text)

		r = ResolveIncomingAnswer(boolean, "no")
		assert.False(t, *r.Value.Boolean)

		assert.True(t, ResolveIncomingAnswer(boolean, "quizas").Delete)
	})

	t.Run("text is trimmed", func(t *testing.T) {
		r := ResolveIncomingAnswer(text, "  Calle 5  ")
		assert.Equal(t, amodel.AnswerValue{Text: ptr("Calle 5")}, r.Value)
	})
}

func TestResolveStoredAnswer(t *testing.T) {
	sel := question(fmodel.InputSelect, true, "soltero", "casado")

	assert.Equal(t, "", ResolveStoredAnswer(sel, nil))

	a := &amodel.AnswerModel{AnswerOptionID: ptr(sel.Options[1].OptionID), AnswerText: ptr("raw")}
	assert.Equal(t, "casado", ResolveStoredAnswer(sel, a))

	// option replaced: the last known text survives
	gone := &amodel.AnswerModel{AnswerOptionID: ptr(uuid.New()), AnswerText: ptr("union_libre")}
	assert.Equal(t, "union_libre", ResolveStoredAnswer(sel, gone))

	num := question(fmodel.InputNumber, false)
	assert.Equal(t, "4", ResolveStoredAnswer(num, &amodel.AnswerModel{AnswerNumber: ptr(4.0), AnswerText: ptr("04")}))
	assert.Equal(t, "04", ResolveStoredAnswer(num, &amodel.AnswerModel{AnswerNumber: ptr(math.NaN()), AnswerText: ptr("04")}))

	b := question(fmodel.InputBoolean, false)
	assert.Equal(t, "false", ResolveStoredAnswer(b, &amodel.AnswerModel{AnswerBoolean: ptr(false)}))
	assert.Equal(t, "hola", ResolveStoredAnswer(b, &amodel.AnswerModel{AnswerText: ptr("hola")}))
}

func TestValidateSubmissionField(t *testing.T) {
	file := question(fmodel.InputFile, true)
	assert.Equal(t, msgFileRequired, validateSubmissionField(file, "", nil).Err)
	assert.Equal(t, msgFileRequired, validateSubmissionField(file, "", &UploadedFile{FileName: "a.png"}).Err)
	res := validateSubmissionField(file, "", &UploadedFile{FileName: "a.png", ContentType: "application/pdf", Data: pngHeader})
	assert.True(t, res.HasValue)
	require.NotNil(t, res.File)
	assert.Equal(t, "image/png", res.File.ContentType)

	optionalFile := question(fmodel.InputFile, false)
	assert.False(t, validateSubmissionField(optionalFile, "", nil).HasValue)

	num := question(fmodel.InputNumber, true)
	assert.Equal(t, msgRequired, validateSubmissionField(num, " ", nil).Err)
	assert.Equal(t, msgInvalidNumber, validateSubmissionField(num, "dos", nil).Err)
	res = validateSubmissionField(num, " 3 ", nil)
	assert.Equal(t, 3.0, *res.Value.Number)
	assert.Equal(t, "3", *res.Value.Text)

	// options match by value only on the public form
	sel := question(fmodel.InputRadio, true, "propio")
	assert.Equal(t, msgInvalidOption, validateSubmissionField(sel, sel.Options[0].OptionID.String(), nil).Err)
	res = validateSubmissionField(sel, "propio", nil)
	assert.Equal(t, sel.Options[0].OptionID, *res.Value.OptionID)

	optionalText := question(fmodel.InputText, false)
	assert.Equal(t, fieldResult{}, validateSubmissionField(optionalText, "", nil))
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestValidateSubmissionFieldUploadTypes(t *testing.T) {
	file := question(fmodel.InputFile, false)

	for name, data := range map[string][]byte{
		"jpeg": []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"),
		"webp": []byte("RIFF\x24\x00\x00\x00WEBPVP8 "),
		"heic": []byte("\x00\x00\x00\x18ftypheic\x00\x00\x00\x00mif1heic"),
	} {
		res := validateSubmissionField(file, "", &UploadedFile{FileName: "foto", Data: data})
		assert.Empty(t, res.Err, name)
		assert.True(t, res.HasValue, name)
	}

	// the declared type does not matter, only the content
	pdf := &UploadedFile{FileName: "casa.png", ContentType: "image/png", Data: []byte("%PDF-1.4 test")}
	assert.Equal(t, msgFileType, validateSubmissionField(file, "", pdf).Err)
	exe := &UploadedFile{FileName: "foto.jpg", ContentType: "image/jpeg", Data: []byte("MZ\x90\x00")}
	assert.Equal(t, msgFileType, validateSubmissionField(file, "", exe).Err)

	big := make([]byte, MaxUploadBytes+1)
	copy(big, pngHeader)
	assert.Equal(t, msgFileTooLarge, validateSubmissionField(file, "", &UploadedFile{FileName: "g.png", Data: big}).Err)

	limit := make([]byte, MaxUploadBytes)
	copy(limit, pngHeader)
	assert.True(t, validateSubmissionField(file, "", &UploadedFile{FileName: "l.png", Data: limit}).HasValue)
}
