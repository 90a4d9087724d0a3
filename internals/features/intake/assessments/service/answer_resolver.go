package service

import (
	"math"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
	helper "vivienda_backend/internals/helpers"
)

const (
	msgFileRequired  = "Archivo requerido."
	msgFileType      = "Archivo no permitido. Use PNG, JPG, WEBP o HEIC."
	msgFileTooLarge  = "El archivo supera el limite de 10 MB."
	msgRequired      = "Campo requerido."
	msgInvalidNumber = "Debe ser un numero valido."
	msgInvalidOption = "Seleccione una opcion valida."
)

// MaxUploadBytes caps a single uploaded photo.
const MaxUploadBytes = 10 << 20

// allowedUploadTypes is checked against the sniffed content, not the
// declared header.
var allowedUploadTypes = []string{"image/png", "image/jpeg", "image/webp", "image/heic", "image/heif"}

// sniffUpload returns the detected content type when it is allowed.
func sniffUpload(data []byte) (string, bool) {
	detected := mimetype.Detect(data)
	for _, allowed := range allowedUploadTypes {
		if detected.Is(allowed) {
			return allowed, true
		}
	}
	return detected.String(), false
}

// Resolution is what an incoming raw value means for the stored answer:
// either drop it, or write Value.
type Resolution struct {
	Delete bool
	Value  amodel.AnswerValue
}

func deleteAnswer() Resolution { return Resolution{Delete: true} }

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func ptr[T any](v T) *T { return &v }

// ResolveIncomingAnswer maps a raw edited value onto the answer columns.
// Blank values, non-finite numbers and unrecognized booleans clear the
// answer. Options match by value first, then by id; an unmatched option
// keeps the raw text with no option id.
func ResolveIncomingAnswer(q fmodel.Question, raw string) Resolution {
	v := strings.TrimSpace(raw)
	if v == "" {
		return deleteAnswer()
	}

	switch q.QuestionInputType {
	case fmodel.InputNumber:
		n := helper.ParseNullableNumber(v)
		if n == nil {
			return deleteAnswer()
		}
		return Resolution{Value: amodel.AnswerValue{Text: ptr(formatNumber(*n)), Number: n}}

	case fmodel.InputSelect, fmodel.InputRadio:
		opt, ok := q.OptionByValue(v)
		if !ok {
			opt, ok = q.OptionByID(v)
		}
		if !ok {
			return Resolution{Value: amodel.AnswerValue{Text: ptr(v)}}
		}
		return Resolution{Value: amodel.AnswerValue{OptionID: ptr(opt.OptionID), Text: ptr(opt.OptionValue)}}

	case fmodel.InputBoolean:
		b := helper.ParseBooleanLike(v)
		if b == nil {
			return deleteAnswer()
		}
		return Resolution{Value: amodel.AnswerValue{Boolean: b}}
	}

	return Resolution{Value: amodel.AnswerValue{Text: ptr(v)}}
}

// ResolveStoredAnswer is the display value of a stored answer: the option
// value when the option still exists, else number, boolean, then text.
func ResolveStoredAnswer(q fmodel.Question, a *amodel.AnswerModel) string {
	if a == nil {
		return ""
	}
	if a.AnswerOptionID != nil {
		for _, o := range q.Options {
			if o.OptionID == *a.AnswerOptionID {
				return o.OptionValue
			}
		}
		// option replaced since the answer was written
		return deref(a.AnswerText)
	}
	if a.AnswerNumber != nil && !math.IsNaN(*a.AnswerNumber) && !math.IsInf(*a.AnswerNumber, 0) {
		return formatNumber(*a.AnswerNumber)
	}
	if a.AnswerBoolean != nil {
		return strconv.FormatBool(*a.AnswerBoolean)
	}
	return deref(a.AnswerText)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

/* =========================================================
   Public submission validation
========================================================= */

// fieldResult is one question's outcome on a public submission. File
// answers get their text after the upload.
type fieldResult struct {
	Value    amodel.AnswerValue
	HasValue bool
	File     *UploadedFile
	Err      string
}

// validateSubmissionField applies the per-type rules of the public form.
// Unlike ResolveIncomingAnswer it reports bad input instead of dropping it.
func validateSubmissionField(q fmodel.Question, raw string, file *UploadedFile) fieldResult {
	if q.QuestionInputType == fmodel.InputFile {
		hasFile := file != nil && len(file.Data) > 0
		if !hasFile {
			if q.QuestionIsRequired {
				return fieldResult{Err: msgFileRequired}
			}
			return fieldResult{}
		}
		if len(file.Data) > MaxUploadBytes {
			return fieldResult{Err: msgFileTooLarge}
		}
		contentType, ok := sniffUpload(file.Data)
		if !ok {
			return fieldResult{Err: msgFileType}
		}
		checked := *file
		checked.ContentType = contentType
		return fieldResult{HasValue: true, File: &checked}
	}

	v := strings.TrimSpace(raw)
	if v == "" {
		if q.QuestionIsRequired {
			return fieldResult{Err: msgRequired}
		}
		return fieldResult{}
	}

	switch q.QuestionInputType {
	case fmodel.InputNumber:
		n := helper.ParseNullableNumber(v)
		if n == nil {
			return fieldResult{Err: msgInvalidNumber}
		}
		return fieldResult{HasValue: true, Value: amodel.AnswerValue{Number: n, Text: ptr(v)}}

	case fmodel.InputSelect, fmodel.InputRadio:
		opt, ok := q.OptionByValue(v)
		if !ok {
			return fieldResult{Err: msgInvalidOption}
		}
		return fieldResult{HasValue: true, Value: amodel.AnswerValue{OptionID: ptr(opt.OptionID), Text: ptr(v)}}

	case fmodel.InputBoolean:
		b := helper.ParseBooleanLike(v)
		if b == nil {
			return fieldResult{Err: msgInvalidOption}
		}
		return fieldResult{HasValue: true, Value: amodel.AnswerValue{Boolean: b}}
	}

	return fieldResult{HasValue: true, Value: amodel.AnswerValue{Text: ptr(v)}}
}
