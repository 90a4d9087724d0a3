package dto

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	amodel "vivienda_backend/internals/features/intake/assessments/model"
	"vivienda_backend/internals/features/intake/assessments/service"
)

const (
	// QuestionFieldPrefix marks the form fields that carry answers.
	QuestionFieldPrefix = "q__"

	FieldFormSlug  = "form_slug"
	FieldHoneypot  = "company"
	FieldStartedAt = "started_at"

	// MinFillTime is how long a human needs at least between page load and submit.
	MinFillTime = 4 * time.Second
)

// SubmissionForm is the public submission after transport decoding.
type SubmissionForm struct {
	IsJSON    bool
	FormSlug  string
	Honeypot  string
	StartedAt *string
	Values    map[string]string
	Files     map[string]*service.UploadedFile
}

// LikelySpam flags a filled honeypot, or a started_at stamp (unix millis)
// that is unreadable or too recent.
func (f *SubmissionForm) LikelySpam(now time.Time) bool {
	if f.Honeypot != "" {
		return true
	}
	if f.StartedAt == nil {
		return false
	}
	raw := strings.TrimSpace(*f.StartedAt)
	if raw == "" {
		raw = "0"
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return true
	}
	return float64(now.UnixMilli())-ms < float64(MinFillTime.Milliseconds())
}

func (f *SubmissionForm) ToInput() service.SubmissionInput {
	return service.SubmissionInput{
		FormSlug: f.FormSlug,
		Values:   f.Values,
		Files:    f.Files,
	}
}

// ParseSubmission reads a JSON, multipart or urlencoded submission.
func ParseSubmission(c *fiber.Ctx) (*SubmissionForm, error) {
	f := &SubmissionForm{
		Values: map[string]string{},
		Files:  map[string]*service.UploadedFile{},
	}
	ct := strings.ToLower(c.Get(fiber.HeaderContentType))

	switch {
	case strings.Contains(ct, fiber.MIMEApplicationJSON):
		f.IsJSON = true
		var raw map[string]any
		if err := c.App().Config().JSONDecoder(c.Body(), &raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			s, ok := jsonScalar(v)
			if !ok {
				continue
			}
			f.assign(k, s)
		}

	case strings.HasPrefix(ct, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		for k, vs := range form.Value {
			if len(vs) > 0 {
				f.assign(k, vs[0])
			}
		}
		if err := f.collectFiles(form); err != nil {
			return nil, err
		}

	default:
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			f.assign(string(k), string(v))
		})
	}

	f.FormSlug = strings.TrimSpace(f.FormSlug)
	return f, nil
}

func (f *SubmissionForm) assign(name, value string) {
	switch {
	case name == FieldFormSlug:
		f.FormSlug = value
	case name == FieldHoneypot:
		f.Honeypot = value
	case name == FieldStartedAt:
		v := value
		f.StartedAt = &v
	case strings.HasPrefix(name, QuestionFieldPrefix):
		if key := strings.TrimPrefix(name, QuestionFieldPrefix); key != "" {
			f.Values[key] = value
		}
	}
}

// collectFiles keeps the first non-empty upload of every q__ file field.
func (f *SubmissionForm) collectFiles(form *multipart.Form) error {
	for name, headers := range form.File {
		key := strings.TrimPrefix(name, QuestionFieldPrefix)
		if key == name || key == "" {
			continue
		}
		for _, fh := range headers {
			if fh == nil || fh.Filename == "" || fh.Size == 0 {
				continue
			}
			data, err := readHeader(fh)
			if err != nil {
				return fmt.Errorf("read upload %s: %w", name, err)
			}
			f.Files[key] = &service.UploadedFile{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
				Data:        data,
			}
			break
		}
	}
	return nil
}

func readHeader(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

func jsonScalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

/* ===============================
   Response
=================================*/

type SubmissionResponse struct {
	AssessmentID uuid.UUID               `json:"assessment_id"`
	ApplicantID  uuid.UUID               `json:"applicant_id"`
	FormSlug     string                  `json:"form_slug"`
	Status       amodel.AssessmentStatus `json:"status"`
	SubmittedAt  time.Time               `json:"submitted_at"`
}

func ToSubmissionResponse(r *service.SubmissionResult) SubmissionResponse {
	return SubmissionResponse{
		AssessmentID: r.AssessmentID,
		ApplicantID:  r.ApplicantID,
		FormSlug:     r.FormSlug,
		Status:       r.Status,
		SubmittedAt:  r.SubmittedAt,
	}
}
