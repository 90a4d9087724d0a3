package dto

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestLikelySpam(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	ms := func(d time.Duration) *string {
		return strPtr(strconv.FormatInt(now.Add(-d).UnixMilli(), 10))
	}

	cases := []struct {
		name string
		form SubmissionForm
		want bool
	}{
		{"clean without stamp", SubmissionForm{}, false},
		{"honeypot filled", SubmissionForm{Honeypot: "ACME"}, true},
		{"filled slowly", SubmissionForm{StartedAt: ms(10 * time.Second)}, false},
		{"exactly the minimum", SubmissionForm{StartedAt: ms(MinFillTime)}, false},
		{"filled too fast", SubmissionForm{StartedAt: ms(time.Second)}, true},
		{"stamp in the future", SubmissionForm{StartedAt: ms(-time.Minute)}, true},
		{"not a number", SubmissionForm{StartedAt: strPtr("ayer")}, true},
		{"blank stamp reads as epoch", SubmissionForm{StartedAt: strPtr("  ")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.form.LikelySpam(now))
		})
	}
}

// parse runs ParseSubmission inside a throwaway app and returns what it saw.
func parse(t *testing.T, req *http.Request) *SubmissionForm {
	t.Helper()
	var got *SubmissionForm
	app := fiber.New()
	app.Post("/", func(c *fiber.Ctx) error {
		f, err := ParseSubmission(c)
		if err != nil {
			return err
		}
		got = f
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.NotNil(t, got)
	return got
}

func TestParseSubmissionJSON(t *testing.T) {
	body := `{"form_slug":" vivienda-2026 ","started_at":1760000000000,"company":"",` +
		`"q__numero_total_miembros":4,"q__tiene_agua":true,"q__nombre":"Ana","q__lista":["a"],"otro":"x","q__":"y"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, "application/json; charset=utf-8")

	f := parse(t, req)
	assert.True(t, f.IsJSON)
	assert.Equal(t, "vivienda-2026", f.FormSlug)
	require.NotNil(t, f.StartedAt)
	assert.Equal(t, "1760000000000", *f.StartedAt)
	assert.Equal(t, map[string]string{
		"numero_total_miembros": "4",
		"tiene_agua":            "true",
		"nombre":                "Ana",
	}, f.Values)
	assert.Empty(t, f.Files)
}

func TestParseSubmissionURLEncoded(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("form_slug=vivienda&q__barrio=San+Rafael&company=bot"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	f := parse(t, req)
	assert.False(t, f.IsJSON)
	assert.Equal(t, "vivienda", f.FormSlug)
	assert.Equal(t, "bot", f.Honeypot)
	assert.Nil(t, f.StartedAt)
	assert.Equal(t, "San Rafael", f.Values["barrio"])
}

func TestParseSubmissionMultipartKeepsFirstFile(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("form_slug", "vivienda"))
	require.NoError(t, w.WriteField("q__nombre", "Luis"))

	empty, err := w.CreateFormFile("q__foto", "vacio.jpg")
	require.NoError(t, err)
	_, _ = empty.Write(nil)
	first, err := w.CreateFormFile("q__foto", "casa.jpg")
	require.NoError(t, err)
	_, _ = first.Write([]byte("jpeg-bytes"))
	second, err := w.CreateFormFile("q__foto", "patio.jpg")
	require.NoError(t, err)
	_, _ = second.Write([]byte("other"))
	stray, err := w.CreateFormFile("adjunto", "x.txt")
	require.NoError(t, err)
	_, _ = stray.Write([]byte("x"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())

	f := parse(t, req)
	assert.Equal(t, "Luis", f.Values["nombre"])
	require.Len(t, f.Files, 1)
	assert.Equal(t, "casa.jpg", f.Files["foto"].FileName)
	assert.Equal(t, []byte("jpeg-bytes"), f.Files["foto"].Data)
}
