package helper

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	reNonAlnum     = regexp.MustCompile(`[^a-z0-9]+`)
	reUnsafeFile   = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	reUnderscores  = regexp.MustCompile(`_+`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	maxFileNameLen = 80
)

// stripMarks decomposes s (NFD) and drops nonspacing marks (é → e).
func stripMarks(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SlugKey turns free text into an identifier [a-z0-9_]: lowercase, diacritics
// stripped, non-alphanumeric runs collapsed to "_", edges trimmed.
// Returns fallback when nothing is left.
func SlugKey(s, fallback string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = stripMarks(s)
	s = reNonAlnum.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return fallback
	}
	return s
}

// TruncateKey cuts a key to maxLen runes.
func TruncateKey(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// LookupKey normalizes text for loose comparisons (case, accents, spacing).
func LookupKey(s string) string {
	s = strings.ToLower(s)
	s = stripMarks(s)
	s = reWhitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// MaxFormSlugLen matches the slug column of assessment_forms.
const MaxFormSlugLen = 160

// NormalizeFormSlug decodes percent-encoding and trims. Input that is empty,
// undecodable, not valid UTF-8, carries a NUL or does not fit the column
// falls back to def.
func NormalizeFormSlug(raw, def string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def
	}
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return def
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" || !utf8.ValidString(decoded) || strings.ContainsRune(decoded, 0) {
		return def
	}
	if utf8.RuneCountInString(decoded) > MaxFormSlugLen {
		return def
	}
	return decoded
}

// SafeFileName keeps [a-zA-Z0-9._-], replaces the rest with "_" and caps the
// length at 80 chars.
func SafeFileName(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "archivo"
	}
	s := stripMarks(name)
	s = reUnsafeFile.ReplaceAllString(s, "_")
	s = reUnderscores.ReplaceAllString(s, "_")
	if len(s) > maxFileNameLen {
		s = s[:maxFileNameLen]
	}
	return s
}

// UniqueKey returns base, or base_2, base_3, ... as soon as taken reports the
// candidate as free. Gives up after maxTries candidates.
func UniqueKey(ctx context.Context, base string, maxTries int, taken func(ctx context.Context, candidate string) (bool, error)) (string, error) {
	if maxTries <= 0 {
		maxTries = 500
	}
	candidate := base
	for i := 0; i < maxTries; i++ {
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i+2)
	}
	return "", fmt.Errorf("no free key for %q after %d attempts", base, maxTries)
}
