package helper

import (
	"math"
	"strconv"
	"strings"
	"time"
)

func CleanString(v string) string { return strings.TrimSpace(v) }

// ParseNullableNumber returns nil for blank or non-finite input.
func ParseNullableNumber(v string) *float64 {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseBooleanLike accepts 1/true/si/sí/yes and 0/false/no. Anything else is nil.
func ParseBooleanLike(v string) *bool {
	t, f := true, false
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "si", "sí", "yes":
		return &t
	case "0", "false", "no":
		return &f
	}
	return nil
}

// ParseNullableISODate reads YYYY-MM-DD (or RFC3339). Bare dates are pinned
// to 12:00 UTC.
func ParseNullableISODate(v string) *time.Time {
	s := strings.TrimSpace(v)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t
	}
	t, err := time.Parse("2006-01-02T15:04:05Z", s+"T12:00:00Z")
	if err != nil {
		return nil
	}
	return &t
}

// ToBoolean mirrors HTML checkbox semantics.
func ToBoolean(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1":
		return true
	}
	return false
}

// NullableRoundedInt rounds and clamps at zero; nil stays nil.
func NullableRoundedInt(f *float64) *int {
	if f == nil {
		return nil
	}
	n := int(math.Round(math.Max(0, *f)))
	return &n
}
