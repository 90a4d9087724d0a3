package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNullableNumber(t *testing.T) {
	require.NotNil(t, ParseNullableNumber(" 4.5 "))
	assert.Equal(t, 4.5, *ParseNullableNumber(" 4.5 "))
	assert.Nil(t, ParseNullableNumber(""))
	assert.Nil(t, ParseNullableNumber("abc"))
	assert.Nil(t, ParseNullableNumber("NaN"))
	assert.Nil(t, ParseNullableNumber("-Inf"))
}

func TestParseBooleanLike(t *testing.T) {
	for _, v := range []string{"1", "TRUE", "si", "Sí", "yes"} {
		b := ParseBooleanLike(v)
		require.NotNil(t, b, v)
		assert.True(t, *b, v)
	}
	for _, v := range []string{"0", "false", "No"} {
		b := ParseBooleanLike(v)
		require.NotNil(t, b, v)
		assert.False(t, *b, v)
	}
	assert.Nil(t, ParseBooleanLike("tal vez"))
}

func TestParseNullableISODate(t *testing.T) {
	d := ParseNullableISODate("2026-02-01")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), *d)

	d = ParseNullableISODate("2026-02-01T08:30:00-06:00")
	require.NotNil(t, d)
	assert.Equal(t, time.Date(2026, 2, 1, 14, 30, 0, 0, time.UTC), *d)

	assert.Nil(t, ParseNullableISODate("01/02/2026"))
	assert.Nil(t, ParseNullableISODate(" "))
}

func TestNullableRoundedInt(t *testing.T) {
	assert.Nil(t, NullableRoundedInt(nil))
	f := 3.5
	assert.Equal(t, 4, *NullableRoundedInt(&f))
	neg := -3.0
	assert.Equal(t, 0, *NullableRoundedInt(&neg))
}
