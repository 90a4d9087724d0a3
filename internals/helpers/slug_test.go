package helper

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugKey(t *testing.T) {
	cases := map[string]string{
		"Nombre":                    "nombre",
		"  Situación del Terreno  ": "situacion_del_terreno",
		"¿Cuántos años?":            "cuantos_anos",
		"__A--B__":                  "a_b",
		"Teléfono (contacto) #1":    "telefono_contacto_1",
	}
	for in, want := range cases {
		assert.Equal(t, want, SlugKey(in, "x"), in)
	}
	assert.Equal(t, "pregunta", SlugKey("¡¿?!", "pregunta"))
	assert.Equal(t, "pregunta", SlugKey("", "pregunta"))
}

func TestLookupKey(t *testing.T) {
	assert.Equal(t, "san jose centro", LookupKey("  SAN   JOSÉ\tcentro "))
}

func TestNormalizeFormSlug(t *testing.T) {
	assert.Equal(t, "def", NormalizeFormSlug("", "def"))
	assert.Equal(t, "def", NormalizeFormSlug("%zz", "def"))
	assert.Equal(t, "vivienda 2026", NormalizeFormSlug(" vivienda%202026 ", "def"))
	assert.Equal(t, "def", NormalizeFormSlug("%FF", "def"))
	assert.Equal(t, "def", NormalizeFormSlug("a%00b", "def"))
	assert.Equal(t, "def", NormalizeFormSlug(strings.Repeat("a", MaxFormSlugLen+1), "def"))
	long := strings.Repeat("ñ", MaxFormSlugLen)
	assert.Equal(t, long, NormalizeFormSlug(long, "def"))
}

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "Foto_de_la_casa.jpg", SafeFileName("Foto de la casa.jpg"))
	assert.Equal(t, "nino_.png", SafeFileName("niño?!.png"))
	assert.Equal(t, "archivo", SafeFileName("  "))
	assert.Len(t, SafeFileName(strings.Repeat("a", 200)+".pdf"), 80)
}

func TestUniqueKey(t *testing.T) {
	taken := map[string]bool{"nombre": true, "nombre_2": true}
	probe := func(_ context.Context, k string) (bool, error) { return taken[k], nil }

	k, err := UniqueKey(context.Background(), "nombre", 10, probe)
	require.NoError(t, err)
	assert.Equal(t, "nombre_3", k)

	_, err = UniqueKey(context.Background(), "nombre", 2, probe)
	assert.Error(t, err)

	boom := errors.New("db down")
	_, err = UniqueKey(context.Background(), "x", 5, func(context.Context, string) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
}
