package templatequestions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplate(t *testing.T) {
	seeds := Default()
	require.Len(t, seeds, 20)

	assert.Equal(t, "nombre_jefe_familia", seeds[0].QuestionKey)
	assert.Equal(t, "fecha_firma", seeds[len(seeds)-1].QuestionKey)

	byKey := map[string]QuestionSeed{}
	for _, s := range seeds {
		assert.True(t, s.IsRequired, s.QuestionKey)
		byKey[s.QuestionKey] = s
	}
	assert.Equal(t, "number", byKey["numero_total_miembros"].InputType)
	assert.Len(t, byKey["estado_civil"].Options, 5)
	assert.Equal(t, "propio_con_documentacion", byKey["situacion_terreno"].Options[0].OptionValue)
	assert.Equal(t, "+506 ...", byKey["telefono_contacto"].Meta().Placeholder)
	assert.Equal(t, "Registro Fotografico", byKey["foto_familia"].Meta().SectionTitle)
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[
		{"question_key":"edad","label":"Edad","input_type":"number","is_required":true}
	]`), 0o600))
	seeds, err := Load(good)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "general", seeds[0].Meta().SectionKey)

	cases := map[string]string{
		"dup.json":     `[{"question_key":"a","label":"A","input_type":"text"},{"question_key":"a","label":"B","input_type":"text"}]`,
		"type.json":    `[{"question_key":"a","label":"A","input_type":"checkbox"}]`,
		"options.json": `[{"question_key":"a","label":"A","input_type":"radio"}]`,
		"empty.json":   `[]`,
		"broken.json":  `[{`,
	}
	for name, body := range cases {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		_, err := Load(p)
		assert.Error(t, err, name)
	}

	seeds, err = Load("")
	require.NoError(t, err)
	assert.Len(t, seeds, 20)
}
