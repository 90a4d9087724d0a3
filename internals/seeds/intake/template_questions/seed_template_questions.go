package templatequestions

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"

	fmodel "vivienda_backend/internals/features/intake/forms/model"
)

//go:embed data_template_questions.json
var embeddedTemplate []byte

type OptionSeed struct {
	OptionLabel string `json:"option_label"`
	OptionValue string `json:"option_value"`
}

type QuestionSeed struct {
	QuestionKey  string       `json:"question_key"`
	Label        string       `json:"label"`
	InputType    string       `json:"input_type"`
	IsRequired   bool         `json:"is_required"`
	SectionKey   string       `json:"section_key"`
	SectionTitle string       `json:"section_title"`
	Placeholder  string       `json:"placeholder"`
	Options      []OptionSeed `json:"options"`
}

// Meta returns the encoded metadata stored with the seeded question.
func (q QuestionSeed) Meta() fmodel.QuestionMeta {
	return fmodel.QuestionMeta{
		SectionKey:   q.SectionKey,
		SectionTitle: q.SectionTitle,
		Placeholder:  q.Placeholder,
	}.Normalized()
}

// Default returns the built-in housing intake template.
func Default() []QuestionSeed {
	seeds, err := parse(embeddedTemplate)
	if err != nil {
		panic(fmt.Sprintf("embedded question template: %v", err))
	}
	return seeds
}

// Load reads a template from path; an empty path yields Default().
func Load(path string) ([]QuestionSeed, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question template %s: %w", path, err)
	}
	seeds, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("question template %s: %w", path, err)
	}
	return seeds, nil
}

func parse(raw []byte) ([]QuestionSeed, error) {
	var seeds []QuestionSeed
	if err := sonic.Unmarshal(raw, &seeds); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("template has no questions")
	}
	seen := map[string]struct{}{}
	for i, s := range seeds {
		if s.QuestionKey == "" || s.Label == "" {
			return nil, fmt.Errorf("entry %d: question_key and label are required", i+1)
		}
		if _, dup := seen[s.QuestionKey]; dup {
			return nil, fmt.Errorf("entry %d: duplicate question_key %q", i+1, s.QuestionKey)
		}
		seen[s.QuestionKey] = struct{}{}

		t := fmodel.InputType(s.InputType)
		if !t.Valid() {
			return nil, fmt.Errorf("entry %d: unknown input_type %q", i+1, s.InputType)
		}
		if t.HasOptions() && len(s.Options) == 0 {
			return nil, fmt.Errorf("entry %d: %s question %q needs options", i+1, t, s.QuestionKey)
		}
	}
	return seeds, nil
}
