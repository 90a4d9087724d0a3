package seeds

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	fservice "vivienda_backend/internals/features/intake/forms/service"
)

// RunAllSeeds makes sure every slug has a form with the template questions.
// Forms that already have questions are left alone.
func RunAllSeeds(ctx context.Context, engine *fservice.SchemaEngine, log *logrus.Logger, slugs ...string) error {
	for _, slug := range slugs {
		form, err := engine.GetOrCreateFormBySlug(ctx, slug)
		if err != nil {
			return fmt.Errorf("seed %s: %w", slug, err)
		}
		seeded, err := engine.SeedTemplateQuestionsIfEmpty(ctx, form.FormID)
		if err != nil {
			return fmt.Errorf("seed %s: %w", slug, err)
		}
		log.WithFields(logrus.Fields{"form_slug": form.FormSlug, "seeded": seeded}).Info("✅ form ready")
	}
	return nil
}
