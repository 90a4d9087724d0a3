package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	database "vivienda_backend/internals/databases"
	aservice "vivienda_backend/internals/features/intake/assessments/service"
	fmodel "vivienda_backend/internals/features/intake/forms/model"
	"vivienda_backend/internals/features/intake/store"
	"vivienda_backend/internals/seeds"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update every intake table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)
		return database.Migrate(db, log)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Get or create a form and load the template questions when it is empty",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slugs, _ := cmd.Flags().GetStringSlice("slug")
		if len(slugs) == 0 {
			slugs = []string{cfg.GetString(cfgKeyFormSlug)}
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		engine, err := newSchemaEngine(store.NewGormStore(db))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		return seeds.RunAllSeeds(ctx, engine, log, slugs...)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the sections and questions of a form",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, _ := cmd.Flags().GetString("slug")
		if slug == "" {
			slug = cfg.GetString(cfgKeyFormSlug)
		}
		all, _ := cmd.Flags().GetBool("all")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		engine, err := newSchemaEngine(store.NewGormStore(db))
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		schema, err := engine.LoadSchema(ctx, slug)
		if err != nil {
			return err
		}
		if all {
			qs, err := engine.FetchAllFormQuestions(ctx, schema.Form.FormID)
			if err != nil {
				return err
			}
			schema.Sections = fmodel.GroupQuestionsBySection(qs)
		}
		printSchema(cmd, schema)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete applicants left without an assessment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		grace, _ := cmd.Flags().GetDuration("grace")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		sweeper := aservice.NewOrphanSweeper(store.NewGormStore(db), log, nil)
		if grace > 0 {
			sweeper.Grace = grace
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d orphan applicants\n", n)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringSlice("slug", nil, "form slug to seed (repeatable, default DEFAULT_FORM_SLUG)")
	schemaCmd.Flags().String("slug", "", "form slug (default DEFAULT_FORM_SLUG)")
	schemaCmd.Flags().Bool("all", false, "include inactive questions")
	sweepCmd.Flags().Duration("grace", 0, "minimum applicant age (default one hour)")
}
