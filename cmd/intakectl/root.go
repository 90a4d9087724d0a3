package main

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"vivienda_backend/internals/configs"
	database "vivienda_backend/internals/databases"
	fservice "vivienda_backend/internals/features/intake/forms/service"
	"vivienda_backend/internals/features/intake/store"
	templatequestions "vivienda_backend/internals/seeds/intake/template_questions"
)

const (
	cfgKeyDatabaseURL = "database_url"
	cfgKeyFormSlug    = "default_form_slug"
	cfgKeyTemplate    = "template_questions_path"
	cfgKeyLogLevel    = "log_level"
)

var (
	cfg = viper.New()
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "intakectl",
	Short:         "Operator tasks for the housing intake backend",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configs.LoadEnv()
		log = configs.NewLogger("intakectl")
		if lvl, err := logrus.ParseLevel(cfg.GetString(cfgKeyLogLevel)); err == nil {
			log.SetLevel(lvl)
		}
		return nil
	},
}

func init() {
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	cfg.SetDefault(cfgKeyFormSlug, configs.DefaultFormSlug)
	cfg.SetDefault(cfgKeyLogLevel, "info")

	pf := rootCmd.PersistentFlags()
	pf.String("database-url", "", "postgres DSN (env DATABASE_URL, else DB_* parts)")
	pf.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	_ = cfg.BindPFlag(cfgKeyDatabaseURL, pf.Lookup("database-url"))
	_ = cfg.BindPFlag(cfgKeyLogLevel, pf.Lookup("log-level"))

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(sweepCmd)
}

func openDB() (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.GetString(cfgKeyDatabaseURL))
	if dsn == "" {
		dsn = configs.DatabaseDSN()
	}
	return database.Open(dsn, log)
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newSchemaEngine wires the engine the same way the server does.
func newSchemaEngine(st store.Store) (*fservice.SchemaEngine, error) {
	template, err := templatequestions.Load(cfg.GetString(cfgKeyTemplate))
	if err != nil {
		return nil, err
	}
	return fservice.NewSchemaEngine(st, log, nil, cfg.GetString(cfgKeyFormSlug), template), nil
}
