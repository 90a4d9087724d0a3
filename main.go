package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/robfig/cron/v3"

	"vivienda_backend/internals/configs"
	database "vivienda_backend/internals/databases"
	aservice "vivienda_backend/internals/features/intake/assessments/service"
	fservice "vivienda_backend/internals/features/intake/forms/service"
	"vivienda_backend/internals/features/intake/store"
	helper "vivienda_backend/internals/helpers"
	"vivienda_backend/internals/helpers/filestore"
	"vivienda_backend/internals/metrics"
	middlewares "vivienda_backend/internals/middlewares"
	routes "vivienda_backend/internals/route"
	routeDetails "vivienda_backend/internals/route/details"
	templatequestions "vivienda_backend/internals/seeds/intake/template_questions"
)

// bodyLimit leaves room for a handful of phone photos in one submission.
const bodyLimit = 25 * 1024 * 1024

func main() {
	configs.LoadEnv()
	log := configs.NewLogger("vivienda")
	cfg := configs.LoadAppConfig()
	m := metrics.NewMetrics("intake")

	// 🔌 DB connect + pool + warm-up
	if err := database.ConnectDB(log); err != nil {
		log.WithError(err).Fatal("database unavailable")
	}
	database.TunePool()
	if configs.GetEnv("AUTO_MIGRATE") == "true" {
		if err := database.Migrate(database.DB, log); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
	}
	database.WarmUp(log)

	st := store.NewGormStore(database.DB)

	files, err := filestore.Open(cfg.FileStore, cfg.LocalUploadDir, cfg.ConvertToWebP, log)
	if err != nil {
		log.WithError(err).Fatal("file store unavailable")
	}

	template, err := templatequestions.Load(cfg.TemplateQuestionsPath)
	if err != nil {
		log.WithError(err).Fatal("question template")
	}

	schema := fservice.NewSchemaEngine(st, log, m, cfg.DefaultFormSlug, template)
	submissions := aservice.NewSubmissionService(st, schema, files, cfg.UploadsBucket, log, m)
	admin := aservice.NewAdminService(st, log)

	// ⏱ background jobs after the DB is ready
	sweeper := aservice.NewOrphanSweeper(st, log, m)
	jobs, err := sweeper.Start(cfg.OrphanSweepCron)
	if err != nil {
		log.WithError(err).Fatal("orphan sweeper schedule")
	}
	if _, err := jobs.AddFunc("@every 15s", func() { database.RecordPoolStats(database.DB, m) }); err != nil {
		log.WithError(err).Warn("pool stats job not scheduled")
	}

	app := fiber.New(fiber.Config{
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
		BodyLimit:               bodyLimit,
		ErrorHandler:            helper.FromFiberError,
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())
	middlewares.SetupMiddlewares(app, cfg, log, m)

	routes.SetupRoutes(app, routeDetails.IntakeDeps{
		Store:             st,
		Schema:            schema,
		Submissions:       submissions,
		Admin:             admin,
		Metrics:           m,
		Log:               log,
		DefaultSlug:       cfg.DefaultFormSlug,
		CronSecret:        cfg.CronSecret,
		AdminJWTSecret:    cfg.AdminJWTSecret,
		AdminPasswordHash: cfg.AdminPasswordHash,

		AdminOpenWithoutSecret: cfg.IsDevelopment(),
	})

	app.Server().ReadTimeout = 30 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		log.Infof("✅ Listening on :%s", cfg.Port)
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			log.WithError(err).Fatal("server error")
		}
	}()

	// graceful shutdown: stop jobs, drain requests, close the pool
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	stopJobs(jobs)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func stopJobs(c *cron.Cron) {
	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
	}
}
