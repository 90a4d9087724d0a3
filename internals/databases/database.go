package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vivienda_backend/internals/configs"
	"vivienda_backend/internals/features/intake/store"
	"vivienda_backend/internals/metrics"
)

var DB *gorm.DB

func ConnectDB(log *logrus.Logger) error {
	db, err := Open(configs.DatabaseDSN(), log)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open connects without touching the package level handle; the operator CLI
// uses it with a DSN that may come from a flag.
func Open(dsn string, log *logrus.Logger) (*gorm.DB, error) {
	log.Info("🔌 Connecting to PostgreSQL...")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true, // PgBouncer transaction pooling
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	log.Info("✅ DB connected.")
	return db, nil
}

func TunePool() {
	sqlDB, err := DB.DB()
	if err != nil {
		logrus.Warnf("pool tune err: %v", err)
		return
	}
	sqlDB.SetMaxOpenConns(configs.GetEnvInt("DB_MAX_OPEN_CONNS", 20))
	sqlDB.SetMaxIdleConns(configs.GetEnvInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

// Migrate creates or updates every intake table.
func Migrate(db *gorm.DB, log *logrus.Logger) error {
	if err := db.AutoMigrate(store.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("✅ schema migrated")
	return nil
}

// WarmUp pings once in the background so the first request finds an open
// connection.
func WarmUp(log *logrus.Logger) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.NewGormStore(DB).Ping(ctx); err != nil {
			log.WithError(err).Warn("warm-up ping failed")
		}
	}()
}

// RecordPoolStats copies database/sql pool counters into the gauges.
func RecordPoolStats(db *gorm.DB, m *metrics.Metrics) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	s := sqlDB.Stats()
	m.RecordDBPoolStats(s.OpenConnections, s.InUse, s.Idle, s.WaitCount, s.WaitDuration)
}
