package configs

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	gormLogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const (
	DefaultFormSlug      = "housing-relief-2026"
	DefaultUploadsBucket = "assessment-uploads"
)

// AppConfig is resolved once at boot from the environment.
type AppConfig struct {
	Port   string
	AppEnv string // "development" | "production"

	DefaultFormSlug string
	UploadsBucket   string

	FileStore      string // "oss" | "local"
	LocalUploadDir string
	ConvertToWebP  bool

	AdminJWTSecret    string
	AdminPasswordHash string
	CronSecret        string
	OrphanSweepCron   string

	CorsAllowOrigins      string
	TemplateQuestionsPath string
}

// =======================
// ENV LOADER
// =======================
func LoadEnv() {
	if os.Getenv("RAILWAY_ENVIRONMENT") == "" {
		if err := godotenv.Load(); err != nil {
			logrus.Warn("⚠️ .env file not found, using system ENV")
		} else {
			logrus.Info("✅ .env file loaded")
		}
	} else {
		logrus.Info("🚀 Running in Railway, using system ENV")
	}
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if (!exists || strings.TrimSpace(value) == "") && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return strings.TrimSpace(value)
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(GetEnv(key))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func GetEnvInt(key string, def int) int {
	n, err := strconv.Atoi(GetEnv(key))
	if err != nil {
		return def
	}
	return n
}

func LoadAppConfig() AppConfig {
	cfg := AppConfig{
		Port:                  GetEnv("PORT", "3000"),
		AppEnv:                strings.ToLower(GetEnv("APP_ENV", "production")),
		DefaultFormSlug:       GetEnv("DEFAULT_FORM_SLUG", DefaultFormSlug),
		UploadsBucket:         GetEnv("UPLOADS_BUCKET", DefaultUploadsBucket),
		FileStore:             strings.ToLower(GetEnv("FILE_STORE", "local")),
		LocalUploadDir:        GetEnv("LOCAL_UPLOAD_DIR", "./uploads"),
		ConvertToWebP:         getEnvBool("IMAGE_CONVERT_WEBP", false),
		AdminJWTSecret:        GetEnv("ADMIN_JWT_SECRET"),
		AdminPasswordHash:     GetEnv("ADMIN_PASSWORD_HASH"),
		CronSecret:            GetEnv("CRON_SECRET"),
		OrphanSweepCron:       GetEnv("ORPHAN_SWEEP_CRON", "@every 30m"),
		CorsAllowOrigins:      GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000, http://localhost:5173"),
		TemplateQuestionsPath: GetEnv("TEMPLATE_QUESTIONS_PATH"),
	}

	if cfg.AdminJWTSecret == "" {
		if cfg.IsDevelopment() {
			logrus.Warn("⚠️ ADMIN_JWT_SECRET is not set, admin routes are open (APP_ENV=development)")
		} else {
			logrus.Error("❌ ADMIN_JWT_SECRET is not set, admin routes are closed")
		}
	} else {
		logrus.Info("✅ ADMIN_JWT_SECRET loaded")
	}
	return cfg
}

// IsDevelopment is the only mode where admin routes may run without a secret.
func (c AppConfig) IsDevelopment() bool { return c.AppEnv == "development" }

// DatabaseDSN builds the postgres DSN. DATABASE_URL wins when present.
func DatabaseDSN() string {
	if url := GetEnv("DATABASE_URL"); url != "" {
		return url
	}
	timeout, err := strconv.Atoi(GetEnv("DB_STATEMENT_TIMEOUT_MS", "3000"))
	if err != nil || timeout <= 0 {
		timeout = 3000
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=vivienda&options=-c statement_timeout=%d",
		GetEnv("DB_USER"),
		GetEnv("DB_PASSWORD"),
		GetEnv("DB_HOST", "localhost"),
		GetEnv("DB_PORT", "5432"),
		GetEnv("DB_NAME"),
		GetEnv("DB_SSLMODE", "require"),
		timeout,
	)
}

// =======================
// GORM LOGGER CUSTOM
// =======================
type GormLogger struct {
	SlowThreshold time.Duration
	LogLevel      gormLogger.LogLevel
	Log           *logrus.Logger
}

func NewGormLogger(log *logrus.Logger) gormLogger.Interface {
	level := gormLogger.Warn
	if log.IsLevelEnabled(logrus.DebugLevel) {
		level = gormLogger.Info
	}
	return &GormLogger{
		SlowThreshold: 200 * time.Millisecond,
		LogLevel:      level,
		Log:           log,
	}
}

func (l *GormLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	cp := *l
	cp.LogLevel = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Info {
		l.Log.Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Warn {
		l.Log.Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= gormLogger.Error {
		l.Log.Errorf(msg, data...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	entry := l.Log.WithFields(logrus.Fields{
		"file":    utils.FileWithLineNum(),
		"elapsed": elapsed.String(),
		"rows":    rows,
	})

	switch {
	case err != nil && l.LogLevel >= gormLogger.Error:
		// not-found and constraint errors are control flow for the engines
		entry.WithError(err).Debug(sql)
	case elapsed > l.SlowThreshold && l.LogLevel >= gormLogger.Warn:
		entry.Warn("[SLOW SQL] " + sql)
	case l.LogLevel >= gormLogger.Info:
		entry.Debug(sql)
	}
}
