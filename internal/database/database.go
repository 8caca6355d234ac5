// Package database handles database connections and migrations.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger integrates GORM with slog. Record-not-found is never logged.
type GormLogger struct {
	logger *slog.Logger
	Config logger.Config
}

// NewGormLogger builds a GormLogger writing to l at the given level.
func NewGormLogger(l *slog.Logger, level logger.LogLevel) *GormLogger {
	return &GormLogger{
		logger: l,
		Config: logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	}
}

// LogMode sets the logging level and returns a new interface instance.
func (l *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newlogger := *l
	newlogger.Config.LogLevel = level
	return &newlogger
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.Config.LogLevel >= logger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed and slow statements, and every statement at Info level.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.Config.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && l.Config.LogLevel >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.ErrorContext(ctx, "gorm query error", append(attrs, slog.String("error", err.Error()))...)
	case l.Config.SlowThreshold != 0 && elapsed > l.Config.SlowThreshold && l.Config.LogLevel >= logger.Warn:
		l.logger.WarnContext(ctx, "gorm slow query", attrs...)
	case l.Config.LogLevel >= logger.Info:
		l.logger.InfoContext(ctx, "gorm query", attrs...)
	}
}

// DSN builds the PostgreSQL connection string for cfg.
func DSN(cfg *config.Config) string {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode,
	)
}

// Connect opens the PostgreSQL database, migrates the schema outside
// production and configures the connection pool.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: NewGormLogger(middleware.Logger, logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	middleware.Logger.Info("database connected", "host", cfg.DBHost, "name", cfg.DBName)

	if !cfg.IsProduction() {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Migrate brings the schema for every persistent model up to date.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	middleware.Logger.Info("database migration completed")
	return nil
}
