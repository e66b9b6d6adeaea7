package datastore

import (
	"log/slog"
	"time"

	"github.com/Deven-0012/Cloud-281/internal/logging"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow and logged at warn level.
const DefaultSlowQueryThreshold = 1 * time.Second

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return gormlogger.New(
		&slogWriter{logger: getLogger()},
		gormlogger.Config{
			SlowThreshold:             DefaultSlowQueryThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// slogWriter adapts the service slog logger to GORM's printf-style interface.
type slogWriter struct {
	logger *slog.Logger
}

func (w *slogWriter) Printf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Warn("gorm", "detail", args)
		return
	}
	slog.Warn("gorm", "format", format, "detail", args)
}

func getLogger() *slog.Logger {
	return logging.ForService("datastore")
}

// performAutoMigration runs GORM auto-migration for all pipeline entities.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&IngestionJob{},
		&Detection{},
		&AlertRule{},
		&Alert{},
		&Notification{},
		&Vehicle{},
	); err != nil {
		return err
	}

	if debug {
		if logger := getLogger(); logger != nil {
			logger.Debug("auto-migration completed",
				"db_type", dbType,
				"connection", connectionInfo,
			)
		}
	}
	return nil
}
