// Package logging configures the process-wide structured logger. Components
// obtain per-service loggers through ForService; output goes to stdout and,
// when configured, to a size-rotated log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	structuredLogger *slog.Logger
	logLevel         = new(slog.LevelVar)
	logOutput        io.Writer = os.Stdout
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the structured JSON logger on stdout.
func Init() {
	logLevel.Set(slog.LevelDebug)
	rebuild()
}

func rebuild() {
	structuredLogger = slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: replaceLevelNames,
	}))
	slog.SetDefault(structuredLogger)
}

// SetLevel sets the minimum logging level.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetFileOutput tees the structured logger into a rotating log file alongside
// stdout. It returns a function that closes the underlying file writer.
func SetFileOutput(filePath string) (func() error, error) {
	writer, err := newRotatingWriter(filePath)
	if err != nil {
		return nil, err
	}
	logOutput = io.MultiWriter(os.Stdout, writer)
	rebuild()
	return writer.Close, nil
}

// newRotatingWriter builds the size-rotated file writer behind file logging.
func newRotatingWriter(filePath string) (*lumberjack.Logger, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   false,
	}, nil
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}
