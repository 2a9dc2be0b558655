// Package applog provides general-purpose application logging.
//
// Logs are written to <data-dir>/logs/app.log as zerolog JSON lines.
// Covers: app start/stop, config changes, backend calls, wizard and
// pipeline transitions. The TUI owns the terminal, so nothing is ever
// written to stdout/stderr from here.
package applog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.RWMutex
	logger  = zerolog.Nop()
	logFile *os.File
)

// FilePath is the log file Init writes to for dataDir.
func FilePath(dataDir string) string {
	return filepath.Join(dataDir, "logs", "app.log")
}

// Init opens (or creates) the log file under dataDir and sets the level.
// Calling Init again replaces the previous sink.
func Init(dataDir, level string) error {
	path := FilePath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	logger = newLogger(f, level)
	return nil
}

// SetOutput routes logs to w. Used by tests and headless commands.
func SetOutput(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	logger = newLogger(w, level)
}

func newLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond

	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("app", "nlsql").
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// L returns the current logger for structured calls.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

// Info logs a general info message.
func Info(format string, args ...interface{}) {
	L().Info().Msgf(format, args...)
}

// Warn logs a recoverable problem.
func Warn(format string, args ...interface{}) {
	L().Warn().Msgf(format, args...)
}

// Error logs an error message.
func Error(format string, args ...interface{}) {
	L().Error().Msgf(format, args...)
}

// Event logs a structured event with a category.
func Event(category string, format string, args ...interface{}) {
	L().Info().Str("category", category).Msgf(format, args...)
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = zerolog.Nop()
}
