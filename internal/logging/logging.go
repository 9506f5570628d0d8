/*-------------------------------------------------------------------------
 *
 * LATS Admin - Structured Logging
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	slogmulti "github.com/samber/slog-multi"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// EnvLogLevel controls the initial log level
const EnvLogLevel = "LATS_LOG_LEVEL"

var (
	// level is shared by every handler so SetLevel applies everywhere.
	// Default to ERROR to avoid cluttering CLI output with operational logs
	level = new(slog.LevelVar)

	current atomic.Pointer[slog.Logger]
)

func init() {
	level.Set(slog.LevelError)
	if l, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		SetLevel(l)
	}
	current.Store(slog.New(newHandler(os.Stderr)))
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// ParseLevel converts a level name such as "debug" or "warning"
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	}
	return LevelError, false
}

func newHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Setup sends log output to stderr and, when file is not empty, also
// appends it to file. The returned function closes the file.
func Setup(file string) (func() error, error) {
	if file == "" {
		current.Store(slog.New(newHandler(os.Stderr)))
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return func() error { return nil }, fmt.Errorf("failed to open log file: %w", err)
	}

	current.Store(slog.New(slogmulti.Fanout(newHandler(os.Stderr), newHandler(f))))
	return f.Close, nil
}

// SetOutput replaces the log destinations, mainly for tests
func SetOutput(writers ...io.Writer) {
	handlers := make([]slog.Handler, len(writers))
	for i, w := range writers {
		handlers[i] = newHandler(w)
	}
	current.Store(slog.New(slogmulti.Fanout(handlers...)))
}

// Logger returns the process logger
func Logger() *slog.Logger {
	return current.Load()
}

// Component returns a logger that tags every entry with a component name
func Component(name string) *slog.Logger {
	return current.Load().With("component", name)
}

// Debug logs a debug-level message with structured fields
func Debug(message string, keyvals ...any) {
	current.Load().Debug(message, keyvals...)
}

// Info logs an info-level message with structured fields
func Info(message string, keyvals ...any) {
	current.Load().Info(message, keyvals...)
}

// Warn logs a warning-level message with structured fields
func Warn(message string, keyvals ...any) {
	current.Load().Warn(message, keyvals...)
}

// Error logs an error-level message with structured fields
func Error(message string, keyvals ...any) {
	current.Load().Error(message, keyvals...)
}

// SetLevel sets the minimum log level to output
func SetLevel(l LogLevel) {
	level.Set(l.slogLevel())
}

// GetLevel returns the current minimum log level
func GetLevel() LogLevel {
	switch level.Level() {
	case slog.LevelDebug:
		return LevelDebug
	case slog.LevelInfo:
		return LevelInfo
	case slog.LevelWarn:
		return LevelWarn
	default:
		return LevelError
	}
}
