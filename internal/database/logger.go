/*-------------------------------------------------------------------------
 *
 * LATS Admin - Database Logging
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"lats-admin/internal/logging"
)

// LogLevel represents the logging verbosity level for database operations
type LogLevel int32

const (
	// LogLevelNone disables all database logging
	LogLevelNone LogLevel = iota
	// LogLevelInfo logs connections, queries and errors
	LogLevelInfo
	// LogLevelDebug adds pool configuration and statistics
	LogLevelDebug
	// LogLevelTrace adds full statements and arguments
	LogLevelTrace
)

// EnvLogLevel controls database logging verbosity
const EnvLogLevel = "LATS_DB_LOG_LEVEL"

var currentLevel atomic.Int32

func init() {
	SetLogLevel(ParseLogLevel(os.Getenv(EnvLogLevel)))
}

// ParseLogLevel converts none/info/debug/trace; anything else disables
// logging
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LogLevelInfo
	case "debug":
		return LogLevelDebug
	case "trace":
		return LogLevelTrace
	default:
		return LogLevelNone
	}
}

// SetLogLevel sets the database log level
func SetLogLevel(level LogLevel) {
	currentLevel.Store(int32(level))
}

// GetLogLevel returns the current log level
func GetLogLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// emit writes through the process logger. Entries are written at the
// process INFO level so that LATS_DB_LOG_LEVEL alone decides whether
// database activity is visible at INFO verbosity.
func emit(level LogLevel, message string, keyvals ...any) {
	if GetLogLevel() < level {
		return
	}
	log := logging.Component("database")
	if level >= LogLevelDebug {
		log.Debug(message, keyvals...)
		return
	}
	log.Info(message, keyvals...)
}

// LogConnection logs a database connection attempt
func LogConnection(connStr string, duration time.Duration, err error) {
	sanitized := sanitizeConnStr(connStr)
	if err != nil {
		emit(LogLevelInfo, "connection failed", "connection", sanitized, "duration", duration, "error", err)
		return
	}
	emit(LogLevelInfo, "connection succeeded", "connection", sanitized, "duration", duration)
}

// LogConnectionDetails logs the effective pool configuration
func LogConnectionDetails(connStr string, poolConfig map[string]any) {
	emit(LogLevelDebug, "connection details", "connection", sanitizeConnStr(connStr), "pool_config", poolConfig)
}

// LogMetadataLoad logs a table metadata lookup
func LogMetadataLoad(table string, columnCount int, duration time.Duration, err error) {
	if err != nil {
		emit(LogLevelInfo, "metadata load failed", "table", table, "duration", duration, "error", err)
		return
	}
	emit(LogLevelInfo, "metadata loaded", "table", table, "column_count", columnCount, "duration", duration)
}

// LogQuery logs a statement execution
func LogQuery(query string, duration time.Duration, rowCount int, err error) {
	queryPreview := truncate(strings.Join(strings.Fields(query), " "), 100)
	if err != nil {
		emit(LogLevelInfo, "query failed", "query", queryPreview, "duration", duration, "error", err)
		return
	}
	emit(LogLevelInfo, "query succeeded", "query", queryPreview, "row_count", rowCount, "duration", duration)
}

// LogQueryTrace logs a full statement and its argument count
func LogQueryTrace(query string, args []any) {
	emit(LogLevelTrace, "query trace", "query", strings.Join(strings.Fields(query), " "), "arg_count", len(args))
}

// LogPoolStats logs connection pool statistics
func LogPoolStats(connStr string, acquiredConns, idleConns, maxConns int32) {
	emit(LogLevelDebug, "pool stats", "connection", sanitizeConnStr(connStr),
		"acquired", acquiredConns, "idle", idleConns, "max", maxConns)
}

// sanitizeConnStr removes password from connection string for logging
func sanitizeConnStr(connStr string) string {
	// keyword/value form: mask password=...
	if !strings.Contains(connStr, "://") {
		fields := strings.Fields(connStr)
		for i, f := range fields {
			if strings.HasPrefix(strings.ToLower(f), "password=") {
				fields[i] = "password=***"
			}
		}
		return strings.Join(fields, " ")
	}

	schemeIdx := strings.Index(connStr, "://")
	scheme := connStr[:schemeIdx+3]
	rest := connStr[schemeIdx+3:]

	// The credentials end at the last @ before the path or query, which
	// handles passwords containing @
	end := len(rest)
	if i := strings.IndexAny(rest, "/?"); i >= 0 {
		end = i
	}
	hostSepIdx := strings.LastIndex(rest[:end], "@")
	if hostSepIdx == -1 {
		// The password itself may contain / or ?
		hostSepIdx = strings.LastIndex(rest, "@")
		if hostSepIdx == -1 {
			return connStr
		}
	}

	credentials := rest[:hostSepIdx]
	hostAndRest := rest[hostSepIdx+1:]

	colonIdx := strings.Index(credentials, ":")
	if colonIdx == -1 {
		return connStr
	}

	return scheme + credentials[:colonIdx] + ":***@" + hostAndRest
}

// truncate truncates a string to maxLen characters, adding "..." if truncated
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
