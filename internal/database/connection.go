/*-------------------------------------------------------------------------
 *
 * LATS Admin - PostgreSQL Connection
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ApplicationName is reported to the server as application_name
const ApplicationName = "lats-admin"

// PoolConfig holds optional pool sizing; zero values keep pgx defaults
type PoolConfig struct {
	MaxConns        int
	MinConns        int
	MaxConnIdleTime time.Duration
}

// Connect creates a connection pool and verifies it with a ping
func Connect(ctx context.Context, connStr string, cfg PoolConfig) (*pgxpool.Pool, error) {
	startTime := time.Now()

	// Add application_name to connection string if not already present
	enhancedConnStr, err := addApplicationName(connStr, ApplicationName)
	if err != nil {
		return nil, fmt.Errorf("unable to enhance connection string: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(enhancedConnStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	if GetLogLevel() >= LogLevelDebug {
		LogConnectionDetails(connStr, map[string]any{
			"max_conns":          poolConfig.MaxConns,
			"min_conns":          poolConfig.MinConns,
			"max_conn_lifetime":  poolConfig.MaxConnLifetime,
			"max_conn_idle_time": poolConfig.MaxConnIdleTime,
		})
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		LogConnection(connStr, time.Since(startTime), err)
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	LogConnection(connStr, time.Since(startTime), nil)
	return pool, nil
}

// addApplicationName adds application_name to a PostgreSQL connection
// string. Both URL and keyword/value forms are accepted.
func addApplicationName(connStr, appName string) (string, error) {
	if !strings.Contains(connStr, "://") {
		if strings.Contains(connStr, "application_name=") {
			return connStr, nil
		}
		return strings.TrimSpace(connStr + " application_name=" + appName), nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return "", fmt.Errorf("invalid connection string: %w", err)
	}

	query := u.Query()
	if !query.Has("application_name") {
		query.Set("application_name", appName)
		u.RawQuery = query.Encode()
	}

	return u.String(), nil
}
