/*-------------------------------------------------------------------------
 *
 * LATS Admin - Destination Selection
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package store

import (
	"context"
	"fmt"
	"strings"

	"lats-admin/internal/config"
	"lats-admin/internal/database"
)

// Open selects a destination from dest:
//
//	postgres://... or postgresql://...  PostgreSQL
//	sqlite:<path>                       local SQLite file
//	supabase                            Supabase project from the config
//	""                                  the config database section
//
// The returned store retries unreachable errors per the retry section.
func Open(ctx context.Context, dest string, cfg *config.Config) (Store, error) {
	layout := LayoutFromConfig(cfg.Destination)
	policy := RetryPolicyFromConfig(cfg.Retry)

	var (
		st  Store
		err error
	)
	switch {
	case strings.HasPrefix(dest, "sqlite:"):
		st, err = OpenSQLite(ctx, strings.TrimPrefix(dest, "sqlite:"), layout)

	case dest == "supabase":
		st, err = OpenSupabase(cfg.Supabase.URL, cfg.Supabase.ServiceKey, layout)

	case dest == "":
		connStr := cfg.Database.BuildConnectionString()
		if connStr == "" {
			return nil, fmt.Errorf("no destination configured: use --dest, LATS_DATABASE_URL or the database section")
		}
		st, err = openPostgres(ctx, connStr, cfg, layout, policy)

	case strings.HasPrefix(dest, "postgres://"), strings.HasPrefix(dest, "postgresql://"):
		db := cfg.Database
		db.ConnectionString = dest
		st, err = openPostgres(ctx, db.BuildConnectionString(), cfg, layout, policy)

	default:
		return nil, fmt.Errorf("unsupported destination %q (use postgres://..., sqlite:<path> or supabase)", dest)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(st, policy), nil
}

// openPostgres retries the initial connection, which is where an outage
// usually shows up first
func openPostgres(ctx context.Context, connStr string, cfg *config.Config, layout Layout, policy RetryPolicy) (Store, error) {
	poolCfg := database.PoolConfig{
		MaxConns:        cfg.Database.PoolMaxConns,
		MinConns:        cfg.Database.PoolMinConns,
		MaxConnIdleTime: cfg.Database.PoolIdleTime(),
	}

	var pg *Postgres
	err := WithRetry(nil, policy).do(ctx, "connect", func() error {
		var err error
		pg, err = OpenPostgres(ctx, connStr, poolCfg, layout)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pg, nil
}
