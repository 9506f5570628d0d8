/*-------------------------------------------------------------------------
 *
 * LATS Admin - Table Metadata
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrTableNotFound is returned when the destination table does not exist
var ErrTableNotFound = errors.New("table not found")

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const tableQuery = `
	SELECT
		n.nspname,
		c.relname,
		a.attname,
		pg_catalog.format_type(a.atttypid, a.atttypmod),
		NOT a.attnotnull,
		a.atthasdef OR a.attidentity <> '' OR a.attgenerated <> '',
		EXISTS (
			SELECT 1 FROM pg_index i
			WHERE i.indrelid = c.oid AND i.indisprimary
				AND i.indnatts = 1 AND i.indkey[0] = a.attnum
		),
		EXISTS (
			SELECT 1 FROM pg_index i
			WHERE i.indrelid = c.oid AND i.indisunique AND i.indpred IS NULL
				AND i.indnatts = 1 AND i.indkey[0] = a.attnum
		)
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_attribute a ON a.attrelid = c.oid
	WHERE c.oid = to_regclass($1)
		AND a.attnum > 0
		AND NOT a.attisdropped
	ORDER BY a.attnum`

// LoadTable reads the column layout of a table. The name may be schema
// qualified; unqualified names follow the search_path.
func LoadTable(ctx context.Context, q Querier, table string) (TableInfo, error) {
	startTime := time.Now()

	rows, err := q.Query(ctx, tableQuery, table)
	if err != nil {
		LogMetadataLoad(table, 0, time.Since(startTime), err)
		return TableInfo{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	var info TableInfo
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&info.SchemaName, &info.TableName, &col.ColumnName, &col.DataType,
			&col.IsNullable, &col.HasDefault, &col.IsPrimaryKey, &col.IsUnique); err != nil {
			LogMetadataLoad(table, 0, time.Since(startTime), err)
			return TableInfo{}, fmt.Errorf("failed to scan row: %w", err)
		}
		info.Columns = append(info.Columns, col)
	}
	if err := rows.Err(); err != nil {
		LogMetadataLoad(table, 0, time.Since(startTime), err)
		return TableInfo{}, err
	}

	if len(info.Columns) == 0 {
		err := fmt.Errorf("%w: %s", ErrTableNotFound, table)
		LogMetadataLoad(table, 0, time.Since(startTime), err)
		return TableInfo{}, err
	}

	LogMetadataLoad(table, len(info.Columns), time.Since(startTime), nil)
	return info, nil
}
