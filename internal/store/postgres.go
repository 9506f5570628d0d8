/*-------------------------------------------------------------------------
 *
 * LATS Admin - PostgreSQL Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lats-admin/internal/database"
	"lats-admin/internal/logging"
	"lats-admin/internal/records"
)

// Postgres writes to a PostgreSQL table through a pgx pool
type Postgres struct {
	pool    *pgxpool.Pool
	connStr string
	layout  Layout
	fields  []field
	table   string // quoted, possibly schema-qualified
}

// OpenPostgres connects and checks the table against the layout
func OpenPostgres(ctx context.Context, connStr string, poolCfg database.PoolConfig, layout Layout) (*Postgres, error) {
	pool, err := database.Connect(ctx, connStr, poolCfg)
	if err != nil {
		return nil, err
	}

	p := NewPostgres(pool, layout)
	p.connStr = connStr
	if err := p.checkLayout(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool
func NewPostgres(pool *pgxpool.Pool, layout Layout) *Postgres {
	return &Postgres{
		pool:   pool,
		layout: layout,
		fields: layout.fields(),
		table:  pgx.Identifier(splitTable(layout.Table)).Sanitize(),
	}
}

// checkLayout verifies that the mapped columns exist and that the key is
// unique, which ON CONFLICT requires
func (p *Postgres) checkLayout(ctx context.Context) error {
	info, err := database.LoadTable(ctx, p.pool, p.layout.Table)
	if err != nil {
		return err
	}

	var mapped []string
	for _, f := range p.fields {
		if _, ok := info.Column(f.column); !ok {
			return fmt.Errorf("column %q does not exist in %s", f.column, p.layout.Table)
		}
		mapped = append(mapped, f.column)
	}

	key, _ := info.Column(p.layout.Key())
	if !key.IsUnique && !key.IsPrimaryKey {
		return fmt.Errorf("column %q of %s needs a unique constraint", key.ColumnName, p.layout.Table)
	}

	for _, col := range info.RequiredColumns() {
		if !slices.Contains(mapped, col) {
			logging.Warn("required column is not mapped, inserts will fail",
				"table", p.layout.Table, "column", col)
		}
	}
	return nil
}

func (p *Postgres) quotedColumn(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// ExistingKeys returns the keys already present in the table
func (p *Postgres) ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error) {
	key := p.quotedColumn(p.layout.Key())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ANY($1)", key, p.table, key)

	startTime := time.Now()
	rows, err := p.pool.Query(ctx, query, keys)
	if err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return nil, fmt.Errorf("failed to look up existing keys: %w", err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	database.LogQuery(query, time.Since(startTime), len(found), err)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing keys: %w", err)
	}

	return records.NewKeySet(found...), nil
}

// insertSQL builds a multi-row insert that skips conflicting keys and
// returns the keys it wrote
func (p *Postgres) insertSQL(rows int) string {
	cols := make([]string, len(p.fields))
	for i, f := range p.fields {
		cols[i] = p.quotedColumn(f.column)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", p.table, strings.Join(cols, ", "))
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for c := range p.fields {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", n)
			n++
		}
		b.WriteByte(')')
	}
	key := p.quotedColumn(p.layout.Key())
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING RETURNING %s", key, key)
	return b.String()
}

func (p *Postgres) args(batch []records.Contact) []any {
	args := make([]any, 0, len(batch)*len(p.fields))
	for _, c := range batch {
		for _, f := range p.fields {
			args = append(args, f.value(c))
		}
	}
	return args
}

// InsertMany writes the batch in one statement
func (p *Postgres) InsertMany(ctx context.Context, batch []records.Contact) (InsertResult, error) {
	if len(batch) == 0 {
		return InsertResult{}, nil
	}

	query := p.insertSQL(len(batch))
	args := p.args(batch)
	database.LogQueryTrace(query, args)

	startTime := time.Now()
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return InsertResult{}, p.writeError(err)
	}

	inserted, err := pgx.CollectRows(rows, pgx.RowTo[string])
	database.LogQuery(query, time.Since(startTime), len(inserted), err)
	if err != nil {
		return InsertResult{}, p.writeError(err)
	}

	return InsertResult{
		Inserted: len(inserted),
		Existing: missingKeys(batch, records.NewKeySet(inserted...)),
	}, nil
}

// writeError classifies an insert failure
func (p *Postgres) writeError(err error) error {
	if IsUnreachable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBatchWrite, err)
}

// Diagnose replays a failed batch one record at a time inside a
// transaction that is always rolled back. Each record gets a savepoint so
// one failure does not hide the next.
func (p *Postgres) Diagnose(ctx context.Context, batch []records.Contact) []records.RecordError {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		logging.Warn("cannot diagnose batch", "error", err)
		return nil
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	query := p.insertSQL(1)
	var errs []records.RecordError
	for i, c := range batch {
		if _, err := tx.Exec(ctx, "SAVEPOINT diagnose"); err != nil {
			logging.Warn("cannot diagnose batch", "error", err)
			return errs
		}

		_, insertErr := tx.Exec(ctx, query, p.args(batch[i:i+1])...)
		if insertErr == nil {
			if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT diagnose"); err != nil {
				return errs
			}
			continue
		}

		errs = append(errs, records.RecordError{
			Line:   c.Line,
			Index:  i + 1,
			Phone:  c.Phone,
			Stage:  records.StageUpsert,
			Reason: pgReason(insertErr),
		})
		if _, err := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT diagnose"); err != nil {
			return errs
		}
		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT diagnose"); err != nil {
			return errs
		}
	}
	return errs
}

// pgReason formats a server error for the report
func pgReason(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.ColumnName != "" {
			return fmt.Sprintf("%s (column %s, SQLSTATE %s)", pgErr.Message, pgErr.ColumnName, pgErr.Code)
		}
		return fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return err.Error()
}

// Scan pages through the table ordered by the layout's order column
func (p *Postgres) Scan(ctx context.Context, pageSize int, fn func([]Row) error) error {
	query := fmt.Sprintf("SELECT to_jsonb(t) FROM %s t ORDER BY %s LIMIT $1 OFFSET $2",
		p.table, p.quotedColumn(p.layout.OrderBy))

	for offset := 0; ; offset += pageSize {
		startTime := time.Now()
		rows, err := p.pool.Query(ctx, query, pageSize, offset)
		if err != nil {
			database.LogQuery(query, time.Since(startTime), 0, err)
			return fmt.Errorf("failed to scan %s: %w", p.layout.Table, err)
		}

		page, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
			var data []byte
			if err := row.Scan(&data); err != nil {
				return nil, err
			}
			return decodeRow(data)
		})
		database.LogQuery(query, time.Since(startTime), len(page), err)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p.layout.Table, err)
		}

		if len(page) > 0 {
			if err := fn(page); err != nil {
				return err
			}
		}
		if len(page) < pageSize {
			return nil
		}
	}
}

// UpdateNames applies name changes in one transaction
func (p *Postgres) UpdateNames(ctx context.Context, changes []NameChange) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	query := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s::text = $2",
		p.table, p.quotedColumn(p.layout.Columns.Name), p.quotedColumn(p.layout.ID))

	updated := 0
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, c := range changes {
			batch.Queue(query, c.New, c.ID)
		}

		br := tx.SendBatch(ctx, batch)
		for range changes {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return err
			}
			updated += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to update names: %w", err)
	}
	return updated, nil
}

// Ping checks the connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the pool
func (p *Postgres) Close() error {
	if database.GetLogLevel() >= database.LogLevelDebug {
		stat := p.pool.Stat()
		database.LogPoolStats(p.connStr, stat.AcquiredConns(), stat.IdleConns(), stat.MaxConns())
	}
	p.pool.Close()
	return nil
}
