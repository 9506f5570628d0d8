/*-------------------------------------------------------------------------
 *
 * LATS Admin - SQLite Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"lats-admin/internal/database"
	"lats-admin/internal/logging"
	"lats-admin/internal/records"
)

// SQLite is a local destination used for staging imports and for tests.
// It enforces the same unique and NOT NULL rules as the customer table.
type SQLite struct {
	db     *sql.DB
	path   string
	layout Layout
	fields []field
}

// OpenSQLite opens or creates a SQLite database and bootstraps the table
func OpenSQLite(ctx context.Context, path string, layout Layout) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps savepoints on the
	// connection that created them
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	s := &SQLite{db: db, path: path, layout: layout, fields: layout.fields()}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// initSchema creates the customer table when it does not exist
func (s *SQLite) initSchema(ctx context.Context) error {
	l := s.layout
	cols := []string{
		quoteIdent(l.ID) + " INTEGER PRIMARY KEY AUTOINCREMENT",
		quoteIdent(l.Columns.Phone) + " TEXT NOT NULL UNIQUE",
		quoteIdent(l.Columns.Name) + " TEXT NOT NULL",
	}
	for _, c := range []string{l.Columns.Email, l.Columns.Source, l.Columns.Metadata} {
		if c != "" && c != "-" {
			cols = append(cols, quoteIdent(c)+" TEXT")
		}
	}
	cols = append(cols, `"created_at" TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP`)

	schema := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)",
		quoteIdent(l.Table), strings.Join(cols, ",\n    "))
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ExistingKeys returns the keys already present
func (s *SQLite) ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error) {
	found := records.NewKeySet()
	if len(keys) == 0 {
		return found, nil
	}

	key := quoteIdent(s.layout.Key())
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		key, quoteIdent(s.layout.Table), key, placeholders(len(keys)))

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	startTime := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return nil, fmt.Errorf("failed to look up existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to read existing keys: %w", err)
		}
		found.Add(k)
	}
	database.LogQuery(query, time.Since(startTime), found.Len(), rows.Err())
	return found, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (s *SQLite) insertSQL(rows int) string {
	cols := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = quoteIdent(f.column)
	}
	row := "(" + placeholders(len(s.fields)) + ")"
	values := strings.TrimSuffix(strings.Repeat(row+", ", rows), ", ")

	key := quoteIdent(s.layout.Key())
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING RETURNING %s",
		quoteIdent(s.layout.Table), strings.Join(cols, ", "), values, key, key)
}

func (s *SQLite) args(batch []records.Contact) ([]any, error) {
	args := make([]any, 0, len(batch)*len(s.fields))
	for _, c := range batch {
		for _, f := range s.fields {
			v := f.value(c)
			if m, ok := v.(map[string]string); ok {
				data, err := json.Marshal(m)
				if err != nil {
					return nil, err
				}
				v = string(data)
			}
			args = append(args, v)
		}
	}
	return args, nil
}

// InsertMany writes the batch in one statement
func (s *SQLite) InsertMany(ctx context.Context, batch []records.Contact) (InsertResult, error) {
	if len(batch) == 0 {
		return InsertResult{}, nil
	}

	query := s.insertSQL(len(batch))
	args, err := s.args(batch)
	if err != nil {
		return InsertResult{}, fmt.Errorf("%w: %w", ErrBatchWrite, err)
	}

	startTime := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return InsertResult{}, fmt.Errorf("%w: %w", ErrBatchWrite, err)
	}
	defer rows.Close()

	inserted := records.NewKeySet()
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return InsertResult{}, fmt.Errorf("%w: %w", ErrBatchWrite, err)
		}
		inserted.Add(k)
	}
	// Constraint errors surface while stepping through the rows
	if err := rows.Err(); err != nil {
		database.LogQuery(query, time.Since(startTime), 0, err)
		return InsertResult{}, fmt.Errorf("%w: %w", ErrBatchWrite, err)
	}
	database.LogQuery(query, time.Since(startTime), inserted.Len(), nil)

	return InsertResult{
		Inserted: inserted.Len(),
		Existing: missingKeys(batch, inserted),
	}, nil
}

// Diagnose replays a failed batch record by record in a transaction that
// is always rolled back
func (s *SQLite) Diagnose(ctx context.Context, batch []records.Contact) []records.RecordError {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logging.Warn("cannot diagnose batch", "error", err)
		return nil
	}
	defer func() { _ = tx.Rollback() }()

	query := s.insertSQL(1)
	var errs []records.RecordError
	for i, c := range batch {
		args, err := s.args(batch[i : i+1])
		if err == nil {
			if _, err = tx.ExecContext(ctx, "SAVEPOINT diagnose"); err != nil {
				return errs
			}
			_, err = tx.ExecContext(ctx, query, args...)
		}
		if err == nil {
			if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT diagnose"); err != nil {
				return errs
			}
			continue
		}

		errs = append(errs, records.RecordError{
			Line:   c.Line,
			Index:  i + 1,
			Phone:  c.Phone,
			Stage:  records.StageUpsert,
			Reason: err.Error(),
		})
		if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT diagnose"); err != nil {
			return errs
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT diagnose"); err != nil {
			return errs
		}
	}
	return errs
}

// Scan pages through the table ordered by the layout's order column
func (s *SQLite) Scan(ctx context.Context, pageSize int, fn func([]Row) error) error {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT ? OFFSET ?",
		quoteIdent(s.layout.Table), quoteIdent(s.layout.OrderBy))

	for offset := 0; ; offset += pageSize {
		page, err := s.page(ctx, query, pageSize, offset)
		if err != nil {
			return err
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

func (s *SQLite) page(ctx context.Context, query string, limit, offset int) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.layout.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var page []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", s.layout.Table, err)
		}

		row := make(Row, len(cols))
		for i, col := range cols {
			row[col] = s.decode(col, values[i])
		}
		page = append(page, row)
	}
	return page, rows.Err()
}

// decode turns driver values into JSON friendly ones. The metadata
// column is stored as JSON text and comes back as an object.
func (s *SQLite) decode(col string, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if str, ok := v.(string); ok && col == s.layout.Columns.Metadata && strings.HasPrefix(str, "{") {
		var m map[string]any
		if json.Unmarshal([]byte(str), &m) == nil {
			return m
		}
	}
	return v
}

// UpdateNames applies name changes in one transaction
func (s *SQLite) UpdateNames(ctx context.Context, changes []NameChange) (int, error) {
	if len(changes) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("UPDATE %s SET %s = ? WHERE CAST(%s AS TEXT) = ?",
		quoteIdent(s.layout.Table), quoteIdent(s.layout.Columns.Name), quoteIdent(s.layout.ID)))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare update: %w", err)
	}
	defer stmt.Close()

	updated := 0
	for _, c := range changes {
		res, err := stmt.ExecContext(ctx, c.New, c.ID)
		if err != nil {
			return 0, fmt.Errorf("failed to update name of %s: %w", c.ID, err)
		}
		n, _ := res.RowsAffected()
		updated += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit name updates: %w", err)
	}
	return updated, nil
}

// Ping checks the database file is usable
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}
