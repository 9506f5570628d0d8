/*-------------------------------------------------------------------------
 *
 * LATS Admin - Supabase Store
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

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"

	"lats-admin/internal/logging"
	"lats-admin/internal/records"
)

// Supabase writes through the project's PostgREST API with the service
// role key. PostgREST has no client transactions, so it cannot diagnose
// a failed batch without writing; it does not implement Diagnoser.
type Supabase struct {
	client *supabase.Client
	layout Layout
	fields []field
}

// OpenSupabase creates a client for the project
func OpenSupabase(url, serviceKey string, layout Layout) (*Supabase, error) {
	if url == "" || serviceKey == "" {
		return nil, fmt.Errorf("supabase destination needs SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
	}

	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Supabase{client: client, layout: layout, fields: layout.fields()}, nil
}

func (s *Supabase) from() *postgrest.QueryBuilder {
	return s.client.From(s.layout.Table)
}

// ExistingKeys returns the keys already present using an in.() filter
func (s *Supabase) ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error) {
	found := records.NewKeySet()
	if len(keys) == 0 {
		return found, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := s.layout.Key()
	var rows []map[string]any
	if _, err := s.from().Select(key, "", false).In(key, keys).ExecuteTo(&rows); err != nil {
		return nil, fmt.Errorf("failed to look up existing keys: %w", err)
	}

	for _, row := range rows {
		if k, ok := row[key].(string); ok {
			found.Add(k)
		}
	}
	return found, nil
}

func (s *Supabase) body(batch []records.Contact) []map[string]any {
	rows := make([]map[string]any, len(batch))
	for i, c := range batch {
		row := make(map[string]any, len(s.fields))
		for _, f := range s.fields {
			row[f.column] = f.value(c)
		}
		rows[i] = row
	}
	return rows
}

// InsertMany posts the batch as one request. A unique violation means a
// row appeared since the lookup; those keys are re-checked and the rest
// is posted once more.
func (s *Supabase) InsertMany(ctx context.Context, batch []records.Contact) (InsertResult, error) {
	if len(batch) == 0 {
		return InsertResult{}, nil
	}

	err := s.insert(ctx, batch)
	if err == nil {
		return InsertResult{Inserted: len(batch)}, nil
	}
	if !isUniqueViolation(err) {
		return InsertResult{}, s.writeError(err)
	}

	existing, err := s.ExistingKeys(ctx, records.Phones(batch))
	if err != nil {
		return InsertResult{}, err
	}

	var remainder []records.Contact
	var result InsertResult
	for _, c := range batch {
		if existing.Has(c.Phone) {
			result.Existing = append(result.Existing, c.Phone)
			continue
		}
		remainder = append(remainder, c)
	}
	logging.Debug("batch hit existing keys, retrying remainder",
		"existing", existing.Sorted(), "remaining", len(remainder))

	if len(remainder) > 0 {
		if err := s.insert(ctx, remainder); err != nil {
			return InsertResult{}, s.writeError(err)
		}
	}
	result.Inserted = len(remainder)
	return result, nil
}

func (s *Supabase) insert(ctx context.Context, batch []records.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.from().Insert(s.body(batch), false, "", "minimal", "").Execute()
	return err
}

func (s *Supabase) writeError(err error) error {
	if IsUnreachable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBatchWrite, err)
}

// isUniqueViolation recognizes PostgreSQL's unique_violation in a
// PostgREST error
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

// Scan pages through the table with Range requests
func (s *Supabase) Scan(ctx context.Context, pageSize int, fn func([]Row) error) error {
	for from := 0; ; from += pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, _, err := s.from().
			Select("*", "", false).
			Order(s.layout.OrderBy, &postgrest.OrderOpts{Ascending: true}).
			Range(from, from+pageSize-1, "").
			Execute()
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", s.layout.Table, err)
		}
		page, err := decodeRows(data)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", s.layout.Table, err)
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

// UpdateNames patches one row per change
func (s *Supabase) UpdateNames(ctx context.Context, changes []NameChange) (int, error) {
	updated := 0
	for _, c := range changes {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		_, count, err := s.from().
			Update(map[string]any{s.layout.Columns.Name: c.New}, "minimal", "exact").
			Eq(s.layout.ID, c.ID).
			Execute()
		if err != nil {
			return updated, fmt.Errorf("failed to update name of %s: %w", c.ID, err)
		}
		updated += int(count)
	}
	return updated, nil
}

// Ping requests a single key to check the URL, key and table
func (s *Supabase) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := s.from().Select(s.layout.Key(), "", true).Limit(1, "").Execute()
	return err
}

// Close is a no-op; the HTTP client needs no teardown
func (s *Supabase) Close() error { return nil }
