/*-------------------------------------------------------------------------
 *
 * LATS Admin - Destination Stores
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package store writes contacts to a destination table whose key column
// carries a unique constraint. Every store treats a unique conflict as
// "already exists", never as a failure.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"lats-admin/internal/config"
	"lats-admin/internal/records"
)

var (
	// ErrDestinationUnreachable is returned once retries are exhausted
	// against a destination that cannot be reached
	ErrDestinationUnreachable = errors.New("destination unreachable")

	// ErrBatchWrite wraps a batch insert rejected by the destination
	ErrBatchWrite = errors.New("batch write failed")
)

// Store is the capability every destination provides
type Store interface {
	// ExistingKeys returns the subset of keys already present
	ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error)

	// InsertMany writes a batch as a unit. Rows whose key already exists
	// are skipped and listed in InsertResult.Existing.
	InsertMany(ctx context.Context, batch []records.Contact) (InsertResult, error)

	Close() error
}

// InsertResult is the outcome of a successful InsertMany
type InsertResult struct {
	Inserted int
	Existing []string
}

// Diagnoser explains which records made a batch fail, without writing
type Diagnoser interface {
	Diagnose(ctx context.Context, batch []records.Contact) []records.RecordError
}

// Row is one destination row keyed by column name. Numeric values decoded
// from JSON are json.Number so bigint ids keep every digit.
type Row map[string]any

// decodeRows decodes a JSON array of row objects
func decodeRows(data []byte) ([]Row, error) {
	var rows []Row
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// decodeRow decodes a single JSON row object
func decodeRow(data []byte) (Row, error) {
	var row Row
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		return nil, err
	}
	return row, nil
}

// Scanner pages through a whole table in a stable order
type Scanner interface {
	Scan(ctx context.Context, pageSize int, fn func([]Row) error) error
}

// NameChange is a pending update of one customer name
type NameChange struct {
	ID  string
	Old string
	New string
}

// NameUpdater rewrites customer names by row id
type NameUpdater interface {
	UpdateNames(ctx context.Context, changes []NameChange) (int, error)
}

// Pinger checks that the destination is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Layout describes the destination table and its column names
type Layout struct {
	Table   string
	OrderBy string
	ID      string
	Columns config.ColumnMap
}

// LayoutFromConfig builds a Layout from the destination section
func LayoutFromConfig(d config.DestinationConfig) Layout {
	return Layout{
		Table:   d.Table,
		OrderBy: d.OrderBy,
		ID:      d.IDColumn,
		Columns: d.Columns,
	}
}

// DefaultLayout is the customers table with default column names
func DefaultLayout() Layout {
	return LayoutFromConfig(config.Defaults().Destination)
}

// Key returns the unique key column
func (l Layout) Key() string { return l.Columns.Phone }

// field pairs a destination column with the contact value it receives
type field struct {
	column string
	value  func(records.Contact) any
}

// fields returns the enabled columns in insert order
func (l Layout) fields() []field {
	all := []field{
		{l.Columns.Phone, func(c records.Contact) any { return c.Phone }},
		{l.Columns.Name, func(c records.Contact) any { return c.Name }},
		{l.Columns.Email, func(c records.Contact) any { return nullable(c.Email) }},
		{l.Columns.Source, func(c records.Contact) any { return nullable(c.Source) }},
		{l.Columns.Metadata, func(c records.Contact) any { return metadataValue(c.Metadata) }},
	}

	var out []field
	for _, f := range all {
		if f.column != "" && f.column != config.Disabled {
			out = append(out, f)
		}
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func metadataValue(m map[string]string) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// missingKeys returns the batch keys not in inserted, in batch order
func missingKeys(batch []records.Contact, inserted records.KeySet) []string {
	var existing []string
	for _, c := range batch {
		if !inserted.Has(c.Phone) {
			existing = append(existing, c.Phone)
		}
	}
	return existing
}

// splitTable separates an optional schema from a table name
func splitTable(name string) []string {
	return strings.Split(name, ".")
}
