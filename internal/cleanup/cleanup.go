/*-------------------------------------------------------------------------
 *
 * LATS Admin - Duplicate Name Cleanup
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"lats-admin/internal/logging"
	"lats-admin/internal/normalize"
	"lats-admin/internal/store"
)

// ErrUnsupported is returned for destinations that cannot be scanned or
// updated by id
var ErrUnsupported = errors.New("destination does not support name cleanup")

// Options controls a cleanup run
type Options struct {
	NameColumn string
	IDColumn   string
	PageSize   int // rows read per page
	BatchSize  int // updates per transaction
	SampleSize int // changes kept in the result
	DryRun     bool
}

// Result summarizes a cleanup run
type Result struct {
	Scanned int                `json:"scanned"`
	Changed int                `json:"changed"`
	Updated int                `json:"updated"`
	DryRun  bool               `json:"dry_run"`
	Samples []store.NameChange `json:"samples,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.NameColumn == "" {
		o.NameColumn = "name"
	}
	if o.IDColumn == "" {
		o.IDColumn = "id"
	}
	if o.PageSize <= 0 {
		o.PageSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.SampleSize == 0 {
		o.SampleSize = 10
	}
	return o
}

// Plan lists the rows whose name has repeated tokens and the cleaned name
// for each. Rows without an id or a string name are skipped.
func Plan(rows []store.Row, nameCol, idCol string) []store.NameChange {
	var changes []store.NameChange
	for _, row := range rows {
		name, ok := row[nameCol].(string)
		if !ok || !normalize.HasDuplicateTokens(name) {
			continue
		}
		id := idString(row[idCol])
		if id == "" {
			continue
		}
		cleaned := normalize.CleanDuplicateNames(name)
		if cleaned == "" || cleaned == name {
			continue
		}
		changes = append(changes, store.NameChange{ID: id, Old: name, New: cleaned})
	}
	return changes
}

// idString renders a row id the way the destination compares it as text
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	case float64:
		// JSON decoded ids
		return strconv.FormatFloat(id, 'f', -1, 64)
	case json.Number:
		return id.String()
	default:
		return strings.TrimSpace(fmt.Sprint(id))
	}
}

// Run scans the customer table, plans name changes and, unless DryRun is
// set, applies them in batches.
func Run(ctx context.Context, st store.Store, opts Options) (Result, error) {
	opts = opts.withDefaults()
	res := Result{DryRun: opts.DryRun}

	scanner, ok := store.As[store.Scanner](st)
	if !ok {
		return res, fmt.Errorf("%w: cannot scan rows", ErrUnsupported)
	}
	updater, ok := store.As[store.NameUpdater](st)
	if !ok && !opts.DryRun {
		return res, fmt.Errorf("%w: cannot update names", ErrUnsupported)
	}

	start := time.Now()
	var changes []store.NameChange
	err := scanner.Scan(ctx, opts.PageSize, func(rows []store.Row) error {
		res.Scanned += len(rows)
		changes = append(changes, Plan(rows, opts.NameColumn, opts.IDColumn)...)
		return ctx.Err()
	})
	if err != nil {
		return res, fmt.Errorf("failed to scan names: %w", err)
	}

	res.Changed = len(changes)
	if opts.SampleSize > 0 && len(changes) > opts.SampleSize {
		res.Samples = changes[:opts.SampleSize]
	} else {
		res.Samples = changes
	}

	logging.Info("name cleanup planned", "scanned", res.Scanned, "changes", res.Changed,
		"dry_run", opts.DryRun, "duration", time.Since(start))
	if opts.DryRun {
		return res, nil
	}

	for i := 0; i < len(changes); i += opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		batch := changes[i:min(i+opts.BatchSize, len(changes))]
		n, err := updater.UpdateNames(ctx, batch)
		if err != nil {
			return res, fmt.Errorf("failed to update names: %w", err)
		}
		res.Updated += n
	}

	logging.Info("name cleanup applied", "updated", res.Updated, "duration", time.Since(start))
	return res, nil
}
