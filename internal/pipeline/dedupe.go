/*-------------------------------------------------------------------------
 *
 * LATS Admin - Deduplicator
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"lats-admin/internal/logging"
	"lats-admin/internal/records"
	"lats-admin/internal/store"
)

// Partition splits validated contacts by their key's status
type Partition struct {
	New             []records.Contact // first occurrence of a key not in the destination
	InputDuplicates []records.Contact // later occurrences of a key seen earlier in the input
	Existing        []records.Contact // key already present in the destination
}

// Skipped is the number of contacts that will not be written
func (p Partition) Skipped() int {
	return len(p.InputDuplicates) + len(p.Existing)
}

// Deduplicate partitions contacts. Within the input the first occurrence of
// a phone wins. Keys are then checked against the destination in batches
// of lookupBatchSize, up to concurrency lookups at a time.
//
// A lookup that fails for a reason other than an unreachable destination
// is logged and its keys stay in New; the destination's unique constraint
// still prevents a second row.
func Deduplicate(ctx context.Context, st store.Store, contacts []records.Contact,
	lookupBatchSize, concurrency int) (Partition, error) {
	if lookupBatchSize <= 0 {
		lookupBatchSize = 500
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	var part Partition
	seen := make(records.KeySet, len(contacts))
	unique := make([]records.Contact, 0, len(contacts))
	for _, c := range contacts {
		if seen.Has(c.Phone) {
			part.InputDuplicates = append(part.InputDuplicates, c)
			continue
		}
		seen.Add(c.Phone)
		unique = append(unique, c)
	}

	existing, err := lookup(ctx, st, records.Phones(unique), lookupBatchSize, concurrency)
	if err != nil {
		return Partition{}, err
	}

	for _, c := range unique {
		if existing.Has(c.Phone) {
			part.Existing = append(part.Existing, c)
		} else {
			part.New = append(part.New, c)
		}
	}
	return part, nil
}

// lookup runs the batched existence queries
func lookup(ctx context.Context, st store.Store, keys []string, size, concurrency int) (records.KeySet, error) {
	var (
		mu       sync.Mutex
		existing = make(records.KeySet)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for start := 0; start < len(keys); start += size {
		chunk := keys[start:min(start+size, len(keys))]
		g.Go(func() error {
			found, err := st.ExistingKeys(gctx, chunk)
			switch {
			case err == nil:
			case errors.Is(err, store.ErrDestinationUnreachable), gctx.Err() != nil:
				return err
			default:
				logging.Warn("existence lookup failed, keys treated as new",
					"keys", len(chunk), "error", err)
				return nil
			}

			mu.Lock()
			existing.Merge(found)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return existing, nil
}
