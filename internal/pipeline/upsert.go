/*-------------------------------------------------------------------------
 *
 * LATS Admin - Batch Upserter
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
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"lats-admin/internal/records"
	"lats-admin/internal/report"
	"lats-admin/internal/store"
)

// diagnoseTimeout bounds the per-record replay of a failed batch
const diagnoseTimeout = time.Minute

// upserter writes new contacts in fixed-size batches
type upserter struct {
	*Pipeline
	builder *report.Builder
	reject  func(e records.RecordError, count bool)

	mu    sync.Mutex
	fatal error
}

func newUpserter(p *Pipeline, b *report.Builder, reject func(records.RecordError, bool)) *upserter {
	return &upserter{Pipeline: p, builder: b, reject: reject}
}

// batches splits contacts into slices of at most size records
func batches(contacts []records.Contact, size int) [][]records.Contact {
	var out [][]records.Contact
	for start := 0; start < len(contacts); start += size {
		out = append(out, contacts[start:min(start+size, len(contacts))])
	}
	return out
}

func (u *upserter) limiter() *rate.Limiter {
	if u.opts.BatchDelay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(u.opts.BatchDelay), 1)
}

// run submits every batch and waits for the ones in flight. It returns an
// error only when the destination became unreachable; batches that were
// never submitted are then counted as not attempted.
func (u *upserter) run(ctx context.Context, contacts []records.Contact) error {
	all := batches(contacts, u.opts.BatchSize)
	limiter := u.limiter()

	// stop ends submission on cancellation or on a fatal batch
	stop, halt := context.WithCancel(ctx)
	defer halt()

	var g errgroup.Group
	g.SetLimit(u.opts.Concurrency)

	submitted := 0
	for i, batch := range all {
		if err := limiter.Wait(stop); err != nil {
			break
		}
		if stop.Err() != nil {
			break
		}

		n := i + 1
		submitted++
		g.Go(func() error {
			if stop.Err() != nil {
				u.builder.NotAttempted(len(batch))
				return nil
			}
			if err := u.write(ctx, n, batch); err != nil {
				u.setFatal(err)
				halt()
			}
			return nil
		})
	}
	_ = g.Wait()

	remaining := 0
	for _, batch := range all[submitted:] {
		remaining += len(batch)
	}
	if remaining > 0 {
		u.log.Info("batches not submitted", "batches", len(all)-submitted, "records", remaining)
		u.builder.NotAttempted(remaining)
	}

	u.mu.Lock()
	defer u.mu.Unlock()
	return u.fatal
}

func (u *upserter) setFatal(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fatal == nil {
		u.fatal = err
	}
}

// write inserts one batch on a context that ignores cancellation, so a
// submitted batch always completes or times out. The outcome is folded
// into the report. The returned error is fatal for the run.
func (u *upserter) write(ctx context.Context, n int, batch []records.Contact) error {
	bctx, cancel := u.batchContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := u.store.InsertMany(bctx, batch)
	if err == nil {
		u.log.Debug("batch written", "batch", n, "records", len(batch),
			"inserted", res.Inserted, "existing", len(res.Existing),
			"duration", time.Since(start))
		u.builder.Batch(records.BatchResult{
			Batch:      n,
			Attempted:  len(batch),
			Succeeded:  res.Inserted,
			Duplicates: len(res.Existing),
		})
		return nil
	}

	fatal := errors.Is(err, store.ErrDestinationUnreachable)
	var culprits []records.RecordError
	if !fatal {
		culprits = u.diagnose(ctx, batch)
	}
	u.log.Warn("batch failed", "batch", n, "records", len(batch), "culprits", len(culprits), "error", err)

	result := records.BatchResult{
		Batch:     n,
		Attempted: len(batch),
		Failed:    len(batch),
		Errors:    culprits,
	}
	for i := range result.Errors {
		result.Errors[i].Batch = n
	}
	if len(result.Errors) == 0 {
		result.Errors = []records.RecordError{{
			Batch:  n,
			Stage:  records.StageUpsert,
			Reason: err.Error(),
		}}
	}
	u.builder.Batch(result)
	u.sendRejected(n, batch, culprits, err)

	if fatal {
		return fmt.Errorf("batch %d: %w", n, err)
	}
	return nil
}

func (u *upserter) batchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	detached := context.WithoutCancel(ctx)
	if u.opts.BatchTimeout > 0 {
		return context.WithTimeout(detached, u.opts.BatchTimeout)
	}
	return context.WithCancel(detached)
}

// diagnose asks the store which records made the batch fail
func (u *upserter) diagnose(ctx context.Context, batch []records.Contact) []records.RecordError {
	d, ok := store.As[store.Diagnoser](u.store)
	if !ok {
		return nil
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnoseTimeout)
	defer cancel()
	return d.Diagnose(dctx, batch)
}

// sendRejected writes every record of a failed batch to the sink. Records
// that were not themselves at fault name the first culprit so the batch
// can be fixed and retried as a whole.
func (u *upserter) sendRejected(n int, batch []records.Contact, culprits []records.RecordError, cause error) {
	if u.sink == nil {
		return
	}

	byIndex := make(map[int]records.RecordError, len(culprits))
	for _, e := range culprits {
		byIndex[e.Index] = e
	}

	other := fmt.Sprintf("not written: batch %d failed: %v", n, cause)
	if len(culprits) > 0 {
		other = fmt.Sprintf("not written: batch %d failed at record %d", n, culprits[0].Index)
	}

	for i, c := range batch {
		e, ok := byIndex[i+1]
		if !ok {
			e = records.RecordError{
				Line:   c.Line,
				Index:  i + 1,
				Phone:  c.Phone,
				Stage:  records.StageUpsert,
				Reason: other,
			}
		}
		e.Batch = n
		u.reject(e, false)
	}
}
