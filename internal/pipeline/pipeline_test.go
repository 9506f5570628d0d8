/*-------------------------------------------------------------------------
 *
 * LATS Admin - Pipeline Tests
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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lats-admin/internal/records"
	"lats-admin/internal/report"
	"lats-admin/internal/source"
	"lats-admin/internal/store"
)

func TestRunImportsAndReconciles(t *testing.T) {
	rows := fakeCustomers(120)
	rows[10].Phone = "12"          // rejected by normalization
	rows[20].Phone = rows[5].Phone // duplicate inside the input
	rows[30].Phone = "+2557123"    // canonical but too short, rejected by validation
	path := writeCSV(t, rows)

	st := newMemStore()
	sink := &memSink{}
	rep, err := New(st, testOptions()).WithRejectSink(sink).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)

	assert.Equal(t, report.StateDone, rep.State)
	assert.Equal(t, 120, rep.Total)
	assert.Equal(t, 117, rep.Imported)
	assert.Equal(t, 1, rep.SkippedDuplicate)
	assert.Equal(t, 2, rep.RejectedInvalid)
	assert.Equal(t, 0, rep.Errored)
	assert.True(t, rep.Reconciles())
	assert.Equal(t, report.BatchCounts{Total: 3, Succeeded: 3}, rep.Batches)
	assert.Equal(t, 117, st.count())
	assert.Equal(t, report.ExitPartial, rep.ExitCode())

	require.Len(t, sink.errs, 2)
	assert.Equal(t, records.StageNormalize, sink.errs[0].Stage)
	assert.Equal(t, 12, sink.errs[0].Line)
	assert.Equal(t, records.StageValidate, sink.errs[1].Stage)
	assert.Equal(t, 32, sink.errs[1].Line)
}

func TestRunDuplicatePhoneDifferentNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Name,Phone\nmary A.,0712345678\nMary Akinyi,+255 712 345 678\n"), 0o600))

	st := newMemStore()
	rep, err := New(st, testOptions()).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Imported)
	assert.Equal(t, 1, rep.SkippedDuplicate)
	assert.Equal(t, 1, st.count())
	assert.Equal(t, "Mary A.", st.rows["+255712345678"].Name)
	assert.Equal(t, report.ExitOK, rep.ExitCode())
}

func TestRunRejectsTruncatedHomeNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Name,Phone\nAsha,25571234567\nBaraka,+2557123456\nNeema,0712345678\n"), 0o600))

	st := newMemStore()
	sink := &memSink{}
	rep, err := New(st, testOptions()).WithRejectSink(sink).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Imported)
	assert.Equal(t, 2, rep.RejectedInvalid)
	require.Len(t, sink.errs, 2)
	for _, e := range sink.errs {
		assert.Equal(t, records.StageValidate, e.Stage)
		assert.Contains(t, e.Reason, "subscriber digits after +255")
	}
}

func TestRunFailedBatchReconciles(t *testing.T) {
	rows := fakeCustomers(2500)
	// record #37 of batch 17
	bad := canonical(rows[16*50+36].Phone)

	st := newMemStore()
	st.violation = func(c records.Contact) string {
		if c.Phone == bad {
			return `null value in column "name" violates not-null constraint (SQLSTATE 23502)`
		}
		return ""
	}
	sink := &memSink{}
	path := writeCSV(t, rows)

	rep, err := New(st, testOptions()).WithRejectSink(sink).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)

	assert.Equal(t, 2500, rep.Total)
	assert.Equal(t, 2450, rep.Imported)
	assert.Equal(t, 50, rep.Errored)
	assert.Equal(t, 0, rep.SkippedDuplicate)
	assert.Equal(t, 0, rep.RejectedInvalid)
	assert.Equal(t, 0, rep.NotAttempted)
	assert.Equal(t, rep.Total, rep.Imported+rep.SkippedDuplicate+rep.RejectedInvalid+rep.Errored)
	assert.Equal(t, report.BatchCounts{Total: 50, Succeeded: 49, Failed: 1}, rep.Batches)
	assert.Equal(t, report.ExitPartial, rep.ExitCode())

	require.Len(t, rep.Errors, 1)
	culprit := rep.Errors[0]
	assert.Equal(t, 17, culprit.Batch)
	assert.Equal(t, 37, culprit.Index)
	assert.Equal(t, 16*50+36+2, culprit.Line)
	assert.Equal(t, bad, culprit.Phone)
	assert.Contains(t, culprit.Reason, "not-null")

	require.Len(t, sink.errs, 50)
	for _, e := range sink.errs {
		assert.Equal(t, 17, e.Batch)
		if e.Index == 37 {
			assert.Contains(t, e.Reason, "not-null")
		} else {
			assert.Equal(t, "not written: batch 17 failed at record 37", e.Reason)
		}
	}

	// the store accepts the record once fixed; only the failed batch is new
	st.violation = nil
	rerun, err := New(st, testOptions()).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)
	assert.Equal(t, 50, rerun.Imported)
	assert.Equal(t, 2450, rerun.SkippedDuplicate)
	assert.Equal(t, 2500, st.count())
	assert.Equal(t, report.ExitOK, rerun.ExitCode())
}

func TestRunFailedBatchWithoutDiagnosis(t *testing.T) {
	rows := fakeCustomers(10)
	mem := newMemStore()
	mem.violation = func(c records.Contact) string {
		if c.Phone == canonical(rows[3].Phone) {
			return "constraint violated"
		}
		return ""
	}
	sink := &memSink{}

	opts := testOptions()
	opts.BatchSize = 5
	rep, err := New(undiagnosable{mem}, opts).WithRejectSink(sink).Run(context.Background(), openCSV(t, writeCSV(t, rows)))
	require.NoError(t, err)

	assert.Equal(t, 5, rep.Imported)
	assert.Equal(t, 5, rep.Errored)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, 1, rep.Errors[0].Batch)
	assert.Zero(t, rep.Errors[0].Index)
	assert.Contains(t, rep.Errors[0].Reason, "constraint violated")
	assert.Len(t, sink.errs, 5)
	assert.Contains(t, sink.errs[0].Reason, "not written: batch 1 failed")
}

// undiagnosable exposes only the base Store methods of memStore
type undiagnosable struct{ mem *memStore }

func (u undiagnosable) ExistingKeys(ctx context.Context, keys []string) (records.KeySet, error) {
	return u.mem.ExistingKeys(ctx, keys)
}

func (u undiagnosable) InsertMany(ctx context.Context, batch []records.Contact) (store.InsertResult, error) {
	return u.mem.InsertMany(ctx, batch)
}

func (u undiagnosable) Close() error { return nil }

func TestRunIdempotentAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "lats.db"), store.DefaultLayout())
	require.NoError(t, err)
	defer db.Close()

	path := writeCSV(t, fakeCustomers(230))

	first, err := New(db, testOptions()).Run(ctx, openCSV(t, path))
	require.NoError(t, err)
	assert.Equal(t, 230, first.Imported)

	second, err := New(db, testOptions()).Run(ctx, openCSV(t, path))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 230, second.SkippedDuplicate)
	assert.Equal(t, 0, second.Batches.Total)
	assert.True(t, second.Reconciles())
}

func TestRunDryRun(t *testing.T) {
	rows := fakeCustomers(60)
	st := newMemStore()
	st.rows[canonical(rows[0].Phone)] = records.Contact{Phone: canonical(rows[0].Phone), Name: "Existing"}

	opts := testOptions()
	opts.DryRun = true
	rep, err := New(st, opts).Run(context.Background(), openCSV(t, writeCSV(t, rows)))
	require.NoError(t, err)

	assert.True(t, rep.DryRun)
	assert.Equal(t, 0, rep.Imported)
	assert.Equal(t, 1, rep.SkippedDuplicate)
	assert.Equal(t, 59, rep.NotAttempted)
	assert.True(t, rep.Reconciles())
	assert.Zero(t, st.inserts)
	assert.Equal(t, 1, st.count())
	assert.Equal(t, report.ExitOK, rep.ExitCode())
}

func TestRunCancelledFinishesInFlightBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := newMemStore()
	st.onInsert = func(n int) {
		if n == 2 {
			// cancelled while batch 2 is in flight
			cancel()
			time.Sleep(10 * time.Millisecond)
		}
	}

	rep, err := New(st, testOptions()).Run(ctx, openCSV(t, writeCSV(t, fakeCustomers(500))))
	require.NoError(t, err)

	assert.True(t, rep.Cancelled)
	assert.Equal(t, report.StateDone, rep.State)
	assert.Equal(t, 100, rep.Imported)
	assert.Equal(t, 400, rep.NotAttempted)
	assert.Equal(t, 2, rep.Batches.Total)
	assert.True(t, rep.Reconciles())
	assert.Equal(t, 100, st.count())
	assert.Equal(t, report.ExitPartial, rep.ExitCode())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := newMemStore()
	rep, err := New(st, testOptions()).Run(ctx, openCSV(t, writeCSV(t, fakeCustomers(10))))
	require.NoError(t, err)
	assert.True(t, rep.Cancelled)
	assert.True(t, rep.Reconciles())
	assert.Zero(t, st.inserts)
}

func TestRunDestinationUnreachable(t *testing.T) {
	st := newMemStore()
	st.insertErr = func(n int) error {
		if n >= 3 {
			return fmt.Errorf("%w after 3 attempts: connection refused", store.ErrDestinationUnreachable)
		}
		return nil
	}
	sink := &memSink{}

	rep, err := New(st, testOptions()).WithRejectSink(sink).Run(context.Background(),
		openCSV(t, writeCSV(t, fakeCustomers(300))))
	require.ErrorIs(t, err, store.ErrDestinationUnreachable)
	require.NotNil(t, rep)

	assert.Equal(t, report.StateFailed, rep.State)
	assert.Equal(t, 100, rep.Imported)
	assert.Equal(t, 50, rep.Errored)
	assert.Equal(t, 150, rep.NotAttempted)
	assert.True(t, rep.Reconciles())
	assert.Contains(t, rep.Fatal, "destination unreachable")
	assert.Equal(t, report.ExitFatal, rep.ExitCode())
	assert.Len(t, sink.errs, 50)
}

func TestRunSourceParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,phone\nAsha,0712345678\n\"Baraka,0754000111\n"), 0o600))

	st := newMemStore()
	rep, err := New(st, testOptions()).Run(context.Background(), openCSV(t, path))
	require.ErrorIs(t, err, source.ErrSourceParse)
	assert.Equal(t, report.StateFailed, rep.State)
	assert.Zero(t, st.inserts)
	assert.Zero(t, rep.Imported)
	assert.True(t, rep.Reconciles())
}

func TestRunStateTransitions(t *testing.T) {
	var states []State
	_, err := New(newMemStore(), testOptions()).
		WithStateHook(func(s State) { states = append(states, s) }).
		Run(context.Background(), openCSV(t, writeCSV(t, fakeCustomers(5))))
	require.NoError(t, err)

	assert.Equal(t, []State{
		report.StateReading,
		report.StateNormalizing,
		report.StateValidating,
		report.StateDeduplicating,
		report.StateUpserting,
		report.StateReporting,
		report.StateDone,
	}, states)
}

func TestRunBoundedConcurrency(t *testing.T) {
	st := newMemStore()
	st.onInsert = func(int) { time.Sleep(5 * time.Millisecond) }

	opts := testOptions()
	opts.Concurrency = 3
	opts.BatchSize = 10
	rep, err := New(st, opts).Run(context.Background(), openCSV(t, writeCSV(t, fakeCustomers(200))))
	require.NoError(t, err)

	assert.Equal(t, 200, rep.Imported)
	assert.Equal(t, 20, rep.Batches.Succeeded)
	assert.LessOrEqual(t, st.maxSeen, 3)
}

func TestRunBatchDelayPacesBatches(t *testing.T) {
	opts := testOptions()
	opts.BatchSize = 10
	opts.BatchDelay = 20 * time.Millisecond

	start := time.Now()
	rep, err := New(newMemStore(), opts).Run(context.Background(), openCSV(t, writeCSV(t, fakeCustomers(40))))
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Batches.Total)
	// the first batch starts immediately, the next three wait
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRunUnitsAreIndependent(t *testing.T) {
	path := writeCSV(t, fakeCustomers(20))
	a, err := New(newMemStore(), testOptions()).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)
	b, err := New(newMemStore(), testOptions()).Run(context.Background(), openCSV(t, path))
	require.NoError(t, err)

	assert.Equal(t, 20, a.Imported)
	assert.Equal(t, 20, b.Imported)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestOptionsDefaults(t *testing.T) {
	p := New(newMemStore(), Options{})
	opts := p.Options()
	assert.Equal(t, 50, opts.BatchSize)
	assert.Equal(t, 500, opts.LookupBatchSize)
	assert.Equal(t, 1, opts.Concurrency)
	assert.Equal(t, "255", opts.Phone.CountryCode)
	assert.Equal(t, 9, opts.MinSubscriberDigits)

	assert.True(t, errors.Is(fmt.Errorf("wrap: %w", store.ErrBatchWrite), store.ErrBatchWrite))
}
