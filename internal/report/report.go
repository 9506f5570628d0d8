/*-------------------------------------------------------------------------
 *
 * LATS Admin - Run Report
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package report

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"lats-admin/internal/logging"
	"lats-admin/internal/records"
)

// State is a stage of the run state machine
type State string

const (
	StateReading       State = "reading"
	StateNormalizing   State = "normalizing"
	StateValidating    State = "validating"
	StateDeduplicating State = "deduplicating"
	StateUpserting     State = "upserting"
	StateReporting     State = "reporting"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Exit codes of the import commands
const (
	ExitOK      = 0
	ExitPartial = 1
	ExitFatal   = 2
)

// DefaultErrorSampleSize is used when no sample size is configured
const DefaultErrorSampleSize = 20

// Meta describes the run being reported
type Meta struct {
	Source      string
	Format      string
	Destination string
	DryRun      bool
}

// BatchCounts summarizes the batches submitted to the destination
type BatchCounts struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunReport is the final summary of one pipeline execution
type RunReport struct {
	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	Format      string `json:"format,omitempty"`
	Destination string `json:"destination,omitempty"`
	DryRun      bool   `json:"dry_run"`
	Cancelled   bool   `json:"cancelled"`
	State       State  `json:"state"`
	Fatal       string `json:"fatal_error,omitempty"`

	Total            int `json:"total"`
	Imported         int `json:"imported"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	RejectedInvalid  int `json:"rejected_invalid"`
	Errored          int `json:"errored"`
	NotAttempted     int `json:"not_attempted"`

	Batches BatchCounts `json:"batches"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ErrorCount      int                   `json:"error_count"`
	Errors          []records.RecordError `json:"errors,omitempty"`
	ErrorsTruncated bool                  `json:"errors_truncated,omitempty"`
}

// Accounted is the sum of every terminal outcome
func (r *RunReport) Accounted() int {
	return r.Imported + r.SkippedDuplicate + r.RejectedInvalid + r.Errored + r.NotAttempted
}

// Reconciles reports whether every record read has exactly one outcome
func (r *RunReport) Reconciles() bool {
	return r.Total == r.Accounted()
}

// Duration is the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExitCode maps the report to the process exit status
func (r *RunReport) ExitCode() int {
	switch {
	case r.State == StateFailed:
		return ExitFatal
	case r.Cancelled, r.Errored > 0, r.RejectedInvalid > 0, r.Batches.Failed > 0:
		return ExitPartial
	default:
		return ExitOK
	}
}

// WriteJSON writes the report as indented JSON
func (r *RunReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Builder accumulates outcomes while a run progresses. It is safe for
// concurrent use by the batch workers. Each run owns its own Builder.
type Builder struct {
	mu         sync.Mutex
	report     RunReport
	errors     []records.RecordError
	sampleSize int
	finished   bool
}

// NewBuilder starts a report for one run. A sampleSize of 0 selects
// DefaultErrorSampleSize; a negative size keeps every error.
func NewBuilder(meta Meta, sampleSize int) *Builder {
	if sampleSize == 0 {
		sampleSize = DefaultErrorSampleSize
	}
	return &Builder{
		sampleSize: sampleSize,
		report: RunReport{
			RunID:       uuid.NewString(),
			Source:      meta.Source,
			Format:      meta.Format,
			Destination: meta.Destination,
			DryRun:      meta.DryRun,
			State:       StateReading,
			StartedAt:   time.Now().UTC(),
		},
	}
}

// RunID returns the identifier of the run being built
func (b *Builder) RunID() string {
	return b.report.RunID
}

// Read counts records taken from the source
func (b *Builder) Read(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Total += n
}

// Reject counts a record rejected by normalization or validation
func (b *Builder) Reject(e records.RecordError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.RejectedInvalid++
	b.errors = append(b.errors, e)
}

// Duplicates counts records skipped because their key already exists
func (b *Builder) Duplicates(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.SkippedDuplicate += n
}

// NotAttempted counts records that were never submitted
func (b *Builder) NotAttempted(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.NotAttempted += n
}

// Batch folds one batch outcome into the totals
func (b *Builder) Batch(res records.BatchResult) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.report.Imported += res.Succeeded
	b.report.SkippedDuplicate += res.Duplicates
	b.report.Errored += res.Failed
	b.report.Batches.Total++
	if res.Failed > 0 {
		b.report.Batches.Failed++
	} else {
		b.report.Batches.Succeeded++
	}
	b.errors = append(b.errors, res.Errors...)
}

// Cancel marks the run as interrupted
func (b *Builder) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Cancelled = true
}

// Fail records the error that aborted the run
func (b *Builder) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil && b.report.Fatal == "" {
		b.report.Fatal = err.Error()
	}
}

// Finish freezes the report in its terminal state. Records that were read
// but never reached an outcome are counted as not attempted so the totals
// always reconcile. The error sample is ordered by source line so it does
// not depend on the order batches completed in.
func (b *Builder) Finish(state State) *RunReport {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := b.report
	if b.finished {
		return &r
	}
	b.finished = true

	r.State = state
	r.FinishedAt = time.Now().UTC()

	if missing := r.Total - r.Accounted(); missing > 0 {
		logging.Debug("records without outcome counted as not attempted",
			"run_id", r.RunID, "count", missing)
		r.NotAttempted += missing
	} else if missing < 0 {
		logging.Warn("report outcomes exceed records read",
			"run_id", r.RunID, "total", r.Total, "accounted", r.Accounted())
	}

	errs := slices.Clone(b.errors)
	slices.SortStableFunc(errs, func(a, c records.RecordError) int {
		return cmp.Or(
			cmp.Compare(a.Line, c.Line),
			cmp.Compare(a.Batch, c.Batch),
			cmp.Compare(a.Index, c.Index),
		)
	})
	r.ErrorCount = len(errs)
	if b.sampleSize > 0 && len(errs) > b.sampleSize {
		errs = errs[:b.sampleSize]
		r.ErrorsTruncated = true
	}
	r.Errors = errs

	b.report = r
	return &r
}
