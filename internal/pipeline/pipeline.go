/*-------------------------------------------------------------------------
 *
 * LATS Admin - Import Pipeline
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
	"log/slog"
	"time"

	"lats-admin/internal/config"
	"lats-admin/internal/logging"
	"lats-admin/internal/normalize"
	"lats-admin/internal/records"
	"lats-admin/internal/report"
	"lats-admin/internal/source"
	"lats-admin/internal/store"
	"lats-admin/internal/validate"
)

// State is a stage of a run
type State = report.State

// Options controls one import run
type Options struct {
	BatchSize       int           // records per insert
	LookupBatchSize int           // keys per existence lookup
	Concurrency     int           // batches and lookups in flight
	BatchDelay      time.Duration // minimum spacing between batch starts, 0 = unpaced
	BatchTimeout    time.Duration // bound for one batch write, 0 = none

	DryRun      bool
	DedupeNames bool

	Phone               normalize.PhoneRules
	MinSubscriberDigits int
	ErrorSampleSize     int

	Source      string // tag stored with records that carry none
	Destination string // shown in the report
}

// DefaultOptions returns the settings of config.Defaults
func DefaultOptions() Options {
	return OptionsFromConfig(config.Defaults())
}

// OptionsFromConfig maps the import and phone sections of a config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BatchSize:       cfg.Import.BatchSize,
		LookupBatchSize: cfg.Import.LookupBatchSize,
		Concurrency:     cfg.Import.Concurrency,
		BatchDelay:      cfg.Import.BatchDelay,
		BatchTimeout:    cfg.Import.BatchTimeout,
		DedupeNames:     cfg.Import.DedupeNames,
		ErrorSampleSize: cfg.Import.ErrorSampleSize,
		Phone: normalize.PhoneRules{
			CountryCode:    cfg.Phone.CountryCode,
			NationalLength: cfg.Phone.NationalLength,
			LocalLength:    cfg.Phone.LocalLength,
		},
		MinSubscriberDigits: cfg.Phone.MinSubscriberDigits,
	}
}

func (o Options) withDefaults() Options {
	def := Options{BatchSize: 50, LookupBatchSize: 500, Concurrency: 1,
		Phone: normalize.DefaultPhoneRules(), MinSubscriberDigits: validate.DefaultOptions().MinSubscriberDigits}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.LookupBatchSize <= 0 {
		o.LookupBatchSize = def.LookupBatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = def.Concurrency
	}
	if o.Phone.CountryCode == "" {
		o.Phone = def.Phone
	}
	if o.MinSubscriberDigits <= 0 {
		o.MinSubscriberDigits = def.MinSubscriberDigits
	}
	return o
}

// Sink receives every record that was rejected or not written, so the
// caller can keep a file of records to fix and retry.
type Sink interface {
	Write(e records.RecordError) error
}

// Pipeline runs sources through normalization, validation, deduplication
// and batched loading into one destination store.
type Pipeline struct {
	store   store.Store
	opts    Options
	sink    Sink
	onState func(State)
	log     *slog.Logger
}

// New creates a pipeline writing to st
func New(st store.Store, opts Options) *Pipeline {
	return &Pipeline{
		store: st,
		opts:  opts.withDefaults(),
		log:   logging.Component("pipeline"),
	}
}

// WithRejectSink sends rejected and unwritten records to s
func (p *Pipeline) WithRejectSink(s Sink) *Pipeline {
	p.sink = s
	return p
}

// WithStateHook calls fn on every state transition
func (p *Pipeline) WithStateHook(fn func(State)) *Pipeline {
	p.onState = fn
	return p
}

// Options returns the effective options
func (p *Pipeline) Options() Options {
	return p.opts
}

// run carries the per-run accumulators between stages
type run struct {
	*Pipeline
	ctx     context.Context
	builder *report.Builder
	state   State
}

// Run imports src. A report is always returned; the error is non-nil only
// when the run could not complete (source unreadable, destination
// unreachable). Record and batch problems are reported as data.
// Cancelling ctx stops reading and new batch submissions; batches already
// submitted finish and are counted.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*report.RunReport, error) {
	r := &run{
		Pipeline: p,
		ctx:      ctx,
		builder: report.NewBuilder(report.Meta{
			Source:      src.Path(),
			Format:      string(src.Format()),
			Destination: p.opts.Destination,
			DryRun:      p.opts.DryRun,
		}, p.opts.ErrorSampleSize),
	}
	p.log.Info("import started", "run_id", r.builder.RunID(), "source", src.Path(),
		"format", src.Format(), "dry_run", p.opts.DryRun, "batch_size", p.opts.BatchSize)

	raws, err := r.read(src)
	if err != nil {
		return r.fail(err)
	}

	contacts := r.normalize(raws)
	contacts = r.validate(contacts)

	r.enter(report.StateDeduplicating)
	if r.cancelled() {
		return r.finish(), nil
	}
	part, err := Deduplicate(ctx, p.store, contacts, p.opts.LookupBatchSize, p.opts.Concurrency)
	switch {
	case err != nil && ctx.Err() != nil && !errors.Is(err, store.ErrDestinationUnreachable):
		r.cancelled()
		return r.finish(), nil
	case err != nil:
		return r.fail(fmt.Errorf("duplicate lookup failed: %w", err))
	}
	r.builder.Duplicates(part.Skipped())
	p.log.Info("deduplicated", "run_id", r.builder.RunID(), "new", len(part.New),
		"in_input", len(part.InputDuplicates), "existing", len(part.Existing))

	r.enter(report.StateUpserting)
	if p.opts.DryRun {
		r.builder.NotAttempted(len(part.New))
		return r.finish(), nil
	}

	u := newUpserter(p, r.builder, r.reject)
	if err := u.run(ctx, part.New); err != nil {
		return r.fail(err)
	}
	return r.finish(), nil
}

// read drains the source. A parse error aborts the run before any write.
func (r *run) read(src source.Source) ([]records.Raw, error) {
	r.enter(report.StateReading)

	var raws []records.Raw
	for raw, err := range src.Records() {
		if err != nil {
			r.builder.Read(len(raws))
			return nil, err
		}
		if r.ctx.Err() != nil {
			break
		}
		raws = append(raws, raw)
	}
	r.builder.Read(len(raws))
	return raws, nil
}

func (r *run) normalize(raws []records.Raw) []records.Contact {
	r.enter(report.StateNormalizing)

	opts := normalize.Options{
		Phone:       r.opts.Phone,
		DedupeNames: r.opts.DedupeNames,
		Source:      r.opts.Source,
	}
	contacts := make([]records.Contact, 0, len(raws))
	for _, raw := range raws {
		c, err := normalize.Record(raw, opts)
		if err != nil {
			r.reject(records.RecordError{
				Line:   raw.Line,
				Phone:  c.Phone,
				Stage:  records.StageNormalize,
				Reason: err.Error(),
			}, true)
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts
}

func (r *run) validate(contacts []records.Contact) []records.Contact {
	r.enter(report.StateValidating)

	opts := validate.Options{
		MinSubscriberDigits: r.opts.MinSubscriberDigits,
		CountryCode:         r.opts.Phone.CountryCode,
		LocalLength:         r.opts.Phone.LocalLength,
	}
	valid := contacts[:0]
	for _, c := range contacts {
		if err := validate.Validate(c, opts); err != nil {
			r.reject(records.RecordError{
				Line:   c.Line,
				Phone:  c.Phone,
				Stage:  records.StageValidate,
				Reason: err.Error(),
			}, true)
			continue
		}
		valid = append(valid, c)
	}
	return valid
}

// reject sends e to the sink and, for normalization and validation
// rejections, counts it in the report. Batch failures are counted by the
// upserter as a whole.
func (r *run) reject(e records.RecordError, count bool) {
	if count {
		r.builder.Reject(e)
	}
	if r.sink == nil {
		return
	}
	if err := r.sink.Write(e); err != nil {
		r.log.Warn("failed to write rejected record", "line", e.Line, "error", err)
	}
}

func (r *run) enter(s State) {
	r.state = s
	r.log.Debug("state", "run_id", r.builder.RunID(), "state", s)
	if r.onState != nil {
		r.onState(s)
	}
}

// cancelled marks the report when ctx is done
func (r *run) cancelled() bool {
	if r.ctx.Err() == nil {
		return false
	}
	r.builder.Cancel()
	return true
}

func (r *run) finish() *report.RunReport {
	if r.ctx.Err() != nil {
		r.builder.Cancel()
	}
	r.enter(report.StateReporting)
	rep := r.builder.Finish(report.StateDone)
	r.enter(report.StateDone)
	r.log.Info("import finished", "run_id", rep.RunID, "total", rep.Total,
		"imported", rep.Imported, "skipped_duplicate", rep.SkippedDuplicate,
		"rejected_invalid", rep.RejectedInvalid, "errored", rep.Errored,
		"not_attempted", rep.NotAttempted, "cancelled", rep.Cancelled)
	return rep
}

func (r *run) fail(err error) (*report.RunReport, error) {
	logging.Error("import failed", "run_id", r.builder.RunID(), "state", r.state, "error", err)
	r.builder.Fail(err)
	rep := r.builder.Finish(report.StateFailed)
	r.enter(report.StateFailed)
	return rep, err
}
