/*
importer.go - Import reconciliation pipeline

PURPOSE:
  Turns a decoded import file into insert-or-update operations on
  PriceRecords and writes one ImportRun audit entry per completed run.

PER-RECORD FLOW (input order):
  1. period or value absent          -> skipped (counted in Skipped)
  2. parse period label and value    -> malformed: abort run, or reject and
                                        continue (OnMalformed policy)
  3. reconcile on (date, source)
       lookup strategy: point lookup, then insert (new) or update (found)
       upsert strategy: one atomic insert-or-update
  4. count as imported

  On update only value and created_at change. Category and delta keep
  whatever they held before.

RUN FLOW:
  running -> completed (audit written)
  Any fatal error aborts the remaining records and skips the audit write.
  With per-record atomicity, records reconciled before the failure stay
  committed. With all-or-nothing atomicity the whole run, audit included,
  is one transaction.

SEE ALSO:
  - lookup.go: point lookup used in step 3
  - file.go:   ExternalRecord decoding
*/
package quotes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/period"
	"github.com/warp/quote-engine/query"
	"github.com/warp/quote-engine/store"
)

// =============================================================================
// POLICIES
// =============================================================================

// MalformedPolicy decides what a present-but-unparsable record does to the run.
type MalformedPolicy string

const (
	MalformedAbort MalformedPolicy = "abort"
	MalformedSkip  MalformedPolicy = "skip"
)

// Atomicity decides the transaction scope of a run.
type Atomicity string

const (
	AtomicPerRecord    Atomicity = "per-record"
	AtomicAllOrNothing Atomicity = "all-or-nothing"
)

// Strategy decides how a record is reconciled against storage.
type Strategy string

const (
	StrategyLookup Strategy = "lookup"
	StrategyUpsert Strategy = "upsert"
)

// ImportOptions configures an Importer. Zero values take the defaults:
// DefaultSource, DefaultCategory, abort, per-record, lookup.
type ImportOptions struct {
	Source      string
	Category    string
	OnMalformed MalformedPolicy
	Atomicity   Atomicity
	Strategy    Strategy

	// Now is the clock used for created_at and ran_at. Defaults to time.Now.
	Now func() time.Time
}

func (o ImportOptions) withDefaults() ImportOptions {
	if o.Source == "" {
		o.Source = DefaultSource
	}
	if o.Category == "" {
		o.Category = DefaultCategory
	}
	if o.OnMalformed == "" {
		o.OnMalformed = MalformedAbort
	}
	if o.Atomicity == "" {
		o.Atomicity = AtomicPerRecord
	}
	if o.Strategy == "" {
		o.Strategy = StrategyLookup
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Validate rejects unknown policy values.
func (o ImportOptions) Validate() error {
	switch o.OnMalformed {
	case "", MalformedAbort, MalformedSkip:
	default:
		return fmt.Errorf("unknown malformed policy %q", o.OnMalformed)
	}
	switch o.Atomicity {
	case "", AtomicPerRecord, AtomicAllOrNothing:
	default:
		return fmt.Errorf("unknown atomicity %q", o.Atomicity)
	}
	switch o.Strategy {
	case "", StrategyLookup, StrategyUpsert:
	default:
		return fmt.Errorf("unknown strategy %q", o.Strategy)
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrMalformedValue is wrapped when a record's value is not a number.
var ErrMalformedValue = errors.New("malformed price value")

// RecordError identifies the input record a failure belongs to.
type RecordError struct {
	Index  int
	Period string
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%q): %v", e.Index, e.Period, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Malformed reports whether the record itself was unparsable, as opposed to
// failing in storage.
func (e *RecordError) Malformed() bool {
	return errors.Is(e.Err, period.ErrMalformedPeriod) || errors.Is(e.Err, ErrMalformedValue)
}

// =============================================================================
// IMPORTER
// =============================================================================

type outcome string

const (
	outcomeSkipped  outcome = "skipped"
	outcomeRejected outcome = "rejected"
	outcomeCreated  outcome = "created"
	outcomeUpdated  outcome = "updated"
	outcomeUpserted outcome = "upserted"
)

const (
	runCompleted = "completed"
	runFailed    = "failed"
)

// Importer runs the reconciliation pipeline against one gateway.
type Importer struct {
	gw      *store.Gateway
	opts    ImportOptions
	metrics *Metrics
}

// NewImporter validates opts and fills in defaults. metrics may be nil.
func NewImporter(gw *store.Gateway, opts ImportOptions, metrics *Metrics) (*Importer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Importer{gw: gw, opts: opts.withDefaults(), metrics: metrics}, nil
}

// Options returns the effective options.
func (im *Importer) Options() ImportOptions { return im.opts }

// ImportFile reads path and imports its records. The audit entry carries the
// file's base name.
func (im *Importer) ImportFile(ctx context.Context, path string) (ImportRun, error) {
	recs, err := ReadFile(path)
	if err != nil {
		return ImportRun{}, err
	}
	return im.Import(ctx, filepath.Base(path), recs)
}

// Import reconciles recs in order and returns the stored audit entry.
func (im *Importer) Import(ctx context.Context, fileName string, recs []ExternalRecord) (ImportRun, error) {
	started := time.Now()
	log.Printf("[IMPORT] Starting %s: %d records (source=%s, strategy=%s, atomicity=%s, on-malformed=%s)",
		fileName, len(recs), im.opts.Source, im.opts.Strategy, im.opts.Atomicity, im.opts.OnMalformed)

	var (
		run      ImportRun
		outcomes []outcome
		err      error
	)
	if im.opts.Atomicity == AtomicAllOrNothing {
		err = im.gw.WithTx(ctx, func(tx *store.Gateway) error {
			run, outcomes, err = im.run(ctx, tx, fileName, recs, started)
			return err
		})
		if err != nil {
			// rolled back, nothing was stored
			outcomes = nil
		}
	} else {
		run, outcomes, err = im.run(ctx, im.gw, fileName, recs, started)
	}
	for _, o := range outcomes {
		im.metrics.record(o)
	}

	if err != nil {
		im.metrics.runFinished(runFailed, 0)
		log.Printf("[IMPORT] %s aborted: %v", fileName, err)
		return ImportRun{}, err
	}

	im.metrics.runFinished(runCompleted, time.Since(started).Seconds())
	log.Printf("[IMPORT] %s completed: imported=%d skipped=%d rejected=%d in %dms",
		fileName, run.Imported, run.Skipped, run.Rejected, run.ElapsedMs)
	return run, nil
}

// run reconciles recs through gw. The outcomes of the records it got through
// are returned even on error.
func (im *Importer) run(ctx context.Context, gw *store.Gateway, fileName string, recs []ExternalRecord, started time.Time) (ImportRun, []outcome, error) {
	tally := ImportRun{FileName: fileName, Source: im.opts.Source}
	outcomes := make([]outcome, 0, len(recs))

	for i, rec := range recs {
		if err := ctx.Err(); err != nil {
			return ImportRun{}, outcomes, err
		}

		o, err := im.reconcile(ctx, gw, i, rec)
		if err != nil {
			var rerr *RecordError
			if errors.As(err, &rerr) && rerr.Malformed() && im.opts.OnMalformed == MalformedSkip {
				log.Printf("[IMPORT] rejected %v", rerr)
				o = outcomeRejected
			} else {
				return ImportRun{}, outcomes, err
			}
		}

		outcomes = append(outcomes, o)
		switch o {
		case outcomeSkipped:
			tally.Skipped++
		case outcomeRejected:
			tally.Rejected++
		default:
			tally.Imported++
		}
	}

	tally.RanAt = im.opts.Now().UTC()
	tally.ElapsedMs = time.Since(started).Milliseconds()

	stored, err := store.Insert(ctx, gw, ImportRuns, tally)
	if err != nil {
		return ImportRun{}, outcomes, fmt.Errorf("write audit: %w", err)
	}
	return stored, outcomes, nil
}

// reconcile brings one input record into storage.
func (im *Importer) reconcile(ctx context.Context, gw *store.Gateway, i int, rec ExternalRecord) (outcome, error) {
	if rec.Period == nil || rec.Value == nil {
		return outcomeSkipped, nil
	}

	date, err := period.Parse(*rec.Period)
	if err != nil {
		return "", &RecordError{Index: i, Period: *rec.Period, Err: err}
	}
	value, err := decimal.NewFromString(*rec.Value)
	if err != nil {
		return "", &RecordError{Index: i, Period: *rec.Period, Err: fmt.Errorf("%w: %q", ErrMalformedValue, *rec.Value)}
	}
	now := im.opts.Now().UTC()

	if im.opts.Strategy == StrategyUpsert {
		_, err := store.Upsert(ctx, gw, PriceRecords, im.newRecord(date, value, now),
			[]query.FieldRef[PriceRecord]{PriceDate, PriceSource},
			[]query.FieldRef[PriceRecord]{PriceValue, PriceCreatedAt})
		if err != nil {
			return "", &RecordError{Index: i, Period: *rec.Period, Err: err}
		}
		return outcomeUpserted, nil
	}

	found, err := FindByDateAndSource(ctx, gw, date, im.opts.Source)
	if err != nil {
		return "", &RecordError{Index: i, Period: *rec.Period, Err: err}
	}

	existing, ok := found.Get()
	if !ok {
		if _, err := store.Insert(ctx, gw, PriceRecords, im.newRecord(date, value, now)); err != nil {
			return "", &RecordError{Index: i, Period: *rec.Period, Err: err}
		}
		return outcomeCreated, nil
	}

	existing.Value = value
	existing.CreatedAt = now
	if _, err := store.Update(ctx, gw, PriceRecords, existing); err != nil {
		return "", &RecordError{Index: i, Period: *rec.Period, Err: err}
	}
	return outcomeUpdated, nil
}

func (im *Importer) newRecord(date time.Time, value decimal.Decimal, now time.Time) PriceRecord {
	return PriceRecord{
		ReferenceDate: date,
		Category:      im.opts.Category,
		Value:         value,
		Source:        im.opts.Source,
		CreatedAt:     now,
	}
}
