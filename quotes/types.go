/*
Package quotes reconciles imported commodity prices into storage and serves
range queries over them.

PURPOSE:
  Two persisted entities:
    PriceRecord  one price per (reference month, source)
    ImportRun    append-only audit entry, one per completed import

  The import pipeline (importer.go) maps decoded file records onto
  PriceRecords through a point lookup on (reference date, source), inserting
  or updating as needed. The range query (service.go) returns prices for a
  span of months rounded to two decimals.

RECONCILIATION KEY:
  (reference_date, source). Reference dates are always the first day of a
  month, midnight UTC. A unique index on the pair turns concurrent
  check-then-act imports into a conflict error instead of a duplicate row.

SEE ALSO:
  - importer.go: reconciliation pipeline and its policies
  - lookup.go:   point / range / audit lookups
  - file.go:     JSON import file decoding
  - metrics.go:  Prometheus collectors
*/
package quotes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/quote-engine/query"
)

const (
	// DefaultSource labels prices imported without an explicit source.
	DefaultSource = "CEPEA"

	// DefaultCategory is the category given to newly created prices.
	DefaultCategory = "Café Robusta"
)

// =============================================================================
// PRICE RECORD
// =============================================================================

// PriceRecord is one stored monthly price. ID is assigned by the database on
// first insert.
type PriceRecord struct {
	ID            int64
	ReferenceDate time.Time
	Category      string
	Value         decimal.Decimal
	Delta         decimal.NullDecimal
	Source        string
	CreatedAt     time.Time
}

var (
	PriceID        = query.NewField("id", "id", func(p *PriceRecord) *int64 { return &p.ID })
	PriceDate      = query.NewField("referenceDate", "reference_date", func(p *PriceRecord) *time.Time { return &p.ReferenceDate })
	PriceCategory  = query.NewField("category", "category", func(p *PriceRecord) *string { return &p.Category })
	PriceValue     = query.NewField("value", "value", func(p *PriceRecord) *decimal.Decimal { return &p.Value })
	PriceDelta     = query.NewField("delta", "delta", func(p *PriceRecord) *decimal.NullDecimal { return &p.Delta })
	PriceSource    = query.NewField("source", "source", func(p *PriceRecord) *string { return &p.Source })
	PriceCreatedAt = query.NewField("createdAt", "created_at", func(p *PriceRecord) *time.Time { return &p.CreatedAt })

	PriceRecords = query.NewTable[PriceRecord]("price_records", PriceID,
		PriceDate, PriceCategory, PriceValue, PriceDelta, PriceSource, PriceCreatedAt)
)

// IsNew reports whether the record has never been stored.
func (p PriceRecord) IsNew() bool { return p.ID == 0 }

// =============================================================================
// IMPORT RUN (audit)
// =============================================================================

// ImportRun summarizes one completed import. Imported counts records that
// were reconciled, Skipped those missing a period or value, Rejected those
// dropped as malformed under the skip policy.
type ImportRun struct {
	ID        uuid.UUID
	FileName  string
	Source    string
	RanAt     time.Time
	Imported  int
	Skipped   int
	Rejected  int
	ElapsedMs int64
}

var (
	RunID        = query.NewField("id", "id", func(r *ImportRun) *uuid.UUID { return &r.ID })
	RunFileName  = query.NewField("fileName", "file_name", func(r *ImportRun) *string { return &r.FileName })
	RunSource    = query.NewField("source", "source", func(r *ImportRun) *string { return &r.Source })
	RunRanAt     = query.NewField("ranAt", "ran_at", func(r *ImportRun) *time.Time { return &r.RanAt })
	RunImported  = query.NewField("imported", "imported", func(r *ImportRun) *int { return &r.Imported })
	RunSkipped   = query.NewField("skipped", "skipped", func(r *ImportRun) *int { return &r.Skipped })
	RunRejected  = query.NewField("rejected", "rejected", func(r *ImportRun) *int { return &r.Rejected })
	RunElapsedMs = query.NewField("elapsedMs", "elapsed_ms", func(r *ImportRun) *int64 { return &r.ElapsedMs })

	ImportRuns = query.NewTable[ImportRun]("import_runs", RunID,
		RunFileName, RunSource, RunRanAt, RunImported, RunSkipped, RunRejected, RunElapsedMs).
		WithIdentityGenerator(func(r *ImportRun) { r.ID = uuid.New() })
)

// =============================================================================
// QUERY RESULTS
// =============================================================================

// PricePoint is one (date, value) pair of a range query, value rounded to two
// decimals.
type PricePoint struct {
	Date  time.Time
	Value decimal.Decimal
}

// Round2 rounds half away from zero at two decimals (12.345 -> 12.35).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
