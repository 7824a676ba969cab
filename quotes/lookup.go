package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/quote-engine/period"
	"github.com/warp/quote-engine/query"
	"github.com/warp/quote-engine/store"
)

// =============================================================================
// POINT LOOKUP
// =============================================================================

// FindByDateAndSource returns the price stored for (date, source). No match is
// an empty Optional; more than one match is query.ErrAmbiguousResult.
func FindByDateAndSource(ctx context.Context, gw *store.Gateway, date time.Time, source string) (query.Optional[PriceRecord], error) {
	return store.Select[PriceRecord](gw).
		From(PriceRecords).
		Where(PriceDate.Eq(date.UTC()), PriceSource.Eq(source)).
		One(ctx)
}

// =============================================================================
// RANGE LOOKUP
// =============================================================================

// FindByPeriod returns prices dated within r, oldest first. Only the reference
// date and value are loaded.
func FindByPeriod(ctx context.Context, gw *store.Gateway, r period.Range) ([]PriceRecord, error) {
	return store.Select[PriceRecord](gw, PriceDate, PriceValue).
		From(PriceRecords).
		Where(PriceDate.Between(r.Start, r.End)).
		OrderBy(PriceDate, true).
		List(ctx)
}

// =============================================================================
// AUDIT LOOKUP
// =============================================================================

// RunFilter narrows ListImportRuns. Zero values match everything.
type RunFilter struct {
	Source string
	// File matches file names containing it, ignoring case.
	File  string
	Limit int
}

// ListImportRuns returns audit entries, newest first.
func ListImportRuns(ctx context.Context, gw *store.Gateway, f RunFilter) ([]ImportRun, error) {
	b := store.Select[ImportRun](gw).From(ImportRuns)
	if f.Source != "" {
		b.Where(RunSource.Eq(f.Source))
	}
	if f.File != "" {
		b.Where(query.MatchesFold(RunFileName, "%"+query.EscapeLike(f.File)+"%"))
	}
	runs, err := b.OrderBy(RunRanAt, false).Limit(f.Limit).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	return runs, nil
}
