package quotes

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/quote-engine/period"
	"github.com/warp/quote-engine/store"
)

// Service is the entry point used by the HTTP and CLI adapters. Imports
// through one Service run one at a time, so the lookup then write sequence
// of two runs never interleaves within a process.
type Service struct {
	gw       *store.Gateway
	importer *Importer

	importMu sync.Mutex
}

func NewService(gw *store.Gateway, importer *Importer) *Service {
	return &Service{gw: gw, importer: importer}
}

// Import reconciles the records of the JSON file at path.
func (s *Service) Import(ctx context.Context, path string) (ImportRun, error) {
	s.importMu.Lock()
	defer s.importMu.Unlock()
	return s.importer.ImportFile(ctx, path)
}

// Period returns the prices from the first day of start's month through the
// last day of end's month, oldest first, values rounded to two decimals.
// Labels accept every layout period.Parse does.
func (s *Service) Period(ctx context.Context, start, end string) ([]PricePoint, error) {
	r, err := period.MonthRange(start, end)
	if err != nil {
		return nil, err
	}

	recs, err := FindByPeriod(ctx, s.gw, r)
	if err != nil {
		return nil, fmt.Errorf("period %s: %w", r, err)
	}

	points := make([]PricePoint, len(recs))
	for i, rec := range recs {
		points[i] = PricePoint{Date: rec.ReferenceDate.UTC(), Value: Round2(rec.Value)}
	}
	return points, nil
}

// ImportRuns lists the audit history.
func (s *Service) ImportRuns(ctx context.Context, f RunFilter) ([]ImportRun, error) {
	return ListImportRuns(ctx, s.gw, f)
}
