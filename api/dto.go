/*
dto.go - Data Transfer Objects for API responses

PURPOSE:
  Defines the JSON structures returned to clients, decoupled from the
  quotes domain types.

TYPES:
  Import:
    ImportResponse, ImportRunDTO

  Range query:
    PricePointDTO

  Errors:
    ErrorResponse

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/warp/quote-engine/period"
	"github.com/warp/quote-engine/quotes"
)

// ImportResponse is returned by a successful import.
type ImportResponse struct {
	Message   string `json:"message"`
	File      string `json:"file"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	Rejected  int    `json:"rejected"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// PricePointDTO is one row of a period query. Value keeps exactly two
// decimals on the wire.
type PricePointDTO struct {
	Date  string      `json:"date"`
	Value json.Number `json:"value"`
}

// ImportRunDTO is one audit entry.
type ImportRunDTO struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	Source    string `json:"source"`
	RanAt     string `json:"ran_at"`
	Imported  int    `json:"imported"`
	Skipped   int    `json:"skipped"`
	Rejected  int    `json:"rejected"`
	ElapsedMs int64  `json:"elapsed_ms"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func toImportResponse(run quotes.ImportRun) ImportResponse {
	return ImportResponse{
		Message:   "Import completed",
		File:      run.FileName,
		Imported:  run.Imported,
		Skipped:   run.Skipped,
		Rejected:  run.Rejected,
		ElapsedMs: run.ElapsedMs,
	}
}

func toPricePointDTOs(points []quotes.PricePoint) []PricePointDTO {
	dtos := make([]PricePointDTO, len(points))
	for i, p := range points {
		dtos[i] = PricePointDTO{
			Date:  p.Date.Format(period.DateLayout),
			Value: json.Number(p.Value.StringFixed(2)),
		}
	}
	return dtos
}

func toImportRunDTO(run quotes.ImportRun) ImportRunDTO {
	return ImportRunDTO{
		ID:        run.ID.String(),
		FileName:  run.FileName,
		Source:    run.Source,
		RanAt:     run.RanAt.UTC().Format(time.RFC3339),
		Imported:  run.Imported,
		Skipped:   run.Skipped,
		Rejected:  run.Rejected,
		ElapsedMs: run.ElapsedMs,
	}
}
