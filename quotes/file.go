package quotes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidFile is returned when an import file is not a JSON array of
// records.
var ErrInvalidFile = errors.New("invalid import file")

// ExternalRecord is one entry of an import file as decoded, before any
// validation. A nil field was absent, null or blank in the file.
//
// Accepted keys: "referenceMonth" (or "mesAno") for the period label and
// "price" (or "valor") for the value. Values may be JSON numbers or numeric
// strings.
type ExternalRecord struct {
	Period *string
	Value  *string
}

// NewExternalRecord builds a record with both fields present.
func NewExternalRecord(periodLabel, value string) ExternalRecord {
	return ExternalRecord{Period: &periodLabel, Value: &value}
}

func (r *ExternalRecord) UnmarshalJSON(data []byte) error {
	var aux struct {
		ReferenceMonth json.RawMessage `json:"referenceMonth"`
		MesAno         json.RawMessage `json:"mesAno"`
		Price          json.RawMessage `json:"price"`
		Valor          json.RawMessage `json:"valor"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if r.Period, err = firstText(aux.ReferenceMonth, aux.MesAno); err != nil {
		return fmt.Errorf("period: %w", err)
	}
	if r.Value, err = firstText(aux.Price, aux.Valor); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	return nil
}

// firstText returns the textual form of the first present raw value.
func firstText(raws ...json.RawMessage) (*string, error) {
	for _, raw := range raws {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var s string
		switch raw[0] {
		case '[', '{':
			return nil, fmt.Errorf("expected a number or string, got %s", raw)
		}
		if raw[0] == '"' {
			if err := json.Unmarshal(raw, &s); err != nil {
				return nil, err
			}
		} else {
			s = string(raw)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		return &s, nil
	}
	return nil, nil
}

// DecodeRecords parses an import file body.
func DecodeRecords(data []byte) ([]ExternalRecord, error) {
	var recs []ExternalRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if recs == nil {
		recs = []ExternalRecord{}
	}
	return recs, nil
}

// ReadFile loads and decodes an import file. A missing file yields an error
// matching os.ErrNotExist.
func ReadFile(path string) ([]ExternalRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := DecodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}
