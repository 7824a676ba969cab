/*
Package period parses month-granularity period labels and builds the date
ranges queried against stored prices.

ACCEPTED LABELS:
  "03/2024"   month/year  (slash after two digits)
  "2024/03"   year/month  (slash after four digits)
  "2024-03"   year-month  (dash treated as a slash)

  Characters other than digits and separators are dropped before parsing,
  so " 03/2024 " and "03/2024." are accepted. A parsed label is always the
  first day of its month, at midnight UTC.

USAGE:
  start, err := period.Parse("2024-01")
  end, err := period.Parse("2024-03")
  r, err := period.NewRange(start, period.EndOfMonth(end))
*/
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical rendering of a reference date.
const DateLayout = "2006-01-02"

var (
	// ErrMalformedPeriod is wrapped by every label parse failure.
	ErrMalformedPeriod = errors.New("malformed period label")

	// ErrInvalidRange is returned when a range ends before it starts.
	ErrInvalidRange = errors.New("invalid period: end before start")
)

// ParseError describes why a label could not be parsed.
type ParseError struct {
	Label  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("period %q: %s", e.Label, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedPeriod
}

// =============================================================================
// LABEL PARSING
// =============================================================================

// Parse turns a period label into the first day of the referenced month.
func Parse(label string) (time.Time, error) {
	clean := normalize(label)
	if clean == "" {
		return time.Time{}, &ParseError{Label: label, Reason: "empty label"}
	}

	var yearPart, monthPart string
	switch strings.IndexByte(clean, '/') {
	case 2:
		monthPart, yearPart = clean[:2], clean[3:]
	case 4:
		yearPart, monthPart = clean[:4], clean[5:]
	case -1:
		return time.Time{}, &ParseError{Label: label, Reason: "missing separator"}
	default:
		return time.Time{}, &ParseError{Label: label, Reason: "expected MM/YYYY or YYYY/MM"}
	}

	if len(yearPart) != 4 || len(monthPart) != 2 {
		return time.Time{}, &ParseError{Label: label, Reason: "expected MM/YYYY or YYYY/MM"}
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil || year < 1 {
		return time.Time{}, &ParseError{Label: label, Reason: "invalid year"}
	}
	month, err := strconv.Atoi(monthPart)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, &ParseError{Label: label, Reason: "month must be between 01 and 12"}
	}

	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

// MustParse is Parse for labels known to be valid. It panics on error.
func MustParse(label string) time.Time {
	t, err := Parse(label)
	if err != nil {
		panic(err)
	}
	return t
}

func normalize(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= '0' && r <= '9', r == '/':
			b.WriteRune(r)
		case r == '-':
			b.WriteByte('/')
		}
	}
	return b.String()
}

// =============================================================================
// MONTH BOUNDARIES
// =============================================================================

// StartOfMonth returns midnight UTC on the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// EndOfMonth returns midnight UTC on the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	return StartOfMonth(t).AddDate(0, 1, -1)
}

// Label renders t as "MM/YYYY".
func Label(t time.Time) string {
	return t.Format("01/2006")
}

// =============================================================================
// RANGE
// =============================================================================

// Range is an inclusive date interval [Start, End].
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange validates that end is not before start.
func NewRange(start, end time.Time) (Range, error) {
	if end.Before(start) {
		return Range{}, fmt.Errorf("%s > %s: %w", start.Format(DateLayout), end.Format(DateLayout), ErrInvalidRange)
	}
	return Range{Start: start.UTC(), End: end.UTC()}, nil
}

// MonthRange spans from the first day of startLabel's month to the last day
// of endLabel's month.
func MonthRange(startLabel, endLabel string) (Range, error) {
	start, err := Parse(startLabel)
	if err != nil {
		return Range{}, err
	}
	end, err := Parse(endLabel)
	if err != nil {
		return Range{}, err
	}
	return NewRange(start, EndOfMonth(end))
}

// Contains reports whether t falls within [Start, End].
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

func (r Range) String() string {
	return "[" + r.Start.Format(DateLayout) + ", " + r.End.Format(DateLayout) + "]"
}
