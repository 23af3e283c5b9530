package summary

import (
	"math"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
)

// ErrorSource tells which field a record's error count came from.
type ErrorSource string

const (
	ErrorSourceNone    ErrorSource = ""
	ErrorSourceNumeric ErrorSource = "numeric"
	ErrorSourceReasons ErrorSource = "reasons"
)

// RecordErrors returns the error count of a single record.
//
// A positive numeric error value is used as is, rounded to the nearest
// integer and never below one. Without a usable
// value (missing, not a number, zero or negative) only rejected records
// count, one error per populated non-sentinel reason slot.
func RecordErrors(r *dataset.Record) (int, ErrorSource) {
	if r.HasErrors && r.Errors > 0 {
		return max(int(math.Round(r.Errors)), 1), ErrorSourceNumeric
	}
	if !r.IsRejected() {
		return 0, ErrorSourceNone
	}
	n := len(r.DefectReasons())
	if n == 0 {
		return 0, ErrorSourceNone
	}
	return n, ErrorSourceReasons
}

// ErrorSummary aggregates the hybrid error count.
type ErrorSummary struct {
	Total int `json:"total"`

	// FromNumeric and FromReasons split Total by source.
	FromNumeric int `json:"fromNumeric"`
	FromReasons int `json:"fromReasons"`

	ByTeam      map[string]int `json:"byTeam"`
	ByTester    map[string]int `json:"byTester"`
	ByDeveloper map[string]int `json:"byDeveloper"`
}

// NewErrorSummary computes the hybrid error count of the records.
func NewErrorSummary(records []*dataset.Record) *ErrorSummary {
	es := &ErrorSummary{
		ByTeam:      make(map[string]int),
		ByTester:    make(map[string]int),
		ByDeveloper: make(map[string]int),
	}
	for _, r := range records {
		n, src := RecordErrors(r)
		if n == 0 {
			continue
		}
		es.Total += n
		switch src {
		case ErrorSourceNumeric:
			es.FromNumeric += n
		case ErrorSourceReasons:
			es.FromReasons += n
		}
		es.ByTeam[TeamLabel(r)] += n
		es.ByTester[TesterLabel(r)] += n
		es.ByDeveloper[DeveloperLabel(r)] += n
	}
	return es
}
