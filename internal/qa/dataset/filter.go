package dataset

import (
	"time"
)

// Filter selects the records used to compute the report. Empty fields
// match everything; list fields match any of their values, ignoring case
// and accents.
type Filter struct {
	Teams   []string
	Sprints []string
	Testers []string
	From    time.Time
	To      time.Time
}

// IsEmpty reports whether the filter selects every record.
func (f *Filter) IsEmpty() bool {
	return len(f.Teams) == 0 && len(f.Sprints) == 0 && len(f.Testers) == 0 &&
		f.From.IsZero() && f.To.IsZero()
}

// Match reports whether the record is selected. Records without a date
// never match a date range.
func (f *Filter) Match(r *Record) bool {
	if !matchAny(f.Teams, r.Team) || !matchAny(f.Sprints, r.Sprint) || !matchAny(f.Testers, r.Tester) {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	if r.Date.IsZero() {
		return false
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	// To is inclusive for the whole day.
	if !f.To.IsZero() && !r.Date.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func matchAny(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	key := FoldKey(v)
	for _, want := range values {
		if FoldKey(want) == key {
			return true
		}
	}
	return false
}

// Filter returns a new dataset with the selected records. Columns and
// warnings are kept, the task identity column is computed again.
func (ds *Dataset) Filter(f Filter) *Dataset {
	if f.IsEmpty() {
		return ds
	}
	records := make([]*Record, 0, len(ds.Records))
	for _, r := range ds.Records {
		if f.Match(r) {
			records = append(records, r)
		}
	}
	filtered := New(records, ds.Columns()...)
	filtered.Warnings = append(filtered.Warnings, ds.Warnings...)
	return filtered
}
