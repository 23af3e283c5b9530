package summary

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
)

// RetestRecord is the status history of one task tested more than once.
type RetestRecord struct {
	Identity            string           `json:"identity"`
	TaskName            string           `json:"taskName,omitempty"`
	Team                string           `json:"team"`
	Statuses            []dataset.Status `json:"statuses"`
	Attempts            int              `json:"attempts"`
	Retested            bool             `json:"retested"`
	ApprovedAfterRetest bool             `json:"approvedAfterRetest"`
	FirstDate           time.Time        `json:"firstDate,omitempty"`
	LastDate            time.Time        `json:"lastDate,omitempty"`
}

// RetestSummary is the result of the retest history analysis.
type RetestSummary struct {
	// Available is false when the required columns are missing.
	Available bool `json:"available"`

	Retested            int     `json:"retested"`
	ApprovedAfterRetest int     `json:"approvedAfterRetest"`
	ApprovalRate        float64 `json:"approvalRate"`
	MeanAttempts        float64 `json:"meanAttempts"`
	MedianAttempts      float64 `json:"medianAttempts"`

	ByTeam  map[string]int  `json:"byTeam"`
	Details []*RetestRecord `json:"details"`
}

// NewRetestSummary groups the records by task identity and reconstructs the
// status sequence of each task sorted by date. Only groups with more than
// one record and at least one rejection are retests.
func NewRetestSummary(ds *dataset.Dataset) *RetestSummary {
	rs := &RetestSummary{
		ByTeam:  make(map[string]int),
		Details: []*RetestRecord{},
	}
	if missing := ds.Missing(dataset.ColumnStatus, dataset.ColumnDate); len(missing) > 0 || ds.IdentityColumn() == "" {
		log.Debugf("Summary/Retest/Skipped: missing columns %v identity=%q", missing, ds.IdentityColumn())
		return rs
	}
	rs.Available = true

	order := []string{}
	groups := make(map[string][]*dataset.Record)
	for _, r := range ds.Records {
		key := ds.Identity(r)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}

	attempts := stats.Float64Data{}
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		rec := newRetestRecord(key, group)
		if !rec.Retested {
			continue
		}
		rs.Details = append(rs.Details, rec)
		rs.Retested++
		rs.ByTeam[rec.Team]++
		if rec.ApprovedAfterRetest {
			rs.ApprovedAfterRetest++
		}
		attempts = append(attempts, float64(rec.Attempts))
	}

	rs.ApprovalRate = Percent(rs.ApprovedAfterRetest, rs.Retested)
	if len(attempts) > 0 {
		mean, _ := stats.Mean(attempts)
		median, _ := stats.Median(attempts)
		rs.MeanAttempts, _ = stats.Round(mean, 2)
		rs.MedianAttempts, _ = stats.Round(median, 2)
	}
	return rs
}

// newRetestRecord sorts the group by date, records without a date last,
// keeping the sheet order for ties.
func newRetestRecord(key string, group []*dataset.Record) *RetestRecord {
	sorted := make([]*dataset.Record, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := sorted[i].Date, sorted[j].Date
		if di.IsZero() || dj.IsZero() {
			return !di.IsZero() && dj.IsZero()
		}
		return di.Before(dj)
	})

	rec := &RetestRecord{
		Identity: key,
		TaskName: sorted[0].TaskName,
		Team:     TeamLabel(sorted[0]),
		Attempts: len(sorted),
		Statuses: make([]dataset.Status, 0, len(sorted)),
	}
	for _, r := range sorted {
		rec.Statuses = append(rec.Statuses, r.Status)
		if r.Date.IsZero() {
			continue
		}
		if rec.FirstDate.IsZero() || r.Date.Before(rec.FirstDate) {
			rec.FirstDate = r.Date
		}
		if r.Date.After(rec.LastDate) {
			rec.LastDate = r.Date
		}
	}
	rec.Retested, rec.ApprovedAfterRetest = classifyRetest(rec.Statuses)
	return rec
}

// classifyRetest checks whether the sequence has a rejection, and whether
// an approval follows the first rejection.
func classifyRetest(statuses []dataset.Status) (retested, approvedAfter bool) {
	if len(statuses) < 2 {
		return false, false
	}
	firstRejection := -1
	for idx, s := range statuses {
		if s == dataset.StatusRejected {
			firstRejection = idx
			break
		}
	}
	if firstRejection < 0 {
		return false, false
	}
	for _, s := range statuses[firstRejection+1:] {
		if s == dataset.StatusApproved || s == dataset.StatusReadyForPublication {
			return true, true
		}
	}
	return true, false
}
