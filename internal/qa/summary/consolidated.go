package summary

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
	"github.com/qa-tracking/qa-report-tool/internal/qa/metrics"
)

// ConsolidatedSummary aggregates every metric computed from a dataset.
type ConsolidatedSummary struct {
	Dataset *dataset.Dataset
	Filter  dataset.Filter
	Timers  *metrics.Timers

	// Selected is the dataset after the filter, set by Process.
	Selected *dataset.Dataset

	// Source names where the dataset came from (file path, sheet ID...).
	Source string

	Totals     *Counters
	Teams      []*Counters
	Testers    []*Counters
	Developers []*Counters
	Sprints    []*Counters

	Retests *RetestSummary
	Errors  *ErrorSummary

	Defects         DefectTally
	DefectsByTeam   map[string]DefectTally
	DefectsByTester map[string]DefectTally

	Delivered           []*TaskItem
	ReadyForPublication []*TaskItem

	Warnings []string
}

// Process applies the filter and computes all metrics. It is safe to call
// again after changing the filter.
func (cs *ConsolidatedSummary) Process() error {
	if cs.Dataset == nil {
		return errors.New("no dataset to process")
	}
	if cs.Timers == nil {
		cs.Timers = metrics.NewTimers()
	}
	defer cs.Timers.Track("summary-process")()

	ds := cs.Dataset.Filter(cs.Filter)
	cs.Selected = ds
	log.Debugf("Summary/Process/Records selected: %d of %d", len(ds.Records), len(cs.Dataset.Records))
	cs.Warnings = append([]string{}, ds.Warnings...)
	if len(ds.Records) == 0 {
		cs.Warnings = append(cs.Warnings, "no records selected by the current filters")
	}

	cs.Totals = NewCounters("total", ds.Records)
	cs.Sprints = SprintBreakdown(ds.Records)
	cs.Teams = []*Counters{}
	if ds.Has(dataset.ColumnTeam) {
		cs.Teams = Breakdown(ds.Records, TeamLabel)
	}
	cs.Testers = []*Counters{}
	if ds.Has(dataset.ColumnTester) {
		cs.Testers = Breakdown(ds.Records, TesterLabel)
	}
	cs.Developers = []*Counters{}
	if ds.Has(dataset.ColumnDeveloper) {
		cs.Developers = Breakdown(ds.Records, DeveloperLabel)
	}

	cs.Retests = NewRetestSummary(ds)
	cs.Errors = NewErrorSummary(ds.Records)
	cs.processDefects(ds)

	cs.Delivered = TaskListing(ds, func(r *dataset.Record) bool { return r.Status == dataset.StatusApproved })
	cs.ReadyForPublication = TaskListing(ds, (*dataset.Record).IsReadyForPublication)
	return nil
}

// processDefects builds the global tally and the tallies per team and
// tester. Every record lands in exactly one team and one tester bucket, so
// each group of tallies sums to the global total.
func (cs *ConsolidatedSummary) processDefects(ds *dataset.Dataset) {
	cs.Defects = make(DefectTally)
	cs.DefectsByTeam = make(map[string]DefectTally)
	cs.DefectsByTester = make(map[string]DefectTally)
	add := func(group map[string]DefectTally, key string, r *dataset.Record) {
		if _, ok := group[key]; !ok {
			group[key] = make(DefectTally)
		}
		group[key].Add(r)
	}
	for _, r := range ds.Records {
		if len(r.DefectReasons()) == 0 {
			continue
		}
		cs.Defects.Add(r)
		add(cs.DefectsByTeam, TeamLabel(r), r)
		add(cs.DefectsByTester, TesterLabel(r), r)
	}
}
