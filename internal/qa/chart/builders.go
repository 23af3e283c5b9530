package chart

import (
	"sort"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

// TopDefectsLimit is the number of reasons plotted by TopDefects.
const TopDefectsLimit = 10

// Builder maps a consolidated summary into a chart, returning nil when
// there is nothing to plot.
type Builder func(cs *summary.ConsolidatedSummary) *Spec

// Builders lists the report charts in the order they are presented.
var Builders = []Builder{
	func(cs *summary.ConsolidatedSummary) *Spec {
		if cs.Selected != nil && !cs.Selected.Has(dataset.ColumnStatus) {
			return nil
		}
		return StatusDistribution(cs.Totals)
	},
	func(cs *summary.ConsolidatedSummary) *Spec { return ApprovalByTeam(cs.Teams) },
	func(cs *summary.ConsolidatedSummary) *Spec { return ErrorsByTeam(cs.Errors) },
	func(cs *summary.ConsolidatedSummary) *Spec { return ErrorsByTester(cs.Errors) },
	func(cs *summary.ConsolidatedSummary) *Spec { return TopDefects(cs.Defects) },
	func(cs *summary.ConsolidatedSummary) *Spec { return TestsBySprint(cs.Sprints) },
	func(cs *summary.ConsolidatedSummary) *Spec { return RetestOutcome(cs.Retests) },
}

// All runs every builder, skipping the charts without data.
func All(cs *summary.ConsolidatedSummary) []*Spec {
	specs := []*Spec{}
	for _, build := range Builders {
		if s := build(cs); !s.Empty() {
			specs = append(specs, s)
		}
	}
	return specs
}

func StatusDistribution(totals *summary.Counters) *Spec {
	if totals == nil || totals.Tests == 0 {
		return nil
	}
	return &Spec{
		ID:     "status_distribution",
		Title:  "Status distribution",
		Type:   TypePie,
		Labels: []string{"Approved", "Rejected", "Other"},
		Series: []Series{{
			Name:   "Tests",
			Values: []float64{float64(totals.Approved), float64(totals.Rejected), float64(totals.Other)},
		}},
		Palette: []string{ColorApproved, ColorRejected, ColorOther},
	}
}

// ApprovalByTeam stacks approved and rejected tests of each team.
func ApprovalByTeam(teams []*summary.Counters) *Spec {
	if len(teams) == 0 {
		return nil
	}
	s := &Spec{
		ID:       "approval_by_team",
		Title:    "Approval by team",
		Subtitle: "approved and rejected tests",
		Type:     TypeStackedBar,
		Labels:   make([]string, 0, len(teams)),
	}
	approved := Series{Name: "Approved", Color: ColorApproved}
	rejected := Series{Name: "Rejected", Color: ColorRejected}
	for _, t := range teams {
		s.Labels = append(s.Labels, t.Name)
		approved.Values = append(approved.Values, float64(t.Approved))
		rejected.Values = append(rejected.Values, float64(t.Rejected))
	}
	s.Series = []Series{approved, rejected}
	return s
}

func ErrorsByTeam(es *summary.ErrorSummary) *Spec {
	if es == nil {
		return nil
	}
	return rankedBar("errors_by_team", "Errors by team", "Errors", ColorErrors, es.ByTeam)
}

func ErrorsByTester(es *summary.ErrorSummary) *Spec {
	if es == nil {
		return nil
	}
	return rankedBar("errors_by_tester", "Errors by tester", "Errors", ColorErrors, es.ByTester)
}

// TopDefects plots the most frequent rejection reasons.
func TopDefects(tally summary.DefectTally) *Spec {
	if tally.Total() == 0 {
		return nil
	}
	top := tally.Top(TopDefectsLimit)
	s := &Spec{
		ID:       "top_defects",
		Title:    "Top defect reasons",
		Subtitle: "occurrences per reason",
		Type:     TypeHorizontalBar,
		Labels:   make([]string, 0, len(top)),
	}
	series := Series{Name: "Defects", Color: ColorDefects}
	for _, item := range top {
		s.Labels = append(s.Labels, item.Key)
		series.Values = append(series.Values, float64(item.Value))
	}
	s.Series = []Series{series}
	return s
}

func TestsBySprint(sprints []*summary.Counters) *Spec {
	if len(sprints) == 0 {
		return nil
	}
	s := &Spec{
		ID:     "tests_by_sprint",
		Title:  "Tests by sprint",
		Type:   TypeLine,
		Labels: make([]string, 0, len(sprints)),
	}
	tests := Series{Name: "Tests", Color: ColorTests}
	approved := Series{Name: "Approved", Color: ColorApproved}
	rejected := Series{Name: "Rejected", Color: ColorRejected}
	for _, sp := range sprints {
		s.Labels = append(s.Labels, sp.Name)
		tests.Values = append(tests.Values, float64(sp.Tests))
		approved.Values = append(approved.Values, float64(sp.Approved))
		rejected.Values = append(rejected.Values, float64(sp.Rejected))
	}
	s.Series = []Series{tests, approved, rejected}
	return s
}

func RetestOutcome(rs *summary.RetestSummary) *Spec {
	if rs == nil || !rs.Available || rs.Retested == 0 {
		return nil
	}
	return &Spec{
		ID:     "retest_outcome",
		Title:  "Retest outcome",
		Type:   TypePie,
		Labels: []string{"Approved after retest", "Not approved"},
		Series: []Series{{
			Name:   "Retested tasks",
			Values: []float64{float64(rs.ApprovedAfterRetest), float64(rs.Retested - rs.ApprovedAfterRetest)},
		}},
		Palette: []string{ColorApproved, ColorRejected},
	}
}

// rankedBar plots a count map sorted by value, ties by name.
func rankedBar(id, title, name, color string, counts map[string]int) *Spec {
	if len(counts) == 0 {
		return nil
	}
	rank := make(summary.SortedList, 0, len(counts))
	for k, v := range counts {
		rank = append(rank, summary.SortedDict{Key: k, Value: v})
	}
	sort.Sort(sort.Reverse(rank))

	s := &Spec{ID: id, Title: title, Type: TypeBar, Labels: make([]string, 0, len(rank))}
	series := Series{Name: name, Color: color}
	for _, item := range rank {
		s.Labels = append(s.Labels, item.Key)
		series.Values = append(series.Values, float64(item.Value))
	}
	s.Series = []Series{series}
	return s
}
