package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
)

var allColumns = []dataset.Column{
	dataset.ColumnDate, dataset.ColumnTeam, dataset.ColumnTaskName, dataset.ColumnStatus,
	dataset.ColumnTester, dataset.ColumnErrors, dataset.ColumnID,
	dataset.ReasonColumn(1), dataset.ReasonColumn(2),
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	id      string
	team    string
	status  dataset.Status
	date    int
	errors  *float64
	reasons []string
}

func ptr(f float64) *float64 { return &f }

func build(items ...fixture) *dataset.Dataset {
	records := make([]*dataset.Record, 0, len(items))
	for idx, it := range items {
		r := &dataset.Record{
			Row:      idx + 2,
			ID:       it.id,
			TaskName: "task " + it.id,
			Team:     it.team,
			Status:   it.status,
		}
		if it.date > 0 {
			r.Date = day(it.date)
		}
		if it.errors != nil {
			r.Errors, r.HasErrors = *it.errors, true
		}
		copy(r.Reasons[:], it.reasons)
		records = append(records, r)
	}
	return dataset.New(records, allColumns...)
}

func TestRecordErrors(t *testing.T) {
	tests := []struct {
		name    string
		record  fixture
		want    int
		wantSrc ErrorSource
	}{
		{
			name:    "rejected with numeric errors ignores reasons",
			record:  fixture{status: dataset.StatusRejected, errors: ptr(5), reasons: []string{"a", "b", "c"}},
			want:    5,
			wantSrc: ErrorSourceNumeric,
		},
		{
			name:    "rejected without errors counts reasons",
			record:  fixture{status: dataset.StatusRejected, reasons: []string{"UI bug", "Crash"}},
			want:    2,
			wantSrc: ErrorSourceReasons,
		},
		{
			name:    "rejected with zero errors falls back to reasons",
			record:  fixture{status: dataset.StatusRejected, errors: ptr(0), reasons: []string{"UI bug", "", "Sem Recusa"}},
			want:    1,
			wantSrc: ErrorSourceReasons,
		},
		{
			name:    "approved without errors contributes zero",
			record:  fixture{status: dataset.StatusApproved, reasons: []string{"UI bug"}},
			want:    0,
			wantSrc: ErrorSourceNone,
		},
		{
			name:    "approved with numeric errors counts them",
			record:  fixture{status: dataset.StatusApproved, errors: ptr(3)},
			want:    3,
			wantSrc: ErrorSourceNumeric,
		},
		{
			name:    "sentinels never count",
			record:  fixture{status: dataset.StatusRejected, reasons: []string{" Aprovada ", "SEM RECUSA"}},
			want:    0,
			wantSrc: ErrorSourceNone,
		},
		{
			name:    "fractional errors below one count once",
			record:  fixture{status: dataset.StatusRejected, errors: ptr(0.4), reasons: []string{"crash", "timeout"}},
			want:    1,
			wantSrc: ErrorSourceNumeric,
		},
		{
			name:    "fractional errors are rounded",
			record:  fixture{status: dataset.StatusRejected, errors: ptr(2.5)},
			want:    3,
			wantSrc: ErrorSourceNumeric,
		},
		{
			name:    "negative errors are unusable",
			record:  fixture{status: dataset.StatusRejected, errors: ptr(-2), reasons: []string{"crash"}},
			want:    1,
			wantSrc: ErrorSourceReasons,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := build(tt.record)
			got, src := RecordErrors(ds.Records[0])
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantSrc, src)
		})
	}
}

func TestClassifyRetest(t *testing.T) {
	A, R, P := dataset.StatusApproved, dataset.StatusRejected, dataset.StatusReadyForPublication
	tests := []struct {
		name         string
		statuses     []dataset.Status
		wantRetested bool
		wantApproved bool
	}{
		{name: "rejected then approved", statuses: []dataset.Status{R, A}, wantRetested: true, wantApproved: true},
		{name: "rejected twice", statuses: []dataset.Status{R, R}, wantRetested: true},
		{name: "single approval", statuses: []dataset.Status{A}},
		{name: "single rejection", statuses: []dataset.Status{R}},
		{name: "approved then rejected", statuses: []dataset.Status{A, R}, wantRetested: true},
		{name: "multiple rejections then ready", statuses: []dataset.Status{R, R, P}, wantRetested: true, wantApproved: true},
		{name: "approved twice", statuses: []dataset.Status{A, A}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retested, approved := classifyRetest(tt.statuses)
			assert.Equal(t, tt.wantRetested, retested)
			assert.Equal(t, tt.wantApproved, approved)
		})
	}
}

func TestNewRetestSummary(t *testing.T) {
	ds := build(
		// sheet order differs from chronology
		fixture{id: "1", team: "core", status: dataset.StatusApproved, date: 5},
		fixture{id: "1", team: "core", status: dataset.StatusRejected, date: 1},
		fixture{id: "2", team: "core", status: dataset.StatusRejected, date: 2},
		fixture{id: "2", team: "core", status: dataset.StatusRejected, date: 3},
		fixture{id: "3", team: "web", status: dataset.StatusApproved, date: 2},
		fixture{id: "4", team: "web", status: dataset.StatusRejected, date: 2},
	)
	rs := NewRetestSummary(ds)
	require.True(t, rs.Available)
	assert.Equal(t, 2, rs.Retested)
	assert.Equal(t, 1, rs.ApprovedAfterRetest)
	assert.Equal(t, 50.0, rs.ApprovalRate)
	assert.Equal(t, 2.0, rs.MeanAttempts)
	assert.Equal(t, map[string]int{"core": 2}, rs.ByTeam)

	require.Len(t, rs.Details, 2)
	first := rs.Details[0]
	assert.Equal(t, "1", first.Identity)
	assert.Equal(t, []dataset.Status{dataset.StatusRejected, dataset.StatusApproved}, first.Statuses)
	assert.Equal(t, day(1), first.FirstDate)
	assert.Equal(t, day(5), first.LastDate)
	assert.True(t, first.ApprovedAfterRetest)
}

func TestNewRetestSummaryMissingColumns(t *testing.T) {
	records := []*dataset.Record{{ID: "1", Status: dataset.StatusRejected}, {ID: "1", Status: dataset.StatusApproved}}
	ds := dataset.New(records, dataset.ColumnID, dataset.ColumnStatus)
	rs := NewRetestSummary(ds)
	assert.False(t, rs.Available)
	assert.Equal(t, 0, rs.Retested)
}

func TestConsolidatedSummaryScenario(t *testing.T) {
	ds := build(
		fixture{id: "1", team: "core", status: dataset.StatusRejected, date: 1, reasons: []string{"UI bug", "Crash"}},
		fixture{id: "2", team: "web", status: dataset.StatusApproved, date: 2},
	)
	cs := &ConsolidatedSummary{Dataset: ds}
	require.NoError(t, cs.Process())

	assert.Equal(t, 2, cs.Defects.Total())
	assert.Equal(t, 2, cs.Errors.Total)
	assert.Equal(t, 50.0, cs.Totals.ApprovalRate)
	assert.Equal(t, 50.0, cs.Totals.RejectionRate)
	assert.Equal(t, 0, cs.Retests.Retested)
	require.Len(t, cs.Delivered, 1)
	assert.Equal(t, "2", cs.Delivered[0].Identity)
	assert.Empty(t, cs.ReadyForPublication)
}

func TestConsolidatedSummaryTeamTalliesSumToTotal(t *testing.T) {
	ds := build(
		fixture{id: "1", team: "core", status: dataset.StatusRejected, reasons: []string{"crash", "ui bug"}},
		fixture{id: "2", team: "web", status: dataset.StatusRejected, errors: ptr(4), reasons: []string{"crash"}},
		fixture{id: "3", team: "", status: dataset.StatusRejected, reasons: []string{"timeout", "aprovada"}},
		fixture{id: "4", team: "web", status: dataset.StatusApproved, reasons: []string{"Sem recusa"}},
	)
	cs := &ConsolidatedSummary{Dataset: ds}
	require.NoError(t, cs.Process())

	sum := 0
	for _, tally := range cs.DefectsByTeam {
		sum += tally.Total()
	}
	assert.Equal(t, cs.Defects.Total(), sum)
	assert.Equal(t, 4, cs.Defects.Total())
	assert.Equal(t, DefectTally{"crash": 2, "ui bug": 1, "timeout": 1}, cs.Defects)
	assert.Contains(t, cs.DefectsByTeam, NoTeam)

	// 2 from reasons + 4 numeric + 1 from reasons
	assert.Equal(t, 7, cs.Errors.Total)
	assert.Equal(t, 4, cs.Errors.FromNumeric)
	assert.Equal(t, 3, cs.Errors.FromReasons)

	errSum := 0
	for _, n := range cs.Errors.ByTeam {
		errSum += n
	}
	assert.Equal(t, cs.Errors.Total, errSum)
}

func TestConsolidatedSummaryFilter(t *testing.T) {
	ds := build(
		fixture{id: "1", team: "core", status: dataset.StatusRejected, reasons: []string{"crash"}},
		fixture{id: "2", team: "web", status: dataset.StatusApproved},
	)
	cs := &ConsolidatedSummary{Dataset: ds, Filter: dataset.Filter{Teams: []string{"web"}}}
	require.NoError(t, cs.Process())
	assert.Equal(t, 1, cs.Totals.Tests)
	assert.Equal(t, 0, cs.Defects.Total())

	cs.Filter = dataset.Filter{Teams: []string{"nobody"}}
	require.NoError(t, cs.Process())
	assert.Equal(t, 0, cs.Totals.Tests)
	assert.Contains(t, cs.Warnings, "no records selected by the current filters")
}

func TestTaskListingKeepsLatest(t *testing.T) {
	ds := build(
		fixture{id: "1", status: dataset.StatusApproved, date: 1},
		fixture{id: "1", status: dataset.StatusApproved, date: 4},
		fixture{id: "2", status: dataset.StatusApproved, date: 2},
		fixture{id: "3", status: dataset.StatusRejected, date: 3},
	)
	items := TaskListing(ds, func(r *dataset.Record) bool { return r.Status == dataset.StatusApproved })
	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].Identity)
	assert.Equal(t, day(4), items[0].Date)
	assert.Equal(t, "2", items[1].Identity)
}

func TestDefectTallySorted(t *testing.T) {
	dt := DefectTally{"b": 2, "a": 2, "c": 5, "d": 1}
	assert.Equal(t, SortedList{{"c", 5}, {"a", 2}, {"b", 2}, {"d", 1}}, dt.Sorted())
	assert.Equal(t, SortedList{{"c", 5}, {"a", 2}}, dt.Top(2))
}

func TestMergeDefectTallies(t *testing.T) {
	tests := []struct {
		name string
		in   []DefectTally
		want DefectTally
	}{
		{name: "merge both", in: []DefectTally{{"crash": 1}, {"crash": 2, "ui": 1}}, want: DefectTally{"crash": 3, "ui": 1}},
		{name: "nil values", in: []DefectTally{nil, {"crash": 1}}, want: DefectTally{"crash": 1}},
		{name: "empty", in: nil, want: DefectTally{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergeDefectTallies(tt.in...))
		})
	}
}

func TestBreakdown(t *testing.T) {
	ds := build(
		fixture{id: "1", team: "web", status: dataset.StatusApproved},
		fixture{id: "2", team: "core", status: dataset.StatusRejected, errors: ptr(2)},
		fixture{id: "3", team: "core", status: dataset.StatusApproved},
		fixture{id: "4", team: "", status: "EM TESTE"},
	)
	teams := Breakdown(ds.Records, TeamLabel)
	require.Len(t, teams, 3)
	assert.Equal(t, "core", teams[0].Name)
	assert.Equal(t, 2, teams[0].Tests)
	assert.Equal(t, 50.0, teams[0].ApprovalRate)
	assert.Equal(t, 2, teams[0].Errors)
	assert.Equal(t, NoTeam, teams[1].Name)
	assert.Equal(t, 1, teams[1].Other)
	assert.Equal(t, "web", teams[2].Name)
}
