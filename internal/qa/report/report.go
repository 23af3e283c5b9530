package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/qa-tracking/qa-report-tool/internal/qa/chart"
	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
	"github.com/qa-tracking/qa-report-tool/internal/qa/metrics"
	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

const (
	ReportFileNameIndexJSON = "qa-report.json"
	ReportFileNameHTML      = "qa-report.html"
	ReportFileNameDashboard = "qa-dashboard.html"
	ReportFileNameSheet     = "qa-metrics.xlsx"
	ReportFileNamePDF       = "qa-report.pdf"
	ReportTemplateBasePath  = "data/templates/report"

	// TopDefectsInReport is the number of defect reasons listed per group.
	TopDefectsInReport = 10
)

// Report is the serializable view of a consolidated summary.
type Report struct {
	Summary *ReportSummary `json:"summary" yaml:"summary"`

	Totals     *summary.Counters   `json:"totals" yaml:"totals"`
	Teams      []*summary.Counters `json:"teams" yaml:"teams"`
	Testers    []*summary.Counters `json:"testers" yaml:"testers"`
	Developers []*summary.Counters `json:"developers,omitempty" yaml:"developers,omitempty"`
	Sprints    []*summary.Counters `json:"sprints" yaml:"sprints"`

	Retests *summary.RetestSummary `json:"retests" yaml:"retests"`
	Errors  *summary.ErrorSummary  `json:"errors" yaml:"errors"`

	Defects         *ReportDefects                `json:"defects" yaml:"defects"`
	DefectsByTeam   map[string]summary.SortedList `json:"defectsByTeam" yaml:"defectsByTeam"`
	DefectsByTester map[string]summary.SortedList `json:"defectsByTester" yaml:"defectsByTester"`

	Delivered           []*summary.TaskItem `json:"delivered" yaml:"delivered"`
	ReadyForPublication []*summary.TaskItem `json:"readyForPublication" yaml:"readyForPublication"`

	Quality  *ReportQuality `json:"quality" yaml:"quality"`
	Checks   *ReportChecks  `json:"checks,omitempty" yaml:"checks,omitempty"`
	Insights []*Insight     `json:"insights" yaml:"insights"`
	Warnings []string       `json:"warnings" yaml:"warnings"`

	Charts []*chart.Spec `json:"charts,omitempty" yaml:"-"`

	Runtime *ReportRuntime `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Raw is the JSON document, available to the HTML template.
	Raw string `json:"-" yaml:"-"`
}

type ReportSummary struct {
	Title       string    `json:"title" yaml:"title"`
	Source      string    `json:"source" yaml:"source"`
	Filter      string    `json:"filter,omitempty" yaml:"filter,omitempty"`
	GeneratedAt time.Time `json:"generatedAt" yaml:"generatedAt"`
	Records     int       `json:"records" yaml:"records"`
	Headline    string    `json:"headline" yaml:"headline"`
}

type ReportDefects struct {
	Total int                `json:"total" yaml:"total"`
	Top   summary.SortedList `json:"top" yaml:"top"`
}

// ReportQuality counts data entry problems of the selected records.
type ReportQuality struct {
	Records                int      `json:"records" yaml:"records"`
	WithoutDate            int      `json:"withoutDate" yaml:"withoutDate"`
	WithoutTester          int      `json:"withoutTester" yaml:"withoutTester"`
	WithoutIdentity        int      `json:"withoutIdentity" yaml:"withoutIdentity"`
	RejectedWithoutReasons int      `json:"rejectedWithoutReasons" yaml:"rejectedWithoutReasons"`
	UnknownStatuses        []string `json:"unknownStatuses,omitempty" yaml:"unknownStatuses,omitempty"`
	MissingColumns         []string `json:"missingColumns,omitempty" yaml:"missingColumns,omitempty"`
}

type ReportChecks struct {
	Fail []*Check `json:"failures" yaml:"failures"`
	Pass []*Check `json:"successes" yaml:"successes"`
	Warn []*Check `json:"warnings" yaml:"warnings"`
}

type ReportRuntime struct {
	Timers        *metrics.Timers `json:"timers,omitempty" yaml:"-"`
	ExecutionTime string          `json:"executionTime,omitempty" yaml:"executionTime,omitempty"`
}

// NewReport creates a report titled after the given name.
func NewReport(title string) *Report {
	if title == "" {
		title = "QA Report"
	}
	return &Report{
		Summary: &ReportSummary{Title: title},
		Runtime: &ReportRuntime{},
	}
}

// Populate builds the report from a processed summary.
func (re *Report) Populate(cs *summary.ConsolidatedSummary) error {
	if cs == nil || cs.Selected == nil || cs.Totals == nil {
		return errors.New("summary has not been processed")
	}
	if cs.Timers == nil {
		cs.Timers = metrics.NewTimers()
	}
	defer cs.Timers.Track("report-populate")()

	re.Summary.Source = cs.Source
	re.Summary.Filter = DescribeFilter(cs.Filter)
	re.Summary.Records = len(cs.Selected.Records)
	if re.Summary.GeneratedAt.IsZero() {
		re.Summary.GeneratedAt = time.Now()
	}

	re.Totals = cs.Totals
	re.Teams = cs.Teams
	re.Testers = cs.Testers
	re.Developers = cs.Developers
	re.Sprints = cs.Sprints
	re.Retests = cs.Retests
	re.Errors = cs.Errors
	re.Defects = &ReportDefects{Total: cs.Defects.Total(), Top: cs.Defects.Top(TopDefectsInReport)}
	re.DefectsByTeam = topPerGroup(cs.DefectsByTeam)
	re.DefectsByTester = topPerGroup(cs.DefectsByTester)
	re.Delivered = cs.Delivered
	re.ReadyForPublication = cs.ReadyForPublication
	re.Warnings = append([]string{}, cs.Warnings...)
	re.Quality = newReportQuality(cs.Selected)

	re.Charts = chart.All(cs)
	re.Insights = BuildInsights(re)
	re.Summary.Headline = re.headline()

	checks := NewCheckSummary(re)
	if err := checks.Run(); err != nil {
		return errors.Wrap(err, "unable to run the report checks")
	}
	re.Checks = &ReportChecks{
		Fail: checks.GetChecksFailed(),
		Pass: checks.GetChecksPassed(),
		Warn: checks.GetChecksWarned(),
	}
	re.timers()
	re.Runtime.Timers = cs.Timers
	log.Debugf("Report/Populate/Done: records=%d charts=%d insights=%d", re.Summary.Records, len(re.Charts), len(re.Insights))
	return nil
}

func (re *Report) headline() string {
	if re.Totals.Tests == 0 {
		return "No tests found for the selected filters."
	}
	return fmt.Sprintf("%d tests, %.2f%% approved, %d errors and %d defects recorded.",
		re.Totals.Tests, re.Totals.ApprovalRate, re.Errors.Total, re.Defects.Total)
}

func topPerGroup(groups map[string]summary.DefectTally) map[string]summary.SortedList {
	top := make(map[string]summary.SortedList, len(groups))
	for name, tally := range groups {
		top[name] = tally.Top(TopDefectsInReport)
	}
	return top
}

func newReportQuality(ds *dataset.Dataset) *ReportQuality {
	q := &ReportQuality{Records: len(ds.Records)}
	unknown := map[dataset.Status]struct{}{}
	for _, r := range ds.Records {
		if r.Date.IsZero() {
			q.WithoutDate++
		}
		if r.Tester == "" {
			q.WithoutTester++
		}
		if ds.Identity(r) == "" {
			q.WithoutIdentity++
		}
		if n, _ := summary.RecordErrors(r); r.IsRejected() && n == 0 {
			q.RejectedWithoutReasons++
		}
		if r.Status != "" && !r.IsApproved() && !r.IsRejected() {
			if _, ok := unknown[r.Status]; !ok {
				unknown[r.Status] = struct{}{}
				q.UnknownStatuses = append(q.UnknownStatuses, string(r.Status))
			}
		}
	}
	for _, c := range ds.Missing(dataset.ColumnDate, dataset.ColumnStatus, dataset.ColumnTeam, dataset.ColumnTester) {
		q.MissingColumns = append(q.MissingColumns, string(c))
	}
	return q
}

// DescribeFilter renders the filter as a short text, empty when unset.
func DescribeFilter(f dataset.Filter) string {
	parts := []string{}
	if len(f.Teams) > 0 {
		parts = append(parts, "teams="+strings.Join(f.Teams, ","))
	}
	if len(f.Sprints) > 0 {
		parts = append(parts, "sprints="+strings.Join(f.Sprints, ","))
	}
	if len(f.Testers) > 0 {
		parts = append(parts, "testers="+strings.Join(f.Testers, ","))
	}
	if !f.From.IsZero() {
		parts = append(parts, "from="+f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		parts = append(parts, "to="+f.To.Format("2006-01-02"))
	}
	return strings.Join(parts, " ")
}

func (re *Report) timers() *metrics.Timers {
	if re.Runtime == nil {
		re.Runtime = &ReportRuntime{}
	}
	if re.Runtime.Timers == nil {
		re.Runtime.Timers = metrics.NewTimers()
	}
	return re.Runtime.Timers
}

func (re *Report) marshalIndex() ([]byte, error) {
	data, err := json.MarshalIndent(re, "", " ")
	if err != nil {
		return nil, errors.Wrap(err, "unable to encode the report")
	}
	return data, nil
}

func (re *Report) ShowJSON() (string, error) {
	val, err := json.MarshalIndent(re, "", "    ")
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (re *Report) ShowYAML() (string, error) {
	val, err := yaml.Marshal(re)
	if err != nil {
		return "", err
	}
	return string(val), nil
}
