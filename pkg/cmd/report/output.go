package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/qa-tracking/qa-report-tool/internal/qa/report"
	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

func newTable(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})
	return table
}

func percent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func rateColor(v float64) string {
	switch {
	case v >= report.MinApprovalRate:
		return green(percent(v))
	case v >= report.MinApprovalRate/2:
		return yellow(percent(v))
	default:
		return red(percent(v))
	}
}

// showReport prints the text summary of the report.
func showReport(w io.Writer, re *report.Report) error {
	fmt.Fprintf(w, "\n> %s <\n\n", bold(re.Summary.Title))
	fmt.Fprintf(w, " Source: %s\n", re.Summary.Source)
	if re.Summary.Filter != "" {
		fmt.Fprintf(w, " Filter: %s\n", re.Summary.Filter)
	}
	fmt.Fprintf(w, " %s\n\n", re.Summary.Headline)

	for _, warn := range re.Warnings {
		fmt.Fprintf(w, " %s %s\n", yellow("WARN"), warn)
	}
	if len(re.Warnings) > 0 {
		fmt.Fprintln(w)
	}

	if err := showTotals(w, re); err != nil {
		return err
	}
	if err := showCounters(w, "Teams", re.Teams); err != nil {
		return err
	}
	if err := showDefects(w, re.Defects.Top); err != nil {
		return err
	}
	showInsights(w, re.Insights)
	showChecks(w, re.Checks)
	return nil
}

func showTotals(w io.Writer, re *report.Report) error {
	fmt.Fprintf(w, "%s\n", cyan("> Executive summary"))
	table := newTable(w, []string{"Metric", "Value"})
	rows := [][]string{
		{"Tests", strconv.Itoa(re.Totals.Tests)},
		{"Approved", strconv.Itoa(re.Totals.Approved)},
		{"Rejected", strconv.Itoa(re.Totals.Rejected)},
		{"Approval rate", rateColor(re.Totals.ApprovalRate)},
		{"Errors", strconv.Itoa(re.Errors.Total)},
		{"Defects", strconv.Itoa(re.Defects.Total)},
	}
	if re.Retests != nil && re.Retests.Available {
		rows = append(rows,
			[]string{"Retested tasks", strconv.Itoa(re.Retests.Retested)},
			[]string{"Approved after retest", strconv.Itoa(re.Retests.ApprovedAfterRetest)},
		)
	}
	rows = append(rows,
		[]string{"Delivered", strconv.Itoa(len(re.Delivered))},
		[]string{"Ready for publication", strconv.Itoa(len(re.ReadyForPublication))},
	)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func showCounters(w io.Writer, title string, groups []*summary.Counters) error {
	if len(groups) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", cyan("> "+title))
	table := newTable(w, []string{"Name", "Tests", "Approved", "Rejected", "Errors", "Defects", "Approval"})
	for _, c := range groups {
		if err := table.Append([]string{
			c.Name,
			strconv.Itoa(c.Tests),
			strconv.Itoa(c.Approved),
			strconv.Itoa(c.Rejected),
			strconv.Itoa(c.Errors),
			strconv.Itoa(c.Defects),
			rateColor(c.ApprovalRate),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func showDefects(w io.Writer, top summary.SortedList) error {
	if len(top) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%s\n", cyan("> Top defect reasons"))
	table := newTable(w, []string{"Reason", "Occurrences"})
	for _, d := range top {
		if err := table.Append([]string{d.Key, strconv.Itoa(d.Value)}); err != nil {
			return err
		}
	}
	return table.Render()
}

func showInsights(w io.Writer, insights []*report.Insight) {
	if len(insights) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s\n", cyan("> Insights"))
	for _, in := range insights {
		label := string(in.Level)
		switch in.Level {
		case report.InsightWarning:
			label = yellow(label)
		case report.InsightDanger:
			label = red(label)
		}
		fmt.Fprintf(w, " - [%s] %s\n", label, in.Message)
	}
}

func showChecks(w io.Writer, checks *report.ReportChecks) {
	if checks == nil {
		return
	}
	fmt.Fprintf(w, "\n%s\n", cyan("> Data checks"))
	list := func(group []*report.Check, paint func(a ...interface{}) string) {
		for _, check := range group {
			name := check.Name
			if check.ID != "" {
				name = fmt.Sprintf("[%s] %s", check.ID, check.Name)
			}
			result := string(check.Result)
			if check.ResultMessage != "" {
				result += " " + check.ResultMessage
			}
			fmt.Fprintf(w, " - %s: %s\n", name, paint(result))
		}
	}
	list(checks.Fail, red)
	list(checks.Warn, yellow)
	list(checks.Pass, green)
}
