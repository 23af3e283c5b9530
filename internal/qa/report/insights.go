package report

import (
	"fmt"

	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

// InsightLevel follows the alert levels of the HTML report.
type InsightLevel string

const (
	InsightInfo    InsightLevel = "info"
	InsightWarning InsightLevel = "warning"
	InsightDanger  InsightLevel = "danger"
)

// MinTestsForTeamInsight avoids ranking teams with too few tests.
const MinTestsForTeamInsight = 3

type Insight struct {
	Level   InsightLevel `json:"level" yaml:"level"`
	Message string       `json:"message" yaml:"message"`
}

// BuildInsights derives the narrative findings of the report.
func BuildInsights(re *Report) []*Insight {
	insights := []*Insight{}
	add := func(level InsightLevel, format string, args ...interface{}) {
		insights = append(insights, &Insight{Level: level, Message: fmt.Sprintf(format, args...)})
	}
	if re.Totals == nil || re.Totals.Tests == 0 {
		return insights
	}

	level := InsightInfo
	if re.Totals.ApprovalRate < MinApprovalRate {
		level = InsightWarning
	}
	add(level, "Approval rate is %.2f%% over %d tests (%d approved, %d rejected).",
		re.Totals.ApprovalRate, re.Totals.Tests, re.Totals.Approved, re.Totals.Rejected)

	if best, worst := rankTeams(re.Teams); best != nil && worst != nil && best != worst {
		add(InsightInfo, "Team %s has the highest approval rate (%.2f%%).", best.Name, best.ApprovalRate)
		add(InsightWarning, "Team %s has the lowest approval rate (%.2f%%).", worst.Name, worst.ApprovalRate)
	}

	if re.Defects != nil && len(re.Defects.Top) > 0 {
		top := re.Defects.Top[0]
		add(InsightInfo, "Most frequent defect reason: %q with %d of %d occurrences (%.2f%%).",
			top.Key, top.Value, re.Defects.Total, summary.Percent(top.Value, re.Defects.Total))
	}

	if re.Errors != nil && re.Errors.Total > 0 {
		if name, n := maxCount(re.Errors.ByTeam); name != "" {
			add(InsightWarning, "Team %s concentrates %d of %d errors.", name, n, re.Errors.Total)
		}
		if re.Errors.FromReasons > 0 {
			add(InsightInfo, "%d errors were estimated from rejection reasons, the error column was empty.", re.Errors.FromReasons)
		}
	}

	if re.Retests != nil && re.Retests.Available && re.Retests.Retested > 0 {
		level := InsightInfo
		if re.Retests.ApprovalRate < MinRetestApprovalRate {
			level = InsightDanger
		}
		add(level, "%d tasks were retested, %d approved after retest (%.2f%%), %.2f attempts on average.",
			re.Retests.Retested, re.Retests.ApprovedAfterRetest, re.Retests.ApprovalRate, re.Retests.MeanAttempts)
	}

	if n := len(re.ReadyForPublication); n > 0 {
		add(InsightInfo, "%d tasks are ready for publication.", n)
	}
	return insights
}

// rankTeams returns the teams with the highest and the lowest approval
// rate, among the ones with enough tests.
func rankTeams(teams []*summary.Counters) (best, worst *summary.Counters) {
	for _, t := range teams {
		if t.Tests < MinTestsForTeamInsight || t.Name == summary.NoTeam {
			continue
		}
		if best == nil || t.ApprovalRate > best.ApprovalRate {
			best = t
		}
		if worst == nil || t.ApprovalRate < worst.ApprovalRate {
			worst = t
		}
	}
	return best, worst
}

// maxCount returns the key with the highest count, ties by name.
func maxCount(counts map[string]int) (string, int) {
	name, top := "", 0
	for k, v := range counts {
		if v > top || (v == top && v > 0 && k < name) {
			name, top = k, v
		}
	}
	return name, top
}
