/*
Checks handles the acceptance criteria of the QA data collected and
processed in the summary package.

Existing Checks:
- QA-001: "Status column must be present"
- QA-002: "Approval rate should be at least 80%"
- QA-003: "Rejected tests must have a reason or an error count"
- QA-004: "Retested tasks should be approved after retest"
- QA-005: "Every test must have a tester"
- QA-006: "Every test must have a valid date"
- QA-007: "Status values must be known"
*/
package report

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
)

// Thresholds of the checks.
const (
	MinApprovalRate       = 80.0
	MinRetestApprovalRate = 50.0
)

type CheckSummary struct {
	Checks []*Check `json:"checks"`
}

func NewCheckSummary(re *Report) *CheckSummary {
	checkSum := &CheckSummary{
		Checks: []*Check{},
	}
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:   "QA-001",
		Name: "Status column must be present",
		Test: func() CheckResult {
			if re.Quality == nil {
				return CheckResultFail
			}
			for _, c := range re.Quality.MissingColumns {
				if c == string(dataset.ColumnStatus) {
					return CheckRespCustomFail("column not found")
				}
			}
			return CheckResultPass
		},
	})
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:          "QA-002",
		Name:        fmt.Sprintf("Approval rate should be at least %.0f%%", MinApprovalRate),
		Description: "Approved tests, including the ones ready for publication, over all tests.",
		Test: func() CheckResult {
			if re.Totals == nil || re.Totals.Tests == 0 {
				return CheckResultSkip
			}
			if re.Totals.ApprovalRate < MinApprovalRate {
				return CheckRespCustomWarn(fmt.Sprintf("%.2f%%", re.Totals.ApprovalRate))
			}
			return CheckResultPass
		},
	})
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:   "QA-003",
		Name: "Rejected tests must have a reason or an error count",
		Test: func() CheckResult {
			if re.Quality == nil {
				return CheckResultFail
			}
			if re.Quality.RejectedWithoutReasons > 0 {
				log.Debugf("Check Failed: QA-003: %d rejected tests without reasons", re.Quality.RejectedWithoutReasons)
				return CheckRespCustomFail(fmt.Sprintf("%d tests", re.Quality.RejectedWithoutReasons))
			}
			return CheckResultPass
		},
	})
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:   "QA-004",
		Name: fmt.Sprintf("At least %.0f%% of the retested tasks should be approved", MinRetestApprovalRate),
		Test: func() CheckResult {
			if re.Retests == nil || !re.Retests.Available || re.Retests.Retested == 0 {
				return CheckResultSkip
			}
			if re.Retests.ApprovalRate < MinRetestApprovalRate {
				return CheckRespCustomWarn(fmt.Sprintf("%.2f%%", re.Retests.ApprovalRate))
			}
			return CheckResultPass
		},
	})
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:   "QA-005",
		Name: "Every test must have a tester",
		Test: func() CheckResult {
			if re.Quality == nil {
				return CheckResultFail
			}
			if re.Quality.WithoutTester > 0 {
				return CheckRespCustomFail(fmt.Sprintf("%d tests", re.Quality.WithoutTester))
			}
			return CheckResultPass
		},
	})
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:   "QA-006",
		Name: "Every test must have a valid date",
		Test: func() CheckResult {
			if re.Quality == nil {
				return CheckResultFail
			}
			if re.Quality.WithoutDate > 0 {
				return CheckRespCustomFail(fmt.Sprintf("%d tests", re.Quality.WithoutDate))
			}
			return CheckResultPass
		},
	})
	checkSum.Checks = append(checkSum.Checks, &Check{
		ID:   "QA-007",
		Name: "Status values must be known",
		Test: func() CheckResult {
			if re.Quality == nil {
				return CheckResultFail
			}
			if len(re.Quality.UnknownStatuses) > 0 {
				return CheckRespCustomWarn(strings.Join(re.Quality.UnknownStatuses, ", "))
			}
			return CheckResultPass
		},
	})
	return checkSum
}

func (csum *CheckSummary) GetChecksFailed() []*Check {
	return csum.filter(CheckResultFail)
}

func (csum *CheckSummary) GetChecksPassed() []*Check {
	return csum.filter(CheckResultPass)
}

func (csum *CheckSummary) GetChecksWarned() []*Check {
	return csum.filter(CheckResultWarn)
}

func (csum *CheckSummary) filter(result CheckResult) []*Check {
	checks := []*Check{}
	for _, check := range csum.Checks {
		if check.Result == result {
			checks = append(checks, check)
		}
	}
	return checks
}

// Run evaluates every check. Custom results are split into the result and
// its message.
func (csum *CheckSummary) Run() error {
	for _, check := range csum.Checks {
		res := check.Test()
		check.Result, check.ResultMessage = res.split()
	}
	return nil
}

type CheckResult string

const (
	CheckResultPass CheckResult = "pass"
	CheckResultFail CheckResult = "fail"
	CheckResultWarn CheckResult = "warn"
	CheckResultSkip CheckResult = "skip"
)

func (cr CheckResult) split() (CheckResult, string) {
	res, msg, found := strings.Cut(string(cr), " [")
	if !found {
		return cr, ""
	}
	return CheckResult(res), strings.TrimSuffix(msg, "]")
}

type Check struct {
	// ID is the unique identifier for the check.
	ID string `json:"id"`

	// Name is the unique name for the check to be reported.
	// It must have short and descriptive name identifying the
	// failure item.
	Name string `json:"name"`

	// Description describes shortly the check.
	Description string `json:"description,omitempty"`

	Result CheckResult `json:"result"`

	ResultMessage string `json:"resultMessage,omitempty"`

	Test func() CheckResult `json:"-" yaml:"-"`
}

func CheckRespCustomFail(custom string) CheckResult {
	return CheckResult(fmt.Sprintf("%s [%s]", CheckResultFail, custom))
}

func CheckRespCustomWarn(custom string) CheckResult {
	return CheckResult(fmt.Sprintf("%s [%s]", CheckResultWarn, custom))
}
