package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	vfs "github.com/qa-tracking/qa-report-tool/internal/assets"
	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

var trackingRows = [][]string{
	{"Data", "Sprint", "Time", "Nome da Task", "Status", "Responsável pelo teste", "Erros", "ID", "Motivo", "Motivo2"},
	{"01/03/2025", "S1", "core", "Login", "REJEITADA", "ana", "", "T-1", "UI bug", "Crash"},
	{"03/03/2025", "S1", "core", "Login", "APROVADA", "ana", "", "T-1", "", ""},
	{"02/03/2025", "S1", "web", "Checkout", "APROVADA", "bruno", "", "T-2", "Sem recusa", ""},
	{"04/03/2025", "S2", "web", "Search", "PRONTO PARA PUBLICAÇÃO", "", "", "T-3", "", ""},
	{"05/03/2025", "S2", "core", "Profile", "REJEITADA", "ana", "3", "T-4", "timeout", ""},
	{"", "S2", "web", "Cart", "EM TESTE", "bruno", "", "T-5", "", ""},
}

func processed(t *testing.T, f dataset.Filter) *summary.ConsolidatedSummary {
	t.Helper()
	ds, err := dataset.Parse(trackingRows)
	require.NoError(t, err)
	cs := &summary.ConsolidatedSummary{Dataset: ds, Filter: f, Source: "tracking.xlsx"}
	require.NoError(t, cs.Process())
	return cs
}

func populated(t *testing.T) *Report {
	t.Helper()
	re := NewReport("")
	re.Summary.GeneratedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, re.Populate(processed(t, dataset.Filter{})))
	return re
}

func TestPopulate(t *testing.T) {
	re := populated(t)

	assert.Equal(t, "QA Report", re.Summary.Title)
	assert.Equal(t, "tracking.xlsx", re.Summary.Source)
	assert.Equal(t, 6, re.Summary.Records)
	assert.Equal(t, 6, re.Totals.Tests)
	assert.Equal(t, 3, re.Totals.Approved)
	assert.Equal(t, 2, re.Totals.Rejected)
	assert.Equal(t, 50.0, re.Totals.ApprovalRate)

	// 2 reasons from T-1 + 3 numeric from T-4
	assert.Equal(t, 5, re.Errors.Total)
	assert.Equal(t, 3, re.Defects.Total)
	assert.Equal(t, "crash", re.Defects.Top[0].Key)

	assert.Equal(t, 1, re.Retests.Retested)
	assert.Equal(t, 1, re.Retests.ApprovedAfterRetest)

	require.Len(t, re.Delivered, 2)
	assert.Equal(t, "T-1", re.Delivered[0].Identity)
	require.Len(t, re.ReadyForPublication, 1)
	assert.Equal(t, "T-3", re.ReadyForPublication[0].Identity)

	assert.Equal(t, 1, re.Quality.WithoutDate)
	assert.Equal(t, 1, re.Quality.WithoutTester)
	assert.Equal(t, []string{"EM TESTE"}, re.Quality.UnknownStatuses)
	assert.NotEmpty(t, re.Charts)
	assert.NotEmpty(t, re.Insights)
	assert.Contains(t, re.Summary.Headline, "6 tests")
}

func TestQualityRejectedWithoutReasons(t *testing.T) {
	rows := [][]string{
		trackingRows[0],
		{"01/03/2025", "S1", "core", "Login", "REJEITADA", "ana", "0", "T-1", "", ""},
		{"02/03/2025", "S1", "core", "Menu", "REJEITADA", "ana", "", "T-2", "Sem recusa", ""},
		{"03/03/2025", "S1", "core", "Home", "REJEITADA", "ana", "2", "T-3", "", ""},
	}
	ds, err := dataset.Parse(rows)
	require.NoError(t, err)
	cs := &summary.ConsolidatedSummary{Dataset: ds}
	require.NoError(t, cs.Process())

	re := NewReport("")
	require.NoError(t, re.Populate(cs))
	assert.Equal(t, 2, re.Quality.RejectedWithoutReasons)
}

func TestPopulateRequiresProcessedSummary(t *testing.T) {
	assert.Error(t, NewReport("x").Populate(&summary.ConsolidatedSummary{}))
}

func TestPopulateWithFilter(t *testing.T) {
	re := NewReport("Core team")
	require.NoError(t, re.Populate(processed(t, dataset.Filter{Teams: []string{"core"}})))
	assert.Equal(t, 3, re.Totals.Tests)
	assert.Equal(t, "teams=core", re.Summary.Filter)
	require.Len(t, re.Teams, 1)
	assert.Equal(t, "core", re.Teams[0].Name)
}

func TestChecks(t *testing.T) {
	re := populated(t)
	results := map[string]CheckResult{}
	messages := map[string]string{}
	for _, group := range [][]*Check{re.Checks.Fail, re.Checks.Pass, re.Checks.Warn} {
		for _, c := range group {
			results[c.ID] = c.Result
			messages[c.ID] = c.ResultMessage
		}
	}
	tests := []struct {
		id      string
		want    CheckResult
		message string
	}{
		{id: "QA-001", want: CheckResultPass},
		{id: "QA-002", want: CheckResultWarn, message: "50.00%"},
		{id: "QA-003", want: CheckResultPass},
		{id: "QA-004", want: CheckResultPass},
		{id: "QA-005", want: CheckResultFail, message: "1 tests"},
		{id: "QA-006", want: CheckResultFail, message: "1 tests"},
		{id: "QA-007", want: CheckResultWarn, message: "EM TESTE"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, results[tt.id])
			assert.Equal(t, tt.message, messages[tt.id])
		})
	}
}

func TestCheckResultSplit(t *testing.T) {
	res, msg := CheckRespCustomFail("3 tests").split()
	assert.Equal(t, CheckResultFail, res)
	assert.Equal(t, "3 tests", msg)

	res, msg = CheckResultPass.split()
	assert.Equal(t, CheckResultPass, res)
	assert.Empty(t, msg)
}

func TestBuildInsightsWithoutTests(t *testing.T) {
	re := &Report{Totals: &summary.Counters{}}
	assert.Empty(t, BuildInsights(re))
}

func TestShowJSONAndYAML(t *testing.T) {
	re := populated(t)

	out, err := re.ShowJSON()
	require.NoError(t, err)
	doc := map[string]interface{}{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc, "totals")
	assert.Contains(t, doc, "checks")

	out, err = re.ShowYAML()
	require.NoError(t, err)
	assert.Contains(t, out, "headline:")
	assert.NotContains(t, out, "charts:")
}

func TestDescribeFilter(t *testing.T) {
	f := dataset.Filter{
		Teams:   []string{"core", "web"},
		Testers: []string{"ana"},
		From:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "teams=core,web testers=ana from=2025-03-01", DescribeFilter(f))
	assert.Empty(t, DescribeFilter(dataset.Filter{}))
}

func useTemplates(t *testing.T) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "data", "templates", "report", "report.html"))
	require.NoError(t, err)
	vfs.UpdateData(fstest.MapFS{
		ReportTemplateBasePath + "/report.html": &fstest.MapFile{Data: data},
	})
}

func TestSaveResults(t *testing.T) {
	useTemplates(t)
	re := populated(t)
	dir := filepath.Join(t.TempDir(), "out")

	files, err := re.SaveResults(context.Background(), dir, SaveOptions{})
	require.NoError(t, err)
	assert.Len(t, files, 5)
	for _, name := range []string{ReportFileNameIndexJSON, ReportFileNameHTML, ReportFileNameDashboard, ReportFileNameSheet, ReportFileNamePDF} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Greater(t, info.Size(), int64(0), name)
	}

	html, err := os.ReadFile(filepath.Join(dir, ReportFileNameHTML))
	require.NoError(t, err)
	assert.Contains(t, string(html), "QA Report")
	assert.Contains(t, string(html), "Login")

	book, err := excelize.OpenFile(filepath.Join(dir, ReportFileNameSheet))
	require.NoError(t, err)
	defer book.Close()
	assert.Equal(t, []string{"summary", "teams", "testers", "sprints", "defects", "retests", "delivered", "ready-for-publication"}, book.GetSheetList())
	rows, err := book.GetRows("teams")
	require.NoError(t, err)
	assert.Equal(t, "Name", rows[0][0])
	assert.Len(t, rows, 3)
}

func TestSaveResultsSkipPDF(t *testing.T) {
	useTemplates(t)
	re := populated(t)
	dir := t.TempDir()
	files, err := re.SaveResults(context.Background(), dir, SaveOptions{SkipPDF: true})
	require.NoError(t, err)
	assert.Len(t, files, 4)
	_, err = os.Stat(filepath.Join(dir, ReportFileNamePDF))
	assert.True(t, os.IsNotExist(err))
}

func TestPDFReportWithoutExporter(t *testing.T) {
	re := populated(t)
	doc := re.PDFReport(context.Background(), nil)
	require.Len(t, doc.Charts, len(re.Charts))
	for _, c := range doc.Charts {
		assert.Nil(t, c.Image)
	}
	require.NotNil(t, doc.Teams)
	assert.Len(t, doc.Teams.Rows, 2)
	assert.Equal(t, "Login", doc.Delivered.Rows[0][0])
}
