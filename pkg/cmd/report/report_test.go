package report

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vfs "github.com/qa-tracking/qa-report-tool/internal/assets"
	"github.com/qa-tracking/qa-report-tool/internal/qa/metrics"
	"github.com/qa-tracking/qa-report-tool/internal/qa/report"
	"github.com/qa-tracking/qa-report-tool/internal/source"
)

const trackingCSV = `Data,Sprint,Time,Nome da Task,Status,Responsável pelo teste,Erros,ID,Motivo,Motivo2
01/03/2025,S1,core,Login,REJEITADA,ana,,T-1,UI bug,Crash
03/03/2025,S1,core,Login,APROVADA,ana,,T-1,,
02/03/2025,S1,web,Checkout,APROVADA,bruno,,T-2,Sem recusa,
05/03/2025,S2,core,Profile,REJEITADA,ana,3,T-4,timeout,
`

func writeTracking(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tracking.csv")
	require.NoError(t, os.WriteFile(p, []byte(trackingCSV), 0o644))
	return p
}

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name    string
		input   Input
		from    time.Time
		to      time.Time
		wantErr bool
	}{
		{name: "empty"},
		{
			name:  "iso and day-first dates",
			input: Input{from: "2025-03-01", to: "31/03/2025"},
			from:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			to:    time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		{name: "invalid date", input: Input{from: "yesterday"}, wantErr: true},
		{name: "inverted range", input: Input{from: "2025-03-10", to: "2025-03-01"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFilter(&tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.from.Equal(f.From))
			assert.True(t, tt.to.Equal(f.To))
		})
	}
}

func TestParseFilterLists(t *testing.T) {
	f, err := parseFilter(&Input{teams: []string{"core"}, testers: []string{"ana"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, f.Teams)
	assert.Equal(t, []string{"ana"}, f.Testers)
	assert.Empty(t, f.Sprints)
}

func TestCheckFlags(t *testing.T) {
	assert.NoError(t, checkFlags(&Input{output: OutputJSON}))
	assert.Error(t, checkFlags(&Input{output: "xml"}))

	in := &Input{output: OutputText, serve: true}
	require.NoError(t, checkFlags(in))
	assert.False(t, in.serve)
}

func TestSourceOptions(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("sheets-id", "abc")
	viper.Set("cache-ttl", "2m")

	o := sourceOptions(&Input{input: "tracking.xlsx", sheet: "QA"})
	assert.Equal(t, "tracking.xlsx", o.Input)
	assert.Equal(t, "QA", o.Sheet)
	assert.Equal(t, "abc", o.SheetsID)
	assert.Equal(t, 2*time.Minute, o.CacheTTL)
}

func TestNewExporterSettings(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("export-min-bytes", 2048)
	viper.Set("export-timeout", "5s")

	exp, closeExporter := newExporter()
	defer closeExporter()
	assert.Equal(t, 2048, exp.MinBytes)
	assert.Equal(t, 5*time.Second, exp.Timeout)
	assert.Len(t, exp.Rasterizers, 2)
}

func TestBuildReportAndShow(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	in := &Input{input: writeTracking(t), output: OutputText, teams: []string{"core"}}
	src, err := source.New(context.Background(), sourceOptions(in))
	require.NoError(t, err)
	re, err := buildReport(context.Background(), in, src, metrics.NewTimers())
	require.NoError(t, err)
	assert.Equal(t, 3, re.Totals.Tests)
	assert.Equal(t, "teams=core", re.Summary.Filter)

	var buf bytes.Buffer
	require.NoError(t, showReport(&buf, re))
	out := buf.String()
	assert.Contains(t, out, "QA Report")
	assert.Contains(t, out, "Executive summary")
	assert.Contains(t, out, "crash")
	assert.Contains(t, out, "[QA-002]")
}

func TestProcessResultWithoutSource(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	assert.Error(t, processResult(context.Background(), &Input{output: OutputJSON}))
}

type countingSource struct {
	path    string
	fetches int
}

func (s *countingSource) Name() string { return "counting" }

func (s *countingSource) Fetch(ctx context.Context) ([][]string, error) {
	s.fetches++
	return (&source.FileSource{Path: s.path}).Fetch(ctx)
}

func useTemplates(t *testing.T) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "data", "templates", "report", "report.html"))
	require.NoError(t, err)
	vfs.UpdateData(fstest.MapFS{
		report.ReportTemplateBasePath + "/report.html": &fstest.MapFile{Data: data},
	})
}

func TestReportHandlerRefresh(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	useTemplates(t)

	remote := &countingSource{path: writeTracking(t)}
	in := &Input{output: OutputText, saveTo: t.TempDir(), skipPDF: true}
	handler := newReportHandler(context.Background(), in, source.NewCached(remote, time.Minute), nil)

	refresh := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	rec := refresh("/refresh")
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/"+report.ReportFileNameHTML, rec.Header().Get("Location"))
	assert.FileExists(t, filepath.Join(in.saveTo, report.ReportFileNameIndexJSON))
	assert.Equal(t, 1, remote.fetches)

	refresh("/refresh")
	assert.Equal(t, 1, remote.fetches, "rows within the TTL come from the cache")

	refresh("/refresh?force=true")
	assert.Equal(t, 2, remote.fetches)

	rec = refresh("/" + report.ReportFileNameIndexJSON)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReportHandlerRefreshError(t *testing.T) {
	in := &Input{output: OutputText, saveTo: t.TempDir(), skipPDF: true}
	missing := &source.FileSource{Path: filepath.Join(t.TempDir(), "missing.csv")}
	handler := newReportHandler(context.Background(), in, missing, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/refresh", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
