package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qa-tracking/qa-report-tool/internal/qa/report"
)

const index = `{"summary":{"title":"QA Report","source":"/data/tracking.xlsx","filter":"teams=core","generatedAt":"2025-03-10T09:00:00Z"}}`

func savedReport(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, report.ReportFileNameIndexJSON), []byte(index), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, report.ReportFileNameHTML), []byte("<html></html>"), 0o644))
	return dir
}

func TestReadIndex(t *testing.T) {
	idx, err := readIndex(savedReport(t))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"title":       "QA Report",
		"source":      "tracking.xlsx",
		"filter":      "teams=core",
		"generatedAt": "2025-03-10T09:00:00Z",
	}, idx.metadata())

	_, err = readIndex(t.TempDir())
	assert.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	idx := &indexMeta{}
	idx.Summary.GeneratedAt = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, "reports/2025-03-10T090000Z", keyPrefix("", idx))
	assert.Equal(t, "custom/s1", keyPrefix("custom/s1", idx))
}

func TestPublishConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("publish-bucket", "qa-reports")
	viper.Set("publish-region", "sa-east-1")

	cfg := publishConfig(&publishInput{prefix: "p", dryRun: true, concurrency: 2}, &indexMeta{})
	assert.Equal(t, "qa-reports", cfg.Bucket)
	assert.Equal(t, "sa-east-1", cfg.Region)
	assert.Equal(t, "p", cfg.Prefix)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, 2, cfg.Concurrency)
}

func TestPublishReportDryRun(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	viper.Set("publish-bucket", "qa-reports")
	viper.Set("publish-region", "us-east-1")

	assert.NoError(t, publishReport(context.Background(), &publishInput{dir: savedReport(t), dryRun: true}))
}

func TestPublishReportRequiresBucket(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	assert.Error(t, publishReport(context.Background(), &publishInput{dir: savedReport(t), dryRun: true}))
}
