package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	vfs "github.com/qa-tracking/qa-report-tool/internal/assets"
	"github.com/qa-tracking/qa-report-tool/internal/qa/chart"
	"github.com/qa-tracking/qa-report-tool/internal/qa/export"
	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

// SaveOptions controls the outputs written by SaveResults.
type SaveOptions struct {
	// Exporter rasterizes the PDF charts. The PDF is still written, without
	// images, when it is nil.
	Exporter *export.Exporter

	SkipPDF bool
}

// SaveResults writes every report file to the directory.
func (re *Report) SaveResults(ctx context.Context, path string, opts SaveOptions) ([]string, error) {
	timers := re.timers()
	defer timers.Track("report-save/results")()
	start := time.Now()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "unable to create directory %s", path)
	}
	files := []string{}
	saved := func(name string) {
		files = append(files, filepath.Join(path, name))
	}

	// qa-report.json (data source)
	reportData, err := re.marshalIndex()
	if err != nil {
		return nil, err
	}
	re.Raw = string(reportData)
	if err := os.WriteFile(filepath.Join(path, ReportFileNameIndexJSON), reportData, 0o644); err != nil {
		return nil, errors.Wrap(err, "unable to write the JSON report")
	}
	saved(ReportFileNameIndexJSON)

	if err := re.saveHTML(filepath.Join(path, ReportFileNameHTML)); err != nil {
		return files, err
	}
	saved(ReportFileNameHTML)

	if err := chart.SaveDashboard(filepath.Join(path, ReportFileNameDashboard), re.Charts); err != nil {
		return files, err
	}
	saved(ReportFileNameDashboard)

	if err := re.SaveSheet(filepath.Join(path, ReportFileNameSheet)); err != nil {
		return files, err
	}
	saved(ReportFileNameSheet)

	if !opts.SkipPDF {
		stop := timers.Track("report-save/pdf")
		doc := re.PDFReport(ctx, opts.Exporter)
		err := export.SavePDF(filepath.Join(path, ReportFileNamePDF), doc)
		stop()
		if err != nil {
			return files, err
		}
		saved(ReportFileNamePDF)
	}

	re.Runtime.ExecutionTime = time.Since(start).Round(time.Millisecond).String()
	log.Debugf("Report/Save/Done: %d files in %s", len(files), re.Runtime.ExecutionTime)
	return files, nil
}

func (re *Report) saveHTML(dest string) error {
	src := fmt.Sprintf("%s/%s", ReportTemplateBasePath, "report.html")
	datS, err := vfs.ReadFile(src)
	if err != nil {
		return err
	}
	tmplS, err := template.New("report").Delims("[[", "]]").Parse(string(datS))
	if err != nil {
		return errors.Wrap(err, "unable to parse the report template")
	}
	var fileBufferS bytes.Buffer
	if err := tmplS.Execute(&fileBufferS, re); err != nil {
		return errors.Wrap(err, "unable to render the report template")
	}
	if err := os.WriteFile(dest, fileBufferS.Bytes(), 0o644); err != nil {
		return errors.Wrap(err, "unable to write the HTML report")
	}
	return nil
}

// PDFReport formats the report for the PDF writer, rasterizing the charts
// with the exporter. Charts failing every strategy are kept without image.
func (re *Report) PDFReport(ctx context.Context, exporter *export.Exporter) *export.PDFReport {
	doc := &export.PDFReport{
		Title:       re.Summary.Title,
		Subtitle:    re.Summary.Filter,
		GeneratedAt: re.Summary.GeneratedAt,
		Warnings:    append([]string{}, re.Warnings...),
		Summary: []export.KeyValue{
			{Key: "Source", Value: re.Summary.Source},
			{Key: "Tests", Value: fmt.Sprintf("%d", re.Totals.Tests)},
			{Key: "Approved", Value: fmt.Sprintf("%d", re.Totals.Approved)},
			{Key: "Rejected", Value: fmt.Sprintf("%d", re.Totals.Rejected)},
			{Key: "Approval rate", Value: fmt.Sprintf("%.2f%%", re.Totals.ApprovalRate)},
			{Key: "Errors", Value: fmt.Sprintf("%d", re.Errors.Total)},
			{Key: "Defects", Value: fmt.Sprintf("%d", re.Defects.Total)},
			{Key: "Retested tasks", Value: fmt.Sprintf("%d", re.Retests.Retested)},
			{Key: "Delivered tasks", Value: fmt.Sprintf("%d", len(re.Delivered))},
		},
	}
	for _, in := range re.Insights {
		doc.Insights = append(doc.Insights, in.Message)
	}
	if re.Checks != nil {
		for _, group := range [][]*Check{re.Checks.Fail, re.Checks.Warn} {
			for _, c := range group {
				doc.Warnings = append(doc.Warnings, checkText(c))
			}
		}
	}

	if len(re.Teams) > 0 {
		doc.Teams = &export.Table{
			Headers: []string{"Team", "Tests", "Approved", "Rejected", "Errors", "Approval"},
			Widths:  []float64{60, 20, 22, 22, 20},
		}
		for _, t := range re.Teams {
			doc.Teams.Rows = append(doc.Teams.Rows, []string{
				t.Name, fmt.Sprint(t.Tests), fmt.Sprint(t.Approved), fmt.Sprint(t.Rejected),
				fmt.Sprint(t.Errors), fmt.Sprintf("%.2f%%", t.ApprovalRate),
			})
		}
	}
	doc.Delivered = taskTable(re.Delivered)
	doc.ReadyForPublication = taskTable(re.ReadyForPublication)

	for _, s := range re.Charts {
		item := export.ChartImage{ID: s.ID, Title: s.Title, Caption: s.Subtitle}
		if exporter != nil {
			img, err := exporter.Rasterize(ctx, s)
			if err != nil {
				log.WithError(err).Warnf("Unable to rasterize chart %s, the image is left out of the PDF", s.ID)
			}
			item.Image = img
		}
		doc.Charts = append(doc.Charts, item)
	}
	return doc
}

func taskTable(items []*summary.TaskItem) *export.Table {
	if len(items) == 0 {
		return nil
	}
	t := &export.Table{
		Headers: []string{"Task", "Team", "Tester", "Sprint", "Date"},
		Widths:  []float64{70, 35, 35, 20},
	}
	for _, it := range items {
		name := it.TaskName
		if name == "" {
			name = it.Identity
		}
		t.Rows = append(t.Rows, []string{name, it.Team, it.Tester, it.Sprint, dateText(it)})
	}
	return t
}

func checkText(c *Check) string {
	if c.ResultMessage == "" {
		return fmt.Sprintf("%s: %s (%s)", c.ID, c.Name, c.Result)
	}
	return fmt.Sprintf("%s: %s (%s: %s)", c.ID, c.Name, c.Result, c.ResultMessage)
}
