package report

import (
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/qa-tracking/qa-report-tool/internal/qa/summary"
)

var countersHeader = []interface{}{"Name", "Tests", "Approved", "Rejected", "Other", "Errors", "Defects", "Approval %", "Rejection %"}

// SaveSheet writes the metrics spreadsheet, one worksheet per breakdown.
func (re *Report) SaveSheet(path string) error {
	sheet := excelize.NewFile()
	defer sheet.Close()

	if err := sheet.SetSheetName("Sheet1", "summary"); err != nil {
		return errors.Wrap(err, "unable to create the summary worksheet")
	}
	rows := [][]interface{}{
		{"Title", re.Summary.Title},
		{"Source", re.Summary.Source},
		{"Filter", re.Summary.Filter},
		{"Generated at", re.Summary.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Records", re.Summary.Records},
		{"Tests", re.Totals.Tests},
		{"Approved", re.Totals.Approved},
		{"Rejected", re.Totals.Rejected},
		{"Approval %", re.Totals.ApprovalRate},
		{"Errors", re.Errors.Total},
		{"Defects", re.Defects.Total},
		{"Retested tasks", re.Retests.Retested},
		{"Approved after retest", re.Retests.ApprovedAfterRetest},
	}
	populateSheet(sheet, "summary", nil, rows)

	for _, group := range []struct {
		name  string
		items []*summary.Counters
	}{
		{"teams", re.Teams},
		{"testers", re.Testers},
		{"developers", re.Developers},
		{"sprints", re.Sprints},
	} {
		if len(group.items) == 0 {
			continue
		}
		rows := make([][]interface{}, 0, len(group.items))
		for _, c := range group.items {
			rows = append(rows, []interface{}{c.Name, c.Tests, c.Approved, c.Rejected, c.Other, c.Errors, c.Defects, c.ApprovalRate, c.RejectionRate})
		}
		createSheet(sheet, group.name)
		populateSheet(sheet, group.name, countersHeader, rows)
	}

	defects := [][]interface{}{}
	for _, d := range re.Defects.Top {
		defects = append(defects, []interface{}{d.Key, d.Value})
	}
	createSheet(sheet, "defects")
	populateSheet(sheet, "defects", []interface{}{"Reason", "Occurrences"}, defects)

	retests := [][]interface{}{}
	for _, r := range re.Retests.Details {
		retests = append(retests, []interface{}{r.Identity, r.TaskName, r.Team, r.Attempts, statusesText(r), r.ApprovedAfterRetest})
	}
	createSheet(sheet, "retests")
	populateSheet(sheet, "retests", []interface{}{"Identity", "Task", "Team", "Attempts", "Statuses", "Approved after retest"}, retests)

	for _, listing := range []struct {
		name  string
		items []*summary.TaskItem
	}{
		{"delivered", re.Delivered},
		{"ready-for-publication", re.ReadyForPublication},
	} {
		name := listing.name
		rows := [][]interface{}{}
		for _, it := range listing.items {
			rows = append(rows, []interface{}{it.Identity, it.TaskName, it.Team, it.Tester, it.Sprint, dateText(it)})
		}
		createSheet(sheet, name)
		populateSheet(sheet, name, []interface{}{"Identity", "Task", "Team", "Tester", "Sprint", "Date"}, rows)
	}

	sheet.SetActiveSheet(0)
	if err := sheet.SaveAs(path); err != nil {
		return errors.Wrapf(err, "unable to save %s", path)
	}
	return nil
}

// createSheet adds an empty worksheet.
func createSheet(sheet *excelize.File, name string) {
	if _, err := sheet.NewSheet(name); err != nil {
		log.Errorf("Report/Sheet/Unable to create worksheet %s: %v", name, err)
	}
}

// populateSheet writes an optional header on the first row, then the rows.
func populateSheet(sheet *excelize.File, name string, header []interface{}, rows [][]interface{}) {
	rowN := 1
	if header != nil {
		rows = append([][]interface{}{header}, rows...)
	}
	for _, row := range rows {
		row := row
		if err := sheet.SetSheetRow(name, fmt.Sprintf("A%d", rowN), &row); err != nil {
			log.Errorf("Report/Sheet/Unable to write row %d of %s: %v", rowN, name, err)
		}
		rowN++
	}
}

func statusesText(r *summary.RetestRecord) string {
	text := ""
	for idx, s := range r.Statuses {
		if idx > 0 {
			text += " > "
		}
		text += string(s)
	}
	return text
}

func dateText(it *summary.TaskItem) string {
	if it.Date.IsZero() {
		return ""
	}
	return it.Date.Format("02/01/2006")
}
