// Package dataset normalizes raw spreadsheet rows from the QA tracking sheet
// into typed test records. Column headers are recognized by alias, dates and
// error counts are coerced, and every missing column the downstream metrics
// depend on is reported as a warning instead of an error.
package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MaxReasonSlots is the number of rejection reason columns (Motivo .. Motivo7).
const MaxReasonSlots = 7

// Status is the normalized value of the Status column.
type Status string

const (
	StatusApproved            Status = "APROVADA"
	StatusRejected            Status = "REJEITADA"
	StatusReadyForPublication Status = "PRONTO PARA PUBLICAÇÃO"
)

// ErrNoHeader is returned when no row of the input looks like a header.
var ErrNoHeader = errors.New("unable to find a header row with recognized columns")

// Record is one test execution (one row of the tracking sheet).
type Record struct {
	// Row is the 1-based row number in the source sheet.
	Row int `json:"row"`

	Date      time.Time `json:"date,omitempty"`
	Sprint    string    `json:"sprint,omitempty"`
	Team      string    `json:"team,omitempty"`
	TaskName  string    `json:"taskName,omitempty"`
	TaskLink  string    `json:"taskLink,omitempty"`
	Status    Status    `json:"status"`
	Tester    string    `json:"tester,omitempty"`
	Developer string    `json:"developer,omitempty"`
	ID        string    `json:"id,omitempty"`

	// Reasons holds the raw text of each rejection reason slot.
	Reasons [MaxReasonSlots]string `json:"reasons"`

	// Errors is the numeric value of the error column. HasErrors is false
	// when the cell is missing or not a number.
	Errors    float64 `json:"errors"`
	HasErrors bool    `json:"hasErrors"`
}

func (r *Record) IsRejected() bool {
	return r.Status == StatusRejected
}

// IsApproved reports whether the record status counts as an approval.
func (r *Record) IsApproved() bool {
	return r.Status == StatusApproved || r.Status == StatusReadyForPublication
}

func (r *Record) IsReadyForPublication() bool {
	return r.Status == StatusReadyForPublication
}

// DefectReasons returns the normalized, non-sentinel reasons of the record,
// one entry per populated slot.
func (r *Record) DefectReasons() []string {
	reasons := []string{}
	for _, raw := range r.Reasons {
		if reason, ok := DefectReason(raw); ok {
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

// Dataset is the normalized table consumed by the summary package.
type Dataset struct {
	Records  []*Record
	Warnings []string

	columns  map[Column]int
	identity Column
}

// New builds a dataset from already typed records. It is mostly used by
// tests and by Filter, the columns argument lists which columns are
// considered present.
func New(records []*Record, columns ...Column) *Dataset {
	ds := &Dataset{
		Records: records,
		columns: make(map[Column]int, len(columns)),
	}
	for idx, c := range columns {
		ds.columns[c] = idx
	}
	ds.identity = ds.detectIdentity()
	return ds
}

// Has reports whether the column was present in the source header.
func (ds *Dataset) Has(c Column) bool {
	_, ok := ds.columns[c]
	return ok
}

// HasAnyReason reports whether at least one reason slot column is present.
func (ds *Dataset) HasAnyReason() bool {
	for i := 1; i <= MaxReasonSlots; i++ {
		if ds.Has(ReasonColumn(i)) {
			return true
		}
	}
	return false
}

// Missing returns the columns from the list that are not present.
func (ds *Dataset) Missing(cols ...Column) []Column {
	missing := []Column{}
	for _, c := range cols {
		if !ds.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Columns returns the recognized columns in source order.
func (ds *Dataset) Columns() []Column {
	cols := make([]Column, len(ds.columns))
	for c, idx := range ds.columns {
		cols[idx] = c
	}
	return cols
}

// IdentityColumn is the column used to group records of the same task, or
// an empty value when neither the ID nor the task name are available.
func (ds *Dataset) IdentityColumn() Column {
	return ds.identity
}

// Identity returns the task identity of the record, following the column
// chosen for the whole table.
func (ds *Dataset) Identity(r *Record) string {
	switch ds.identity {
	case ColumnID:
		return r.ID
	case ColumnTaskName:
		return r.TaskName
	}
	return ""
}

// Warn appends a warning, logging it as well.
func (ds *Dataset) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	log.Warn(msg)
	ds.Warnings = append(ds.Warnings, msg)
}

// detectIdentity uses the ID column when it has at least one value,
// otherwise the task name.
func (ds *Dataset) detectIdentity() Column {
	if ds.Has(ColumnID) {
		for _, r := range ds.Records {
			if r.ID != "" {
				return ColumnID
			}
		}
	}
	if ds.Has(ColumnTaskName) {
		return ColumnTaskName
	}
	return ""
}

// Parse normalizes raw rows. The header is the first row, within the
// first headerScanRows, recognizing at least two columns.
func Parse(rows [][]string) (*Dataset, error) {
	headerIdx, mapping := findHeader(rows)
	if headerIdx < 0 {
		return nil, ErrNoHeader
	}
	log.Debugf("Dataset/Parse/Header found at row %d with %d columns", headerIdx+1, len(mapping))

	ds := &Dataset{
		Records: []*Record{},
		columns: make(map[Column]int, len(mapping)),
	}
	order := 0
	for _, c := range orderedColumns(mapping) {
		ds.columns[c] = order
		order++
	}

	for idx := headerIdx + 1; idx < len(rows); idx++ {
		row := rows[idx]
		if isBlankRow(row) {
			continue
		}
		ds.Records = append(ds.Records, newRecord(idx+1, row, mapping))
	}
	ds.identity = ds.detectIdentity()
	ds.checkColumns()
	log.Debugf("Dataset/Parse/Records loaded: %d", len(ds.Records))
	return ds, nil
}

func newRecord(rowNumber int, row []string, mapping map[Column]int) *Record {
	cell := func(c Column) string {
		idx, ok := mapping[c]
		if !ok || idx >= len(row) {
			return ""
		}
		return CleanText(row[idx])
	}
	r := &Record{
		Row:       rowNumber,
		Date:      ParseDate(cell(ColumnDate)),
		Sprint:    cell(ColumnSprint),
		Team:      cell(ColumnTeam),
		TaskName:  cell(ColumnTaskName),
		TaskLink:  cell(ColumnTaskLink),
		Status:    NormalizeStatus(cell(ColumnStatus)),
		Tester:    cell(ColumnTester),
		Developer: cell(ColumnDeveloper),
		ID:        cell(ColumnID),
	}
	for i := 1; i <= MaxReasonSlots; i++ {
		r.Reasons[i-1] = cell(ReasonColumn(i))
	}
	r.Errors, r.HasErrors = ParseErrorCount(cell(ColumnErrors))
	return r
}

func (ds *Dataset) checkColumns() {
	if !ds.Has(ColumnStatus) {
		ds.Warn("column %s not found: approval, rejection and error metrics are not available", ColumnStatus)
	}
	if !ds.Has(ColumnDate) {
		ds.Warn("column %s not found: retest history and date filters are not available", ColumnDate)
	}
	if ds.identity == "" {
		ds.Warn("columns %s and %s not found: retest history is not available", ColumnID, ColumnTaskName)
	}
	if !ds.Has(ColumnTeam) {
		ds.Warn("column %s not found: per-team breakdown is not available", ColumnTeam)
	}
	if !ds.Has(ColumnTester) {
		ds.Warn("column %s not found: per-tester breakdown is not available", ColumnTester)
	}
	if !ds.HasAnyReason() {
		ds.Warn("no rejection reason columns found: defect tally is not available")
	}
	if !ds.Has(ColumnErrors) {
		log.Debugf("Dataset/Parse/Column %s not found, errors are counted from reasons only", ColumnErrors)
	}
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
