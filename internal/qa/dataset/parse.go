package dataset

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Excel serial dates accepted as dates: 1900-03-01 .. 9999-12-31.
const (
	minExcelSerial = 61
	maxExcelSerial = 2958465
)

var dateLayouts = []string{
	"02/01/2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
	"2/1/2006",
	"02/01/06",
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// emptyValues are cell values exported by spreadsheet tools for null cells.
var emptyValues = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
	"nat":  {},
}

// sentinelReasons denote "no real defect" and are never counted.
var sentinelReasons = map[string]struct{}{
	"aprovada":   {},
	"sem recusa": {},
}

// CleanText trims the cell and maps null markers to the empty string.
func CleanText(v string) string {
	v = strings.TrimSpace(v)
	if _, ok := emptyValues[strings.ToLower(v)]; ok {
		return ""
	}
	return v
}

// ParseDate parses day-first dates and Excel serial numbers. The zero time
// is returned when the value can't be parsed.
func ParseDate(v string) time.Time {
	v = CleanText(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if serial >= minExcelSerial && serial <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

// ParseErrorCount parses the error column. Decimal commas are accepted.
// Values that are not finite numbers are coerced to zero and reported as
// missing.
func ParseErrorCount(v string) (float64, bool) {
	v = CleanText(v)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// knownStatuses maps the folded status to its canonical value.
var knownStatuses = map[string]Status{
	FoldKey(string(StatusApproved)):            StatusApproved,
	FoldKey(string(StatusRejected)):            StatusRejected,
	FoldKey(string(StatusReadyForPublication)): StatusReadyForPublication,
}

// NormalizeStatus upper-cases the status and collapses whitespace. Known
// statuses match regardless of accents.
func NormalizeStatus(v string) Status {
	v = CleanText(v)
	if s, ok := knownStatuses[FoldKey(v)]; ok {
		return s
	}
	return Status(strings.ToUpper(strings.Join(strings.Fields(v), " ")))
}

// DefectReason normalizes a reason slot value. It returns false for empty
// values and sentinels.
func DefectReason(v string) (string, bool) {
	reason := strings.ToLower(CleanText(v))
	if reason == "" {
		return "", false
	}
	if _, ok := sentinelReasons[reason]; ok {
		return "", false
	}
	return reason, true
}

// IsSentinelReason reports whether the text denotes "no real defect".
func IsSentinelReason(v string) bool {
	_, ok := sentinelReasons[strings.ToLower(strings.TrimSpace(v))]
	return ok
}
