package summary

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
)

// Labels used to bucket records with an empty grouping field.
const (
	NoTeam      = "(no team)"
	NoTester    = "(unassigned)"
	NoDeveloper = "(unassigned)"
	NoSprint    = "(no sprint)"
)

func TeamLabel(r *dataset.Record) string {
	return labelOr(r.Team, NoTeam)
}

func TesterLabel(r *dataset.Record) string {
	return labelOr(r.Tester, NoTester)
}

func DeveloperLabel(r *dataset.Record) string {
	return labelOr(r.Developer, NoDeveloper)
}

func SprintLabel(r *dataset.Record) string {
	return labelOr(r.Sprint, NoSprint)
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// Percent returns part/total*100 rounded to two places, 0 when total is 0.
func Percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	perc, _ := stats.Round(float64(part)*100/float64(total), 2)
	return perc
}

// Counters holds the test counters of a group of records.
type Counters struct {
	Name          string  `json:"name"`
	Tests         int     `json:"tests"`
	Approved      int     `json:"approved"`
	Rejected      int     `json:"rejected"`
	Other         int     `json:"other"`
	Errors        int     `json:"errors"`
	Defects       int     `json:"defects"`
	ApprovalRate  float64 `json:"approvalRate"`
	RejectionRate float64 `json:"rejectionRate"`
}

func (c *Counters) add(r *dataset.Record) {
	c.Tests++
	switch {
	case r.IsApproved():
		c.Approved++
	case r.IsRejected():
		c.Rejected++
	default:
		c.Other++
	}
	n, _ := RecordErrors(r)
	c.Errors += n
	c.Defects += len(r.DefectReasons())
}

func (c *Counters) finish() {
	c.ApprovalRate = Percent(c.Approved, c.Tests)
	c.RejectionRate = Percent(c.Rejected, c.Tests)
}

// NewCounters computes the counters of all records.
func NewCounters(name string, records []*dataset.Record) *Counters {
	c := &Counters{Name: name}
	for _, r := range records {
		c.add(r)
	}
	c.finish()
	return c
}

// Breakdown groups the records by the label function. Groups are sorted by
// number of tests, then by name.
func Breakdown(records []*dataset.Record, label func(*dataset.Record) string) []*Counters {
	groups := make(map[string]*Counters)
	for _, r := range records {
		name := label(r)
		if _, ok := groups[name]; !ok {
			groups[name] = &Counters{Name: name}
		}
		groups[name].add(r)
	}
	items := make([]*Counters, 0, len(groups))
	for _, c := range groups {
		c.finish()
		items = append(items, c)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Tests == items[j].Tests {
			return items[i].Name < items[j].Name
		}
		return items[i].Tests > items[j].Tests
	})
	return items
}

// SprintBreakdown groups the records by sprint keeping the order in which
// sprints first appear, which follows the sheet chronology.
func SprintBreakdown(records []*dataset.Record) []*Counters {
	order := []string{}
	groups := make(map[string]*Counters)
	for _, r := range records {
		name := SprintLabel(r)
		if _, ok := groups[name]; !ok {
			groups[name] = &Counters{Name: name}
			order = append(order, name)
		}
		groups[name].add(r)
	}
	items := make([]*Counters, 0, len(order))
	for _, name := range order {
		groups[name].finish()
		items = append(items, groups[name])
	}
	return items
}

// TaskItem is one entry of the delivered and ready for publication listings.
type TaskItem struct {
	Identity string    `json:"identity"`
	TaskName string    `json:"taskName"`
	TaskLink string    `json:"taskLink,omitempty"`
	Team     string    `json:"team"`
	Tester   string    `json:"tester"`
	Sprint   string    `json:"sprint,omitempty"`
	Date     time.Time `json:"date,omitempty"`
}

// TaskListing lists the records matching the predicate, de-duplicated by
// task identity keeping the most recent record. Records without identity
// are listed individually. Items are sorted by date, most recent first.
func TaskListing(ds *dataset.Dataset, match func(*dataset.Record) bool) []*TaskItem {
	latest := make(map[string]*dataset.Record)
	order := []string{}
	anonymous := []*dataset.Record{}
	for _, r := range ds.Records {
		if !match(r) {
			continue
		}
		key := ds.Identity(r)
		if key == "" {
			anonymous = append(anonymous, r)
			continue
		}
		prev, ok := latest[key]
		if !ok {
			order = append(order, key)
			latest[key] = r
			continue
		}
		if !r.Date.Before(prev.Date) {
			latest[key] = r
		}
	}

	items := make([]*TaskItem, 0, len(order)+len(anonymous))
	for _, key := range order {
		items = append(items, newTaskItem(key, latest[key]))
	}
	for _, r := range anonymous {
		items = append(items, newTaskItem("", r))
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date.After(items[j].Date) })
	return items
}

func newTaskItem(key string, r *dataset.Record) *TaskItem {
	return &TaskItem{
		Identity: key,
		TaskName: r.TaskName,
		TaskLink: r.TaskLink,
		Team:     TeamLabel(r),
		Tester:   TesterLabel(r),
		Sprint:   r.Sprint,
		Date:     r.Date,
	}
}
