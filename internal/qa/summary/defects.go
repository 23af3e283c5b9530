package summary

import (
	"sort"

	"github.com/qa-tracking/qa-report-tool/internal/qa/dataset"
)

// DefectTally counts defect occurrences indexed by normalized reason text.
type DefectTally map[string]int

// NewDefectTally counts one occurrence per populated, non-sentinel reason
// slot of each record.
func NewDefectTally(records []*dataset.Record) DefectTally {
	tally := make(DefectTally)
	for _, r := range records {
		tally.Add(r)
	}
	return tally
}

// Add counts the reasons of a single record.
func (dt DefectTally) Add(r *dataset.Record) {
	for _, reason := range r.DefectReasons() {
		dt[reason]++
	}
}

// Total returns the number of defect occurrences.
func (dt DefectTally) Total() int {
	total := 0
	for _, cnt := range dt {
		total += cnt
	}
	return total
}

// Sorted ranks the reasons by count, ties ordered by name.
func (dt DefectTally) Sorted() SortedList {
	rank := make(SortedList, 0, len(dt))
	for k, v := range dt {
		rank = append(rank, SortedDict{Key: k, Value: v})
	}
	sort.Sort(sort.Reverse(rank))
	return rank
}

// Top returns at most n reasons with the highest counts.
func (dt DefectTally) Top(n int) SortedList {
	rank := dt.Sorted()
	if n >= 0 && len(rank) > n {
		rank = rank[:n]
	}
	return rank
}

// MergeDefectTallies sums tallies, nil values are ignored.
func MergeDefectTallies(tallies ...DefectTally) DefectTally {
	merged := make(DefectTally)
	for _, dt := range tallies {
		for k, v := range dt {
			merged[k] += v
		}
	}
	return merged
}

// SortedDict stores a key/value pair to be ranked by value.
type SortedDict struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// SortedList ranks SortedDict items by value, breaking ties by key in
// reverse so that sort.Reverse yields ascending names.
type SortedList []SortedDict

func (p SortedList) Len() int      { return len(p) }
func (p SortedList) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p SortedList) Less(i, j int) bool {
	if p[i].Value == p[j].Value {
		return p[i].Key > p[j].Key
	}
	return p[i].Value < p[j].Value
}
