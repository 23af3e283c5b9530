package metrics

import (
	"sync"
	"time"
)

// Timers records the wall clock time spent by each pipeline stage.
type Timers struct {
	mu     sync.Mutex
	Stages map[string]*Timer `json:"stages,omitempty"`
	Order  []string          `json:"order,omitempty"`

	now func() time.Time
}

func NewTimers() *Timers {
	return &Timers{
		Stages: make(map[string]*Timer),
		now:    time.Now,
	}
}

// Start begins (or restarts) the timer of a stage.
func (ts *Timers) Start(stage string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, ok := ts.Stages[stage]; !ok {
		ts.Order = append(ts.Order, stage)
	}
	ts.Stages[stage] = &Timer{start: ts.now()}
}

// Stop ends the timer of a stage and returns its duration. Stopping an
// unknown stage returns zero.
func (ts *Timers) Stop(stage string) time.Duration {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.Stages[stage]
	if !ok {
		return 0
	}
	d := ts.now().Sub(t.start)
	t.Seconds = d.Seconds()
	return d
}

// Track starts the stage and returns the function stopping it.
func (ts *Timers) Track(stage string) func() {
	ts.Start(stage)
	return func() { ts.Stop(stage) }
}

// Total is the sum of the stopped stages, in seconds.
func (ts *Timers) Total() float64 {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	total := 0.0
	for _, t := range ts.Stages {
		total += t.Seconds
	}
	return total
}

type Timer struct {
	start time.Time

	Seconds float64 `json:"seconds"`
}
