package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed stage of an analysis run.
type Phase struct {
	Name     string
	Start    time.Time
	Duration time.Duration
	done     bool
}

// PhaseTimer stops one running phase.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop records the phase duration. Repeated calls keep the first result.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stopPhase(pt.name)
}

// Timer tracks the wall time of an analysis run split into named phases,
// typically ingest and flamegraph construction.
type Timer struct {
	mu      sync.Mutex
	name    string
	started time.Time
	phases  []*Phase
	byName  map[string]*Phase
	logger  Logger
	clock   Clock
}

// TimerOption configures a Timer.
type TimerOption func(*Timer)

// WithLogger directs PrintSummary to the given logger.
func WithLogger(logger Logger) TimerOption {
	return func(t *Timer) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock substitutes the clock, for tests.
func WithClock(clock Clock) TimerOption {
	return func(t *Timer) {
		t.clock = clock
	}
}

// NewTimer creates a named timer and starts its total clock.
func NewTimer(name string, opts ...TimerOption) *Timer {
	t := &Timer{
		name:   name,
		byName: make(map[string]*Phase),
		logger: &NullLogger{},
		clock:  NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.started = t.clock.Now()
	return t
}

// Start begins a new phase and returns its stopper.
func (t *Timer) Start(name string) *PhaseTimer {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := &Phase{Name: name, Start: t.clock.Now()}
	t.phases = append(t.phases, p)
	t.byName[name] = p

	return &PhaseTimer{timer: t, name: name}
}

func (t *Timer) stopPhase(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.byName[name]
	if !ok {
		return 0
	}
	if !p.done {
		p.Duration = t.clock.Since(p.Start)
		p.done = true
	}
	return p.Duration
}

// GetDuration returns the recorded duration of a phase.
func (t *Timer) GetDuration(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, ok := t.byName[name]; ok {
		return p.Duration
	}
	return 0
}

// TotalDuration returns the wall time since the timer was created.
func (t *Timer) TotalDuration() time.Duration {
	return t.clock.Since(t.started)
}

// Summary formats the phase durations for logs.
func (t *Timer) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s Timing ===\n", t.name)
	for i, p := range t.phases {
		fmt.Fprintf(&sb, "Phase %d - %s: %v\n", i+1, p.Name, p.Duration)
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.clock.Since(t.started))
	return sb.String()
}

// PrintSummary writes the phase durations through the configured logger.
func (t *Timer) PrintSummary() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.logger.Info("=== %s Timing ===", t.name)
	for i, p := range t.phases {
		t.logger.Info("Phase %d - %s: %v", i+1, p.Name, p.Duration)
	}
	t.logger.Info("Total: %v", t.clock.Since(t.started))
}
