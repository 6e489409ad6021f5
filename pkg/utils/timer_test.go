package utils

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimer_Phases(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("HeapGraphAnalysis", WithClock(clock))

	ingest := timer.Start("ingest")
	clock.Advance(120 * time.Millisecond)
	ingest.Stop()

	build := timer.Start("flamegraphs")
	clock.Advance(30 * time.Millisecond)
	build.Stop()

	assert.Equal(t, 120*time.Millisecond, timer.GetDuration("ingest"))
	assert.Equal(t, 30*time.Millisecond, timer.GetDuration("flamegraphs"))
	assert.Equal(t, 150*time.Millisecond, timer.TotalDuration())
}

func TestTimer_StopIsIdempotent(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("HeapGraphAnalysis", WithClock(clock))

	phase := timer.Start("ingest")
	clock.Advance(50 * time.Millisecond)
	first := phase.Stop()

	clock.Advance(time.Second)
	second := phase.Stop()

	assert.Equal(t, 50*time.Millisecond, first)
	assert.Equal(t, first, second)
}

func TestTimer_UnknownPhase(t *testing.T) {
	timer := NewTimer("HeapGraphAnalysis")
	assert.Zero(t, timer.GetDuration("no-such-phase"))
}

func TestTimer_Summary(t *testing.T) {
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("HeapGraphAnalysis", WithClock(clock))

	phase := timer.Start("ingest")
	clock.Advance(10 * time.Millisecond)
	phase.Stop()

	s := timer.Summary()
	assert.Contains(t, s, "HeapGraphAnalysis Timing")
	assert.Contains(t, s, "Phase 1 - ingest: 10ms")
	assert.Contains(t, s, "Total: 10ms")
}

func TestTimer_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	clock := NewMockClock(time.Unix(0, 0))
	timer := NewTimer("HeapGraphAnalysis",
		WithClock(clock), WithLogger(NewDefaultLogger(LevelInfo, &buf)))

	phase := timer.Start("flamegraphs")
	clock.Advance(5 * time.Millisecond)
	phase.Stop()

	timer.PrintSummary()
	assert.Contains(t, buf.String(), "Phase 1 - flamegraphs: 5ms")
}

func TestTimer_DefaultLoggerIsSilent(t *testing.T) {
	// Without WithLogger the summary goes nowhere; must not panic.
	timer := NewTimer("HeapGraphAnalysis")
	timer.Start("ingest").Stop()
	timer.PrintSummary()
}
