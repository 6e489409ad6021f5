package heapgraph

// Stat names a soft-failure counter. Anomalies in the input stream are
// counted rather than surfaced as errors so that one bad record cannot
// take down ingestion of the rest of the capture.
type Stat string

const (
	// StatLocationParseError counts install locations that did not follow
	// any known path convention.
	StatLocationParseError Stat = "heap_graph_location_parse_error"
	// StatNonFinalizedGraph counts snapshot-identity mismatches and
	// sequences that were still open at end of input.
	StatNonFinalizedGraph Stat = "heap_graph_non_finalized_graph"
	// StatMissingPacket counts gaps in the per-sequence packet index.
	StatMissingPacket Stat = "heap_graph_missing_packet"
	// StatInvalidStringID counts dangling interned-string references.
	StatInvalidStringID Stat = "heap_graph_invalid_string_id"
)

// Stats holds the named soft-failure counters for one store.
type Stats struct {
	counters map[Stat]int64
}

// Increment adds one to the named counter.
func (s *Stats) Increment(stat Stat) {
	if s.counters == nil {
		s.counters = make(map[Stat]int64)
	}
	s.counters[stat]++
}

// Get returns the current value of the named counter.
func (s *Stats) Get(stat Stat) int64 {
	return s.counters[stat]
}

// Snapshot returns a copy of all non-zero counters keyed by name.
func (s *Stats) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(s.counters))
	for stat, v := range s.counters {
		out[string(stat)] = v
	}
	return out
}
