package models

import "fmt"

// Session is one escrow transaction's complete, ordered instrumentation
// event log. It is constructed once by the log parser and never
// mutated; every analysis is a read-only pass over Events.
type Session struct {
	TraceID string   `json:"trace_id"`
	Events  []*Event `json:"events"`
}

// Len returns the number of events in the session.
func (s *Session) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Events)
}

// TimestampWarning flags an event whose timestamp precedes its
// predecessor. Unsorted input is a producer bug, not a fatal condition;
// every analysis still runs best-effort.
type TimestampWarning struct {
	Index           int   `json:"index"`
	TimestampMS     int64 `json:"timestamp_ms"`
	PrevTimestampMS int64 `json:"prev_timestamp_ms"`
}

func (w TimestampWarning) String() string {
	return fmt.Sprintf("event %d timestamp %dms precedes predecessor %dms", w.Index, w.TimestampMS, w.PrevTimestampMS)
}

// CheckMonotonic scans the event sequence and returns a warning for
// every position where the timestamp decreases. An empty result means
// the session is sorted as stored.
func (s *Session) CheckMonotonic() []TimestampWarning {
	if s.Len() < 2 {
		return nil
	}
	var out []TimestampWarning
	prev := s.Events[0].TimestampMS
	for i := 1; i < len(s.Events); i++ {
		ts := s.Events[i].TimestampMS
		if ts < prev {
			out = append(out, TimestampWarning{Index: i, TimestampMS: ts, PrevTimestampMS: prev})
		}
		prev = ts
	}
	return out
}

// MixedTraceIDs returns the indexes of events whose trace_id differs
// from the session's. A constant trace_id is expected but not enforced;
// mismatches surface as findings, not errors.
func (s *Session) MixedTraceIDs() []int {
	if s == nil || s.TraceID == "" {
		return nil
	}
	var out []int
	for i, e := range s.Events {
		if e.TraceID != "" && e.TraceID != s.TraceID {
			out = append(out, i)
		}
	}
	return out
}

// CountByType tallies events per event type.
func (s *Session) CountByType() map[string]int {
	out := make(map[string]int, 16)
	for _, e := range s.Events {
		out[e.Type]++
	}
	return out
}
