package models

import "time"

// TimelineEntry is one row of the reconstructed timeline. RelativeMS is
// the offset from the session's first event; it is negative only when
// the input is unsorted, which the accompanying warnings flag.
type TimelineEntry struct {
	Index      int    `json:"index"`
	RelativeMS int64  `json:"relative_ms"`
	Event      *Event `json:"event"`
}

// MethodStats aggregates completed RPC calls for one method.
type MethodStats struct {
	Method  string      `json:"method"`
	Count   int         `json:"count"`
	Success int         `json:"success"`
	Failure int         `json:"failure"`
	AvgMS   float64     `json:"avg_ms"`
	MinMS   float64     `json:"min_ms"`
	MaxMS   float64     `json:"max_ms"`
	Roles   []RoleStats `json:"roles,omitempty"`
}

// RoleStats is the per-role breakdown within one method.
type RoleStats struct {
	Role    string  `json:"role"`
	Count   int     `json:"count"`
	Success int     `json:"success"`
	Failure int     `json:"failure"`
	AvgMS   float64 `json:"avg_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// SnapshotEntry is one snapshot in a role's lineage, in session order.
type SnapshotEntry struct {
	EventIndex  int              `json:"event_index"`
	EventType   string           `json:"event_type"`
	TimestampMS int64            `json:"timestamp_ms"`
	Snapshot    *SnapshotDetails `json:"snapshot"`
}

// Lineage anomaly kinds.
const (
	AnomalyMultisigRegression = "multisig_regression"
	AnomalyAddressChange      = "address_change"
)

// LineageAnomaly flags an illegal transition between two consecutive
// snapshots of the same role. Position is the index within the role's
// own subsequence, anchored at the later snapshot.
type LineageAnomaly struct {
	Role       string `json:"role"`
	Position   int    `json:"position"`
	EventIndex int    `json:"event_index"`
	Kind       string `json:"kind"`
	Detail     string `json:"detail"`
}

// RoleLineage is the ordered snapshot subsequence of one role plus the
// anomalies detected within it.
type RoleLineage struct {
	Role      string           `json:"role"`
	Snapshots []SnapshotEntry  `json:"snapshots"`
	Anomalies []LineageAnomaly `json:"anomalies,omitempty"`
}

// AnomalyRecord is one extracted error or pollution event. The
// type-specific fields mirror the event's payload.
type AnomalyRecord struct {
	EventIndex  int                    `json:"event_index"`
	TimestampMS int64                  `json:"timestamp_ms"`
	EventType   string                 `json:"event_type"`
	Role        string                 `json:"role"`
	Error       string                 `json:"error,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Method      string                 `json:"method,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
}

// TypeCount is one event type's occurrence count.
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}

// TypeCountDiff is one row of the comparator's distribution diff. Diff
// is second minus first.
type TypeCountDiff struct {
	EventType string `json:"event_type"`
	First     int    `json:"first"`
	Second    int    `json:"second"`
	Diff      int    `json:"diff"`
}

// Divergence is the first position where two sessions' (event_type,
// role) sequences differ, with both conflicting events.
type Divergence struct {
	Index  int    `json:"index"`
	First  *Event `json:"first"`
	Second *Event `json:"second"`
}

// CompareResult is the comparator's full output. Identical is true only
// when both sessions have the same length and an identical type/role
// sequence at every index; payload differences are deliberately
// ignored here.
type CompareResult struct {
	FirstTraceID    string          `json:"first_trace_id,omitempty"`
	SecondTraceID   string          `json:"second_trace_id,omitempty"`
	FirstCount      int             `json:"first_count"`
	SecondCount     int             `json:"second_count"`
	Distribution    []TypeCountDiff `json:"distribution"`
	Divergence      *Divergence     `json:"divergence,omitempty"`
	LengthMismatch  bool            `json:"length_mismatch"`
	TraceIDMismatch bool            `json:"trace_id_mismatch"`
	Identical       bool            `json:"identical"`
}

// RuleTag annotates an event matched by a detection rule.
type RuleTag struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// RuleMatch records rule tags attached to one event.
type RuleMatch struct {
	EventIndex int       `json:"event_index"`
	EventType  string    `json:"event_type"`
	Role       string    `json:"role,omitempty"`
	Tags       []RuleTag `json:"tags"`
}

// SessionReport is the envelope written by the analysis pipeline: every
// derived structure for one session, plus load-time findings.
type SessionReport struct {
	TraceID         string             `json:"trace_id"`
	EventCount      int                `json:"event_count"`
	CountsByType    []TypeCount        `json:"counts_by_type,omitempty"`
	Timeline        []TimelineEntry    `json:"timeline,omitempty"`
	RPCStats        []MethodStats      `json:"rpc_stats,omitempty"`
	Lineages        []RoleLineage      `json:"lineages,omitempty"`
	Anomalies       []AnomalyRecord    `json:"anomalies,omitempty"`
	RuleMatches     []RuleMatch        `json:"rule_matches,omitempty"`
	Warnings        []TimestampWarning `json:"timestamp_warnings,omitempty"`
	MixedTraceIDs   []int              `json:"mixed_trace_ids,omitempty"`
	MalformedEvents []int              `json:"malformed_events,omitempty"`
	Severity        string             `json:"severity"`
	GeneratedAt     time.Time          `json:"generated_at,omitempty"`
}
