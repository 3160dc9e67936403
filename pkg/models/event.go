package models

import "strings"

// Event type tags emitted by the escrow instrumentation collector.
const (
	EventRPCCallStart            = "RPC_CALL_START"
	EventRPCCallEnd              = "RPC_CALL_END"
	EventRPCCallError            = "RPC_CALL_ERROR"
	EventSnapshotPreRound1       = "SNAPSHOT_PRE_ROUND1"
	EventSnapshotPostMakeMulti   = "SNAPSHOT_POST_MAKE_MULTISIG"
	EventSnapshotPreRound2       = "SNAPSHOT_PRE_ROUND2"
	EventSnapshotPostExportMulti = "SNAPSHOT_POST_EXPORT_MULTISIG"
	EventSnapshotPreRound3       = "SNAPSHOT_PRE_ROUND3"
	EventSnapshotPostImportMulti = "SNAPSHOT_POST_IMPORT_MULTISIG"
	EventSnapshotFinal           = "SNAPSHOT_FINAL"
	EventStateChange             = "STATE_CHANGE"
	EventFileOperation           = "FILE_OPERATION"
	EventCachePollution          = "CACHE_POLLUTION_DETECTED"
	EventErrorFinal              = "ERROR_FINAL"
	EventCustom                  = "CUSTOM"
)

// Escrow participant roles.
const (
	RoleBuyer       = "buyer"
	RoleVendor      = "vendor"
	RoleArbiter     = "arbiter"
	RoleCoordinator = "coordinator"
	RoleUnknown     = "unknown"
)

var knownSnapshotTypes = map[string]struct{}{
	EventSnapshotPreRound1:       {},
	EventSnapshotPostMakeMulti:   {},
	EventSnapshotPreRound2:       {},
	EventSnapshotPostExportMulti: {},
	EventSnapshotPreRound3:       {},
	EventSnapshotPostImportMulti: {},
	EventSnapshotFinal:           {},
}

// Category groups event types for rendering and dispatch.
type Category int

const (
	CategoryRPC Category = iota
	CategorySnapshot
	CategoryErrorFinal
	CategoryPollution
	CategoryOther
)

// Event is one instrumentation record from an escrow session log.
// At most one of the typed detail payloads is populated, matching the
// event type; keys the parser does not recognize are preserved in Extra.
type Event struct {
	TraceID     string `json:"trace_id,omitempty"`
	TimestampMS int64  `json:"timestamp_ms"`
	Type        string `json:"event_type"`
	Role        string `json:"role,omitempty"`
	RPCPort     int    `json:"rpc_port,omitempty"`

	RPC       *RPCDetails       `json:"rpc,omitempty"`
	Snapshot  *SnapshotDetails  `json:"snapshot,omitempty"`
	Error     *ErrorDetails     `json:"error,omitempty"`
	Pollution *PollutionDetails `json:"pollution,omitempty"`

	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Category classifies the event for rendering.
func (e *Event) Category() Category {
	switch e.Type {
	case EventRPCCallStart, EventRPCCallEnd, EventRPCCallError:
		return CategoryRPC
	case EventErrorFinal:
		return CategoryErrorFinal
	case EventCachePollution:
		return CategoryPollution
	}
	if e.IsSnapshot() {
		return CategorySnapshot
	}
	return CategoryOther
}

// IsSnapshot reports whether the event carries a wallet state snapshot.
// Types outside the known sub-type set still classify as snapshots when
// they contain the SNAPSHOT marker, since producers add new sub-types.
func (e *Event) IsSnapshot() bool {
	if _, ok := knownSnapshotTypes[e.Type]; ok {
		return true
	}
	return strings.Contains(e.Type, "SNAPSHOT")
}

// KnownSnapshotType reports whether t is one of the documented snapshot
// sub-types, as opposed to a catch-all SNAPSHOT match.
func KnownSnapshotType(t string) bool {
	_, ok := knownSnapshotTypes[t]
	return ok
}

// NormalizeRole maps a raw role string to a known participant label.
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleBuyer:
		return RoleBuyer
	case RoleVendor:
		return RoleVendor
	case RoleArbiter:
		return RoleArbiter
	case RoleCoordinator:
		return RoleCoordinator
	default:
		return RoleUnknown
	}
}

// RPCDetails is the payload of RPC_CALL_START, RPC_CALL_END and
// RPC_CALL_ERROR events. DurationMS and Success are meaningful only on
// RPC_CALL_END.
type RPCDetails struct {
	Method     string  `json:"method"`
	DurationMS float64 `json:"duration_ms"`
	Success    bool    `json:"success"`
}

// Balance is a wallet balance pair in atomic units, serialized as a
// two-element array [total, unlocked] on the wire.
type Balance struct {
	Total    uint64
	Unlocked uint64
}

// SnapshotDetails is the payload of snapshot events.
type SnapshotDetails struct {
	IsMultisig       bool    `json:"is_multisig"`
	Balance          Balance `json:"balance"`
	AddressHash      string  `json:"address_hash"`
	CollectionTimeMS float64 `json:"collection_time_ms"`
}

// ShortAddressHash returns the display form of the address hash, the
// first 16 characters as used in the producer's own logs.
func (s *SnapshotDetails) ShortAddressHash() string {
	if len(s.AddressHash) <= 16 {
		return s.AddressHash
	}
	return s.AddressHash[:16]
}

// ErrorDetails is the payload of ERROR_FINAL events.
type ErrorDetails struct {
	Message string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// PollutionDetails is the payload of CACHE_POLLUTION_DETECTED events.
type PollutionDetails struct {
	Reason string `json:"reason"`
}
