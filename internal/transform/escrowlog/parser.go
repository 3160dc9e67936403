package escrowlog

import (
	"encoding/json"
	"fmt"
	"os"

	"escrowtrace/pkg/models"
)

// MalformedEventError reports one record the parser could not accept:
// a missing timestamp or event_type, or a consumed details field of the
// wrong shape. Fields the analyses never touch do not fail parsing.
type MalformedEventError struct {
	Index  int
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event at index %d: %s", e.Index, e.Reason)
}

// LoadSession reads a session log file and parses it.
func LoadSession(path string) (*models.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}
	return ParseSession(data)
}

// ParseSession parses a JSON array of instrumentation records into a
// Session. It fails on the first malformed record; callers that prefer
// to skip bad records use ParseSessionSkip.
func ParseSession(data []byte) (*models.Session, error) {
	raws, err := decodeArray(data)
	if err != nil {
		return nil, err
	}

	events := make([]*models.Event, 0, len(raws))
	for i, raw := range raws {
		event, reason := parseRecord(raw)
		if reason != "" {
			return nil, &MalformedEventError{Index: i, Reason: reason}
		}
		events = append(events, event)
	}
	return newSession(events), nil
}

// ParseSessionSkip parses like ParseSession but collects the indexes of
// malformed records and keeps the rest. Skipped indexes are returned so
// the caller can surface them; nothing is dropped silently.
func ParseSessionSkip(data []byte) (*models.Session, []int, error) {
	raws, err := decodeArray(data)
	if err != nil {
		return nil, nil, err
	}

	events := make([]*models.Event, 0, len(raws))
	var skipped []int
	for i, raw := range raws {
		event, reason := parseRecord(raw)
		if reason != "" {
			skipped = append(skipped, i)
			continue
		}
		events = append(events, event)
	}
	return newSession(events), skipped, nil
}

func decodeArray(data []byte) ([]map[string]interface{}, error) {
	var raws []map[string]interface{}
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("session log must be a JSON array of event objects: %w", err)
	}
	return raws, nil
}

func newSession(events []*models.Event) *models.Session {
	traceID := "unknown"
	for _, e := range events {
		if e.TraceID != "" {
			traceID = e.TraceID
			break
		}
	}
	return &models.Session{TraceID: traceID, Events: events}
}

// parseRecord converts one raw record into a typed event. A non-empty
// reason marks the record malformed.
func parseRecord(raw map[string]interface{}) (*models.Event, string) {
	ts, ok := getInt64(raw, "timestamp_ms", "timestamp")
	if !ok {
		return nil, "missing or non-numeric timestamp"
	}

	eventType, ok := getString(raw, "event_type")
	if !ok || eventType == "" {
		return nil, "missing event_type"
	}

	event := &models.Event{
		TimestampMS: ts,
		Type:        eventType,
	}
	event.TraceID, _ = getString(raw, "trace_id")
	if role, ok := getString(raw, "role"); ok {
		event.Role = models.NormalizeRole(role)
	} else {
		event.Role = models.RoleUnknown
	}
	if port, ok := getInt64(raw, "rpc_port"); ok {
		event.RPCPort = int(port)
	}

	details, _ := raw["details"].(map[string]interface{})
	if reason := parseDetails(event, details); reason != "" {
		return nil, reason
	}
	return event, ""
}

func parseDetails(event *models.Event, details map[string]interface{}) string {
	switch event.Category() {
	case models.CategoryRPC:
		return parseRPCDetails(event, details)
	case models.CategorySnapshot:
		return parseSnapshotDetails(event, details)
	case models.CategoryErrorFinal:
		return parseErrorDetails(event, details)
	case models.CategoryPollution:
		return parsePollutionDetails(event, details)
	default:
		event.Extra = copyExtra(details, nil)
		return ""
	}
}

func parseRPCDetails(event *models.Event, details map[string]interface{}) string {
	rpc := &models.RPCDetails{Method: "unknown"}

	if v, present := details["method"]; present {
		s, ok := v.(string)
		if !ok {
			return "rpc method must be a string"
		}
		rpc.Method = s
	} else if event.Type == models.EventRPCCallEnd {
		return "rpc_call_end missing method"
	}

	if event.Type == models.EventRPCCallEnd {
		v, present := details["duration_ms"]
		if !present {
			return "rpc_call_end missing duration_ms"
		}
		d, ok := toFloat(v)
		if !ok {
			return "duration_ms must be a number"
		}
		if d < 0 {
			return "duration_ms must be non-negative"
		}
		rpc.DurationMS = d

		if v, present := details["success"]; present {
			b, ok := v.(bool)
			if !ok {
				return "success must be a boolean"
			}
			rpc.Success = b
		}
	}

	event.RPC = rpc
	event.Extra = copyExtra(details, map[string]struct{}{"method": {}, "duration_ms": {}, "success": {}})
	return ""
}

func parseSnapshotDetails(event *models.Event, details map[string]interface{}) string {
	snap := &models.SnapshotDetails{AddressHash: "unknown"}

	if v, present := details["is_multisig"]; present {
		b, ok := v.(bool)
		if !ok {
			return "is_multisig must be a boolean"
		}
		snap.IsMultisig = b
	}

	if v, present := details["balance"]; present {
		arr, ok := v.([]interface{})
		if !ok || len(arr) < 2 {
			return "balance must be a [total, unlocked] array"
		}
		total, okT := toUint64(arr[0])
		unlocked, okU := toUint64(arr[1])
		if !okT || !okU {
			return "balance elements must be non-negative numbers"
		}
		snap.Balance = models.Balance{Total: total, Unlocked: unlocked}
	}

	if v, present := details["address_hash"]; present {
		s, ok := v.(string)
		if !ok {
			return "address_hash must be a string"
		}
		snap.AddressHash = s
	}

	if v, present := details["collection_time_ms"]; present {
		d, ok := toFloat(v)
		if !ok {
			return "collection_time_ms must be a number"
		}
		snap.CollectionTimeMS = d
	}

	event.Snapshot = snap
	event.Extra = copyExtra(details, map[string]struct{}{
		"is_multisig": {}, "balance": {}, "address_hash": {}, "collection_time_ms": {},
	})
	return ""
}

func parseErrorDetails(event *models.Event, details map[string]interface{}) string {
	errDetails := &models.ErrorDetails{Message: "unknown"}

	if v, present := details["error"]; present {
		s, ok := v.(string)
		if !ok {
			return "error must be a string"
		}
		errDetails.Message = s
	}

	if v, present := details["context"]; present {
		m, ok := v.(map[string]interface{})
		if !ok {
			return "context must be an object"
		}
		errDetails.Context = m
	}

	event.Error = errDetails
	event.Extra = copyExtra(details, map[string]struct{}{"error": {}, "context": {}})
	return ""
}

func parsePollutionDetails(event *models.Event, details map[string]interface{}) string {
	pollution := &models.PollutionDetails{Reason: "unknown"}

	if v, present := details["reason"]; present {
		s, ok := v.(string)
		if !ok {
			return "reason must be a string"
		}
		pollution.Reason = s
	}

	event.Pollution = pollution
	event.Extra = copyExtra(details, map[string]struct{}{"reason": {}})
	return ""
}

// copyExtra preserves detail keys the typed payload did not consume.
func copyExtra(details map[string]interface{}, consumed map[string]struct{}) map[string]interface{} {
	if len(details) == 0 {
		return nil
	}
	var out map[string]interface{}
	for k, v := range details {
		if _, ok := consumed[k]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]interface{}, len(details))
		}
		out[k] = v
	}
	return out
}

func getString(root map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := root[key]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func getInt64(root map[string]interface{}, keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := root[key]; ok {
			if f, ok := toFloat(v); ok {
				return int64(f), true
			}
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toUint64(v interface{}) (uint64, bool) {
	f, ok := toFloat(v)
	if !ok || f < 0 {
		return 0, false
	}
	return uint64(f), true
}
