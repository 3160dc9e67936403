package rules

import (
	"testing"

	"escrowtrace/pkg/models"
)

type stubEngine struct {
	matchType string
	tag       models.RuleTag
}

func (s *stubEngine) Apply(event *models.Event) []models.RuleTag {
	if event.Type == s.matchType {
		return []models.RuleTag{s.tag}
	}
	return nil
}

func TestEvaluateSessionCollectsMatchesInOrder(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{Type: models.EventRPCCallEnd, Role: models.RoleBuyer},
			{Type: models.EventCachePollution, Role: models.RoleVendor},
			{Type: models.EventCachePollution, Role: models.RoleArbiter},
		},
	}

	engine := &stubEngine{
		matchType: models.EventCachePollution,
		tag:       models.RuleTag{ID: "pollution", Name: "Cache pollution", Severity: "high"},
	}

	matches := EvaluateSession(session, engine)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].EventIndex != 1 || matches[1].EventIndex != 2 {
		t.Fatalf("unexpected match indexes: %+v", matches)
	}
	if matches[0].Role != models.RoleVendor || matches[1].Role != models.RoleArbiter {
		t.Fatalf("unexpected match roles: %+v", matches)
	}
	if matches[0].Tags[0].ID != "pollution" {
		t.Fatalf("unexpected tag: %+v", matches[0].Tags)
	}
}

func TestEvaluateSessionNoopEngine(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events:  []*models.Event{{Type: models.EventErrorFinal}},
	}

	if matches := EvaluateSession(session, &NoopEngine{}); matches != nil {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestEvaluateSessionNilEngine(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events:  []*models.Event{{Type: models.EventErrorFinal}},
	}

	if matches := EvaluateSession(session, nil); matches != nil {
		t.Fatalf("expected no matches with nil engine, got %+v", matches)
	}
}

func TestSigmaEventFromFlattensTypedPayloads(t *testing.T) {
	event := &models.Event{
		TraceID: "t-1",
		Type:    models.EventRPCCallEnd,
		Role:    models.RoleBuyer,
		RPCPort: 18082,
		RPC:     &models.RPCDetails{Method: "make_multisig", DurationMS: 42.5, Success: false},
		Extra:   map[string]interface{}{"attempt": 3},
	}

	fields := sigmaEventFrom(event)
	if fields["event_type"] != models.EventRPCCallEnd || fields["role"] != models.RoleBuyer {
		t.Fatalf("unexpected base fields: %+v", fields)
	}
	if fields["method"] != "make_multisig" || fields["duration_ms"] != 42.5 || fields["success"] != false {
		t.Fatalf("unexpected rpc fields: %+v", fields)
	}
	if fields["attempt"] != 3 {
		t.Fatalf("expected extra keys exposed, got %+v", fields)
	}
}

func TestSigmaEventFromSnapshotAndPollution(t *testing.T) {
	snapshot := &models.Event{
		Type:     models.EventSnapshotFinal,
		Role:     models.RoleVendor,
		Snapshot: &models.SnapshotDetails{IsMultisig: true, AddressHash: "abcd"},
	}
	fields := sigmaEventFrom(snapshot)
	if fields["is_multisig"] != true || fields["address_hash"] != "abcd" {
		t.Fatalf("unexpected snapshot fields: %+v", fields)
	}

	pollution := &models.Event{
		Type:      models.EventCachePollution,
		Role:      models.RoleVendor,
		Pollution: &models.PollutionDetails{Reason: "stale multisig info"},
	}
	fields = sigmaEventFrom(pollution)
	if fields["reason"] != "stale multisig info" {
		t.Fatalf("unexpected pollution fields: %+v", fields)
	}
}
