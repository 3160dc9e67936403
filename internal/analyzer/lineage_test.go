package analyzer

import (
	"testing"

	"escrowtrace/pkg/models"
)

func snapshotEvent(role, eventType string, multisig bool, addressHash string) *models.Event {
	return &models.Event{
		Type: eventType,
		Role: role,
		Snapshot: &models.SnapshotDetails{
			IsMultisig:  multisig,
			AddressHash: addressHash,
		},
	}
}

func TestBuildLineagesForwardTransitionIsNotAnomalous(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			snapshotEvent(models.RoleBuyer, models.EventSnapshotPreRound1, false, "aaaa"),
			snapshotEvent(models.RoleBuyer, models.EventSnapshotPostMakeMulti, true, "aaaa"),
			snapshotEvent(models.RoleBuyer, models.EventSnapshotFinal, true, "aaaa"),
		},
	}

	lineages := BuildLineages(session)
	if len(lineages) != 1 {
		t.Fatalf("expected 1 lineage, got %d", len(lineages))
	}
	if len(lineages[0].Snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(lineages[0].Snapshots))
	}
	if len(lineages[0].Anomalies) != 0 {
		t.Fatalf("false -> true is the expected transition, got anomalies %+v", lineages[0].Anomalies)
	}
}

func TestBuildLineagesFlagsMultisigRegression(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			snapshotEvent(models.RoleVendor, models.EventSnapshotPreRound1, false, "bbbb"),
			snapshotEvent(models.RoleVendor, models.EventSnapshotPostMakeMulti, true, "bbbb"),
			snapshotEvent(models.RoleVendor, models.EventSnapshotPreRound2, false, "bbbb"),
			snapshotEvent(models.RoleVendor, models.EventSnapshotFinal, false, "bbbb"),
		},
	}

	lineages := BuildLineages(session)
	anomalies := lineages[0].Anomalies
	if len(anomalies) != 1 {
		t.Fatalf("expected exactly one regression, got %+v", anomalies)
	}
	a := anomalies[0]
	if a.Kind != models.AnomalyMultisigRegression {
		t.Fatalf("unexpected anomaly kind: %s", a.Kind)
	}
	if a.Position != 2 || a.EventIndex != 2 {
		t.Fatalf("expected anomaly anchored at the regressing snapshot, got %+v", a)
	}
}

func TestBuildLineagesFlagsAddressChange(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			snapshotEvent(models.RoleArbiter, models.EventSnapshotPreRound2, true, "aaaaaaaaaaaaaaaaaaaa"),
			snapshotEvent(models.RoleArbiter, models.EventSnapshotPreRound3, true, "bbbbbbbbbbbbbbbbbbbb"),
		},
	}

	anomalies := BuildLineages(session)[0].Anomalies
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %+v", anomalies)
	}
	if anomalies[0].Kind != models.AnomalyAddressChange {
		t.Fatalf("unexpected anomaly kind: %s", anomalies[0].Kind)
	}
	if anomalies[0].Detail != "address changed: aaaaaaaaaaaaaaaa -> bbbbbbbbbbbbbbbb" {
		t.Fatalf("unexpected detail: %s", anomalies[0].Detail)
	}
}

func TestBuildLineagesPartitionsByRole(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			snapshotEvent(models.RoleVendor, models.EventSnapshotPostMakeMulti, true, "cccc"),
			snapshotEvent(models.RoleBuyer, models.EventSnapshotPreRound1, false, "aaaa"),
			// Vendor regresses; buyer's false snapshot must not be
			// compared against the vendor's true one.
			snapshotEvent(models.RoleVendor, models.EventSnapshotFinal, false, "cccc"),
			snapshotEvent(models.RoleBuyer, models.EventSnapshotFinal, true, "aaaa"),
			{Type: models.EventRPCCallStart, Role: models.RoleBuyer, RPC: &models.RPCDetails{Method: "refresh"}},
		},
	}

	lineages := BuildLineages(session)
	if len(lineages) != 2 {
		t.Fatalf("expected 2 lineages, got %d", len(lineages))
	}
	if lineages[0].Role != models.RoleBuyer || lineages[1].Role != models.RoleVendor {
		t.Fatalf("expected sorted roles, got %s, %s", lineages[0].Role, lineages[1].Role)
	}
	if len(lineages[0].Anomalies) != 0 {
		t.Fatalf("buyer lineage should be clean, got %+v", lineages[0].Anomalies)
	}
	if len(lineages[1].Anomalies) != 1 || lineages[1].Anomalies[0].Kind != models.AnomalyMultisigRegression {
		t.Fatalf("unexpected vendor anomalies: %+v", lineages[1].Anomalies)
	}
	if lineages[1].Anomalies[0].EventIndex != 2 {
		t.Fatalf("expected vendor anomaly at session index 2, got %d", lineages[1].Anomalies[0].EventIndex)
	}
}

func TestBuildLineagesFirstSnapshotNeverAnomalous(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			snapshotEvent(models.RoleBuyer, models.EventSnapshotFinal, false, "zzzz"),
		},
	}

	lineages := BuildLineages(session)
	if len(lineages[0].Anomalies) != 0 {
		t.Fatalf("single snapshot has no predecessor, got %+v", lineages[0].Anomalies)
	}
}
