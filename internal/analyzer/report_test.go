package analyzer

import (
	"testing"

	"escrowtrace/pkg/models"
)

func TestBuildReportAssemblesAllSections(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 1000, Type: models.EventRPCCallEnd, Role: models.RoleBuyer, RPC: &models.RPCDetails{Method: "refresh", DurationMS: 40, Success: true}},
			{TimestampMS: 1100, Type: models.EventSnapshotFinal, Role: models.RoleBuyer, Snapshot: &models.SnapshotDetails{IsMultisig: true, AddressHash: "aaaa"}},
			{TimestampMS: 1200, Type: models.EventErrorFinal, Role: models.RoleVendor, Error: &models.ErrorDetails{Message: "boom"}},
		},
	}

	report := BuildReport(session, ReportOptions{})
	if report.TraceID != "t-1" || report.EventCount != 3 {
		t.Fatalf("unexpected header: %+v", report)
	}
	if len(report.Timeline) != 3 {
		t.Fatalf("expected full timeline, got %d entries", len(report.Timeline))
	}
	if len(report.RPCStats) != 1 || report.RPCStats[0].Method != "refresh" {
		t.Fatalf("unexpected rpc stats: %+v", report.RPCStats)
	}
	if len(report.Lineages) != 1 {
		t.Fatalf("expected 1 lineage, got %d", len(report.Lineages))
	}
	if len(report.Anomalies) != 1 || report.Anomalies[0].Error != "boom" {
		t.Fatalf("unexpected anomalies: %+v", report.Anomalies)
	}
	if len(report.CountsByType) != 3 {
		t.Fatalf("expected 3 type counts, got %+v", report.CountsByType)
	}
}

func TestBuildReportOptionsSkipSections(t *testing.T) {
	session := &models.Session{
		TraceID: "t-1",
		Events: []*models.Event{
			{TimestampMS: 1000, Type: models.EventRPCCallEnd, Role: models.RoleBuyer, RPC: &models.RPCDetails{Method: "refresh", DurationMS: 40, Success: true}},
		},
	}

	report := BuildReport(session, ReportOptions{
		SkipTimeline: true,
		SkipLineages: true,
	})
	if report.Timeline != nil {
		t.Fatalf("expected no timeline")
	}
	if report.Lineages != nil {
		t.Fatalf("expected no lineages")
	}
	if len(report.RPCStats) != 1 {
		t.Fatalf("expected rpc stats to survive, got %+v", report.RPCStats)
	}
}

func TestBuildReportEmptySessionIsNotAnError(t *testing.T) {
	report := BuildReport(&models.Session{TraceID: "t-1"}, ReportOptions{})
	if report.EventCount != 0 || report.Timeline != nil {
		t.Fatalf("unexpected empty-session report: %+v", report)
	}
	if report.Severity != "none" {
		t.Fatalf("expected severity none, got %s", report.Severity)
	}
}

func TestReportSeverityRanking(t *testing.T) {
	lineageAnomaly := models.RoleLineage{
		Role:      models.RoleBuyer,
		Anomalies: []models.LineageAnomaly{{Kind: models.AnomalyMultisigRegression}},
	}

	cases := []struct {
		name   string
		report *models.SessionReport
		want   string
	}{
		{"clean", &models.SessionReport{}, "none"},
		{"rpc error only", &models.SessionReport{
			Anomalies: []models.AnomalyRecord{{EventType: models.EventRPCCallError}},
		}, "low"},
		{"final error", &models.SessionReport{
			Anomalies: []models.AnomalyRecord{{EventType: models.EventErrorFinal}},
		}, "medium"},
		{"lineage anomaly", &models.SessionReport{
			Lineages: []models.RoleLineage{lineageAnomaly},
		}, "high"},
		{"pollution", &models.SessionReport{
			Anomalies: []models.AnomalyRecord{{EventType: models.EventCachePollution}},
		}, "high"},
		{"lineage plus final error", &models.SessionReport{
			Lineages:  []models.RoleLineage{lineageAnomaly},
			Anomalies: []models.AnomalyRecord{{EventType: models.EventErrorFinal}},
		}, "critical"},
	}

	for _, tc := range cases {
		if got := reportSeverity(tc.report); got != tc.want {
			t.Fatalf("%s: expected severity %s, got %s", tc.name, tc.want, got)
		}
	}
}
