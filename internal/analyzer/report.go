package analyzer

import (
	"sort"

	"escrowtrace/pkg/models"
)

// ReportOptions selects which derived structures BuildReport includes.
// The zero value includes everything.
type ReportOptions struct {
	SkipTimeline  bool
	SkipRPCStats  bool
	SkipLineages  bool
	SkipAnomalies bool
}

// BuildReport runs the single-session analyses and assembles the report
// envelope. The analyses are independent; options only control which
// results are included, never how they are computed. An empty session
// produces a report with no timeline (there is no anchor event) but is
// not an error here.
func BuildReport(s *models.Session, opts ReportOptions) *models.SessionReport {
	report := &models.SessionReport{
		TraceID:       s.TraceID,
		EventCount:    s.Len(),
		CountsByType:  sortedTypeCounts(s.CountByType()),
		Warnings:      s.CheckMonotonic(),
		MixedTraceIDs: s.MixedTraceIDs(),
	}

	if !opts.SkipTimeline && s.Len() > 0 {
		entries, _, err := BuildTimeline(s)
		if err == nil {
			report.Timeline = entries
		}
	}
	if !opts.SkipRPCStats {
		report.RPCStats = AggregateRPCStats(s)
	}
	if !opts.SkipLineages {
		report.Lineages = BuildLineages(s)
	}
	if !opts.SkipAnomalies {
		report.Anomalies = ExtractAnomalies(s)
	}

	report.Severity = reportSeverity(report)
	return report
}

func sortedTypeCounts(counts map[string]int) []models.TypeCount {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	out := make([]models.TypeCount, 0, len(types))
	for _, t := range types {
		out = append(out, models.TypeCount{EventType: t, Count: counts[t]})
	}
	return out
}

// reportSeverity ranks a session for triage from its anomaly density.
// Lineage anomalies and cache pollution outrank plain RPC errors since
// they indicate state corruption rather than a transient failure.
func reportSeverity(report *models.SessionReport) string {
	lineageAnomalies := 0
	for _, lineage := range report.Lineages {
		lineageAnomalies += len(lineage.Anomalies)
	}

	pollution := 0
	finalErrors := 0
	rpcErrors := 0
	for _, rec := range report.Anomalies {
		switch rec.EventType {
		case models.EventCachePollution:
			pollution++
		case models.EventErrorFinal:
			finalErrors++
		case models.EventRPCCallError:
			rpcErrors++
		}
	}

	switch {
	case lineageAnomalies > 0 && (pollution > 0 || finalErrors > 0):
		return "critical"
	case lineageAnomalies > 0 || pollution > 0:
		return "high"
	case finalErrors > 0:
		return "medium"
	case rpcErrors > 0:
		return "low"
	default:
		return "none"
	}
}
