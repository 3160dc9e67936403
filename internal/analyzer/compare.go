package analyzer

import (
	"sort"

	"escrowtrace/pkg/models"
)

// CompareSessions diffs two sessions: the event-type distribution over
// the union of types seen in either (diff is second minus first), and
// the first index where the (event_type, role) sequences diverge. The
// divergence check ignores details payloads; those are covered by the
// lineage analyzer run on each side. Length and trace-id mismatches are
// reported as non-fatal findings in the result.
func CompareSessions(first, second *models.Session) *models.CompareResult {
	result := &models.CompareResult{
		FirstTraceID:  first.TraceID,
		SecondTraceID: second.TraceID,
		FirstCount:    first.Len(),
		SecondCount:   second.Len(),
	}
	result.TraceIDMismatch = first.TraceID != "" && second.TraceID != "" && first.TraceID != second.TraceID
	result.LengthMismatch = first.Len() != second.Len()

	result.Distribution = diffDistributions(first.CountByType(), second.CountByType())

	minLen := first.Len()
	if second.Len() < minLen {
		minLen = second.Len()
	}
	for i := 0; i < minLen; i++ {
		e1 := first.Events[i]
		e2 := second.Events[i]
		if e1.Type != e2.Type || e1.Role != e2.Role {
			result.Divergence = &models.Divergence{Index: i, First: e1, Second: e2}
			break
		}
	}

	result.Identical = result.Divergence == nil && !result.LengthMismatch
	return result
}

func diffDistributions(first, second map[string]int) []models.TypeCountDiff {
	types := make(map[string]struct{}, len(first)+len(second))
	for t := range first {
		types[t] = struct{}{}
	}
	for t := range second {
		types[t] = struct{}{}
	}

	sorted := make([]string, 0, len(types))
	for t := range types {
		sorted = append(sorted, t)
	}
	sort.Strings(sorted)

	out := make([]models.TypeCountDiff, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, models.TypeCountDiff{
			EventType: t,
			First:     first[t],
			Second:    second[t],
			Diff:      second[t] - first[t],
		})
	}
	return out
}
