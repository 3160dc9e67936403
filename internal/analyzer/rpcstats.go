package analyzer

import (
	"sort"

	"escrowtrace/pkg/models"
)

type durationAgg struct {
	count   int
	success int
	sum     float64
	min     float64
	max     float64
}

func (a *durationAgg) add(duration float64, success bool) {
	if a.count == 0 || duration < a.min {
		a.min = duration
	}
	if a.count == 0 || duration > a.max {
		a.max = duration
	}
	a.count++
	a.sum += duration
	if success {
		a.success++
	}
}

// AggregateRPCStats groups completed RPC calls by method and role and
// computes latency and success statistics. Only RPC_CALL_END events
// contribute; START and ERROR events carry no duration. Methods with no
// completed calls are omitted. Output is sorted by method and role, so
// the result is deterministic for a given session.
func AggregateRPCStats(s *models.Session) []models.MethodStats {
	byMethod := make(map[string]*durationAgg, 16)
	byMethodRole := make(map[string]map[string]*durationAgg, 16)

	for _, e := range s.Events {
		if e.Type != models.EventRPCCallEnd || e.RPC == nil {
			continue
		}
		method := e.RPC.Method

		agg := byMethod[method]
		if agg == nil {
			agg = &durationAgg{}
			byMethod[method] = agg
		}
		agg.add(e.RPC.DurationMS, e.RPC.Success)

		roles := byMethodRole[method]
		if roles == nil {
			roles = make(map[string]*durationAgg, 4)
			byMethodRole[method] = roles
		}
		roleAgg := roles[e.Role]
		if roleAgg == nil {
			roleAgg = &durationAgg{}
			roles[e.Role] = roleAgg
		}
		roleAgg.add(e.RPC.DurationMS, e.RPC.Success)
	}

	methods := make([]string, 0, len(byMethod))
	for method := range byMethod {
		methods = append(methods, method)
	}
	sort.Strings(methods)

	out := make([]models.MethodStats, 0, len(methods))
	for _, method := range methods {
		agg := byMethod[method]
		stats := models.MethodStats{
			Method:  method,
			Count:   agg.count,
			Success: agg.success,
			Failure: agg.count - agg.success,
			AvgMS:   agg.sum / float64(agg.count),
			MinMS:   agg.min,
			MaxMS:   agg.max,
		}

		roles := make([]string, 0, len(byMethodRole[method]))
		for role := range byMethodRole[method] {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			roleAgg := byMethodRole[method][role]
			stats.Roles = append(stats.Roles, models.RoleStats{
				Role:    role,
				Count:   roleAgg.count,
				Success: roleAgg.success,
				Failure: roleAgg.count - roleAgg.success,
				AvgMS:   roleAgg.sum / float64(roleAgg.count),
				MinMS:   roleAgg.min,
				MaxMS:   roleAgg.max,
			})
		}
		out = append(out, stats)
	}
	return out
}
