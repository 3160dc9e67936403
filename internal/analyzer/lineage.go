package analyzer

import (
	"fmt"
	"sort"

	"escrowtrace/pkg/models"
)

// BuildLineages partitions snapshot events by role, preserving session
// order within each role, and flags illegal transitions between
// consecutive snapshots of the same role: a multisig wallet reverting
// to non-multisig, or the wallet address changing. The analyzer only
// reports; it never decides which snapshot is authoritative. The first
// snapshot of a role has no predecessor and is never anomalous. Output
// is sorted by role.
func BuildLineages(s *models.Session) []models.RoleLineage {
	byRole := make(map[string][]models.SnapshotEntry, 4)
	for i, e := range s.Events {
		if !e.IsSnapshot() || e.Snapshot == nil {
			continue
		}
		byRole[e.Role] = append(byRole[e.Role], models.SnapshotEntry{
			EventIndex:  i,
			EventType:   e.Type,
			TimestampMS: e.TimestampMS,
			Snapshot:    e.Snapshot,
		})
	}

	roles := make([]string, 0, len(byRole))
	for role := range byRole {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	out := make([]models.RoleLineage, 0, len(roles))
	for _, role := range roles {
		snaps := byRole[role]
		lineage := models.RoleLineage{Role: role, Snapshots: snaps}
		for i := 1; i < len(snaps); i++ {
			lineage.Anomalies = append(lineage.Anomalies, diffSnapshots(role, i, snaps[i-1], snaps[i])...)
		}
		out = append(out, lineage)
	}
	return out
}

// diffSnapshots compares one snapshot to its predecessor in the same
// role's subsequence. Becoming multisig is the expected forward
// transition and is not flagged; only the reverse flip is.
func diffSnapshots(role string, position int, prev, cur models.SnapshotEntry) []models.LineageAnomaly {
	var out []models.LineageAnomaly

	if prev.Snapshot.IsMultisig && !cur.Snapshot.IsMultisig {
		out = append(out, models.LineageAnomaly{
			Role:       role,
			Position:   position,
			EventIndex: cur.EventIndex,
			Kind:       models.AnomalyMultisigRegression,
			Detail:     "is_multisig changed: true -> false",
		})
	}

	if prev.Snapshot.AddressHash != cur.Snapshot.AddressHash {
		out = append(out, models.LineageAnomaly{
			Role:       role,
			Position:   position,
			EventIndex: cur.EventIndex,
			Kind:       models.AnomalyAddressChange,
			Detail: fmt.Sprintf("address changed: %s -> %s",
				prev.Snapshot.ShortAddressHash(), cur.Snapshot.ShortAddressHash()),
		})
	}

	return out
}
