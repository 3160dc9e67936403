package analyzer

import "escrowtrace/pkg/models"

// ExtractAnomalies returns structured records for error and
// cache-pollution events in session order. An empty result means the
// session recorded no anomalies.
func ExtractAnomalies(s *models.Session) []models.AnomalyRecord {
	var out []models.AnomalyRecord
	for i, e := range s.Events {
		switch e.Type {
		case models.EventErrorFinal:
			rec := models.AnomalyRecord{
				EventIndex:  i,
				TimestampMS: e.TimestampMS,
				EventType:   e.Type,
				Role:        e.Role,
			}
			if e.Error != nil {
				rec.Error = e.Error.Message
				rec.Context = e.Error.Context
			}
			out = append(out, rec)

		case models.EventRPCCallError:
			rec := models.AnomalyRecord{
				EventIndex:  i,
				TimestampMS: e.TimestampMS,
				EventType:   e.Type,
				Role:        e.Role,
			}
			if e.RPC != nil {
				rec.Method = e.RPC.Method
			}
			out = append(out, rec)

		case models.EventCachePollution:
			rec := models.AnomalyRecord{
				EventIndex:  i,
				TimestampMS: e.TimestampMS,
				EventType:   e.Type,
				Role:        e.Role,
			}
			if e.Pollution != nil {
				rec.Reason = e.Pollution.Reason
			}
			out = append(out, rec)
		}
	}
	return out
}
