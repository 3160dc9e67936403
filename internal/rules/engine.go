package rules

import "escrowtrace/pkg/models"

// Engine applies detection rules to events.
type Engine interface {
	Apply(event *models.Event) []models.RuleTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(event *models.Event) []models.RuleTag {
	return nil
}

// EvaluateSession applies the engine to every event and collects
// matches in session order.
func EvaluateSession(s *models.Session, engine Engine) []models.RuleMatch {
	if engine == nil || s == nil {
		return nil
	}
	var out []models.RuleMatch
	for i, e := range s.Events {
		tags := engine.Apply(e)
		if len(tags) == 0 {
			continue
		}
		out = append(out, models.RuleMatch{
			EventIndex: i,
			EventType:  e.Type,
			Role:       e.Role,
			Tags:       tags,
		})
	}
	return out
}
