package analyzer

import (
	"errors"

	"escrowtrace/pkg/models"
)

// ErrEmptySession is returned by BuildTimeline when the session has no
// events: a timeline with no anchor event is undefined. Every other
// analysis yields an empty result for an empty session instead.
var ErrEmptySession = errors.New("session has no events")

// BuildTimeline reconstructs the session timeline: one entry per event
// in input order, with offsets relative to the first event. Offsets are
// negative only for unsorted input, which the returned warnings flag;
// the entries are still produced best-effort.
func BuildTimeline(s *models.Session) ([]models.TimelineEntry, []models.TimestampWarning, error) {
	if s.Len() == 0 {
		return nil, nil, ErrEmptySession
	}

	startTS := s.Events[0].TimestampMS
	entries := make([]models.TimelineEntry, 0, s.Len())
	for i, e := range s.Events {
		entries = append(entries, models.TimelineEntry{
			Index:      i,
			RelativeMS: e.TimestampMS - startTS,
			Event:      e,
		})
	}
	return entries, s.CheckMonotonic(), nil
}
