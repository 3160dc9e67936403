package pipeline

import "escrowtrace/pkg/models"

// ReportWriter is the sink side of the watch pipeline. Implementations
// must tolerate concurrent WriteBatch calls.
type ReportWriter interface {
	WriteBatch(reports []*models.SessionReport) error
	Close() error
}
