package publish

import (
	"github.com/registrykit/zonepub/internal/dns/common/log"
	"github.com/registrykit/zonepub/internal/dns/domain"
)

// Metrics receives per-batch publish accounting. The pipeline itself only
// logs; a fleet-level collector implements this interface to export real
// counters.
type Metrics interface {
	IncPublishDomainRequests(zone, writerName string, accepted, rejected int)
	IncPublishHostRequests(zone, writerName string, accepted, rejected int)
	RecordCommit(zone, writerName string, outcome domain.CommitOutcome)
}

// logMetrics records every observation as a structured log line.
type logMetrics struct {
	logger log.Logger
}

// NewLogMetrics returns the default Metrics sink, which writes observations
// to the given logger.
func NewLogMetrics(logger log.Logger) Metrics {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &logMetrics{logger: logger}
}

func (m *logMetrics) IncPublishDomainRequests(zone, writerName string, accepted, rejected int) {
	if accepted == 0 && rejected == 0 {
		return
	}
	m.logger.Debug(map[string]any{
		"zone":     zone,
		"writer":   writerName,
		"accepted": accepted,
		"rejected": rejected,
	}, "Publish domain requests")
}

func (m *logMetrics) IncPublishHostRequests(zone, writerName string, accepted, rejected int) {
	if accepted == 0 && rejected == 0 {
		return
	}
	m.logger.Debug(map[string]any{
		"zone":     zone,
		"writer":   writerName,
		"accepted": accepted,
		"rejected": rejected,
	}, "Publish host requests")
}

func (m *logMetrics) RecordCommit(zone, writerName string, outcome domain.CommitOutcome) {
	m.logger.Info(map[string]any{
		"zone":     zone,
		"writer":   writerName,
		"status":   outcome.Status.String(),
		"domains":  outcome.DomainsPublished,
		"hosts":    outcome.HostsPublished,
		"rejected": outcome.DomainsRejected + outcome.HostsRejected,
		"duration": outcome.Duration.String(),
	}, "Publish commit")
}

var _ Metrics = (*logMetrics)(nil)
