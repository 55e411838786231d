package libcheck

import (
	"time"

	"github.com/nexus-skeleton/libcheck/metrics"
	"github.com/nexus-skeleton/libcheck/registry"
	"github.com/nexus-skeleton/libcheck/runner"
	"github.com/nexus-skeleton/libcheck/types"
)

// MetricsReporter is responsible for reporting metrics from check results.
type MetricsReporter interface {
	ReportResults(result *runner.RunResult)
}

// DefaultMetricsReporter keeps the status gauges in step with a registry and records completed runs.
type DefaultMetricsReporter struct {
	unsubscribe func()
	clock       func() time.Time
}

// NewDefaultMetricsReporter creates a reporter subscribed to reg. Call Close to unsubscribe.
func NewDefaultMetricsReporter(reg *registry.Registry) *DefaultMetricsReporter {
	r := &DefaultMetricsReporter{clock: time.Now}
	r.unsubscribe = reg.Subscribe(func(results []types.TestRecord) {
		metrics.RecordSummary(types.Summarize(results, r.clock()))
	})
	return r
}

// ReportResults reports the run outcome to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(result *runner.RunResult) {
	metrics.RecordSummary(result.Summary)
	metrics.RecordRun(result.Summary.HasFailures(), result.Duration)
}

// Close stops following the registry
func (r *DefaultMetricsReporter) Close() {
	r.unsubscribe()
}
