package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nexus-skeleton/libcheck/types"
)

const (
	MetricsNamespace = "libcheck"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "transitions_total",
		Help:      "Count of test lifecycle transitions",
	}, []string{
		"category",
		"status",
	})

	testsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "tests",
		Help:      "Number of registered tests by status",
	}, []string{
		"status",
	})

	passRate = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "pass_rate",
		Help:      "Percentage of completed tests that passed",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "runs_total",
		Help:      "Count of completed check runs",
	}, []string{
		"result",
	})

	runDuration = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of the most recent check run",
	})

	sharesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "shares_total",
		Help:      "Count of report share attempts",
	}, []string{
		"target",
		"result",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// Metricer records registry transitions. It satisfies registry.Metricer.
type Metricer struct{}

func NewMetricer() *Metricer {
	return &Metricer{}
}

func (m *Metricer) RecordTransition(category string, status types.TestStatus) {
	if !status.IsValid() {
		log.Error("RecordTransition - invalid status", "status", status)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "transitions_total",
			"category", category,
			"status", status)
	}
	transitionsTotal.WithLabelValues(category, string(status)).Inc()
}

// RecordSummary sets the status gauges from a summary
func RecordSummary(summary types.TestSummary) {
	testsByStatus.WithLabelValues(string(types.TestStatusPending)).Set(float64(summary.Pending))
	testsByStatus.WithLabelValues(string(types.TestStatusRunning)).Set(float64(summary.Running))
	testsByStatus.WithLabelValues(string(types.TestStatusPassed)).Set(float64(summary.Passed))
	testsByStatus.WithLabelValues(string(types.TestStatusFailed)).Set(float64(summary.Failed))
	testsByStatus.WithLabelValues(string(types.TestStatusSkipped)).Set(float64(summary.Skipped))
	passRate.Set(float64(summary.PassRate()))
}

// RecordRun records the outcome of a completed run
func RecordRun(failed bool, duration time.Duration) {
	result := "pass"
	if failed {
		result = "fail"
	}
	runsTotal.WithLabelValues(result).Inc()
	runDuration.Set(duration.Seconds())
}

// RecordShare records a share attempt against the named target
func RecordShare(target string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	sharesTotal.WithLabelValues(target, result).Inc()
}
