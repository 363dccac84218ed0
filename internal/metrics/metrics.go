package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks service call metrics
type Metrics struct {
	hostCalls          int64
	hostErrors         int64
	hostLatency        int64 // Total latency in nanoseconds
	aiCalls            int64
	aiErrors           int64
	aiTimeouts         int64
	cleanupRuns        int64
	attachmentsDeleted int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the current metrics snapshot
func GetMetrics() Metrics {
	return Metrics{
		hostCalls:          atomic.LoadInt64(&globalMetrics.hostCalls),
		hostErrors:         atomic.LoadInt64(&globalMetrics.hostErrors),
		hostLatency:        atomic.LoadInt64(&globalMetrics.hostLatency),
		aiCalls:            atomic.LoadInt64(&globalMetrics.aiCalls),
		aiErrors:           atomic.LoadInt64(&globalMetrics.aiErrors),
		aiTimeouts:         atomic.LoadInt64(&globalMetrics.aiTimeouts),
		cleanupRuns:        atomic.LoadInt64(&globalMetrics.cleanupRuns),
		attachmentsDeleted: atomic.LoadInt64(&globalMetrics.attachmentsDeleted),
	}
}

// ResetMetrics resets all metrics (useful for testing)
func ResetMetrics() {
	atomic.StoreInt64(&globalMetrics.hostCalls, 0)
	atomic.StoreInt64(&globalMetrics.hostErrors, 0)
	atomic.StoreInt64(&globalMetrics.hostLatency, 0)
	atomic.StoreInt64(&globalMetrics.aiCalls, 0)
	atomic.StoreInt64(&globalMetrics.aiErrors, 0)
	atomic.StoreInt64(&globalMetrics.aiTimeouts, 0)
	atomic.StoreInt64(&globalMetrics.cleanupRuns, 0)
	atomic.StoreInt64(&globalMetrics.attachmentsDeleted, 0)
}

// RecordHostCall records a call to the wiki REST API
func RecordHostCall(duration time.Duration, err error) {
	atomic.AddInt64(&globalMetrics.hostCalls, 1)
	atomic.AddInt64(&globalMetrics.hostLatency, duration.Nanoseconds())
	if err != nil {
		atomic.AddInt64(&globalMetrics.hostErrors, 1)
	}
}

// RecordAICall records a generative provider call
func RecordAICall(err error, timedOut bool) {
	atomic.AddInt64(&globalMetrics.aiCalls, 1)
	if timedOut {
		atomic.AddInt64(&globalMetrics.aiTimeouts, 1)
	}
	if err != nil {
		atomic.AddInt64(&globalMetrics.aiErrors, 1)
	}
}

// RecordCleanupRun records one reconcile pass and how many attachments it removed
func RecordCleanupRun(deleted int) {
	atomic.AddInt64(&globalMetrics.cleanupRuns, 1)
	atomic.AddInt64(&globalMetrics.attachmentsDeleted, int64(deleted))
}

func (m Metrics) HostCalls() int64          { return m.hostCalls }
func (m Metrics) HostErrors() int64         { return m.hostErrors }
func (m Metrics) AICalls() int64            { return m.aiCalls }
func (m Metrics) AIErrors() int64           { return m.aiErrors }
func (m Metrics) AITimeouts() int64         { return m.aiTimeouts }
func (m Metrics) CleanupRuns() int64        { return m.cleanupRuns }
func (m Metrics) AttachmentsDeleted() int64 { return m.attachmentsDeleted }

// AverageHostLatency returns the average latency in milliseconds
func (m Metrics) AverageHostLatency() float64 {
	if m.hostCalls == 0 {
		return 0
	}
	avgNs := float64(m.hostLatency) / float64(m.hostCalls)
	return avgNs / 1e6 // Convert nanoseconds to milliseconds
}

// HostErrorRate returns the error rate as a percentage
func (m Metrics) HostErrorRate() float64 {
	if m.hostCalls == 0 {
		return 0
	}
	return float64(m.hostErrors) / float64(m.hostCalls) * 100
}

func counter(name, help string, read func() int64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "flowme",
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(read()) })
}

// Register exposes the counters on reg.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		counter("host_calls_total", "Wiki REST API calls.", func() int64 { return atomic.LoadInt64(&globalMetrics.hostCalls) }),
		counter("host_errors_total", "Failed wiki REST API calls.", func() int64 { return atomic.LoadInt64(&globalMetrics.hostErrors) }),
		counter("ai_calls_total", "Generative provider calls.", func() int64 { return atomic.LoadInt64(&globalMetrics.aiCalls) }),
		counter("ai_errors_total", "Failed generative provider calls.", func() int64 { return atomic.LoadInt64(&globalMetrics.aiErrors) }),
		counter("ai_timeouts_total", "Generative provider calls that timed out.", func() int64 { return atomic.LoadInt64(&globalMetrics.aiTimeouts) }),
		counter("cleanup_runs_total", "Orphan cleanup passes.", func() int64 { return atomic.LoadInt64(&globalMetrics.cleanupRuns) }),
		counter("attachments_deleted_total", "Orphan attachments deleted.", func() int64 { return atomic.LoadInt64(&globalMetrics.attachmentsDeleted) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "flowme",
			Name:      "host_latency_avg_ms",
			Help:      "Average wiki REST API latency in milliseconds.",
		}, func() float64 { return GetMetrics().AverageHostLatency() }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
