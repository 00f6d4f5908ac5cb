// Package metrics exposes pool and verdict metrics for Prometheus scraping.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stegguard/pkg/config"
	"stegguard/pkg/dispatcher"
)

// Compile-time interface check.
var _ dispatcher.Observer = (*Metrics)(nil)

// StatsFunc returns the current pool counters
type StatsFunc func() dispatcher.Stats

// Metrics holds the collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry
	pool     atomic.Pointer[StatsFunc]

	// Gauges, read from the watched pool at scrape time
	maxWorkers    prometheus.GaugeFunc
	activeWorkers prometheus.GaugeFunc
	queuedTasks   prometheus.GaugeFunc

	// Counters
	tasksSubmitted prometheus.Counter
	tasksTotal     *prometheus.CounterVec
	verdictsTotal  *prometheus.CounterVec

	// Histograms
	taskDuration *prometheus.HistogramVec
}

// New creates and registers every collector
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.maxWorkers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stegguard_pool_max_workers",
		Help: "Configured worker pool concurrency",
	}, func() float64 { return float64(m.poolStats().MaxWorkers) })
	m.activeWorkers = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stegguard_pool_active_workers",
		Help: "Workers currently running an analysis",
	}, func() float64 { return float64(m.poolStats().ActiveWorkers) })
	m.queuedTasks = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "stegguard_pool_queued_tasks",
		Help: "Analyses waiting for a free worker",
	}, func() float64 { return float64(m.poolStats().QueuedTasks) })
	m.tasksSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stegguard_tasks_submitted_total",
		Help: "Analyses submitted to the pool",
	})
	m.tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stegguard_tasks_total",
			Help: "Finished analyses by outcome",
		},
		[]string{"outcome"},
	)
	m.verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stegguard_verdicts_total",
			Help: "Steganography verdicts by media type",
		},
		[]string{"mime_type", "suspicious"},
	)
	m.taskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stegguard_task_duration_seconds",
			Help:    "Time from worker assignment to resolution",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	collectors := []prometheus.Collector{
		m.maxWorkers,
		m.activeWorkers,
		m.queuedTasks,
		m.tasksSubmitted,
		m.tasksTotal,
		m.verdictsTotal,
		m.taskDuration,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// WatchPool makes the pool gauges report stats. Observer callbacks carry
// snapshots that may arrive out of order, so the gauges read the pool itself.
func (m *Metrics) WatchPool(stats StatsFunc) {
	m.pool.Store(&stats)
}

// TaskSubmitted implements dispatcher.Observer
func (m *Metrics) TaskSubmitted(dispatcher.Stats) {
	m.tasksSubmitted.Inc()
}

// TaskStarted implements dispatcher.Observer
func (m *Metrics) TaskStarted(dispatcher.Stats) {}

// TaskFinished implements dispatcher.Observer
func (m *Metrics) TaskFinished(state dispatcher.State, elapsed time.Duration, _ dispatcher.Stats) {
	outcome := state.String()
	m.tasksTotal.WithLabelValues(outcome).Inc()
	m.taskDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveVerdict counts one steganography verdict
func (m *Metrics) ObserveVerdict(mimeType string, suspicious bool) {
	m.verdictsTotal.WithLabelValues(config.NormalizeMimeType(mimeType), strconv.FormatBool(suspicious)).Inc()
}

func (m *Metrics) poolStats() dispatcher.Stats {
	if f := m.pool.Load(); f != nil && *f != nil {
		return (*f)()
	}
	return dispatcher.Stats{}
}
