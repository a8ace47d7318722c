package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics defines counters for the install pipeline and conflict scans.
type Metrics interface {
	IncInstallsStarted(source string)
	IncInstallsFinished(state string)
	ObserveStage(stage string, durationSeconds float64)
	AddDownloadedBytes(n int64)
	IncExtractAttempt(strategy, result string)
	ObserveConflictScan(packages, conflicts int, durationSeconds float64)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncInstallsStarted(string)             {}
func (Noop) IncInstallsFinished(string)            {}
func (Noop) ObserveStage(string, float64)          {}
func (Noop) AddDownloadedBytes(int64)              {}
func (Noop) IncExtractAttempt(string, string)      {}
func (Noop) ObserveConflictScan(int, int, float64) {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	installsStarted  *prometheus.CounterVec
	installsFinished *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	downloadedBytes  prometheus.Counter
	extractAttempts  *prometheus.CounterVec
	scanDuration     prometheus.Histogram
	scanPackages     prometheus.Gauge
	scanConflicts    prometheus.Gauge
	once             sync.Once
}

// NewProm builds the collectors and registers them with reg. A nil reg
// uses the default registerer.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		installsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_started_total",
			Help:      "Installs started by source (link, local)",
		}, []string{"source"}),
		installsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "installs_finished_total",
			Help:      "Installs finished by terminal state",
		}, []string{"state"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "install_stage_duration_seconds",
			Help:      "Pipeline stage latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Archive bytes received",
		}),
		extractAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extract_attempts_total",
			Help:      "Extraction attempts by strategy and result",
		}, []string{"strategy", "result"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conflict_scan_duration_seconds",
			Help:      "Conflict scan latency",
			Buckets:   prometheus.DefBuckets,
		}),
		scanPackages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conflict_scan_packages",
			Help:      "Packages covered by the last conflict scan",
		}),
		scanConflicts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conflict_scan_conflicts",
			Help:      "Conflicts reported by the last conflict scan",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p.register(reg)
	return p
}

func (p *Prom) register(reg prometheus.Registerer) {
	p.once.Do(func() {
		reg.MustRegister(
			p.installsStarted, p.installsFinished, p.stageDuration,
			p.downloadedBytes, p.extractAttempts,
			p.scanDuration, p.scanPackages, p.scanConflicts,
		)
	})
}

func (p *Prom) IncInstallsStarted(source string) {
	p.installsStarted.WithLabelValues(source).Inc()
}

func (p *Prom) IncInstallsFinished(state string) {
	p.installsFinished.WithLabelValues(state).Inc()
}

func (p *Prom) ObserveStage(stage string, durationSeconds float64) {
	p.stageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

func (p *Prom) AddDownloadedBytes(n int64) {
	if n > 0 {
		p.downloadedBytes.Add(float64(n))
	}
}

func (p *Prom) IncExtractAttempt(strategy, result string) {
	p.extractAttempts.WithLabelValues(strategy, result).Inc()
}

func (p *Prom) ObserveConflictScan(packages, conflicts int, durationSeconds float64) {
	p.scanDuration.Observe(durationSeconds)
	p.scanPackages.Set(float64(packages))
	p.scanConflicts.Set(float64(conflicts))
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
