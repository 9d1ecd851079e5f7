package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/doridoridoriand/nodeboard/internal/scheduler"
	"github.com/doridoridoriand/nodeboard/internal/state"
	"github.com/doridoridoriand/nodeboard/internal/sysmon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nodeboard"

// HealthCollector exports the health store on every scrape.
type HealthCollector struct {
	store state.Store

	up           *prometheus.Desc
	responseTime *prometheus.Desc
	nodes        *prometheus.Desc
}

// NewHealthCollector returns a collector reading store.
func NewHealthCollector(store state.Store) *HealthCollector {
	labels := []string{"node", "ip", "type"}
	return &HealthCollector{
		store: store,
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "up"),
			"Whether the last TCP check of the node succeeded",
			labels, nil),
		responseTime: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "node", "response_time_ms"),
			"Response time of the last check in milliseconds",
			labels, nil),
		nodes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "nodes"),
			"Number of nodes by last known status",
			[]string{"status"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *HealthCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.up
	ch <- c.responseTime
	ch <- c.nodes
}

// Collect implements prometheus.Collector.
func (c *HealthCollector) Collect(ch chan<- prometheus.Metric) {
	counts := map[state.Status]int{
		state.StatusHealthy:   0,
		state.StatusUnhealthy: 0,
		state.StatusError:     0,
	}
	for name, record := range c.store.ReadAll() {
		counts[record.Status]++
		up := 0.0
		if record.Status == state.StatusHealthy {
			up = 1
		}
		labels := []string{name, record.IP, string(record.Type)}
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up, labels...)
		ch <- prometheus.MustNewConstMetric(c.responseTime, prometheus.GaugeValue, float64(record.ResponseTimeMs), labels...)
	}
	for status, count := range counts {
		ch <- prometheus.MustNewConstMetric(c.nodes, prometheus.GaugeValue, float64(count), string(status))
	}
}

// SystemSource provides the latest host sample.
type SystemSource interface {
	Latest() sysmon.Sample
}

// SystemCollector exports host resource usage from a sysmon sample.
type SystemCollector struct {
	source SystemSource

	cpu      *prometheus.Desc
	memUsed  *prometheus.Desc
	memTotal *prometheus.Desc
	diskUsed *prometheus.Desc
	diskSize *prometheus.Desc
}

// NewSystemCollector returns a collector reading source.
func NewSystemCollector(source SystemSource) *SystemCollector {
	return &SystemCollector{
		source:   source,
		cpu:      prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "cpu_percent"), "Host CPU utilisation", nil, nil),
		memUsed:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "memory_used_bytes"), "Host memory in use", nil, nil),
		memTotal: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "memory_total_bytes"), "Host memory installed", nil, nil),
		diskUsed: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "disk_used_bytes"), "Disk space in use", []string{"path"}, nil),
		diskSize: prometheus.NewDesc(prometheus.BuildFQName(namespace, "host", "disk_total_bytes"), "Disk size", []string{"path"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SystemCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpu
	ch <- c.memUsed
	ch <- c.memTotal
	ch <- c.diskUsed
	ch <- c.diskSize
}

// Collect implements prometheus.Collector. Nothing is emitted before the
// first sample.
func (c *SystemCollector) Collect(ch chan<- prometheus.Metric) {
	sample := c.source.Latest()
	if sample.Time.IsZero() {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, sample.CPU.Percent)
	ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, float64(sample.Memory.Used))
	ch <- prometheus.MustNewConstMetric(c.memTotal, prometheus.GaugeValue, float64(sample.Memory.Total))
	for _, disk := range sample.Disks {
		ch <- prometheus.MustNewConstMetric(c.diskUsed, prometheus.GaugeValue, float64(disk.Used), disk.Path)
		ch <- prometheus.MustNewConstMetric(c.diskSize, prometheus.GaugeValue, float64(disk.Total), disk.Path)
	}
}

// CycleMetrics records check cycle outcomes. It satisfies scheduler.CycleObserver.
type CycleMetrics struct {
	CyclesTotal        prometheus.Counter
	CycleDuration      prometheus.Histogram
	CyclesFailed       prometheus.Counter
	ForceChecksDropped prometheus.Counter
	NodesChecked       *prometheus.CounterVec
}

var _ scheduler.CycleObserver = (*CycleMetrics)(nil)

// NewCycleMetrics creates cycle metrics and registers them with reg.
func NewCycleMetrics(reg prometheus.Registerer) *CycleMetrics {
	m := &CycleMetrics{
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "cycles_total",
			Help:      "Total number of completed check cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of check cycles",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		CyclesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "cycles_failed_total",
			Help:      "Check cycles aborted by a configuration error or panic",
		}),
		ForceChecksDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "force_rejected_total",
			Help:      "Force check requests rejected because a cycle was running",
		}),
		NodesChecked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "results_total",
			Help:      "Node check results by status",
		}, []string{"status"}),
	}
	reg.MustRegister(m.CyclesTotal, m.CycleDuration, m.CyclesFailed, m.ForceChecksDropped, m.NodesChecked)
	return m
}

// CycleCompleted implements scheduler.CycleObserver.
func (m *CycleMetrics) CycleCompleted(stats scheduler.CycleStats) {
	m.CyclesTotal.Inc()
	m.CycleDuration.Observe(stats.Duration.Seconds())
	m.NodesChecked.WithLabelValues(string(state.StatusHealthy)).Add(float64(stats.Healthy))
	m.NodesChecked.WithLabelValues(string(state.StatusUnhealthy)).Add(float64(stats.Unhealthy))
	m.NodesChecked.WithLabelValues(string(state.StatusError)).Add(float64(stats.Errored))
}

// CycleFailed implements scheduler.CycleObserver.
func (m *CycleMetrics) CycleFailed() {
	m.CyclesFailed.Inc()
}

// ForceCheckRejected implements scheduler.CycleObserver.
func (m *CycleMetrics) ForceCheckRejected() {
	m.ForceChecksDropped.Inc()
}

// NewRegistry builds a registry with the health collector, the optional
// system collector and the Go runtime collectors.
func NewRegistry(store state.Store, system SystemSource) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewHealthCollector(store))
	if system != nil {
		reg.MustRegister(NewSystemCollector(system))
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves /metrics for gatherer and a plain /health probe.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Serve starts an HTTP server and blocks until context cancellation.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           Handler(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}
