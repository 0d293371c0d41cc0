package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "gsb"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry      *prom.Registry
	runDuration   *prom.HistogramVec
	runOutcomes   *prom.CounterVec
	itemOutcomes  *prom.CounterVec
	cycles        *prom.CounterVec
	fetchFailures prom.Counter
	lastCycle     prom.Gauge
}

// NewPrometheusRecorder constructs and registers the gsb metrics on reg. A nil
// reg gets a fresh registry that also carries the Go and process collectors.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
		reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	pr := &PrometheusRecorder{
		registry: reg,
		runDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of collect and restore runs",
			Buckets:   prom.DefBuckets,
		}, []string{"command"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Runs by command and result",
		}, []string{"command", "result"}),
		itemOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "item_outcomes_total",
			Help:      "Per-item results by direction",
		}, []string{"direction", "outcome"}),
		cycles: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "daemon_cycles_total",
			Help:      "Sync daemon cycles by result",
		}, []string{"result"}),
		fetchFailures: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "daemon_fetch_failures_total",
			Help:      "Failed fetches from the remote",
		}),
		lastCycle: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "daemon_last_cycle_timestamp_seconds",
			Help:      "Unix time of the most recent completed cycle",
		}),
	}
	reg.MustRegister(pr.runDuration, pr.runOutcomes, pr.itemOutcomes, pr.cycles, pr.fetchFailures, pr.lastCycle)
	return pr
}

// Registry returns the registry the recorder is registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	if p == nil {
		return nil
	}
	return p.registry
}

func (p *PrometheusRecorder) ObserveRunDuration(command string, d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.WithLabelValues(command).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(command string, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.runOutcomes.WithLabelValues(command, res).Inc()
}

func (p *PrometheusRecorder) AddItemOutcomes(direction string, outcome ItemOutcome, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.itemOutcomes.WithLabelValues(direction, string(outcome)).Add(float64(n))
}

func (p *PrometheusRecorder) IncCycle(result CycleResult) {
	if p == nil {
		return
	}
	p.cycles.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncFetchFailure() {
	if p == nil {
		return
	}
	p.fetchFailures.Inc()
}

func (p *PrometheusRecorder) SetLastCycle(t time.Time) {
	if p == nil {
		return
	}
	p.lastCycle.Set(float64(t.Unix()))
}
