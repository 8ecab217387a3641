package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/hoppsim/hybrid/core/metrics"
)

// PromSink records simulation events in Prometheus metrics.
type PromSink struct {
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	soc      prometheus.Gauge
	cycles   prometheus.Gauge
}

// NewPromSink registers dispatch metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatch_solves_total",
		Help: "Total number of window solves",
	}, []string{"variant", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatch_solve_seconds",
		Help:    "Wall time of one window solve",
		Buckets: prometheus.DefBuckets,
	}, []string{"variant"})
	soc := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battery_state_of_charge",
		Help: "Committed battery state of charge",
	})
	cycles := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "battery_lifecycle_count",
		Help: "Cumulative equivalent full cycles",
	})

	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(soc); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			soc = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(cycles); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cycles = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{solves: solves, duration: duration, soc: soc, cycles: cycles}, nil
}

// RecordSolve increments the solve counter and observes its duration.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Variant, ev.Status).Inc()
	s.duration.WithLabelValues(ev.Variant).Observe(ev.Duration.Seconds())
	return nil
}

// RecordCommit tracks the most recent committed SoC and cycle count.
func (s *PromSink) RecordCommit(evs []coremetrics.CommitEvent) error {
	if len(evs) == 0 {
		return nil
	}
	last := evs[len(evs)-1]
	s.soc.Set(last.SoC)
	s.cycles.Set(last.Cycles)
	return nil
}
