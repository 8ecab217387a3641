// Package metrics defines the sink contract the scheduler reports into.
// Concrete sinks (Prometheus, InfluxDB, multi, nop) live in infra/metrics.
package metrics

import "time"

// SolveEvent describes one formulation solve.
type SolveEvent struct {
	Variant     string
	Status      string
	Duration    time.Duration
	WindowStart time.Time
}

// CommitEvent is one committed period of battery decisions.
type CommitEvent struct {
	Time        time.Time
	ChargeKW    float64
	DischargeKW float64
	SoC         float64
	Cycles      float64
}

// Config selects and parameterizes the enabled sinks.
type Config struct {
	PrometheusEnabled bool `json:"prometheus_enabled"`
	PrometheusPort    int  `json:"prometheus_port"`

	InfluxEnabled bool   `json:"influx_enabled"`
	InfluxURL     string `json:"influx_url"`
	InfluxToken   string `json:"influx_token"`
	InfluxOrg     string `json:"influx_org"`
	InfluxBucket  string `json:"influx_bucket"`
}

// Sink receives simulation events. Implementations must tolerate being
// called sequentially from a single scheduler goroutine.
type Sink interface {
	RecordSolve(ev SolveEvent) error
	RecordCommit(evs []CommitEvent) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error     { return nil }
func (NopSink) RecordCommit([]CommitEvent) error { return nil }
