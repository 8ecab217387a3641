package metrics

import (
	"errors"

	coremetrics "github.com/hoppsim/hybrid/core/metrics"
)

// MultiSink fans events out to several sinks, collecting all errors.
type MultiSink struct {
	sinks []coremetrics.Sink
}

// NewMultiSink combines the given sinks into one.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) RecordSolve(ev coremetrics.SolveEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordSolve(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordCommit(evs []coremetrics.CommitEvent) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.RecordCommit(evs); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
