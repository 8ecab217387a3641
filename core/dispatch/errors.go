package dispatch

import (
	"fmt"
	"time"
)

// ConfigurationError reports an unknown option key or a value of the wrong
// type in the dispatch option map. It is fatal and raised before any solve.
type ConfigurationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("dispatch option %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("dispatch option %q = %v: %s", e.Key, e.Value, e.Reason)
}

// UnsupportedFormulationError reports a battery_dispatch value outside the
// known variant set.
type UnsupportedFormulationError struct {
	Variant string
}

func (e *UnsupportedFormulationError) Error() string {
	return fmt.Sprintf("%q is not a known battery dispatch formulation", e.Variant)
}

// InfeasibleError reports a window whose solve returned an infeasible or
// timed-out status. The scheduler owns the fallback policy; formulations
// only report.
type InfeasibleError struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Status      SolveStatus
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("dispatch window [%s, %s) returned status %s",
		e.WindowStart.Format(time.RFC3339), e.WindowEnd.Format(time.RFC3339), e.Status)
}
