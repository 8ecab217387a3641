// Package battery tracks the mutable battery ledger advanced by the
// rolling-horizon scheduler: state of charge, cumulative equivalent full
// cycles and capacity degradation.
package battery

import (
	"fmt"

	"github.com/hoppsim/hybrid/core/model"
)

// FadeCurve maps a cumulative cycle count to the remaining usable capacity
// fraction. Implementations must be non-increasing in cycles.
type FadeCurve func(cycles float64) float64

// LinearFade loses lossPerCycle of rated capacity per equivalent full cycle,
// floored at floorFrac of rated capacity.
func LinearFade(lossPerCycle, floorFrac float64) FadeCurve {
	return func(cycles float64) float64 {
		f := 1 - lossPerCycle*cycles
		if f < floorFrac {
			return floorFrac
		}
		return f
	}
}

// DefaultFade is the fade curve used when none is configured: 0.02% capacity
// loss per cycle down to 80% of rated capacity.
var DefaultFade = LinearFade(0.0002, 0.8)

// State is the battery ledger. It is owned by a single scheduler instance,
// read by each formulation solve and written only when a solve's leading
// decisions are committed.
type State struct {
	Spec model.BatterySpec

	SoC               float64 // fraction of usable capacity, within [MinSoC, MaxSoC]
	Cycles            float64 // cumulative equivalent full cycles, non-decreasing
	UsableCapacityKWh float64 // degraded capacity, non-increasing

	fade FadeCurve
}

// NewState constructs the initial ledger from the battery ratings.
func NewState(spec model.BatterySpec, fade FadeCurve) *State {
	if fade == nil {
		fade = DefaultFade
	}
	return &State{
		Spec:              spec,
		SoC:               spec.InitialSoC,
		UsableCapacityKWh: spec.CapacityKWh,
		fade:              fade,
	}
}

// AvailableChargeKW returns the charge power limit for the next period.
func (s *State) AvailableChargeKW() float64 { return s.Spec.ChargeRateKW }

// AvailableDischargeKW returns the discharge power limit for the next period.
func (s *State) AvailableDischargeKW() float64 { return s.Spec.DischargeRateKW }

// Commit applies one accepted decision prefix to the ledger. charge and
// discharge hold the committed setpoints in kW for consecutive periods of
// periodHours each. Committed SoC is clamped to the configured bounds; the
// cycle count is advanced by the period's charge-throughput estimate and the
// capacity is degraded along the fade curve.
func (s *State) Commit(charge, discharge []float64, periodHours float64) error {
	if len(charge) != len(discharge) {
		return fmt.Errorf("commit length mismatch: charge=%d discharge=%d", len(charge), len(discharge))
	}
	if periodHours <= 0 {
		return fmt.Errorf("period hours must be positive, got %v", periodHours)
	}
	for i := range charge {
		s.step(charge[i], discharge[i], periodHours)
	}
	return nil
}

func (s *State) step(chargeKW, dischargeKW, hours float64) {
	spec := s.Spec

	stored := chargeKW * hours * spec.ChargeEfficiency
	drawn := dischargeKW * hours / spec.DischargeEfficiency

	s.SoC += (stored - drawn) / s.UsableCapacityKWh
	if s.SoC > spec.MaxSoC {
		s.SoC = spec.MaxSoC
	}
	if s.SoC < spec.MinSoC {
		s.SoC = spec.MinSoC
	}

	// Equivalent-full-cycle throughput: one full charge plus one full
	// discharge of the usable capacity counts as a single cycle.
	throughput := (chargeKW + dischargeKW) * hours
	s.Cycles += throughput / (2 * s.usableSpan())

	degraded := spec.CapacityKWh * s.fade(s.Cycles)
	if degraded < s.UsableCapacityKWh {
		s.UsableCapacityKWh = degraded
	}
}

// usableSpan is the energy between the SoC bounds on the degraded capacity.
func (s *State) usableSpan() float64 {
	return s.UsableCapacityKWh * (s.Spec.MaxSoC - s.Spec.MinSoC)
}

// HeadroomKWh returns the energy that can still be stored before MaxSoC.
func (s *State) HeadroomKWh() float64 {
	return (s.Spec.MaxSoC - s.SoC) * s.UsableCapacityKWh
}

// AvailableKWh returns the energy that can be drawn before MinSoC.
func (s *State) AvailableKWh() float64 {
	return (s.SoC - s.Spec.MinSoC) * s.UsableCapacityKWh
}
