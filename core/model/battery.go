package model

import "fmt"

// BatterySpec describes the fixed ratings of the battery asset.
type BatterySpec struct {
	CapacityKWh     float64 `json:"capacity_kwh"`
	ChargeRateKW    float64 `json:"charge_rate_kw"`
	DischargeRateKW float64 `json:"discharge_rate_kw"`

	MinSoC     float64 `json:"min_soc"`
	MaxSoC     float64 `json:"max_soc"`
	InitialSoC float64 `json:"initial_soc"`

	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
}

// SetDefaults applies sane defaults for unset fields.
func (b *BatterySpec) SetDefaults() {
	if b.MaxSoC == 0 {
		b.MaxSoC = 0.9
	}
	if b.MinSoC == 0 {
		b.MinSoC = 0.1
	}
	if b.InitialSoC == 0 {
		b.InitialSoC = b.MinSoC
	}
	if b.ChargeEfficiency == 0 {
		b.ChargeEfficiency = 0.95
	}
	if b.DischargeEfficiency == 0 {
		b.DischargeEfficiency = 0.95
	}
}

// Validate checks the ratings for physical consistency.
func (b BatterySpec) Validate() error {
	if b.CapacityKWh <= 0 {
		return fmt.Errorf("capacity_kwh must be positive, got %v", b.CapacityKWh)
	}
	if b.ChargeRateKW <= 0 || b.DischargeRateKW <= 0 {
		return fmt.Errorf("charge and discharge rates must be positive")
	}
	if b.MinSoC < 0 || b.MaxSoC > 1 || b.MinSoC >= b.MaxSoC {
		return fmt.Errorf("soc bounds [%v,%v] invalid", b.MinSoC, b.MaxSoC)
	}
	if b.InitialSoC < b.MinSoC || b.InitialSoC > b.MaxSoC {
		return fmt.Errorf("initial_soc %v outside [%v,%v]", b.InitialSoC, b.MinSoC, b.MaxSoC)
	}
	if b.ChargeEfficiency <= 0 || b.ChargeEfficiency > 1 ||
		b.DischargeEfficiency <= 0 || b.DischargeEfficiency > 1 {
		return fmt.Errorf("efficiencies must be in (0,1]")
	}
	return nil
}
