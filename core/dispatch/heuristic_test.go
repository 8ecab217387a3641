package dispatch

import (
	"testing"

	"github.com/hoppsim/hybrid/core/battery"
)

func heuristicOpts(t *testing.T, variant string) Options {
	t.Helper()
	opts, err := Resolve(map[string]any{"battery_dispatch": variant})
	if err != nil {
		t.Fatal(err)
	}
	return opts
}

func TestHeuristic_ChargesCheapDischargesExpensive(t *testing.T) {
	opts := heuristicOpts(t, "heuristic")
	state := battery.NewState(testSpec(), nil)

	prices := make([]float64, 24)
	for i := range prices {
		prices[i] = 0.10
	}
	prices[2], prices[3] = 0.01, 0.01
	prices[18], prices[19] = 0.80, 0.80

	f := &HeuristicFormulation{}
	p, err := f.Build(testWindow(prices), state, opts)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := f.Solve(p)
	if err != nil {
		t.Fatal(err)
	}

	if sol.ChargeKW[2] == 0 {
		t.Fatal("expected charging during the cheap hours")
	}
	if sol.DischargeKW[18] == 0 && sol.DischargeKW[19] == 0 {
		t.Fatal("expected discharging during the expensive hours")
	}
	for i, soc := range sol.SoC {
		if soc < 0.1-1e-9 || soc > 0.9+1e-9 {
			t.Fatalf("period %d soc %v outside bounds", i, soc)
		}
	}
}

func TestOneCycle_FlatPricesStayIdle(t *testing.T) {
	opts := heuristicOpts(t, "one_cycle_heuristic")
	state := battery.NewState(testSpec(), nil)

	f := &OneCycleFormulation{}
	p, err := f.Build(testWindow(flatPrices(24, 0.10)), state, opts)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := f.Solve(p)
	if err != nil {
		t.Fatal(err)
	}
	if d := totalDischarge(sol); d != 0 {
		t.Fatalf("flat prices cannot pay round-trip losses, got %v kW discharge", d)
	}
}

func TestOneCycle_SingleCyclePerDay(t *testing.T) {
	opts := heuristicOpts(t, "one_cycle_heuristic")
	spec := testSpec()
	state := battery.NewState(spec, nil)

	// Deep overnight trough, strong evening peak.
	prices := make([]float64, 24)
	for i := range prices {
		prices[i] = 0.10
	}
	for i := 0; i < 6; i++ {
		prices[i] = 0.01
	}
	for i := 17; i < 21; i++ {
		prices[i] = 0.70
	}

	f := &OneCycleFormulation{}
	p, err := f.Build(testWindow(prices), state, opts)
	if err != nil {
		t.Fatal(err)
	}
	sol, err := f.Solve(p)
	if err != nil {
		t.Fatal(err)
	}

	var charged, discharged float64
	for i := range sol.ChargeKW {
		charged += sol.ChargeKW[i] * spec.ChargeEfficiency
		discharged += sol.DischargeKW[i] / spec.DischargeEfficiency
	}
	span := (spec.MaxSoC - spec.MinSoC) * spec.CapacityKWh
	if charged == 0 || discharged == 0 {
		t.Fatal("expected one charge and one discharge block")
	}
	if charged > span+1e-6 {
		t.Fatalf("charged %v kWh, more than one cycle of %v kWh", charged, span)
	}
	if discharged > span+1e-6 {
		t.Fatalf("discharged %v kWh, more than one cycle of %v kWh", discharged, span)
	}
}

func TestHeuristic_Deterministic(t *testing.T) {
	opts := heuristicOpts(t, "heuristic")

	prices := append(flatPrices(12, 0.02), flatPrices(12, 0.40)...)
	var first Solution
	for run := 0; run < 3; run++ {
		state := battery.NewState(testSpec(), nil)
		f := &HeuristicFormulation{}
		p, err := f.Build(testWindow(prices), state, opts)
		if err != nil {
			t.Fatal(err)
		}
		sol, err := f.Solve(p)
		if err != nil {
			t.Fatal(err)
		}
		if run == 0 {
			first = sol
			continue
		}
		for i := range first.ChargeKW {
			if first.ChargeKW[i] != sol.ChargeKW[i] || first.DischargeKW[i] != sol.DischargeKW[i] {
				t.Fatalf("run %d period %d differs", run, i)
			}
		}
	}
}
