package dispatch

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/hoppsim/hybrid/core/battery"
	"github.com/hoppsim/hybrid/core/model"
)

// Price quantiles separating the charge and discharge bands of the
// threshold heuristic.
const (
	chargeQuantile    = 0.25
	dischargeQuantile = 0.75
)

// HeuristicFormulation is the rule-based fallback: charge whenever the
// price falls into the cheap band of the window, discharge in the
// expensive band. No solver involved, so it is fast and licence-free.
type HeuristicFormulation struct{}

func (f *HeuristicFormulation) Name() Variant { return VariantHeuristic }

// Build snapshots the window and ledger; all work happens in Solve.
func (f *HeuristicFormulation) Build(w model.DispatchWindow, state *battery.State, opts Options) (*Problem, error) {
	p := newProblem(w, state, opts)
	p.layout = varLayout{periods: w.Len(), segments: 1, mode: -1}
	return p, nil
}

// Solve walks the window once, tracking a simulated state of charge.
func (f *HeuristicFormulation) Solve(p *Problem) (Solution, error) {
	w := p.Window
	n := w.Len()

	sorted := append([]float64(nil), w.PriceUSDPerKWh...)
	sort.Float64s(sorted)
	low := stat.Quantile(chargeQuantile, stat.Empirical, sorted, nil)
	high := stat.Quantile(dischargeQuantile, stat.Empirical, sorted, nil)

	// When the bands collapse (flat or spiky price shapes), compare
	// strictly so the bulk price level triggers no action at all.
	strict := low == high

	sim := newSimulation(p)
	for t := 0; t < n; t++ {
		price := w.PriceUSDPerKWh[t]
		switch {
		case price < low || (!strict && price == low):
			sim.charge(t)
		case price > high || (!strict && price == high):
			sim.discharge(t)
		}
	}
	return sim.solution(), nil
}

// OneCycleFormulation limits the battery to at most one full
// charge/discharge cycle per day: the cheapest hours of the window fill
// the battery, the most expensive ones empty it, and nothing happens when
// the price spread cannot pay for the round-trip losses.
type OneCycleFormulation struct{}

func (f *OneCycleFormulation) Name() Variant { return VariantOneCycleHeuristic }

// Build snapshots the window and ledger; all work happens in Solve.
func (f *OneCycleFormulation) Build(w model.DispatchWindow, state *battery.State, opts Options) (*Problem, error) {
	p := newProblem(w, state, opts)
	p.layout = varLayout{periods: w.Len(), segments: 1, mode: -1}
	return p, nil
}

// Solve marks charge periods on the cheapest hours and discharge periods
// on the most expensive ones, then simulates the day in time order.
func (f *OneCycleFormulation) Solve(p *Problem) (Solution, error) {
	w := p.Window
	n := w.Len()
	dh := w.PeriodHours()

	// Periods needed to fill from the current level and to empty the full
	// usable span again.
	headroom := (p.MaxSoC - p.InitialSoC) * p.CapacityKWh
	span := (p.MaxSoC - p.MinSoC) * p.CapacityKWh
	nCharge := int(math.Ceil(headroom / (p.ChargeEff * p.ChargeKWMax * dh)))
	nDischarge := int(math.Ceil(span * p.DischargeEff / (p.DischargeKWMax * dh)))
	if nCharge+nDischarge > n {
		nCharge = n / 2
		nDischarge = n - nCharge
	}

	byPrice := make([]int, n)
	for i := range byPrice {
		byPrice[i] = i
	}
	sort.SliceStable(byPrice, func(a, b int) bool {
		return w.PriceUSDPerKWh[byPrice[a]] < w.PriceUSDPerKWh[byPrice[b]]
	})

	chargeSet := make(map[int]bool, nCharge)
	dischargeSet := make(map[int]bool, nDischarge)
	for _, idx := range byPrice[:nCharge] {
		chargeSet[idx] = true
	}
	for _, idx := range byPrice[n-nDischarge:] {
		dischargeSet[idx] = true
	}

	// A battery that is already full skips the buy leg; otherwise the
	// expensive band must pay for the cheap band plus round-trip losses.
	profitable := nCharge == 0 && nDischarge > 0
	if nCharge > 0 {
		profitable = cycleProfitable(w, byPrice, nCharge, nDischarge, p.ChargeEff*p.DischargeEff)
	}
	if !profitable {
		sim := newSimulation(p)
		return sim.solution(), nil
	}

	sim := newSimulation(p)
	for t := 0; t < n; t++ {
		switch {
		case chargeSet[t]:
			sim.charge(t)
		case dischargeSet[t]:
			sim.discharge(t)
		}
	}
	return sim.solution(), nil
}

// cycleProfitable checks that the expensive band pays for the cheap band
// plus the round-trip efficiency loss.
func cycleProfitable(w model.DispatchWindow, byPrice []int, nCharge, nDischarge int, roundTrip float64) bool {
	if nCharge == 0 || nDischarge == 0 {
		return false
	}
	var buy, sell float64
	for _, idx := range byPrice[:nCharge] {
		buy += w.PriceUSDPerKWh[idx]
	}
	for _, idx := range byPrice[len(byPrice)-nDischarge:] {
		sell += w.PriceUSDPerKWh[idx]
	}
	buy /= float64(nCharge)
	sell /= float64(nDischarge)
	return sell*roundTrip > buy
}

// simulation tracks a forward SoC walk shared by both heuristics.
type simulation struct {
	p   *Problem
	soc float64
	sol Solution
}

func newSimulation(p *Problem) *simulation {
	n := p.Window.Len()
	return &simulation{
		p:   p,
		soc: p.InitialSoC,
		sol: Solution{
			Status:       StatusOptimal,
			ChargeKW:     make([]float64, n),
			DischargeKW:  make([]float64, n),
			SoC:          make([]float64, n),
			GridImportKW: make([]float64, n),
			GridExportKW: make([]float64, n),
		},
	}
}

func (s *simulation) charge(t int) {
	p := s.p
	dh := p.Window.PeriodHours()

	power := p.ChargeKWMax
	if !p.gridCharging && power > p.Window.GenerationKW[t] {
		power = p.Window.GenerationKW[t]
	}
	headroom := (p.MaxSoC - s.soc) * p.CapacityKWh
	maxPower := headroom / (p.ChargeEff * dh)
	if power > maxPower {
		power = maxPower
	}
	if power <= 0 {
		s.record(t, 0, 0)
		return
	}
	s.soc += power * p.ChargeEff * dh / p.CapacityKWh
	s.record(t, power, 0)
}

func (s *simulation) discharge(t int) {
	p := s.p
	dh := p.Window.PeriodHours()

	power := p.DischargeKWMax
	available := (s.soc - p.MinSoC) * p.CapacityKWh
	maxPower := available * p.DischargeEff / dh
	if power > maxPower {
		power = maxPower
	}
	if power <= 0 {
		s.record(t, 0, 0)
		return
	}
	s.soc -= power * dh / (p.DischargeEff * p.CapacityKWh)
	s.record(t, 0, power)
}

func (s *simulation) record(t int, chargeKW, dischargeKW float64) {
	p := s.p
	s.sol.ChargeKW[t] = chargeKW
	s.sol.DischargeKW[t] = dischargeKW
	s.sol.SoC[t] = s.soc

	net := p.Window.LoadKW[t] + chargeKW - p.Window.GenerationKW[t] - dischargeKW
	s.sol.GridImportKW[t] = math.Max(net, 0)
	s.sol.GridExportKW[t] = math.Max(-net, 0)

	dh := p.Window.PeriodHours()
	s.sol.Objective += p.Window.PriceUSDPerKWh[t] * (chargeKW - dischargeKW) * dh
}

func (s *simulation) solution() Solution {
	// Periods the walk never touched still need their SoC trace and grid
	// exchange filled in.
	for t := range s.sol.SoC {
		if s.sol.ChargeKW[t] == 0 && s.sol.DischargeKW[t] == 0 {
			if t == 0 {
				s.sol.SoC[t] = s.p.InitialSoC
			} else {
				s.sol.SoC[t] = s.sol.SoC[t-1]
			}
			net := s.p.Window.LoadKW[t] - s.p.Window.GenerationKW[t]
			s.sol.GridImportKW[t] = math.Max(net, 0)
			s.sol.GridExportKW[t] = math.Max(-net, 0)
		}
	}
	return s.sol
}
