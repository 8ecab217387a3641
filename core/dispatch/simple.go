package dispatch

import (
	"github.com/hoppsim/hybrid/core/battery"
	"github.com/hoppsim/hybrid/core/model"
)

// defaultCycleCostUSD prices one equivalent full cycle when lifecycle
// counting is enabled, discouraging low-margin cycling.
const defaultCycleCostUSD = 10.0

// SimpleFormulation is the plain linear program: charge and discharge
// power bounded by the ratings and the state-of-charge headroom, no
// voltage or efficiency-curve modeling. The objective maximizes net
// revenue over the window, optionally penalizing lifecycle throughput.
type SimpleFormulation struct {
	// CycleCostUSD overrides the default lifecycle penalty when non-zero.
	CycleCostUSD float64
}

func (f *SimpleFormulation) Name() Variant { return VariantSimple }

// Build assembles the LP over the window. Variable layout per period t:
// charge c_t, discharge d_t and state of charge s_t.
func (f *SimpleFormulation) Build(w model.DispatchWindow, state *battery.State, opts Options) (*Problem, error) {
	n := w.Len()
	p := newProblem(w, state, opts)
	p.layout = varLayout{
		periods:   n,
		segments:  1,
		charge:    0,
		discharge: n,
		soc:       2 * n,
		mode:      -1,
		total:     3 * n,
	}

	lb := newLPBuilder(p.layout.total)
	dh := w.PeriodHours()
	span := p.CapacityKWh * (p.MaxSoC - p.MinSoC)

	cycleCost := 0.0
	if opts.IncludeLifecycleCount {
		cycleCost = f.CycleCostUSD
		if cycleCost == 0 {
			cycleCost = defaultCycleCostUSD
		}
	}

	for t := 0; t < n; t++ {
		charge := p.layout.charge + t
		discharge := p.layout.discharge + t
		soc := p.layout.soc + t
		price := w.PriceUSDPerKWh[t]

		// Net revenue, expressed as a minimization: buying energy costs
		// price per kWh, selling earns it. Cycling adds the throughput
		// share of one full cycle times its cost.
		lb.addObj(charge, price*dh)
		lb.addObj(discharge, -price*dh)
		if cycleCost > 0 {
			lb.addObj(charge, cycleCost*dh/(2*span))
			lb.addObj(discharge, cycleCost*dh/(2*span))
		}

		lb.bounds(charge, p.ChargeKWMax)
		lb.bounds(discharge, p.DischargeKWMax)
		lb.rangeBounds(soc, p.MinSoC, p.MaxSoC)

		if !opts.GridCharging {
			// Charging limited to the on-site renewable forecast.
			lb.ineq(map[int]float64{charge: 1}, w.GenerationKW[t])
		}

		// SoC dynamics: s_t = s_{t-1} + (eta_c*c_t - d_t/eta_d)*dh/cap.
		coeffs := map[int]float64{
			soc:       1,
			charge:    -p.ChargeEff * dh / p.CapacityKWh,
			discharge: dh / (p.DischargeEff * p.CapacityKWh),
		}
		rhs := 0.0
		if t == 0 {
			rhs = p.InitialSoC
		} else {
			coeffs[soc-1] = -1
		}
		lb.eq(coeffs, rhs)
	}

	lb.into(p)
	return p, nil
}

// Solve runs the simplex solver on the assembled LP.
func (f *SimpleFormulation) Solve(p *Problem) (Solution, error) {
	return solveProblem(p, p.timeout)
}
