package dispatch

import (
	"github.com/hoppsim/hybrid/core/battery"
	"github.com/hoppsim/hybrid/core/model"
)

// Linear-voltage formulations model the voltage-dependent charge
// efficiency as a piecewise-linear curve over the charge power range,
// split into equal-width segments.
const voltageSegments = 3

// Per-segment charge efficiencies. The convex profile is monotonically
// decreasing, so the LP relaxation fills segments in order on its own. The
// non-convex profile has a mid-range sweet spot and needs binary
// fill-order and mode variables to stay physical.
var (
	convexSegmentEff    = [voltageSegments]float64{0.97, 0.94, 0.90}
	nonConvexSegmentEff = [voltageSegments]float64{0.91, 0.97, 0.93}
)

// LinearVoltageFormulation implements both linear-voltage variants. The
// convex flavor solves as a plain LP; the non-convex flavor is a
// mixed-integer program, more accurate and slower to solve.
type LinearVoltageFormulation struct {
	convex bool

	CycleCostUSD float64
}

func (f *LinearVoltageFormulation) Name() Variant {
	if f.convex {
		return VariantConvexLV
	}
	return VariantNonConvexLV
}

// Build assembles the segmented LP/MILP. Variable layout per period t:
// charge segments c_{t,0..K-1}, discharge d_t, state of charge s_t, and
// for the non-convex variant a charge/discharge mode binary u_t plus
// fill-order binaries y_{t,1..K-1}.
func (f *LinearVoltageFormulation) Build(w model.DispatchWindow, state *battery.State, opts Options) (*Problem, error) {
	n := w.Len()
	k := voltageSegments
	p := newProblem(w, state, opts)

	p.layout = varLayout{
		periods:   n,
		segments:  k,
		charge:    0,
		discharge: n * k,
		soc:       n*k + n,
		mode:      -1,
		total:     n*k + 2*n,
	}
	orderOffset := -1
	if !f.convex {
		p.layout.mode = p.layout.total
		orderOffset = p.layout.mode + n
		p.layout.total = orderOffset + n*(k-1)
	}

	lb := newLPBuilder(p.layout.total)
	dh := w.PeriodHours()
	span := p.CapacityKWh * (p.MaxSoC - p.MinSoC)
	segWidth := p.ChargeKWMax / float64(k)

	segEff := convexSegmentEff
	if !f.convex {
		segEff = nonConvexSegmentEff
	}

	cycleCost := 0.0
	if opts.IncludeLifecycleCount {
		cycleCost = f.CycleCostUSD
		if cycleCost == 0 {
			cycleCost = defaultCycleCostUSD
		}
	}

	for t := 0; t < n; t++ {
		discharge := p.layout.discharge + t
		soc := p.layout.soc + t
		price := w.PriceUSDPerKWh[t]

		socCoeffs := map[int]float64{
			soc:       1,
			discharge: dh / (p.DischargeEff * p.CapacityKWh),
		}
		chargeSum := make(map[int]float64, k)

		for seg := 0; seg < k; seg++ {
			c := p.layout.charge + t*k + seg
			lb.addObj(c, price*dh)
			if cycleCost > 0 {
				lb.addObj(c, cycleCost*dh/(2*span))
			}
			lb.bounds(c, segWidth)
			socCoeffs[c] = -segEff[seg] * dh / p.CapacityKWh
			chargeSum[c] = 1
		}

		lb.addObj(discharge, -price*dh)
		if cycleCost > 0 {
			lb.addObj(discharge, cycleCost*dh/(2*span))
		}
		lb.bounds(discharge, p.DischargeKWMax)
		lb.rangeBounds(soc, p.MinSoC, p.MaxSoC)

		if !opts.GridCharging {
			lb.ineq(chargeSum, w.GenerationKW[t])
		}

		rhs := 0.0
		if t == 0 {
			rhs = p.InitialSoC
		} else {
			socCoeffs[soc-1] = -1
		}
		lb.eq(socCoeffs, rhs)

		if !f.convex {
			mode := p.layout.mode + t
			lb.bounds(mode, 1)
			p.binaries = append(p.binaries, mode)

			// Charging and discharging are mutually exclusive modes.
			ex := make(map[int]float64, k+1)
			for c := range chargeSum {
				ex[c] = 1
			}
			ex[mode] = -p.ChargeKWMax
			lb.ineq(ex, 0)
			lb.ineq(map[int]float64{discharge: 1, mode: p.DischargeKWMax}, p.DischargeKWMax)

			// A segment opens only once the previous one is saturated, so
			// the solver cannot cherry-pick the sweet-spot efficiency.
			for seg := 1; seg < k; seg++ {
				y := orderOffset + t*(k-1) + seg - 1
				cur := p.layout.charge + t*k + seg
				prev := cur - 1
				lb.bounds(y, 1)
				p.binaries = append(p.binaries, y)
				lb.ineq(map[int]float64{cur: 1, y: -segWidth}, 0)
				lb.ineq(map[int]float64{y: segWidth, prev: -1}, 0)
			}
		}
	}

	lb.into(p)
	return p, nil
}

// Solve runs the simplex solver, with branch and bound over the binaries
// for the non-convex variant.
func (f *LinearVoltageFormulation) Solve(p *Problem) (Solution, error) {
	return solveProblem(p, p.timeout)
}
