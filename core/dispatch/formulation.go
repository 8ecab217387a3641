// Package dispatch contains the battery dispatch optimization layer: a
// validated option schema, a family of interchangeable problem formulations
// and the LP/MILP machinery they share. The rolling-horizon scheduler in
// core/scheduler drives repeated solves against these formulations.
package dispatch

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/hoppsim/hybrid/core/battery"
	"github.com/hoppsim/hybrid/core/model"
)

// SolveStatus classifies the outcome of one window solve.
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "optimal"
	StatusInfeasible SolveStatus = "infeasible"
	StatusTimeout    SolveStatus = "timeout"
)

func (s SolveStatus) String() string { return string(s) }

// Solution holds the decision variables of one solve over the full
// look-ahead window. Only the leading roll-forward prefix is ever committed
// to the battery ledger.
type Solution struct {
	Status    SolveStatus
	Objective float64

	ChargeKW     []float64
	DischargeKW  []float64
	SoC          []float64
	GridImportKW []float64
	GridExportKW []float64

	// ChargeMode is populated by the non-convex variant: true when the
	// period's binary mode variable selected charging.
	ChargeMode []bool
}

// Formulation is the contract shared by all dispatch variants: assemble a
// problem for one window against the current battery ledger, then solve it.
type Formulation interface {
	Name() Variant
	Build(window model.DispatchWindow, state *battery.State, opts Options) (*Problem, error)
	Solve(p *Problem) (Solution, error)
}

// New binds the variant selected in the options to a concrete formulation.
func New(opts Options) (Formulation, error) {
	switch opts.BatteryDispatch {
	case VariantSimple:
		return &SimpleFormulation{}, nil
	case VariantConvexLV:
		return &LinearVoltageFormulation{convex: true}, nil
	case VariantNonConvexLV:
		return &LinearVoltageFormulation{convex: false}, nil
	case VariantHeuristic:
		return &HeuristicFormulation{}, nil
	case VariantOneCycleHeuristic:
		return &OneCycleFormulation{}, nil
	default:
		return nil, &UnsupportedFormulationError{Variant: string(opts.BatteryDispatch)}
	}
}

// varLayout records the variable offsets of an assembled problem so the
// solver's raw vector can be decoded back into per-period decisions.
type varLayout struct {
	periods   int
	segments  int // charge segments per period, 1 for the simple variant
	charge    int // offset of the first charge variable
	discharge int
	soc       int
	mode      int // offset of the binary mode variables, -1 when absent
	total     int
}

// Problem is an assembled optimization problem in general LP form:
// minimize cᵀx subject to Gx <= h, Ax = b, with binary restrictions on the
// listed variables. Heuristic formulations leave the matrices nil and carry
// only the window and ledger snapshot.
type Problem struct {
	Window model.DispatchWindow

	InitialSoC     float64
	CapacityKWh    float64
	MinSoC         float64
	MaxSoC         float64
	ChargeEff      float64
	DischargeEff   float64
	ChargeKWMax    float64
	DischargeKWMax float64

	c []float64
	g *mat.Dense
	h []float64
	a *mat.Dense
	b []float64

	binaries     []int
	layout       varLayout
	timeout      time.Duration
	gridCharging bool
}

func newProblem(w model.DispatchWindow, state *battery.State, opts Options) *Problem {
	spec := state.Spec
	return &Problem{
		timeout:        opts.SolverTimeout,
		gridCharging:   opts.GridCharging,
		Window:         w,
		InitialSoC:     state.SoC,
		CapacityKWh:    state.UsableCapacityKWh,
		MinSoC:         spec.MinSoC,
		MaxSoC:         spec.MaxSoC,
		ChargeEff:      spec.ChargeEfficiency,
		DischargeEff:   spec.DischargeEfficiency,
		ChargeKWMax:    state.AvailableChargeKW(),
		DischargeKWMax: state.AvailableDischargeKW(),
	}
}

// decode maps the solver's raw variable vector into a Solution, clamping
// solver noise at the variable bounds and deriving the grid exchange from
// the window's generation and load forecasts.
func (p *Problem) decode(x []float64, objective float64) Solution {
	n := p.layout.periods
	sol := Solution{
		Status:       StatusOptimal,
		Objective:    objective,
		ChargeKW:     make([]float64, n),
		DischargeKW:  make([]float64, n),
		SoC:          make([]float64, n),
		GridImportKW: make([]float64, n),
		GridExportKW: make([]float64, n),
	}
	for t := 0; t < n; t++ {
		var charge float64
		for k := 0; k < p.layout.segments; k++ {
			charge += x[p.layout.charge+t*p.layout.segments+k]
		}
		sol.ChargeKW[t] = clamp(charge, 0, p.ChargeKWMax)
		sol.DischargeKW[t] = clamp(x[p.layout.discharge+t], 0, p.DischargeKWMax)
		sol.SoC[t] = clamp(x[p.layout.soc+t], p.MinSoC, p.MaxSoC)

		net := p.Window.LoadKW[t] + sol.ChargeKW[t] - p.Window.GenerationKW[t] - sol.DischargeKW[t]
		sol.GridImportKW[t] = math.Max(net, 0)
		sol.GridExportKW[t] = math.Max(-net, 0)
	}
	if p.layout.mode >= 0 {
		sol.ChargeMode = make([]bool, n)
		for t := 0; t < n; t++ {
			sol.ChargeMode[t] = x[p.layout.mode+t] > 0.5
		}
	}
	return sol
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// infeasible wraps a failed solve into the error the scheduler reacts to.
func (p *Problem) infeasible(status SolveStatus) (Solution, error) {
	return Solution{Status: status}, &InfeasibleError{
		WindowStart: p.Window.Start,
		WindowEnd:   p.Window.End(),
		Status:      status,
	}
}
