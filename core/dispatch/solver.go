package dispatch

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	simplexTol = 1e-7
	intTol     = 1e-6
)

// simplexSolve points to the LP solver. It can be overridden in tests to
// simulate solver failures.
var simplexSolve = lp.Simplex

// pin fixes a branched binary variable to a value during branch and bound.
type pin struct {
	index int
	value float64
}

// solveProblem runs the simplex algorithm on the problem's LP relaxation
// and, when binary variables are present, a deadline-bounded branch and
// bound search over them. Both configured solver backends drive this
// embedded engine; the configured timeout bounds the search, and an
// exceeded deadline surfaces as a timeout status rather than blocking.
func solveProblem(p *Problem, timeout time.Duration) (Solution, error) {
	deadline := time.Now().Add(timeout)

	if len(p.binaries) == 0 {
		obj, x, err := solveRelaxation(p, nil)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) {
				return p.infeasible(StatusInfeasible)
			}
			return Solution{}, fmt.Errorf("lp solve: %w", err)
		}
		return p.decode(x, obj), nil
	}

	return branchAndBound(p, deadline)
}

// branchAndBound searches the binary assignments depth first, pruning on
// the incumbent objective. Branching order is deterministic so repeated
// runs produce identical solutions.
func branchAndBound(p *Problem, deadline time.Time) (Solution, error) {
	bestObj := math.Inf(1)
	var bestX []float64

	stack := [][]pin{nil}
	for len(stack) > 0 {
		if time.Now().After(deadline) {
			return p.infeasible(StatusTimeout)
		}

		pins := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		obj, x, err := solveRelaxation(p, pins)
		if err != nil {
			if errors.Is(err, lp.ErrInfeasible) || errors.Is(err, lp.ErrUnbounded) {
				continue
			}
			return Solution{}, fmt.Errorf("lp solve: %w", err)
		}
		if obj >= bestObj-intTol {
			continue
		}

		branch := fractionalBinary(p, x)
		if branch < 0 {
			bestObj = obj
			bestX = x
			continue
		}

		// Explore the rounded-up side first so a feasible incumbent is
		// found early.
		down := append(append([]pin(nil), pins...), pin{index: branch, value: 0})
		up := append(append([]pin(nil), pins...), pin{index: branch, value: 1})
		stack = append(stack, down, up)
	}

	if bestX == nil {
		return p.infeasible(StatusInfeasible)
	}
	return p.decode(bestX, bestObj), nil
}

// fractionalBinary returns the most fractional binary variable of x, or -1
// when all binaries are integral within tolerance.
func fractionalBinary(p *Problem, x []float64) int {
	best := -1
	bestDist := intTol
	for _, idx := range p.binaries {
		frac := math.Abs(x[idx] - math.Round(x[idx]))
		if frac > bestDist {
			bestDist = frac
			best = idx
		}
	}
	return best
}

// solveRelaxation solves the LP relaxation of p with the given branching
// pins appended as equality rows. The returned vector is in the problem's
// original variable space.
func solveRelaxation(p *Problem, pins []pin) (float64, []float64, error) {
	nVar := len(p.c)

	a := p.a
	b := p.b
	if len(pins) > 0 {
		rows, _ := p.a.Dims()
		aug := mat.NewDense(rows+len(pins), nVar, nil)
		aug.Slice(0, rows, 0, nVar).(*mat.Dense).Copy(p.a)
		b = append(append([]float64(nil), p.b...), make([]float64, len(pins))...)
		for i, pn := range pins {
			aug.Set(rows+i, pn.index, 1)
			b[rows+i] = pn.value
		}
		a = aug
	}

	cStd, aStd, bStd := lp.Convert(p.c, p.g, p.h, a, b)
	obj, sol, err := simplexSolve(cStd, aStd, bStd, simplexTol, nil)
	if err != nil {
		return 0, nil, err
	}

	// Convert splits each free variable into a positive and negative part;
	// recover the original variables from the split vector.
	x := make([]float64, nVar)
	for i := 0; i < nVar; i++ {
		x[i] = sol[i] - sol[nVar+i]
	}
	return obj, x, nil
}
