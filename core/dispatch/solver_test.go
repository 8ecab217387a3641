package dispatch

import (
	"errors"
	"math"
	"testing"

	"github.com/hoppsim/hybrid/core/battery"
)

func TestSolveRelaxation_RecoversOriginalVariables(t *testing.T) {
	// minimize -(x0+x1) s.t. x0+x1+x2 = 1.5, 0 <= x0,x1 <= 1, x2 >= 0.
	lb := newLPBuilder(3)
	lb.addObj(0, -1)
	lb.addObj(1, -1)
	lb.bounds(0, 1)
	lb.bounds(1, 1)
	lb.ineq(map[int]float64{2: -1}, 0)
	lb.eq(map[int]float64{0: 1, 1: 1, 2: 1}, 1.5)

	p := &Problem{}
	lb.into(p)

	obj, x, err := solveRelaxation(p, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(obj-(-1.5)) > 1e-6 {
		t.Fatalf("expected objective -1.5, got %v", obj)
	}
	if sum := x[0] + x[1]; math.Abs(sum-1.5) > 1e-6 {
		t.Fatalf("expected x0+x1 = 1.5, got %v", sum)
	}
}

func TestSolveRelaxation_PinsFixVariables(t *testing.T) {
	lb := newLPBuilder(3)
	lb.addObj(0, -1)
	lb.addObj(1, -1)
	lb.bounds(0, 1)
	lb.bounds(1, 1)
	lb.ineq(map[int]float64{2: -1}, 0)
	lb.eq(map[int]float64{0: 1, 1: 1, 2: 1}, 1.5)

	p := &Problem{}
	lb.into(p)

	_, x, err := solveRelaxation(p, []pin{{index: 0, value: 0}})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if math.Abs(x[0]) > 1e-6 {
		t.Fatalf("pinned variable x0 should be 0, got %v", x[0])
	}
	if math.Abs(x[1]-1) > 1e-6 {
		t.Fatalf("expected x1 = 1, got %v", x[1])
	}
}

func TestFractionalBinary_PicksMostFractional(t *testing.T) {
	p := &Problem{binaries: []int{0, 1, 2}}
	x := []float64{1.0, 0.4, 0.9}
	if got := fractionalBinary(p, x); got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}

	integral := []float64{1.0, 0.0, 1.0}
	if got := fractionalBinary(p, integral); got != -1 {
		t.Fatalf("expected -1 for integral point, got %d", got)
	}
}

func TestSolveProblem_ZeroTimeoutReportsTimeout(t *testing.T) {
	opts, err := Resolve(map[string]any{
		"battery_dispatch": "non_convex_LV",
		"cbc_timeout":      0,
	})
	if err != nil {
		t.Fatal(err)
	}
	state := battery.NewState(testSpec(), nil)

	f := &LinearVoltageFormulation{convex: false}
	p, err := f.Build(testWindow([]float64{0.01, 0.60}), state, opts)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Solve(p)

	var infErr *InfeasibleError
	if !errors.As(err, &infErr) {
		t.Fatalf("expected InfeasibleError, got %v", err)
	}
	if infErr.Status != StatusTimeout {
		t.Fatalf("expected timeout status, got %v", infErr.Status)
	}
}
