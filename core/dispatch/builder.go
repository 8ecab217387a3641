package dispatch

import "gonum.org/v1/gonum/mat"

// lpBuilder assembles general-form LP matrices row by row. Variables are
// treated as free by the solver, so non-negativity must be added as
// explicit inequality rows.
type lpBuilder struct {
	nVar int
	c    []float64

	gRows [][]float64
	h     []float64
	aRows [][]float64
	b     []float64
}

func newLPBuilder(nVar int) *lpBuilder {
	return &lpBuilder{nVar: nVar, c: make([]float64, nVar)}
}

// addObj accumulates an objective coefficient (minimization sense).
func (lb *lpBuilder) addObj(idx int, coef float64) {
	lb.c[idx] += coef
}

// ineq appends a row Σ coef·x <= rhs.
func (lb *lpBuilder) ineq(coeffs map[int]float64, rhs float64) {
	row := make([]float64, lb.nVar)
	for idx, coef := range coeffs {
		row[idx] = coef
	}
	lb.gRows = append(lb.gRows, row)
	lb.h = append(lb.h, rhs)
}

// eq appends a row Σ coef·x = rhs.
func (lb *lpBuilder) eq(coeffs map[int]float64, rhs float64) {
	row := make([]float64, lb.nVar)
	for idx, coef := range coeffs {
		row[idx] = coef
	}
	lb.aRows = append(lb.aRows, row)
	lb.b = append(lb.b, rhs)
}

// bounds appends 0 <= x_idx <= upper.
func (lb *lpBuilder) bounds(idx int, upper float64) {
	lb.ineq(map[int]float64{idx: 1}, upper)
	lb.ineq(map[int]float64{idx: -1}, 0)
}

// rangeBounds appends lower <= x_idx <= upper.
func (lb *lpBuilder) rangeBounds(idx int, lower, upper float64) {
	lb.ineq(map[int]float64{idx: 1}, upper)
	lb.ineq(map[int]float64{idx: -1}, -lower)
}

// into writes the assembled matrices onto the problem.
func (lb *lpBuilder) into(p *Problem) {
	p.c = lb.c
	p.g = mat.NewDense(len(lb.gRows), lb.nVar, nil)
	for i, row := range lb.gRows {
		p.g.SetRow(i, row)
	}
	p.h = lb.h
	p.a = mat.NewDense(len(lb.aRows), lb.nVar, nil)
	for i, row := range lb.aRows {
		p.a.SetRow(i, row)
	}
	p.b = lb.b
}
