// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package qpmodel

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// row is the normalized constraint `sum(coeffs[k] * x[vars[k]]) <= rhs`, or `== rhs` if eq.
type row struct {
	vars   []int
	coeffs []float64
	rhs    float64
	eq     bool
}

func (r row) activity(x []float64) float64 {
	var a float64
	for k, i := range r.vars {
		a += r.coeffs[k] * x[i]
	}
	return a
}

// violation returns the positive part of the constraint residual.
func (r row) violation(x []float64) float64 {
	g := r.activity(x) - r.rhs
	if r.eq {
		return math.Abs(g)
	}
	return math.Max(0, g)
}

// problem is the minimization form of a Model.
type problem struct {
	n      int
	bounds []Interval
	rows   []row
	// Objective in minimization form: offset + sum(lin[i] * x[i]) + sum(quad).
	lin    []float64
	quad   []QuadTerm
	offset float64
	convex bool
}

func newProblem(m *Model) (*problem, error) {
	n := len(m.Variables)
	p := &problem{n: n, lin: make([]float64, n)}
	for i, v := range m.Variables {
		switch {
		case v.Bounds.IsEmpty():
			return nil, newError(CodeInvalidArgument, "variable %q (%d) has empty bounds %v", v.Name, i, v.Bounds)
		case math.IsInf(v.Bounds.Lower, 0):
			return nil, newError(CodeInvalidArgument, "variable %q (%d) must have a finite lower bound, got %v", v.Name, i, v.Bounds.Lower)
		case math.IsInf(v.Bounds.Upper, -1):
			return nil, newError(CodeInvalidArgument, "variable %q (%d) has upper bound -inf", v.Name, i)
		}
		p.bounds = append(p.bounds, v.Bounds)
	}

	for ci, c := range m.Constraints {
		if len(c.Vars) != len(c.Coeffs) {
			return nil, newError(CodeInvalidArgument, "constraint %q (%d) has %d variables and %d coefficients", c.Name, ci, len(c.Vars), len(c.Coeffs))
		}
		if c.Bounds.IsEmpty() || math.IsInf(c.Bounds.Lower, 1) || math.IsInf(c.Bounds.Upper, -1) {
			return nil, newError(CodeInvalidArgument, "constraint %q (%d) has invalid bounds %v", c.Name, ci, c.Bounds)
		}
		vars := make([]int, len(c.Vars))
		for k, ind := range c.Vars {
			if ind < 0 || int(ind) >= n {
				return nil, newError(CodeInvalidArgument, "constraint %q (%d) references unknown variable %d", c.Name, ci, ind)
			}
			if math.IsNaN(c.Coeffs[k]) || math.IsInf(c.Coeffs[k], 0) {
				return nil, newError(CodeInvalidArgument, "constraint %q (%d) has invalid coefficient %v", c.Name, ci, c.Coeffs[k])
			}
			vars[k] = int(ind)
		}
		if c.Bounds.IsFixed() {
			p.rows = append(p.rows, row{vars: vars, coeffs: c.Coeffs, rhs: c.Bounds.Lower, eq: true})
			continue
		}
		if !math.IsInf(c.Bounds.Upper, 1) {
			p.rows = append(p.rows, row{vars: vars, coeffs: c.Coeffs, rhs: c.Bounds.Upper})
		}
		if !math.IsInf(c.Bounds.Lower, -1) {
			neg := make([]float64, len(c.Coeffs))
			for k, v := range c.Coeffs {
				neg[k] = -v
			}
			p.rows = append(p.rows, row{vars: vars, coeffs: neg, rhs: -c.Bounds.Lower})
		}
	}

	sign := 1.0
	if m.Objective.Maximize {
		sign = -1
	}
	o := m.Objective
	if len(o.Vars) != len(o.Coeffs) {
		return nil, newError(CodeInvalidArgument, "objective has %d variables and %d coefficients", len(o.Vars), len(o.Coeffs))
	}
	for k, ind := range o.Vars {
		if ind < 0 || int(ind) >= n {
			return nil, newError(CodeInvalidArgument, "objective references unknown variable %d", ind)
		}
		p.lin[ind] += sign * o.Coeffs[k]
	}
	for _, t := range o.QuadTerms {
		if t.Var1 < 0 || int(t.Var1) >= n || t.Var2 < 0 || int(t.Var2) >= n {
			return nil, newError(CodeInvalidArgument, "objective references unknown variable pair (%d,%d)", t.Var1, t.Var2)
		}
		p.quad = append(p.quad, QuadTerm{Var1: t.Var1, Var2: t.Var2, Coeff: sign * t.Coeff})
	}
	p.offset = sign * o.Offset

	convex, err := p.isConvex()
	if err != nil {
		return nil, err
	}
	p.convex = convex
	return p, nil
}

// objective evaluates the minimization-form objective.
func (p *problem) objective(x []float64) float64 {
	f := p.offset
	for i, c := range p.lin {
		f += c * x[i]
	}
	for _, t := range p.quad {
		f += t.Coeff * x[t.Var1] * x[t.Var2]
	}
	return f
}

// objectiveGrad stores the gradient of the minimization-form objective in grad.
func (p *problem) objectiveGrad(grad, x []float64) {
	copy(grad, p.lin)
	for _, t := range p.quad {
		grad[t.Var1] += t.Coeff * x[t.Var2]
		grad[t.Var2] += t.Coeff * x[t.Var1]
	}
}

// isConvex returns true if the Hessian of the minimization-form objective is positive
// semi-definite.
func (p *problem) isConvex() (bool, error) {
	if len(p.quad) == 0 || p.n == 0 {
		return true, nil
	}
	h := mat.NewSymDense(p.n, nil)
	var scale float64
	for _, t := range p.quad {
		i, j := int(t.Var1), int(t.Var2)
		if i == j {
			h.SetSym(i, i, h.At(i, i)+2*t.Coeff)
		} else {
			h.SetSym(i, j, h.At(i, j)+t.Coeff)
		}
		scale = math.Max(scale, math.Abs(t.Coeff))
	}
	var es mat.EigenSym
	if ok := es.Factorize(h, false); !ok {
		return false, newError(CodeNumeric, "eigen decomposition of the objective Hessian failed")
	}
	for _, ev := range es.Values(nil) {
		if ev < -1e-9*math.Max(1, scale) {
			return false, nil
		}
	}
	return true, nil
}

// project clamps x into the variable bounds.
func (p *problem) project(x []float64) []float64 {
	out := make([]float64, p.n)
	for i, b := range p.bounds {
		out[i] = b.Clamp(x[i])
	}
	return out
}

// phaseOneTol is the reduced cost below which the phase one simplex stops.
const phaseOneTol = 1e-10

// errPhaseOne wraps failures of the simplex other than infeasibility.
var errPhaseOne = errors.New("phase one simplex failed")

// lowerPoint returns the point at the lower bounds.
func (p *problem) lowerPoint() []float64 {
	x := make([]float64, p.n)
	for i, b := range p.bounds {
		x[i] = b.Lower
	}
	return x
}

// findFeasiblePoint solves the phase one linear program over the variable bounds and the
// linear constraints. It returns a point satisfying all of them, an error wrapping
// lp.ErrInfeasible when there is none, or an error wrapping errPhaseOne when the simplex
// fails numerically.
//
// Variables are shifted to y = x - lb >= 0. Every row is scaled to a unit largest
// coefficient and signed so that its right-hand side is non-negative. Inequalities get a
// slack column; rows whose slack enters with a negative sign, and equalities, get an
// artificial column. The slack or artificial columns form an identity starting basis, and
// the simplex minimizes the sum of the artificial columns.
func (p *problem) findFeasiblePoint(tol float64) (x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("%w: %v", errPhaseOne, r)
		}
	}()
	x = p.lowerPoint()

	type stdRow struct {
		coeffs map[int]float64
		rhs    float64
		eq     bool
	}
	var rows []stdRow
	for i, b := range p.bounds {
		if !math.IsInf(b.Upper, 1) {
			rows = append(rows, stdRow{coeffs: map[int]float64{i: 1}, rhs: b.Upper - b.Lower})
		}
	}
	for _, r := range p.rows {
		coeffs := make(map[int]float64, len(r.vars))
		for k, i := range r.vars {
			coeffs[i] += r.coeffs[k]
		}
		var scale float64
		for i, c := range coeffs {
			if c == 0 {
				delete(coeffs, i)
				continue
			}
			scale = math.Max(scale, math.Abs(c))
		}
		rhs := r.rhs - r.activity(x)
		if len(coeffs) == 0 {
			if (r.eq && math.Abs(rhs) > tol) || (!r.eq && rhs < -tol) {
				return nil, lp.ErrInfeasible
			}
			continue
		}
		for i := range coeffs {
			coeffs[i] /= scale
		}
		rows = append(rows, stdRow{coeffs: coeffs, rhs: rhs / scale, eq: r.eq})
	}

	col := make([]int, p.n)
	for i := range col {
		col[i] = -1
	}
	numCols := 0
	for _, r := range rows {
		for i := range r.coeffs {
			if col[i] < 0 {
				col[i] = numCols
				numCols++
			}
		}
	}
	numVarCols := numCols
	numArtificials := 0
	for _, r := range rows {
		if !r.eq {
			numCols++
		}
		if r.eq || r.rhs < 0 {
			numArtificials++
		}
	}
	if numArtificials == 0 {
		// The lower bound point satisfies every row.
		return x, nil
	}
	numCols += numArtificials

	a := mat.NewDense(len(rows), numCols, nil)
	b := make([]float64, len(rows))
	c := make([]float64, numCols)
	basis := make([]int, len(rows))
	slack, artificial := numVarCols, numCols-numArtificials
	// Largest right-hand side of a row with an artificial column.
	var bMax float64
	for ri, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for i, v := range r.coeffs {
			a.Set(ri, col[i], sign*v)
		}
		if !r.eq {
			a.Set(ri, slack, sign)
			basis[ri] = slack
			slack++
		}
		b[ri] = sign * r.rhs
		if r.eq || sign < 0 {
			a.Set(ri, artificial, 1)
			c[artificial] = 1
			basis[ri] = artificial
			artificial++
			bMax = math.Max(bMax, b[ri])
		}
	}

	infeasibility, y, err := lp.Simplex(c, a, b, phaseOneTol, basis)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPhaseOne, err)
	}
	if infeasibility > tol*math.Max(1, bMax) {
		return nil, lp.ErrInfeasible
	}
	for i := range x {
		if col[i] >= 0 {
			x[i] += y[col[i]]
		}
	}
	return p.project(x), nil
}

// solveUnivariate returns the global minimum of a problem with a single variable, whose
// feasible set is an interval. The status is OPTIMAL, INFEASIBLE or UNBOUNDED.
func (p *problem) solveUnivariate(tol float64) ([]float64, Status) {
	iv := p.bounds[0]
	for _, r := range p.rows {
		var a float64
		for _, c := range r.coeffs {
			a += c
		}
		switch {
		case a == 0:
			if (r.eq && math.Abs(r.rhs) > tol) || (!r.eq && r.rhs < -tol) {
				return nil, StatusInfeasible
			}
		case r.eq:
			iv.Lower = math.Max(iv.Lower, r.rhs/a)
			iv.Upper = math.Min(iv.Upper, r.rhs/a)
		case a > 0:
			iv.Upper = math.Min(iv.Upper, r.rhs/a)
		default:
			iv.Lower = math.Max(iv.Lower, r.rhs/a)
		}
	}
	if iv.Lower > iv.Upper+tol {
		return nil, StatusInfeasible
	}
	if iv.Lower > iv.Upper {
		iv.Upper = iv.Lower
	}

	var q float64
	for _, t := range p.quad {
		q += t.Coeff
	}
	l := p.lin[0]
	if math.IsInf(iv.Upper, 1) && (q < 0 || (q == 0 && l < 0)) {
		return nil, StatusUnbounded
	}

	candidates := []float64{iv.Lower}
	if !math.IsInf(iv.Upper, 1) {
		candidates = append(candidates, iv.Upper)
	}
	if q > 0 {
		candidates = append(candidates, iv.Clamp(-l/(2*q)))
	}
	best := []float64{candidates[0]}
	bestF := p.objective(best)
	for _, v := range candidates[1:] {
		if f := p.objective([]float64{v}); f < bestF {
			best, bestF = []float64{v}, f
		}
	}
	return best, StatusOptimal
}
