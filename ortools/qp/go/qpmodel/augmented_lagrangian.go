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
	"math"
	"time"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	initialPenalty     = 10.0
	maxPenalty         = 1e10
	penaltyGrowth      = 10.0
	maxInnerIterations = 10000
	// Iterates whose infinity norm exceeds this value are taken as a sign of unboundedness.
	divergenceLimit = 1e15
)

// augmentedLagrangian holds the Powell-Hestenes-Rockafellar augmented Lagrangian of a problem.
// Bounds are treated as ordinary rows; all rows are scaled to unit norm and the objective is
// scaled so that its gradient at the starting point has unit infinity norm.
type augmentedLagrangian struct {
	p      *problem
	rows   []row
	lambda []float64
	rho    float64
	fscale float64
	fgrad  []float64
}

func newAugmentedLagrangian(p *problem, x0 []float64) *augmentedLagrangian {
	al := &augmentedLagrangian{p: p, rho: initialPenalty, fgrad: make([]float64, p.n)}
	for i, b := range p.bounds {
		al.rows = append(al.rows, row{vars: []int{i}, coeffs: []float64{-1}, rhs: -b.Lower})
		if !math.IsInf(b.Upper, 1) {
			al.rows = append(al.rows, row{vars: []int{i}, coeffs: []float64{1}, rhs: b.Upper})
		}
	}
	for _, r := range p.rows {
		norm := floats.Norm(r.coeffs, 2)
		if norm == 0 {
			// Constant rows were checked by the feasibility phase.
			continue
		}
		scaled := make([]float64, len(r.coeffs))
		floats.ScaleTo(scaled, 1/norm, r.coeffs)
		al.rows = append(al.rows, row{vars: r.vars, coeffs: scaled, rhs: r.rhs / norm, eq: r.eq})
	}
	al.lambda = make([]float64, len(al.rows))

	p.objectiveGrad(al.fgrad, x0)
	al.fscale = 1 / math.Max(1, floats.Norm(al.fgrad, math.Inf(1)))
	return al
}

func (al *augmentedLagrangian) value(x []float64) float64 {
	v := al.fscale * al.p.objective(x)
	for j, r := range al.rows {
		g := r.activity(x) - r.rhs
		lj := al.lambda[j]
		if r.eq {
			v += lj*g + 0.5*al.rho*g*g
			continue
		}
		if t := lj + al.rho*g; t > 0 {
			v += (t*t - lj*lj) / (2 * al.rho)
		} else {
			v -= lj * lj / (2 * al.rho)
		}
	}
	return v
}

func (al *augmentedLagrangian) gradient(grad, x []float64) {
	al.p.objectiveGrad(grad, x)
	floats.Scale(al.fscale, grad)
	for j, r := range al.rows {
		w := al.weight(j, r.activity(x)-r.rhs)
		if w == 0 {
			continue
		}
		for k, i := range r.vars {
			grad[i] += w * r.coeffs[k]
		}
	}
}

// weight returns the multiplier estimate of row j for residual g.
func (al *augmentedLagrangian) weight(j int, g float64) float64 {
	w := al.lambda[j] + al.rho*g
	if !al.rows[j].eq && w < 0 {
		return 0
	}
	return w
}

// updateMultipliers applies the first order multiplier update at x. It returns the largest
// row violation and the largest complementarity residual.
func (al *augmentedLagrangian) updateMultipliers(x []float64) (viol, compl float64) {
	for j, r := range al.rows {
		g := r.activity(x) - r.rhs
		al.lambda[j] = al.weight(j, g)
		viol = math.Max(viol, r.violation(x))
		if !r.eq {
			compl = math.Max(compl, math.Abs(math.Min(-g, al.lambda[j])))
		}
	}
	return viol, compl
}

func (al *augmentedLagrangian) maxViolation(x []float64) float64 {
	var viol float64
	for _, r := range al.rows {
		viol = math.Max(viol, r.violation(x))
	}
	return viol
}

type searchResult struct {
	x          []float64
	status     Status
	iterations int
}

func stopRequested(interrupt <-chan struct{}, deadline time.Time) bool {
	select {
	case <-interrupt:
		return true
	default:
	}
	return !deadline.IsZero() && !time.Now().Before(deadline)
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// search runs the augmented Lagrangian method from x0, which is feasible if `feasible` is
// set. The best feasible iterate is kept so that early termination still returns a usable
// point; without one the search is ABNORMAL.
func (p *problem) search(x0 []float64, feasible bool, prm *Parameters, interrupt <-chan struct{}, deadline time.Time) searchResult {
	al := newAugmentedLagrangian(p, x0)
	x := append([]float64(nil), x0...)
	var best []float64
	bestF := math.Inf(1)
	if feasible {
		best = append([]float64(nil), x0...)
		bestF = p.objective(best)
	}
	stopped := func(iterations int) searchResult {
		if best == nil {
			return searchResult{status: StatusAbnormal, iterations: iterations}
		}
		return searchResult{x: best, status: StatusSuboptimal, iterations: iterations}
	}
	prevViol := math.Inf(1)
	grad := make([]float64, p.n)
	iterations := 0

	for k := 0; k < prm.MaxIterations; k++ {
		if stopRequested(interrupt, deadline) {
			log.V(1).Infof("qpmodel: search stopped after %d outer iterations", k)
			return stopped(iterations)
		}
		settings := &optimize.Settings{
			GradientThreshold: prm.OptimalityTolerance * 1e-2,
			MajorIterations:   maxInnerIterations,
			Converger:         &optimize.FunctionConverge{Absolute: 1e-15, Iterations: 100},
		}
		if !deadline.IsZero() {
			settings.Runtime = time.Until(deadline)
		}
		problem := optimize.Problem{Func: al.value, Grad: al.gradient}
		r, err := optimize.Minimize(problem, x, settings, &optimize.LBFGS{})
		if r == nil {
			log.Warningf("qpmodel: inner minimization failed: %v", err)
			break
		}
		if err != nil {
			log.V(2).Infof("qpmodel: inner minimization ended with status %v: %v", r.Status, err)
		}
		iterations += r.Stats.MajorIterations
		if !allFinite(r.X) || floats.Norm(r.X, math.Inf(1)) > divergenceLimit {
			return searchResult{status: StatusUnbounded, iterations: iterations}
		}
		x = r.X

		al.gradient(grad, x)
		stationarity := floats.Norm(grad, math.Inf(1))
		viol, compl := al.updateMultipliers(x)
		if prm.LogSearchProgress {
			log.Infof("#%d rho: %g obj: %g viol: %g compl: %g stat: %g", k, al.rho, p.objective(x), viol, compl, stationarity)
		}

		xp := p.project(x)
		if al.maxViolation(xp) <= prm.FeasibilityTolerance {
			if f := p.objective(xp); f < bestF {
				best, bestF = xp, f
			}
			if compl <= prm.OptimalityTolerance && stationarity <= prm.OptimalityTolerance {
				status := StatusOptimal
				if !p.convex {
					// Only a local optimum is certified.
					status = StatusSuboptimal
				}
				return searchResult{x: xp, status: status, iterations: iterations}
			}
		}
		if viol > 0.25*prevViol {
			al.rho = math.Min(al.rho*penaltyGrowth, maxPenalty)
		}
		prevViol = viol
	}
	return stopped(iterations)
}
