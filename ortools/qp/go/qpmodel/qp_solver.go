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
	"time"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// Status is the termination status of a solve.
type Status int

// Possible values of Response.Status.
const (
	StatusUnknown Status = iota
	// StatusOptimal means a point satisfying the optimality conditions of a convex model was found.
	StatusOptimal
	// StatusSuboptimal means the solver stopped early (iteration limit, time limit, interrupt,
	// or a non-convex objective) but returns a feasible point.
	StatusSuboptimal
	// StatusInfeasible means no point satisfies the bounds and the linear constraints.
	StatusInfeasible
	// StatusUnbounded means the objective can be improved without limit.
	StatusUnbounded
	// StatusAbnormal means the solver failed for numerical reasons.
	StatusAbnormal
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusOptimal:
		return "OPTIMAL"
	case StatusSuboptimal:
		return "SUBOPTIMAL"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusUnbounded:
		return "UNBOUNDED"
	case StatusAbnormal:
		return "ABNORMAL"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// HasSolution returns true if a response with this status carries variable values.
func (s Status) HasSolution() bool {
	return s == StatusOptimal || s == StatusSuboptimal
}

// Parameters control a solve. Zero fields take their default values.
type Parameters struct {
	// MaxTime limits the wall-clock time of the solve. Zero means no limit.
	MaxTime time.Duration
	// MaxIterations limits the number of outer (multiplier update) iterations.
	MaxIterations int
	// FeasibilityTolerance is the largest accepted violation of a normalized constraint.
	FeasibilityTolerance float64
	// OptimalityTolerance bounds the stationarity and complementarity residuals of an
	// optimal point.
	OptimalityTolerance float64
	// LogSearchProgress logs every outer iteration at INFO level.
	LogSearchProgress bool
}

const (
	defaultMaxIterations        = 100
	defaultFeasibilityTolerance = 1e-7
	defaultOptimalityTolerance  = 1e-6
)

// DefaultParameters returns the parameters used by SolveModel.
func DefaultParameters() *Parameters {
	return &Parameters{
		MaxIterations:        defaultMaxIterations,
		FeasibilityTolerance: defaultFeasibilityTolerance,
		OptimalityTolerance:  defaultOptimalityTolerance,
	}
}

func (p *Parameters) withDefaults() Parameters {
	var out Parameters
	if p != nil {
		out = *p
	}
	if out.MaxIterations <= 0 {
		out.MaxIterations = defaultMaxIterations
	}
	if out.FeasibilityTolerance <= 0 {
		out.FeasibilityTolerance = defaultFeasibilityTolerance
	}
	if out.OptimalityTolerance <= 0 {
		out.OptimalityTolerance = defaultOptimalityTolerance
	}
	return out
}

// Response is the result of a solve.
type Response struct {
	Status Status
	// ObjectiveValue is the objective of the model (in its own direction) at Values.
	ObjectiveValue float64
	// Values holds one value per model variable. It is nil unless Status.HasSolution().
	Values []float64
	// Iterations is the total number of inner quasi-Newton iterations.
	Iterations int
	// WallTime is the elapsed time of the solve.
	WallTime time.Duration
	// MaxViolation is the largest bound or constraint violation at Values, in model units.
	MaxViolation float64
}

// SolveModel solves the model with the default parameters.
func SolveModel(m *Model) (*Response, error) {
	return SolveModelWithParameters(m, nil)
}

// SolveModelWithParameters solves the model with the given parameters. A nil `params` uses
// the defaults.
//
// An error is returned, and no solve is attempted, when the model is malformed; the error is
// a *Error carrying the reason code.
func SolveModelWithParameters(m *Model, params *Parameters) (*Response, error) {
	return solve(m, params, nil)
}

// SolveModelInterruptibleWithParameters is the same as SolveModelWithParameters, except the
// solve stops at the next outer iteration once `interrupt` is closed. An interrupted solve
// reports StatusSuboptimal with the best feasible point found so far.
func SolveModelInterruptibleWithParameters(m *Model, params *Parameters, interrupt <-chan struct{}) (*Response, error) {
	return solve(m, params, interrupt)
}

// SolutionValue returns the value of LinearArgument `la` in the response.
func SolutionValue(r *Response, la LinearArgument) float64 {
	return la.evaluateSolutionValue(r.Values)
}

// Solver solves models with a fixed set of parameters. It holds no per-solve state, so a
// single Solver can be used from several goroutines.
type Solver struct {
	params Parameters
}

// NewSolver returns a Solver using a copy of `params`. A nil `params` uses the defaults.
func NewSolver(params *Parameters) *Solver {
	return &Solver{params: params.withDefaults()}
}

// Parameters returns the parameters used by the solver.
func (s *Solver) Parameters() Parameters {
	return s.params
}

// Solve solves the model.
func (s *Solver) Solve(m *Model) (*Response, error) {
	return SolveModelWithParameters(m, &s.params)
}

func solve(m *Model, params *Parameters, interrupt <-chan struct{}) (*Response, error) {
	start := time.Now()
	if m == nil {
		return nil, newError(CodeInvalidArgument, "model is nil")
	}
	prm := params.withDefaults()
	var deadline time.Time
	if prm.MaxTime > 0 {
		deadline = start.Add(prm.MaxTime)
	}

	p, err := newProblem(m)
	if err != nil {
		return nil, err
	}
	if !p.convex && !m.NonConvex {
		return nil, newError(CodeNotPSD, "objective of model %q is not convex in its optimization direction; set NonConvex to solve it", m.Name)
	}

	res := &Response{}
	finish := func() (*Response, error) {
		if res.Status.HasSolution() {
			res.ObjectiveValue = m.Objective.Evaluate(res.Values)
			res.MaxViolation = modelViolation(m, res.Values)
		}
		res.WallTime = time.Since(start)
		log.V(1).Infof("qpmodel: model %q solved with status %v in %v (%d iterations)", m.Name, res.Status, res.WallTime, res.Iterations)
		return res, nil
	}

	if p.n == 0 {
		res.Status = StatusOptimal
		res.Values = []float64{}
		return finish()
	}

	if p.n == 1 && !p.convex {
		// The global minimum lies at an end of the feasible interval.
		x, status := p.solveUnivariate(prm.FeasibilityTolerance)
		res.Status = status
		if status.HasSolution() {
			res.Values = x
		}
		return finish()
	}

	x0, err := p.findFeasiblePoint(prm.FeasibilityTolerance)
	feasible := true
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		res.Status = StatusInfeasible
		return finish()
	case err != nil:
		// The augmented Lagrangian can start outside of the feasible set.
		log.Warningf("qpmodel: feasibility phase of model %q failed, starting from the lower bounds: %v", m.Name, err)
		x0, feasible = p.lowerPoint(), false
	}

	sr := p.search(x0, feasible, &prm, interrupt, deadline)
	res.Status = sr.status
	res.Iterations = sr.iterations
	if sr.status.HasSolution() {
		res.Values = sr.x
	}
	return finish()
}

// modelViolation returns the largest bound or constraint violation of `values`.
func modelViolation(m *Model, values []float64) float64 {
	var worst float64
	for i, v := range m.Variables {
		worst = math.Max(worst, v.Bounds.Violation(values[i]))
	}
	for _, c := range m.Constraints {
		var activity float64
		for k, ind := range c.Vars {
			activity += c.Coeffs[k] * values[ind]
		}
		worst = math.Max(worst, c.Bounds.Violation(activity))
	}
	return worst
}
