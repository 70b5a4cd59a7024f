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
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const solveTol = 1e-3

// pricingModel builds the two-price model `max sum((p_i - c_i)(a_i - b_i p_i))` with the
// ordering constraint p_1 <= p_2 and a capacity constraint on sum(g_i (a_i - b_i p_i)).
func pricingModel(t *testing.T, capacity float64) (*Model, []Var) {
	t.Helper()
	mb := NewModelBuilder("pricing")
	p1 := mb.NewVar(10, 200).WithName("price_f1")
	p2 := mb.NewVar(20, 200).WithName("price_f2")

	d1 := NewLinearExpr().AddTerm(p1, -4).AddConstant(460)
	d2 := NewLinearExpr().AddTerm(p2, -2).AddConstant(180)

	usage := NewLinearExpr().AddWeightedSum([]LinearArgument{d1, d2}, []float64{10, 50})
	mb.AddLessOrEqual(usage, NewConstant(capacity)).WithName("Capacity")
	mb.AddLessOrEqual(p1, p2).WithName("Order_f1_f2")

	obj := NewQuadExpr().
		AddProduct(NewLinearExpr().Add(p1).AddConstant(-10), d1, 1).
		AddProduct(NewLinearExpr().Add(p2).AddConstant(-20), d2, 1)
	mb.Maximize(obj)

	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	return m, []Var{p1, p2}
}

func TestSolveModel(t *testing.T) {
	testCases := []struct {
		name       string
		build      func(t *testing.T) (*Model, []Var)
		wantStatus Status
		wantValues []float64
		wantObj    float64
	}{
		{
			name: "BoundedParabola",
			build: func(t *testing.T) (*Model, []Var) {
				mb := NewModelBuilder("parabola")
				x := mb.NewVar(0, 2)
				// x^2 - 6x + 9, minimized at the upper bound.
				mb.Minimize(NewQuadExpr().AddProduct(x, x, 1).Add(NewLinearExpr().AddTerm(x, -6).AddConstant(9)))
				m, err := mb.Model()
				if err != nil {
					t.Fatalf("Model() returned with unexpected error %v", err)
				}
				return m, []Var{x}
			},
			wantStatus: StatusOptimal,
			wantValues: []float64{2},
			wantObj:    1,
		},
		{
			name: "LinearProgram",
			build: func(t *testing.T) (*Model, []Var) {
				mb := NewModelBuilder("lp")
				x := mb.NewVar(0, 3)
				y := mb.NewVar(0, 10)
				mb.AddLessOrEqual(NewLinearExpr().Add(x).AddTerm(y, 2), NewConstant(4))
				mb.Maximize(NewQuadExpr().Add(NewLinearExpr().AddSum(x, y)))
				m, err := mb.Model()
				if err != nil {
					t.Fatalf("Model() returned with unexpected error %v", err)
				}
				return m, []Var{x, y}
			},
			wantStatus: StatusOptimal,
			wantValues: []float64{3, 0.5},
			wantObj:    3.5,
		},
		{
			name: "PricingUnconstrainedOptimumOnOrderingBoundary",
			build: func(t *testing.T) (*Model, []Var) {
				return pricingModel(t, 10000)
			},
			wantStatus: StatusOptimal,
			// Unconstrained optima are 62.5 and 55, so the ordering constraint binds at 60.
			wantValues: []float64{60, 60},
			wantObj:    13400,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			m, vars := test.build(t)
			res, err := SolveModel(m)
			if err != nil {
				t.Fatalf("SolveModel() returned with unexpected error %v", err)
			}
			if res.Status != test.wantStatus {
				t.Fatalf("SolveModel() status = %v, want %v", res.Status, test.wantStatus)
			}
			var got []float64
			for _, v := range vars {
				got = append(got, SolutionValue(res, v))
			}
			if diff := cmp.Diff(test.wantValues, got, cmpopts.EquateApprox(0, solveTol)); diff != "" {
				t.Errorf("SolveModel() values returned with unexpected diff (-want+got):\n%s", diff)
			}
			if math.Abs(res.ObjectiveValue-test.wantObj) > solveTol*math.Max(1, math.Abs(test.wantObj)) {
				t.Errorf("SolveModel() objective = %v, want %v", res.ObjectiveValue, test.wantObj)
			}
			if res.MaxViolation > 1e-5 {
				t.Errorf("SolveModel() max violation = %v, want <= 1e-5", res.MaxViolation)
			}
		})
	}
}

func TestSolveModel_CapacityBinding(t *testing.T) {
	m, vars := pricingModel(t, 3000)
	res, err := SolveModel(m)
	if err != nil {
		t.Fatalf("SolveModel() returned with unexpected error %v", err)
	}
	if !res.Status.HasSolution() {
		t.Fatalf("SolveModel() status = %v, want a solution", res.Status)
	}
	p1, p2 := SolutionValue(res, vars[0]), SolutionValue(res, vars[1])
	usage := 10*(460-4*p1) + 50*(180-2*p2)
	if usage > 3000+1e-3 {
		t.Errorf("usage = %v, want <= 3000", usage)
	}
	if p1 > p2+1e-6 {
		t.Errorf("p1 = %v > p2 = %v, want ordered prices", p1, p2)
	}
	if math.Abs(usage-3000) > 1 {
		t.Errorf("usage = %v, want the capacity constraint to bind", usage)
	}
}

func TestSolveModel_Infeasible(t *testing.T) {
	mb := NewModelBuilder("infeasible")
	x := mb.NewVar(0, 1)
	mb.AddGreaterOrEqual(x, NewConstant(2))
	mb.Maximize(NewQuadExpr().Add(x))
	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}

	res, err := SolveModel(m)
	if err != nil {
		t.Fatalf("SolveModel() returned with unexpected error %v", err)
	}
	if res.Status != StatusInfeasible {
		t.Errorf("SolveModel() status = %v, want %v", res.Status, StatusInfeasible)
	}
	if res.Values != nil {
		t.Errorf("SolveModel() values = %v, want nil", res.Values)
	}
}

func TestSolveModel_NonConvex(t *testing.T) {
	build := func(nonConvex bool) *Model {
		mb := NewModelBuilder("nonconvex")
		x := mb.NewVar(0, 1)
		mb.Maximize(NewQuadExpr().AddProduct(x, x, 1))
		mb.SetNonConvex(nonConvex)
		m, err := mb.Model()
		if err != nil {
			t.Fatalf("Model() returned with unexpected error %v", err)
		}
		return m
	}

	_, err := SolveModel(build(false))
	var qerr *Error
	if !errors.As(err, &qerr) || qerr.Code != CodeNotPSD {
		t.Fatalf("SolveModel() err = %v, want code %v", err, CodeNotPSD)
	}
	if got, want := qerr.Code.String(), "Q_NOT_PSD"; got != want {
		t.Errorf("Code.String() = %q, want %q", got, want)
	}

	res, err := SolveModel(build(true))
	if err != nil {
		t.Fatalf("SolveModel() returned with unexpected error %v", err)
	}
	if res.Status != StatusOptimal {
		t.Errorf("SolveModel() status = %v, want %v", res.Status, StatusOptimal)
	}
	if diff := cmp.Diff([]float64{1}, res.Values, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("SolveModel() values returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestSolveModel_NonConvexMultivariate(t *testing.T) {
	mb := NewModelBuilder("nonconvex")
	x := mb.NewVar(0, 1)
	y := mb.NewVar(0, 1)
	mb.Maximize(NewQuadExpr().AddProduct(x, x, 1).AddProduct(y, y, 1))
	mb.SetNonConvex(true)
	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}

	res, err := SolveModel(m)
	if err != nil {
		t.Fatalf("SolveModel() returned with unexpected error %v", err)
	}
	// A local search cannot certify a global maximum.
	if res.Status != StatusSuboptimal {
		t.Errorf("SolveModel() status = %v, want %v", res.Status, StatusSuboptimal)
	}
	for _, v := range []Var{x, y} {
		if got := SolutionValue(res, v); got < -1e-9 || got > 1+1e-9 {
			t.Errorf("SolveModel() value = %v, want in [0, 1]", got)
		}
	}
}

func TestSolveModel_Univariate(t *testing.T) {
	testCases := []struct {
		name       string
		build      func(mb *Builder, x Var)
		ub         float64
		wantStatus Status
		want       float64
	}{
		{
			name: "ConcaveUpToRow",
			ub:   math.Inf(1),
			build: func(mb *Builder, x Var) {
				mb.AddLessOrEqual(x, NewConstant(3))
				mb.Minimize(NewQuadExpr().AddProduct(x, x, -1))
			},
			wantStatus: StatusOptimal,
			want:       3,
		},
		{
			name: "ConcaveLowerEndFromRow",
			ub:   4,
			build: func(mb *Builder, x Var) {
				mb.AddGreaterOrEqual(x, NewConstant(1))
				// -(x-3)^2 is -4 at x = 1 and -1 at x = 4.
				mb.Minimize(NewQuadExpr().AddProduct(x, x, -1).Add(NewLinearExpr().AddTerm(x, 6).AddConstant(-9)))
			},
			wantStatus: StatusOptimal,
			want:       1,
		},
		{
			name: "FixedByEquality",
			ub:   10,
			build: func(mb *Builder, x Var) {
				mb.AddEquality(NewLinearExpr().AddTerm(x, 2), NewConstant(5))
				mb.Maximize(NewQuadExpr().AddProduct(x, x, 1))
			},
			wantStatus: StatusOptimal,
			want:       2.5,
		},
		{
			name: "Infeasible",
			ub:   4,
			build: func(mb *Builder, x Var) {
				mb.AddGreaterOrEqual(x, NewConstant(5))
				mb.Maximize(NewQuadExpr().AddProduct(x, x, 1))
			},
			wantStatus: StatusInfeasible,
		},
		{
			name: "Unbounded",
			ub:   math.Inf(1),
			build: func(mb *Builder, x Var) {
				mb.Maximize(NewQuadExpr().AddProduct(x, x, 1))
			},
			wantStatus: StatusUnbounded,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			mb := NewModelBuilder(test.name)
			x := mb.NewVar(0, test.ub)
			test.build(mb, x)
			mb.SetNonConvex(true)
			m, err := mb.Model()
			if err != nil {
				t.Fatalf("Model() returned with unexpected error %v", err)
			}

			res, err := SolveModel(m)
			if err != nil {
				t.Fatalf("SolveModel() returned with unexpected error %v", err)
			}
			if res.Status != test.wantStatus {
				t.Fatalf("SolveModel() status = %v, want %v", res.Status, test.wantStatus)
			}
			if !res.Status.HasSolution() {
				if res.Values != nil {
					t.Errorf("SolveModel() values = %v, want nil", res.Values)
				}
				return
			}
			if got := SolutionValue(res, x); math.Abs(got-test.want) > 1e-9 {
				t.Errorf("SolveModel() value = %v, want %v", got, test.want)
			}
		})
	}
}

// orderedPairModel builds `min x + y` subject to a loose capacity row `-x - y <= 1e9` and
// the ordering row `y >= x + margin`. At the lower bounds the ordering row can be violated,
// which leaves the slack basis infeasible.
func orderedPairModel(t *testing.T, lbX, lbY, margin float64) (*Model, []Var) {
	t.Helper()
	mb := NewModelBuilder("ordered_pair")
	x := mb.NewVar(lbX, 200).WithName("x")
	y := mb.NewVar(lbY, 200).WithName("y")
	mb.AddLessOrEqual(NewLinearExpr().AddTerm(x, -1).AddTerm(y, -1), NewConstant(1e9)).WithName("Capacity")
	mb.AddGreaterOrEqual(y, NewLinearExpr().Add(x).AddConstant(margin)).WithName("Order_x_y")
	mb.Minimize(NewQuadExpr().Add(NewLinearExpr().AddSum(x, y)))
	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	return m, []Var{x, y}
}

func TestSolveModel_OrderingViolatedAtLowerBounds(t *testing.T) {
	testCases := []struct {
		name       string
		lbX, lbY   float64
		wantValues []float64
	}{
		{name: "LowerBoundsWithinMargin", lbX: 10, lbY: 12, wantValues: []float64{10, 12}},
		{name: "EqualLowerBounds", lbX: 10, lbY: 10, wantValues: []float64{10, 12}},
		{name: "SmallLowerBounds", lbX: 1, lbY: 1, wantValues: []float64{1, 3}},
		{name: "OrderBindsAboveLowerBound", lbX: 10, lbY: 11, wantValues: []float64{10, 12}},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			m, vars := orderedPairModel(t, test.lbX, test.lbY, 2)
			res, err := SolveModel(m)
			if err != nil {
				t.Fatalf("SolveModel() returned with unexpected error %v", err)
			}
			if res.Status != StatusOptimal {
				t.Fatalf("SolveModel() status = %v, want %v", res.Status, StatusOptimal)
			}
			got := []float64{SolutionValue(res, vars[0]), SolutionValue(res, vars[1])}
			if diff := cmp.Diff(test.wantValues, got, cmpopts.EquateApprox(0, solveTol)); diff != "" {
				t.Errorf("SolveModel() values returned with unexpected diff (-want+got):\n%s", diff)
			}
			if res.MaxViolation > 1e-5 {
				t.Errorf("SolveModel() max violation = %v, want <= 1e-5", res.MaxViolation)
			}
		})
	}
}

func TestProblem_FindFeasiblePoint(t *testing.T) {
	testCases := []struct {
		name  string
		build func(t *testing.T) *Model
	}{
		{
			name: "OrderingViolatedAtLowerBounds",
			build: func(t *testing.T) *Model {
				m, _ := orderedPairModel(t, 10, 10, 2)
				return m
			},
		},
		{
			name: "NegativeEquality",
			build: func(t *testing.T) *Model {
				mb := NewModelBuilder("negative_equality")
				x := mb.NewVar(0, 10)
				y := mb.NewVar(0, 10)
				mb.AddEquality(NewLinearExpr().Add(x).AddTerm(y, -1), NewConstant(-3))
				mb.Minimize(NewQuadExpr().Add(NewLinearExpr().AddSum(x, y)))
				m, err := mb.Model()
				if err != nil {
					t.Fatalf("Model() returned with unexpected error %v", err)
				}
				return m
			},
		},
		{
			name: "BadlyScaledRows",
			build: func(t *testing.T) *Model {
				mb := NewModelBuilder("scaled")
				x := mb.NewVar(1, 1000)
				y := mb.NewVar(1, 1000)
				mb.AddGreaterOrEqual(NewLinearExpr().AddTerm(x, 1e4).AddTerm(y, 1e4), NewConstant(5e6))
				mb.AddLessOrEqual(NewLinearExpr().AddTerm(x, 1e-3).AddTerm(y, -1e-3), NewConstant(-0.1))
				mb.Minimize(NewQuadExpr().AddProduct(x, x, 1).AddProduct(y, y, 1))
				m, err := mb.Model()
				if err != nil {
					t.Fatalf("Model() returned with unexpected error %v", err)
				}
				return m
			},
		},
		{
			name: "PricingModel",
			build: func(t *testing.T) *Model {
				m, _ := pricingModel(t, 3000)
				return m
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			p, err := newProblem(test.build(t))
			if err != nil {
				t.Fatalf("newProblem() returned with unexpected error %v", err)
			}
			x, err := p.findFeasiblePoint(1e-9)
			if err != nil {
				t.Fatalf("findFeasiblePoint() returned with unexpected error %v", err)
			}
			for i, b := range p.bounds {
				if x[i] < b.Lower || x[i] > b.Upper {
					t.Errorf("x[%d] = %v, want in %v", i, x[i], b)
				}
			}
			for i, r := range p.rows {
				if v := r.violation(x); v > 1e-6 {
					t.Errorf("row %d violated by %v at %v", i, v, x)
				}
			}
		})
	}
}

func TestProblem_FindFeasiblePointInfeasible(t *testing.T) {
	mb := NewModelBuilder("infeasible")
	x := mb.NewVar(0, 10)
	y := mb.NewVar(0, 10)
	mb.AddGreaterOrEqual(y, NewLinearExpr().Add(x).AddConstant(15))
	mb.Minimize(NewQuadExpr().Add(NewLinearExpr().AddSum(x, y)))
	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	p, err := newProblem(m)
	if err != nil {
		t.Fatalf("newProblem() returned with unexpected error %v", err)
	}
	if _, err := p.findFeasiblePoint(1e-9); !errors.Is(err, lp.ErrInfeasible) {
		t.Errorf("findFeasiblePoint() err = %v, want %v", err, lp.ErrInfeasible)
	}
}

func TestProblem_SearchFromInfeasibleStart(t *testing.T) {
	m, _ := orderedPairModel(t, 10, 10, 2)
	p, err := newProblem(m)
	if err != nil {
		t.Fatalf("newProblem() returned with unexpected error %v", err)
	}
	interrupt := make(chan struct{})
	close(interrupt)

	// The lower bounds violate the ordering row, so there is no point to report.
	sr := p.search(p.lowerPoint(), false, DefaultParameters(), interrupt, time.Time{})
	if sr.status != StatusAbnormal {
		t.Errorf("search() status = %v, want %v", sr.status, StatusAbnormal)
	}
	if sr.x != nil {
		t.Errorf("search() x = %v, want nil", sr.x)
	}
}

func TestSolveModel_Empty(t *testing.T) {
	mb := NewModelBuilder("empty")
	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	res, err := SolveModel(m)
	if err != nil {
		t.Fatalf("SolveModel() returned with unexpected error %v", err)
	}
	if res.Status != StatusOptimal {
		t.Errorf("SolveModel() status = %v, want %v", res.Status, StatusOptimal)
	}
}

func TestSolveModel_NilModel(t *testing.T) {
	if _, err := SolveModel(nil); err == nil {
		t.Errorf("SolveModel(nil) returned nil error, want error")
	}
}

func TestSolveModelInterruptibleWithParameters(t *testing.T) {
	m, vars := pricingModel(t, 10000)
	interrupt := make(chan struct{})
	close(interrupt)

	res, err := SolveModelInterruptibleWithParameters(m, DefaultParameters(), interrupt)
	if err != nil {
		t.Fatalf("SolveModelInterruptibleWithParameters() returned with unexpected error %v", err)
	}
	if res.Status != StatusSuboptimal {
		t.Fatalf("SolveModelInterruptibleWithParameters() status = %v, want %v", res.Status, StatusSuboptimal)
	}
	if res.MaxViolation > 1e-6 {
		t.Errorf("interrupted solve returned infeasible point, max violation %v", res.MaxViolation)
	}
	if p1, p2 := SolutionValue(res, vars[0]), SolutionValue(res, vars[1]); p1 > p2+1e-6 {
		t.Errorf("interrupted solve returned p1 = %v > p2 = %v", p1, p2)
	}
}

func TestSolver_Parameters(t *testing.T) {
	s := NewSolver(&Parameters{MaxIterations: 7})
	want := Parameters{
		MaxIterations:        7,
		FeasibilityTolerance: defaultFeasibilityTolerance,
		OptimalityTolerance:  defaultOptimalityTolerance,
	}
	if diff := cmp.Diff(want, s.Parameters()); diff != "" {
		t.Errorf("Parameters() returned with unexpected diff (-want+got):\n%s", diff)
	}
	if diff := cmp.Diff(*DefaultParameters(), NewSolver(nil).Parameters()); diff != "" {
		t.Errorf("NewSolver(nil).Parameters() returned with unexpected diff (-want+got):\n%s", diff)
	}
}

func TestStatus_String(t *testing.T) {
	testCases := []struct {
		status Status
		want   string
	}{
		{StatusOptimal, "OPTIMAL"},
		{StatusSuboptimal, "SUBOPTIMAL"},
		{StatusInfeasible, "INFEASIBLE"},
		{StatusUnbounded, "UNBOUNDED"},
		{StatusAbnormal, "ABNORMAL"},
		{Status(42), "Status(42)"},
	}
	for _, test := range testCases {
		if got := test.status.String(); got != test.want {
			t.Errorf("String() = %q, want %q", got, test.want)
		}
	}
}
