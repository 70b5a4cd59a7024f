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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	log "github.com/golang/glog"
)

func Example() {
	model := NewModelBuilder("example")

	x := model.NewVar(0, 2).WithName("x")
	y := model.NewVar(0, 10).WithName("y")

	model.AddLessOrEqual(NewLinearExpr().AddSum(x, y), NewConstant(3))
	// Minimize (x-3)^2 + (y-1)^2.
	obj := NewQuadExpr().
		AddProduct(NewLinearExpr().Add(x).AddConstant(-3), NewLinearExpr().Add(x).AddConstant(-3), 1).
		AddProduct(NewLinearExpr().Add(y).AddConstant(-1), NewLinearExpr().Add(y).AddConstant(-1), 1)
	model.Minimize(obj)

	m, err := model.Model()
	if err != nil {
		log.Fatalf("Building model returned with error %v", err)
	}

	res, err := SolveModel(m)
	if err != nil {
		log.Fatalf("QP solver returned with unexpected err %v", err)
	}
	if !res.Status.HasSolution() {
		log.Fatalf("QP solver returned with status %v", res.Status)
	}

	fmt.Println("Status:", res.Status)
	fmt.Printf("x: %.3f\n", SolutionValue(res, x))
	fmt.Printf("y: %.3f\n", SolutionValue(res, y))
	// Output:
	// Status: OPTIMAL
	// x: 2.000
	// y: 1.000
}

func TestVar_NameAndBounds(t *testing.T) {
	model := NewModelBuilder("vars")

	x := model.NewVar(1, 5).WithName("x")
	if got, want := x.Name(), "x"; got != want {
		t.Errorf("Name() = %q, want %q", got, want)
	}
	if diff := cmp.Diff(NewInterval(1, 5), x.Bounds()); diff != "" {
		t.Errorf("Bounds() returned with unexpected diff (-want+got):\n%s", diff)
	}
	if got, ok := model.LookupVar("x"); !ok || got.Index() != x.Index() {
		t.Errorf("LookupVar(x) = (%v, %v), want (%v, true)", got.Index(), ok, x.Index())
	}
	if _, ok := model.LookupVar("y"); ok {
		t.Errorf("LookupVar(y) = true, want false")
	}

	x.WithName("renamed")
	if _, ok := model.LookupVar("x"); ok {
		t.Errorf("LookupVar(x) after rename = true, want false")
	}
	if _, ok := model.LookupVar("renamed"); !ok {
		t.Errorf("LookupVar(renamed) = false, want true")
	}
}

func TestBuilder_DuplicateNames(t *testing.T) {
	testCases := []struct {
		name  string
		build func(*Builder)
	}{
		{
			name: "DuplicateVar",
			build: func(mb *Builder) {
				mb.NewVar(0, 1).WithName("x")
				mb.NewVar(0, 1).WithName("x")
			},
		},
		{
			name: "DuplicateConstraint",
			build: func(mb *Builder) {
				x := mb.NewVar(0, 1)
				mb.AddLessOrEqual(x, NewConstant(1)).WithName("c")
				mb.AddGreaterOrEqual(x, NewConstant(0)).WithName("c")
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			mb := NewModelBuilder(test.name)
			test.build(mb)
			_, err := mb.Model()
			var qerr *Error
			if !errors.As(err, &qerr) {
				t.Fatalf("Model() err = %v, want *Error", err)
			}
			if qerr.Code != CodeDuplicateName {
				t.Errorf("Model() error code = %v, want %v", qerr.Code, CodeDuplicateName)
			}
		})
	}
}

func TestBuilder_InvalidBounds(t *testing.T) {
	testCases := []struct {
		name   string
		lb, ub float64
	}{
		{name: "Empty", lb: 2, ub: 1},
		{name: "InfiniteLower", lb: math.Inf(-1), ub: 1},
		{name: "NaN", lb: math.NaN(), ub: 1},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			mb := NewModelBuilder(test.name)
			mb.NewVar(test.lb, test.ub)
			_, err := mb.Model()
			var qerr *Error
			if !errors.As(err, &qerr) || qerr.Code != CodeInvalidArgument {
				t.Errorf("Model() err = %v, want code %v", err, CodeInvalidArgument)
			}
		})
	}
}

func TestBuilder_MixedModels(t *testing.T) {
	mb1 := NewModelBuilder("m1")
	mb2 := NewModelBuilder("m2")
	x := mb1.NewVar(0, 1)
	y := mb2.NewVar(0, 1)

	mb1.AddLessOrEqual(NewLinearExpr().AddSum(x, y), NewConstant(1))

	_, err := mb1.Model()
	if !errors.Is(err, ErrMixedModels) {
		t.Errorf("Model() err = %v, want %v", err, ErrMixedModels)
	}
	var qerr *Error
	if !errors.As(err, &qerr) || qerr.Code != CodeMixedModels {
		t.Errorf("Model() err = %v, want code %v", err, CodeMixedModels)
	}
}

func TestBuilder_AddLinearConstraint(t *testing.T) {
	mb := NewModelBuilder("constraints")
	x := mb.NewVar(0, 10)
	y := mb.NewVar(0, 10)

	testCases := []struct {
		name string
		add  func() Constraint
		want LinearConstraint
	}{
		{
			name: "LessOrEqualWithOffset",
			add: func() Constraint {
				return mb.AddLessOrEqual(NewLinearExpr().AddTerm(x, 2).AddConstant(1), NewConstant(5))
			},
			want: LinearConstraint{Vars: []VarIndex{0}, Coeffs: []float64{2}, Bounds: AtMost(4)},
		},
		{
			name: "GreaterOrEqualMergesDuplicates",
			add: func() Constraint {
				return mb.AddGreaterOrEqual(NewLinearExpr().Add(x).Add(y).Add(x), NewConstant(3))
			},
			want: LinearConstraint{Vars: []VarIndex{0, 1}, Coeffs: []float64{2, 1}, Bounds: AtLeast(3)},
		},
		{
			name: "EqualityDropsCancelledTerms",
			add: func() Constraint {
				return mb.AddEquality(NewLinearExpr().Add(x).Add(y), x)
			},
			want: LinearConstraint{Vars: []VarIndex{1}, Coeffs: []float64{1}, Bounds: Exactly(0)},
		},
		{
			name: "Range",
			add: func() Constraint {
				return mb.AddLinearConstraint(NewLinearExpr().AddWeightedSum([]LinearArgument{x, y}, []float64{1, -1}), -1, 1)
			},
			want: LinearConstraint{Vars: []VarIndex{0, 1}, Coeffs: []float64{1, -1}, Bounds: NewInterval(-1, 1)},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			c := test.add()
			m, err := mb.Model()
			if err != nil {
				t.Fatalf("Model() returned with unexpected error %v", err)
			}
			got := m.Constraints[c.Index()]
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("constraint returned with unexpected diff (-want+got):\n%s", diff)
			}
		})
	}
}

func TestQuadExpr_AddProduct(t *testing.T) {
	mb := NewModelBuilder("quad")
	p := mb.NewVar(10, 200)

	// (p - 10) * (100 - 2p) = -2p^2 + 120p - 1000.
	q := NewQuadExpr().AddProduct(
		NewLinearExpr().Add(p).AddConstant(-10),
		NewLinearExpr().AddTerm(p, -2).AddConstant(100),
		1)
	mb.Maximize(q)

	m, err := mb.Model()
	if err != nil {
		t.Fatalf("Model() returned with unexpected error %v", err)
	}
	want := Objective{
		Vars:      []VarIndex{0},
		Coeffs:    []float64{120},
		QuadTerms: []QuadTerm{{Var1: 0, Var2: 0, Coeff: -2}},
		Offset:    -1000,
		Maximize:  true,
	}
	if diff := cmp.Diff(want, m.Objective, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Objective returned with unexpected diff (-want+got):\n%s", diff)
	}
	for _, v := range []float64{10, 30, 50} {
		want := (v - 10) * (100 - 2*v)
		if got := m.Objective.Evaluate([]float64{v}); math.Abs(got-want) > 1e-9 {
			t.Errorf("Evaluate(%v) = %v, want %v", v, got, want)
		}
		if got := q.Evaluate([]float64{v}); math.Abs(got-want) > 1e-9 {
			t.Errorf("QuadExpr.Evaluate(%v) = %v, want %v", v, got, want)
		}
	}
}

func TestLinearExpr_Coefficient(t *testing.T) {
	mb := NewModelBuilder("coeff")
	x := mb.NewVar(0, 1)
	y := mb.NewVar(0, 1)

	e := NewLinearExpr().AddTerm(x, 2).AddTerm(y, 3).AddTerm(x, -0.5).AddConstant(4)
	if got := e.Coefficient(x); got != 1.5 {
		t.Errorf("Coefficient(x) = %v, want 1.5", got)
	}
	if got := e.Offset(); got != 4 {
		t.Errorf("Offset() = %v, want 4", got)
	}
	if got := e.evaluateSolutionValue([]float64{1, 2}); got != 11.5 {
		t.Errorf("evaluateSolutionValue() = %v, want 11.5", got)
	}
}
