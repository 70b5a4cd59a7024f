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

// Package qpmodel offers a user-friendly API to build and solve continuous quadratic
// programs.
//
// The `Builder` struct owns a `Model` and provides helper methods for adding variables,
// linear constraints and a quadratic objective to it.
// The `Var` and `Constraint` structs are references to specific elements of the model and
// provide helpful methods for interacting with those elements.
// The `LinearExpr` and `QuadExpr` structs provide helper methods for creating constraints and
// the objective from expressions with many variables and coefficients.
//
// Models are plain values: a built `Model` can be handed to `SolveModel` from any goroutine,
// and nothing is shared between two solves.
package qpmodel

import (
	"math"

	log "github.com/golang/glog"
)

type (
	// VarIndex is the index of a variable in the model.
	VarIndex int32
	// ConstrIndex is the index of a linear constraint in the model.
	ConstrIndex int32
)

// LinearArgument provides an interface for Var and LinearExpr.
type LinearArgument interface {
	addToLinearExpr(e *LinearExpr, c float64)
	evaluateSolutionValue(values []float64) float64
}

// QuadArgument provides an interface for everything that can be used as an objective: Var,
// LinearExpr and QuadExpr.
type QuadArgument interface {
	addToQuadExpr(q *QuadExpr, c float64)
}

// LinearExpr is a container for a linear expression.
type LinearExpr struct {
	varCoeffs []varCoeff
	offset    float64
	// owner is the builder of the first variable added to the expression.
	owner *Builder
	mixed bool
}

type varCoeff struct {
	ind   VarIndex
	coeff float64
}

// NewLinearExpr creates a new empty LinearExpr.
func NewLinearExpr() *LinearExpr {
	return &LinearExpr{}
}

// NewConstant creates and returns a LinearExpr containing the constant `c`.
func NewConstant(c float64) *LinearExpr {
	return &LinearExpr{offset: c}
}

// Add adds the linear argument term to the LinearExpr and returns itself.
func (l *LinearExpr) Add(la LinearArgument) *LinearExpr {
	return l.AddTerm(la, 1)
}

// AddConstant adds the constant to the LinearExpr and returns itself.
func (l *LinearExpr) AddConstant(c float64) *LinearExpr {
	l.offset += c
	return l
}

// AddTerm adds the linear argument term with the given coefficient to the LinearExpr and
// returns itself.
func (l *LinearExpr) AddTerm(la LinearArgument, coeff float64) *LinearExpr {
	la.addToLinearExpr(l, coeff)
	return l
}

// AddSum adds the sum of the linear arguments to the LinearExpr and returns itself.
func (l *LinearExpr) AddSum(las ...LinearArgument) *LinearExpr {
	for _, la := range las {
		l.Add(la)
	}
	return l
}

// AddWeightedSum adds the linear arguments with the corresponding coefficients to the
// LinearExpr and returns itself.
func (l *LinearExpr) AddWeightedSum(las []LinearArgument, coeffs []float64) *LinearExpr {
	if len(coeffs) != len(las) {
		log.Fatalf("las and coeffs must be the same length: %v != %v", len(las), len(coeffs))
	}
	for i, la := range las {
		l.AddTerm(la, coeffs[i])
	}
	return l
}

// Offset returns the constant term of the expression.
func (l *LinearExpr) Offset() float64 {
	return l.offset
}

// Coefficient returns the total coefficient of the variable `v` in the expression.
func (l *LinearExpr) Coefficient(v Var) float64 {
	var sum float64
	for _, vc := range l.varCoeffs {
		if vc.ind == v.ind {
			sum += vc.coeff
		}
	}
	return sum
}

func (l *LinearExpr) adopt(b *Builder) {
	if b == nil {
		return
	}
	if l.owner == nil {
		l.owner = b
	} else if l.owner != b {
		l.mixed = true
	}
}

func (l *LinearExpr) addToLinearExpr(e *LinearExpr, c float64) {
	for _, vc := range l.varCoeffs {
		e.varCoeffs = append(e.varCoeffs, varCoeff{ind: vc.ind, coeff: vc.coeff * c})
	}
	e.offset += l.offset * c
	e.adopt(l.owner)
	if l.mixed {
		e.mixed = true
	}
}

func (l *LinearExpr) addToQuadExpr(q *QuadExpr, c float64) {
	l.addToLinearExpr(&q.linear, c)
}

func (l *LinearExpr) evaluateSolutionValue(values []float64) float64 {
	result := l.offset
	for _, vc := range l.varCoeffs {
		result += values[vc.ind] * vc.coeff
	}
	return result
}

// merged returns the variables and coefficients of the expression with duplicate variables
// summed, in order of first appearance. Zero coefficients are dropped.
func (l *LinearExpr) merged() ([]VarIndex, []float64) {
	pos := make(map[VarIndex]int)
	var vars []VarIndex
	var coeffs []float64
	for _, vc := range l.varCoeffs {
		if i, ok := pos[vc.ind]; ok {
			coeffs[i] += vc.coeff
			continue
		}
		pos[vc.ind] = len(vars)
		vars = append(vars, vc.ind)
		coeffs = append(coeffs, vc.coeff)
	}
	outVars, outCoeffs := vars[:0], coeffs[:0]
	for i, c := range coeffs {
		if c != 0 {
			outVars = append(outVars, vars[i])
			outCoeffs = append(outCoeffs, c)
		}
	}
	return outVars, outCoeffs
}

// QuadExpr is a container for a quadratic expression: a linear part plus a sum of
// `coeff * x_i * x_j` terms.
type QuadExpr struct {
	linear    LinearExpr
	quadTerms []QuadTerm
}

// QuadTerm is the product `Coeff * Var1 * Var2`. Var1 may equal Var2.
type QuadTerm struct {
	Var1  VarIndex
	Var2  VarIndex
	Coeff float64
}

// NewQuadExpr creates a new empty QuadExpr.
func NewQuadExpr() *QuadExpr {
	return &QuadExpr{}
}

// Add adds the argument to the QuadExpr and returns itself.
func (q *QuadExpr) Add(qa QuadArgument) *QuadExpr {
	qa.addToQuadExpr(q, 1)
	return q
}

// AddTerm adds the argument scaled by `coeff` to the QuadExpr and returns itself.
func (q *QuadExpr) AddTerm(qa QuadArgument, coeff float64) *QuadExpr {
	qa.addToQuadExpr(q, coeff)
	return q
}

// AddConstant adds the constant to the QuadExpr and returns itself.
func (q *QuadExpr) AddConstant(c float64) *QuadExpr {
	q.linear.offset += c
	return q
}

// AddProduct adds `coeff * a * b` to the QuadExpr, expanding the product of the two linear
// arguments, and returns itself.
func (q *QuadExpr) AddProduct(a, b LinearArgument, coeff float64) *QuadExpr {
	ea := NewLinearExpr().Add(a)
	eb := NewLinearExpr().Add(b)
	for _, va := range ea.varCoeffs {
		for _, vb := range eb.varCoeffs {
			q.quadTerms = append(q.quadTerms, QuadTerm{Var1: va.ind, Var2: vb.ind, Coeff: coeff * va.coeff * vb.coeff})
		}
	}
	for _, va := range ea.varCoeffs {
		q.linear.varCoeffs = append(q.linear.varCoeffs, varCoeff{ind: va.ind, coeff: coeff * va.coeff * eb.offset})
	}
	for _, vb := range eb.varCoeffs {
		q.linear.varCoeffs = append(q.linear.varCoeffs, varCoeff{ind: vb.ind, coeff: coeff * vb.coeff * ea.offset})
	}
	q.linear.offset += coeff * ea.offset * eb.offset
	q.linear.adopt(ea.owner)
	q.linear.adopt(eb.owner)
	if ea.mixed || eb.mixed {
		q.linear.mixed = true
	}
	return q
}

// Linear returns the linear part of the expression.
func (q *QuadExpr) Linear() *LinearExpr {
	return &q.linear
}

// QuadTerms returns the quadratic terms of the expression.
func (q *QuadExpr) QuadTerms() []QuadTerm {
	return q.quadTerms
}

func (q *QuadExpr) addToQuadExpr(e *QuadExpr, c float64) {
	q.linear.addToLinearExpr(&e.linear, c)
	for _, t := range q.quadTerms {
		e.quadTerms = append(e.quadTerms, QuadTerm{Var1: t.Var1, Var2: t.Var2, Coeff: t.Coeff * c})
	}
}

// Evaluate returns the value of the expression for the given variable values.
func (q *QuadExpr) Evaluate(values []float64) float64 {
	result := q.linear.evaluateSolutionValue(values)
	for _, t := range q.quadTerms {
		result += t.Coeff * values[t.Var1] * values[t.Var2]
	}
	return result
}

// Var is a reference to a continuous variable in the model.
type Var struct {
	ind VarIndex
	mb  *Builder
}

// Name returns the name of the variable.
func (v Var) Name() string {
	return v.mb.m.Variables[v.ind].Name
}

// Bounds returns the bounds of the variable.
func (v Var) Bounds() Interval {
	return v.mb.m.Variables[v.ind].Bounds
}

// Index returns the index of the variable.
func (v Var) Index() VarIndex {
	return v.ind
}

// WithName sets the name of the variable. Names must be unique in the model; a duplicate
// name is reported by Builder.Model().
func (v Var) WithName(s string) Var {
	if s != "" {
		if other, ok := v.mb.varNames[s]; ok && other != v.ind {
			v.mb.setErrorf(CodeDuplicateName, "variable with name %s already exists", s)
			return v
		}
	}
	delete(v.mb.varNames, v.mb.m.Variables[v.ind].Name)
	if s != "" {
		v.mb.varNames[s] = v.ind
	}
	v.mb.m.Variables[v.ind].Name = s
	return v
}

func (v Var) addToLinearExpr(e *LinearExpr, c float64) {
	e.varCoeffs = append(e.varCoeffs, varCoeff{ind: v.ind, coeff: c})
	e.adopt(v.mb)
}

func (v Var) addToQuadExpr(q *QuadExpr, c float64) {
	v.addToLinearExpr(&q.linear, c)
}

func (v Var) evaluateSolutionValue(values []float64) float64 {
	return values[v.ind]
}

// Constraint is a reference to a linear constraint in the model.
type Constraint struct {
	ind ConstrIndex
	mb  *Builder
}

// WithName sets the name of the constraint. Names must be unique in the model; a duplicate
// name is reported by Builder.Model().
func (c Constraint) WithName(s string) Constraint {
	if s != "" {
		if other, ok := c.mb.constrNames[s]; ok && other != c.ind {
			c.mb.setErrorf(CodeDuplicateName, "constraint with name %s already exists", s)
			return c
		}
	}
	delete(c.mb.constrNames, c.mb.m.Constraints[c.ind].Name)
	if s != "" {
		c.mb.constrNames[s] = c.ind
	}
	c.mb.m.Constraints[c.ind].Name = s
	return c
}

// Name returns the name of the constraint.
func (c Constraint) Name() string {
	return c.mb.m.Constraints[c.ind].Name
}

// Index returns the index of the constraint.
func (c Constraint) Index() ConstrIndex {
	return c.ind
}

// Bounds returns the interval the constraint's expression is restricted to.
func (c Constraint) Bounds() Interval {
	return c.mb.m.Constraints[c.ind].Bounds
}

// Variable is a continuous decision variable of a Model.
type Variable struct {
	Name   string
	Bounds Interval
}

// LinearConstraint enforces `Bounds.Lower <= sum(Coeffs[k] * x[Vars[k]]) <= Bounds.Upper`.
type LinearConstraint struct {
	Name   string
	Vars   []VarIndex
	Coeffs []float64
	Bounds Interval
}

// Objective is `Offset + sum(Coeffs[k] * x[Vars[k]]) + sum(QuadTerms)`, minimized unless
// Maximize is set.
type Objective struct {
	Vars      []VarIndex
	Coeffs    []float64
	QuadTerms []QuadTerm
	Offset    float64
	Maximize  bool
}

// Evaluate returns the value of the objective for the given variable values.
func (o *Objective) Evaluate(values []float64) float64 {
	result := o.Offset
	for k, ind := range o.Vars {
		result += o.Coeffs[k] * values[ind]
	}
	for _, t := range o.QuadTerms {
		result += t.Coeff * values[t.Var1] * values[t.Var2]
	}
	return result
}

// IsQuadratic returns true if the objective has at least one quadratic term.
func (o *Objective) IsQuadratic() bool {
	return len(o.QuadTerms) > 0
}

// Model is a continuous quadratic program.
type Model struct {
	Name        string
	Variables   []Variable
	Constraints []LinearConstraint
	Objective   Objective
	// NonConvex permits objectives whose curvature has the wrong sign for the optimization
	// direction. Without it such models are rejected with CodeNotPSD.
	NonConvex bool
}

// Builder provides a wrapper for the Model.
type Builder struct {
	m           *Model
	varNames    map[string]VarIndex
	constrNames map[string]ConstrIndex
	// The first and only the first error is reported in Model.
	err error
}

// NewModelBuilder creates and returns a new Builder for a model with the given name.
func NewModelBuilder(name string) *Builder {
	return &Builder{
		m:           &Model{Name: name},
		varNames:    make(map[string]VarIndex),
		constrNames: make(map[string]ConstrIndex),
	}
}

func (mb *Builder) setErrorf(code ErrorCode, format string, a ...any) {
	err := newError(code, format, a...)
	log.Errorf("%v; use `-log_backtrace_at` flag to get the error stack", err)
	if mb.err == nil {
		mb.err = err
	}
}

// checkSameModelAndSetErrorf returns true if `e` only references variables of `mb`.
// If false, an error with the error message `format` is set on `mb` if `mb.err` is nil.
func (mb *Builder) checkSameModelAndSetErrorf(e *LinearExpr, format string, a ...any) bool {
	if !e.mixed && (e.owner == nil || e.owner == mb) {
		return true
	}
	args := make([]any, len(a)+1)
	copy(args, a)
	args[len(a)] = ErrMixedModels
	mb.setErrorf(CodeMixedModels, format+": %w", args...)
	return false
}

// NewVar creates a new continuous variable with bounds `[lb,ub]`.
func (mb *Builder) NewVar(lb, ub float64) Var {
	return mb.NewVarFromInterval(NewInterval(lb, ub))
}

// NewVarFromInterval creates a new continuous variable restricted to `bounds`.
func (mb *Builder) NewVarFromInterval(bounds Interval) Var {
	ind := VarIndex(len(mb.m.Variables))
	mb.m.Variables = append(mb.m.Variables, Variable{Bounds: bounds})
	if bounds.IsEmpty() {
		mb.setErrorf(CodeInvalidArgument, "variable %v has empty bounds %v", ind, bounds)
	} else if math.IsInf(bounds.Lower, 0) {
		mb.setErrorf(CodeInvalidArgument, "variable %v must have a finite lower bound, got %v", ind, bounds.Lower)
	}
	return Var{ind: ind, mb: mb}
}

// LookupVar returns the variable with the given name, and false if it does not exist.
func (mb *Builder) LookupVar(name string) (Var, bool) {
	ind, ok := mb.varNames[name]
	if !ok {
		return Var{}, false
	}
	return Var{ind: ind, mb: mb}, true
}

// LookupConstraint returns the constraint with the given name, and false if it does not exist.
func (mb *Builder) LookupConstraint(name string) (Constraint, bool) {
	ind, ok := mb.constrNames[name]
	if !ok {
		return Constraint{}, false
	}
	return Constraint{ind: ind, mb: mb}, true
}

// NumVars returns the number of variables in the model.
func (mb *Builder) NumVars() int {
	return len(mb.m.Variables)
}

// NumConstraints returns the number of linear constraints in the model.
func (mb *Builder) NumConstraints() int {
	return len(mb.m.Constraints)
}

// AddLinearConstraintForInterval adds the linear constraint `expr` in `bounds`. The constant
// offset of `expr` is subtracted from the bounds.
func (mb *Builder) AddLinearConstraintForInterval(expr LinearArgument, bounds Interval) Constraint {
	le := NewLinearExpr().Add(expr)
	ind := ConstrIndex(len(mb.m.Constraints))
	mb.checkSameModelAndSetErrorf(le, "invalid expression added to constraint %v", ind)
	if bounds.IsEmpty() {
		mb.setErrorf(CodeInvalidArgument, "constraint %v has empty bounds %v", ind, bounds)
	}
	vars, coeffs := le.merged()
	for k, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			mb.setErrorf(CodeInvalidArgument, "constraint %v has invalid coefficient %v on variable %v", ind, c, vars[k])
		}
	}
	mb.m.Constraints = append(mb.m.Constraints, LinearConstraint{
		Vars:   vars,
		Coeffs: coeffs,
		Bounds: bounds.Offset(-le.offset),
	})
	return Constraint{ind: ind, mb: mb}
}

// AddLinearConstraint adds the linear constraint `lb <= expr <= ub`.
func (mb *Builder) AddLinearConstraint(expr LinearArgument, lb, ub float64) Constraint {
	return mb.AddLinearConstraintForInterval(expr, NewInterval(lb, ub))
}

// AddEquality adds the linear constraint `lhs == rhs`.
func (mb *Builder) AddEquality(lhs, rhs LinearArgument) Constraint {
	return mb.AddLinearConstraintForInterval(NewLinearExpr().Add(lhs).AddTerm(rhs, -1), Exactly(0))
}

// AddLessOrEqual adds the linear constraint `lhs <= rhs`.
func (mb *Builder) AddLessOrEqual(lhs, rhs LinearArgument) Constraint {
	return mb.AddLinearConstraintForInterval(NewLinearExpr().Add(lhs).AddTerm(rhs, -1), AtMost(0))
}

// AddGreaterOrEqual adds the linear constraint `lhs >= rhs`.
func (mb *Builder) AddGreaterOrEqual(lhs, rhs LinearArgument) Constraint {
	return mb.AddLinearConstraintForInterval(NewLinearExpr().Add(lhs).AddTerm(rhs, -1), AtLeast(0))
}

func (mb *Builder) setObjective(obj QuadArgument, maximize bool) {
	q := NewQuadExpr().Add(obj)
	mb.checkSameModelAndSetErrorf(&q.linear, "invalid expression set as objective")

	vars, coeffs := q.linear.merged()
	var terms []QuadTerm
	for _, t := range q.quadTerms {
		if t.Coeff == 0 {
			continue
		}
		if math.IsNaN(t.Coeff) || math.IsInf(t.Coeff, 0) {
			mb.setErrorf(CodeInvalidArgument, "objective has invalid coefficient %v on term %v*%v", t.Coeff, t.Var1, t.Var2)
		}
		terms = append(terms, t)
	}
	for k, c := range coeffs {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			mb.setErrorf(CodeInvalidArgument, "objective has invalid coefficient %v on variable %v", c, vars[k])
		}
	}
	mb.m.Objective = Objective{
		Vars:      vars,
		Coeffs:    coeffs,
		QuadTerms: terms,
		Offset:    q.linear.offset,
		Maximize:  maximize,
	}
}

// Minimize sets a linear or quadratic minimization objective.
func (mb *Builder) Minimize(obj QuadArgument) {
	mb.setObjective(obj, false)
}

// Maximize sets a linear or quadratic maximization objective.
func (mb *Builder) Maximize(obj QuadArgument) {
	mb.setObjective(obj, true)
}

// SetNonConvex permits (or forbids) objectives that are not convex in the direction of
// optimization.
func (mb *Builder) SetNonConvex(nonConvex bool) {
	mb.m.NonConvex = nonConvex
}

// Model returns the built model. The model returned is a pointer to the model in Builder,
// and if modified, future calls to the Builder API can fail or result in an invalid model.
//
// Model returns an error when invalid parameters have been used during model building (e.g.
// passing variables from other builders, or duplicate names).
func (mb *Builder) Model() (*Model, error) {
	if mb.err != nil {
		return nil, mb.err
	}
	return mb.m, nil
}
