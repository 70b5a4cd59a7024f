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

package forfait

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

const (
	modelName      = "telecom_pricing"
	capacityName   = "Capacity"
	priceVarPrefix = "price_"
)

// DemandTerm is the demand of one segment for one plan:
// `Factor * (DemandA - DemandB * price)`, where Factor folds in the preference of the segment
// for the plan, its share of the population and its elasticity.
type DemandTerm struct {
	SegmentID string
	ForfaitID string
	Factor    float64
}

// demandTable holds the active plans of an input and the demand factor of every
// (plan, segment) pair.
type demandTable struct {
	forfaits []Forfait
	segments []Segment
	// factors[i][s] is the factor of segment s for plan i.
	factors [][]float64
}

func newDemandTable(in Input, cfg Config) (*demandTable, error) {
	in = Normalize(in)
	var totalSize float64
	for _, s := range in.Segments {
		totalSize += s.Size
	}

	t := &demandTable{forfaits: in.Forfaits, segments: in.Segments}
	for _, f := range in.Forfaits {
		row := make([]float64, len(in.Segments))
		for k, s := range in.Segments {
			elasticity := cfg.DefaultElasticity
			if s.Elasticity != nil {
				elasticity = *s.Elasticity
			}
			if elasticity == 0 {
				return nil, fmt.Errorf("segment %q has zero elasticity", s.ID)
			}
			preference, ok := s.Preferences[f.ID]
			if !ok {
				preference = cfg.DefaultPreference
			}
			var share float64
			if totalSize > 0 {
				share = s.Size / totalSize
			}
			row[k] = preference * share / elasticity
		}
		t.factors = append(t.factors, row)
	}
	return t, nil
}

// segmentDemand returns the demand of segment s for plan i at the given price, clamped to
// zero.
func (t *demandTable) segmentDemand(i, s int, price float64) float64 {
	f := t.forfaits[i]
	return math.Max(0, t.factors[i][s]*(f.DemandA-f.DemandB*price))
}

// demand returns the clamped demand of plan i at the given price.
func (t *demandTable) demand(i int, price float64) float64 {
	var d float64
	for s := range t.segments {
		d += t.segmentDemand(i, s, price)
	}
	return d
}

// profit returns the total profit of the plans at the given prices, using clamped demands.
func (t *demandTable) profit(prices []float64) float64 {
	var p float64
	for i, f := range t.forfaits {
		p += (prices[i] - f.Cost) * t.demand(i, prices[i])
	}
	return p
}

func (t *demandTable) terms() []DemandTerm {
	var terms []DemandTerm
	for i, f := range t.forfaits {
		for s, seg := range t.segments {
			terms = append(terms, DemandTerm{SegmentID: seg.ID, ForfaitID: f.ID, Factor: t.factors[i][s]})
		}
	}
	return terms
}

// PricingModel is the optimization model built from an Input.
type PricingModel struct {
	Model *qpmodel.Model
	// Forfaits are the active plans in input order. The price of Forfaits[i] is variable i of
	// Model.
	Forfaits []Forfait
	// Terms lists the demand terms, plan by plan.
	Terms         []DemandTerm
	TotalCapacity float64
	MinMargin     float64
	// OrderChain lists the plan IDs by increasing DataGo, ties broken by input order.
	OrderChain []string

	table   *demandTable
	prices  []qpmodel.Var
	demands []*qpmodel.LinearExpr
}

// BuildModel builds the pricing model of the input.
//
// It returns ErrMissingData if the input has no segment, ErrMissingCapacity if the total
// capacity is missing, and a *qpmodel.Error if the model is malformed (e.g. a plan cost above
// the price ceiling or duplicate plan IDs).
func BuildModel(in Input, cfg Config) (*PricingModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(in.Segments) == 0 {
		return nil, ErrMissingData
	}
	if in.Constraints.TotalCapacity == nil {
		return nil, ErrMissingCapacity
	}
	table, err := newDemandTable(in, cfg)
	if err != nil {
		return nil, err
	}

	pm := &PricingModel{
		Forfaits:      table.forfaits,
		Terms:         table.terms(),
		TotalCapacity: *in.Constraints.TotalCapacity,
		MinMargin:     in.minMargin(cfg),
		table:         table,
	}
	mb := qpmodel.NewModelBuilder(modelName)

	for i, f := range table.forfaits {
		p := mb.NewVar(f.Cost, cfg.PriceCeiling).WithName(priceVarPrefix + f.ID)
		demand := qpmodel.NewLinearExpr()
		for s := range table.segments {
			factor := table.factors[i][s]
			demand.AddTerm(p, -factor*f.DemandB).AddConstant(factor * f.DemandA)
		}
		pm.prices = append(pm.prices, p)
		pm.demands = append(pm.demands, demand)
	}

	usage := qpmodel.NewLinearExpr()
	for i, f := range table.forfaits {
		usage.AddTerm(pm.demands[i], f.DataGo)
	}
	mb.AddLessOrEqual(usage, qpmodel.NewConstant(pm.TotalCapacity)).WithName(capacityName)

	order := make([]int, len(table.forfaits))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return table.forfaits[order[a]].DataGo < table.forfaits[order[b]].DataGo
	})
	for k, i := range order {
		pm.OrderChain = append(pm.OrderChain, table.forfaits[i].ID)
		if k == 0 {
			continue
		}
		prev, curr := order[k-1], i
		mb.AddGreaterOrEqual(pm.prices[curr], qpmodel.NewLinearExpr().Add(pm.prices[prev]).AddConstant(pm.MinMargin)).
			WithName(fmt.Sprintf("Order_%s_%s", table.forfaits[prev].ID, table.forfaits[curr].ID))
	}

	profit := qpmodel.NewQuadExpr()
	for i, f := range table.forfaits {
		margin := qpmodel.NewLinearExpr().Add(pm.prices[i]).AddConstant(-f.Cost)
		profit.AddProduct(margin, pm.demands[i], 1)
	}
	mb.Maximize(profit)
	// The curvature of the profit depends on the sign of the demand slopes.
	mb.SetNonConvex(true)

	m, err := mb.Model()
	if err != nil {
		return nil, err
	}
	pm.Model = m
	return pm, nil
}

// Demand returns the demand expression of the i-th active plan.
func (pm *PricingModel) Demand(i int) *qpmodel.LinearExpr {
	return pm.demands[i]
}

// Price returns the price variable of the i-th active plan.
func (pm *PricingModel) Price(i int) qpmodel.Var {
	return pm.prices[i]
}
