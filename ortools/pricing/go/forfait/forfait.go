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

// Package forfait computes profit-maximizing prices for a catalog of data plans ("forfaits")
// sold to customer segments.
//
// Each active plan gets one continuous price variable. Demand for a plan is affine in its own
// price and aggregated over segments, weighted by segment size, preference and elasticity.
// The prices are subject to a shared network capacity and to a price ordering chain over
// plans sorted by data allowance. The total profit, a quadratic function of the prices, is
// maximized by a Solver and the solution is turned into a Result.
package forfait

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMissingData is returned when the input has no plan or no segment.
	ErrMissingData = errors.New("missing forfaits or segments data")
	// ErrMissingCapacity is returned when the input constraints have no total capacity.
	ErrMissingCapacity = errors.New("missing required constraint 'totalCapacity'")
)

// Forfait is a data plan.
type Forfait struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// Cost is the unit cost of the plan. It is the lower bound of its price.
	Cost float64 `json:"cost"`
	// DataGo is the data allowance of one subscription, used for capacity accounting and to
	// order the plans.
	DataGo float64 `json:"dataGo"`
	// DemandA and DemandB define the demand `DemandA - DemandB * price`.
	DemandA float64 `json:"demandA"`
	DemandB float64 `json:"demandB"`
	// IsActive excludes the plan from optimization when false. A missing flag means active.
	IsActive *bool `json:"isActive,omitempty"`
	// BasePrice is the current or suggested price. It is informational only.
	BasePrice *float64 `json:"basePrice,omitempty"`
}

// Active returns true unless the plan is explicitly disabled.
func (f Forfait) Active() bool {
	return f.IsActive == nil || *f.IsActive
}

// DisplayName returns the name of the plan, or its ID when it has no name.
func (f Forfait) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.ID
}

// Segment is a group of customers.
type Segment struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	// Size is the population weight of the segment.
	Size float64 `json:"size"`
	// Elasticity dampens the demand of the segment. Nil means Config.DefaultElasticity.
	Elasticity *float64 `json:"elasticity,omitempty"`
	// Preferences maps a plan ID to an affinity weight in [0,1]. Missing plans use
	// Config.DefaultPreference.
	Preferences map[string]float64 `json:"preferences"`
}

// Constraints are the global constraints of the model.
type Constraints struct {
	// TotalCapacity bounds the total data usage. It is required.
	TotalCapacity *float64 `json:"totalCapacity,omitempty"`
	// MinMargin is the minimum price gap between consecutive plans ordered by DataGo. Nil
	// means Config.DefaultMinMargin.
	MinMargin *float64 `json:"minMargin,omitempty"`
	// PeakCapacity is accepted for compatibility with existing clients and ignored.
	PeakCapacity *float64 `json:"peakCapacity,omitempty"`
}

// Input is a pricing problem.
type Input struct {
	Forfaits    []Forfait   `json:"forfaits"`
	Segments    []Segment   `json:"segments"`
	Constraints Constraints `json:"constraints"`
}

// Config holds the fallback values and the price ceiling used to build the model.
type Config struct {
	// DefaultPreference is used for plans missing from Segment.Preferences.
	DefaultPreference float64
	// DefaultElasticity is used for segments without an elasticity.
	DefaultElasticity float64
	// DefaultMinMargin is used when Constraints.MinMargin is not set.
	DefaultMinMargin float64
	// PriceCeiling is the upper bound of every price variable.
	PriceCeiling float64
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		DefaultPreference: 0.5,
		DefaultElasticity: 1.0,
		DefaultMinMargin:  2.0,
		PriceCeiling:      200.0,
	}
}

// Validate returns an error if the configuration cannot be used to build a model.
func (c Config) Validate() error {
	switch {
	case !(c.PriceCeiling > 0) || math.IsInf(c.PriceCeiling, 1):
		return fmt.Errorf("price ceiling must be positive and finite, got %v", c.PriceCeiling)
	case math.IsNaN(c.DefaultPreference) || math.IsInf(c.DefaultPreference, 0):
		return fmt.Errorf("default preference must be finite, got %v", c.DefaultPreference)
	case c.DefaultElasticity == 0 || math.IsNaN(c.DefaultElasticity) || math.IsInf(c.DefaultElasticity, 0):
		return fmt.Errorf("default elasticity must be finite and non-zero, got %v", c.DefaultElasticity)
	case math.IsNaN(c.DefaultMinMargin) || math.IsInf(c.DefaultMinMargin, 0):
		return fmt.Errorf("default minimum margin must be finite, got %v", c.DefaultMinMargin)
	}
	return nil
}

// Normalize returns the input restricted to its active plans, in input order. Segments and
// constraints are passed through unchanged.
func Normalize(in Input) Input {
	out := in
	out.Forfaits = nil
	for _, f := range in.Forfaits {
		if f.Active() {
			out.Forfaits = append(out.Forfaits, f)
		}
	}
	return out
}

// minMargin returns the minimum price gap of the input.
func (in Input) minMargin(cfg Config) float64 {
	if in.Constraints.MinMargin != nil {
		return *in.Constraints.MinMargin
	}
	return cfg.DefaultMinMargin
}
