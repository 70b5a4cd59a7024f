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
	"errors"
	"fmt"
	"math"
)

// SensitivityResult describes how the total profit and the demand of one plan move when its
// price deviates from the optimum, all other prices being fixed.
type SensitivityResult struct {
	ForfaitID   string `json:"forfaitId"`
	ForfaitName string `json:"forfaitName"`
	// PriceVariation holds the price deviations, in percent of the optimal price.
	PriceVariation []float64 `json:"priceVariation"`
	// ProfitVariation holds the total profit at each deviation.
	ProfitVariation []float64 `json:"profitVariation"`
	// DemandVariation holds the demand of the plan at each deviation.
	DemandVariation []float64 `json:"demandVariation"`
}

// SensitivityOptions controls Sensitivity.
type SensitivityOptions struct {
	// RangePercent is the largest deviation, in percent. Deviations span
	// [-RangePercent, +RangePercent].
	RangePercent int
	// StepPercent is the distance between two deviations, in percent.
	StepPercent int
}

// DefaultSensitivityOptions returns deviations from -10% to +10% by steps of 2%.
func DefaultSensitivityOptions() SensitivityOptions {
	return SensitivityOptions{RangePercent: 10, StepPercent: 2}
}

// Sensitivity evaluates, for every active plan, the total profit and the plan demand when its
// optimal price in `res` is moved by each deviation of `opts`. Demands are clamped to zero as
// in FormatResult.
func Sensitivity(in Input, cfg Config, res Result, opts SensitivityOptions) ([]SensitivityResult, error) {
	if !res.Success {
		return nil, fmt.Errorf("sensitivity analysis needs a successful result, got status %q", res.Status)
	}
	if opts.RangePercent < 0 || opts.StepPercent <= 0 {
		return nil, fmt.Errorf("invalid sensitivity options %+v", opts)
	}
	table, err := newDemandTable(in, cfg)
	if err != nil {
		return nil, err
	}

	base := make([]float64, len(table.forfaits))
	for i, f := range table.forfaits {
		p, ok := res.OptimalPrices[f.ID]
		if !ok {
			return nil, fmt.Errorf("result has no price for forfait %q", f.ID)
		}
		base[i] = p
	}

	var out []SensitivityResult
	prices := make([]float64, len(base))
	for i, f := range table.forfaits {
		sr := SensitivityResult{ForfaitID: f.ID, ForfaitName: f.Name}
		for pct := -opts.RangePercent; pct <= opts.RangePercent; pct += opts.StepPercent {
			copy(prices, base)
			prices[i] = base[i] * (1 + float64(pct)/100)
			sr.PriceVariation = append(sr.PriceVariation, float64(pct))
			sr.ProfitVariation = append(sr.ProfitVariation, table.profit(prices))
			sr.DemandVariation = append(sr.DemandVariation, table.demand(i, prices[i]))
		}
		out = append(out, sr)
	}
	return out, nil
}

// DemandCurvePoint holds the demand of every active plan at one price.
type DemandCurvePoint struct {
	Price float64 `json:"price"`
	// Demands maps a plan display name to its demand.
	Demands map[string]float64 `json:"demands"`
}

// Default price grid of DemandCurves.
const (
	DefaultCurveMinPrice = 0.0
	DefaultCurveMaxPrice = 80.0
	DefaultCurveStep     = 1.0
)

// maxCurvePoints bounds the size of the price grid of DemandCurves.
const maxCurvePoints = 100000

var errInvalidGrid = errors.New("invalid price grid")

// DemandCurves evaluates the raw demand `max(0, DemandA - DemandB * price)` of every active
// plan on the grid `minPrice, minPrice+step, ...` up to maxPrice. Segments are not taken
// into account.
func DemandCurves(in Input, minPrice, maxPrice, step float64) ([]DemandCurvePoint, error) {
	if math.IsNaN(minPrice) || math.IsNaN(maxPrice) || !(step > 0) || maxPrice < minPrice {
		return nil, fmt.Errorf("%w: min %v, max %v, step %v", errInvalidGrid, minPrice, maxPrice, step)
	}
	n := math.Floor((maxPrice-minPrice)/step+1e-9) + 1
	if n > maxCurvePoints {
		return nil, fmt.Errorf("%w: %v points exceed the limit of %d", errInvalidGrid, n, maxCurvePoints)
	}

	active := Normalize(in).Forfaits
	points := make([]DemandCurvePoint, 0, int(n))
	for k := 0; k < int(n); k++ {
		price := minPrice + float64(k)*step
		pt := DemandCurvePoint{Price: price, Demands: make(map[string]float64, len(active))}
		for _, f := range active {
			pt.Demands[f.DisplayName()] = math.Max(0, f.DemandA-f.DemandB*price)
		}
		points = append(points, pt)
	}
	return points, nil
}
