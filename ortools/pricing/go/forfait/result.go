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
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"

	"google.golang.org/protobuf/types/known/structpb"
)

// Result is the outcome of Optimize. When Success is false only Status is meaningful.
type Result struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	// OptimalPrices maps a plan ID to its price.
	OptimalPrices map[string]float64 `json:"optimalPrices"`
	// Demands maps a plan ID to its demand, summed over segments.
	Demands map[string]float64 `json:"demands"`
	// SegmentAllocation maps a segment ID and a plan ID to the demand of the segment for the
	// plan.
	SegmentAllocation map[string]map[string]float64 `json:"segmentAllocation"`
	TotalProfit       float64                       `json:"totalProfit"`
	ProfitByForfait   map[string]float64            `json:"profitByForfait"`
	// NetworkUsage is the total data usage of the demands.
	NetworkUsage float64 `json:"networkUsage"`
	// NetworkUtilization is NetworkUsage in percent of the total capacity, or 0 when the
	// capacity is 0.
	NetworkUtilization float64 `json:"networkUtilization"`
	Iterations         int     `json:"iterations"`
	// ExecutionTime is the solve time in milliseconds.
	ExecutionTime float64 `json:"executionTime"`
}

// MarshalJSON emits only `success` and `status` for failed results.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Status  string `json:"status"`
		}{r.Success, r.Status})
	}
	type plain Result
	return json.Marshal(plain(r))
}

// FormatResult turns a solver response into a Result. The demands are recomputed from the
// prices and clamped to zero; the clamping is not part of the solved model.
func FormatResult(pm *PricingModel, resp *qpmodel.Response) (Result, error) {
	n := len(pm.Forfaits)
	if len(resp.Values) < n {
		return Result{}, fmt.Errorf("solver returned %d values for %d prices", len(resp.Values), n)
	}

	status := StatusOptimal
	if resp.Status != qpmodel.StatusOptimal {
		status = StatusSuboptimal
	}
	res := Result{
		Success:           true,
		Status:            status,
		OptimalPrices:     make(map[string]float64, n),
		Demands:           make(map[string]float64, n),
		SegmentAllocation: make(map[string]map[string]float64, len(pm.table.segments)),
		ProfitByForfait:   make(map[string]float64, n),
		Iterations:        resp.Iterations,
		ExecutionTime:     float64(resp.WallTime) / float64(time.Millisecond),
	}
	for _, s := range pm.table.segments {
		res.SegmentAllocation[s.ID] = make(map[string]float64, n)
	}

	for i, f := range pm.Forfaits {
		price := qpmodel.SolutionValue(resp, pm.prices[i])
		res.OptimalPrices[f.ID] = price

		var demand float64
		for s, seg := range pm.table.segments {
			d := pm.table.segmentDemand(i, s, price)
			res.SegmentAllocation[seg.ID][f.ID] = d
			demand += d
		}
		res.Demands[f.ID] = demand

		profit := (price - f.Cost) * demand
		res.ProfitByForfait[f.ID] = profit
		res.TotalProfit += profit
		res.NetworkUsage += demand * f.DataGo
	}
	if pm.TotalCapacity != 0 {
		res.NetworkUtilization = res.NetworkUsage / pm.TotalCapacity * 100
	}
	return res, nil
}

// Struct returns the result as a protobuf Struct, with the same field names as its JSON
// encoding.
func (r Result) Struct() (*structpb.Struct, error) {
	fields := map[string]any{
		"success": r.Success,
		"status":  r.Status,
	}
	if r.Success {
		fields["optimalPrices"] = floatMap(r.OptimalPrices)
		fields["demands"] = floatMap(r.Demands)
		alloc := make(map[string]any, len(r.SegmentAllocation))
		for id, m := range r.SegmentAllocation {
			alloc[id] = floatMap(m)
		}
		fields["segmentAllocation"] = alloc
		fields["totalProfit"] = r.TotalProfit
		fields["profitByForfait"] = floatMap(r.ProfitByForfait)
		fields["networkUsage"] = r.NetworkUsage
		fields["networkUtilization"] = r.NetworkUtilization
		fields["iterations"] = r.Iterations
		fields["executionTime"] = r.ExecutionTime
	}
	return structpb.NewStruct(fields)
}

func floatMap(m map[string]float64) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
