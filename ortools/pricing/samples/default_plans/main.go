// Copyright 2010-2025 Google LLC
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

// The default_plans command optimizes the prices of a four plan catalog sold to three
// customer segments.
package main

import (
	"fmt"
	"math"

	log "github.com/golang/glog"
	"github.com/google/pricing-optimizer/ortools/pricing/go/forfait"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

func float(v float64) *float64 { return &v }

// segmentPreferences gives each segment a preference of 1 for the plan of the same rank,
// decreasing by 0.2 per rank of distance, with a floor of 0.2.
func segmentPreferences(segments []forfait.Segment, forfaits []forfait.Forfait) {
	for s := range segments {
		prefs := make(map[string]float64, len(forfaits))
		for f, ff := range forfaits {
			p := 1 - math.Abs(float64(s-f))*0.2
			prefs[ff.ID] = math.Max(0.2, math.Min(1, p))
		}
		segments[s].Preferences = prefs
	}
}

func defaultPlans() error {
	forfaits := []forfait.Forfait{
		{ID: "essentiel", Name: "Essentiel 1Go", DataGo: 1, Cost: 3, BasePrice: float(9.99), DemandA: 5000, DemandB: 400},
		{ID: "standard", Name: "Standard 10Go", DataGo: 10, Cost: 8, BasePrice: float(19.99), DemandA: 8000, DemandB: 300},
		{ID: "premium", Name: "Premium 50Go", DataGo: 50, Cost: 15, BasePrice: float(34.99), DemandA: 4000, DemandB: 100},
		{ID: "illimite", Name: "Illimité 100Go", DataGo: 100, Cost: 25, BasePrice: float(49.99), DemandA: 2000, DemandB: 35},
	}
	segments := []forfait.Segment{
		{ID: "eco", Name: "Économique", Size: 25000, Elasticity: float(1.5)},
		{ID: "std", Name: "Standard", Size: 45000, Elasticity: float(1.0)},
		{ID: "prem", Name: "Premium", Size: 15000, Elasticity: float(0.6)},
	}
	segmentPreferences(segments, forfaits)

	in := forfait.Input{
		Forfaits: forfaits,
		Segments: segments,
		Constraints: forfait.Constraints{
			TotalCapacity: float(5000000),
			PeakCapacity:  float(100000),
			MinMargin:     float(5),
		},
	}

	res := forfait.Optimize(qpmodel.NewSolver(nil), in, forfait.DefaultConfig())
	fmt.Printf("Status: %s\n", res.Status)
	if !res.Success {
		return nil
	}
	for _, f := range forfaits {
		fmt.Printf("  %-16s price %7.2f  demand %8.0f  profit %10.2f\n",
			f.DisplayName(), res.OptimalPrices[f.ID], res.Demands[f.ID], res.ProfitByForfait[f.ID])
	}
	fmt.Printf("Total profit: %.2f\n", res.TotalProfit)
	fmt.Printf("Network utilization: %.1f%%\n", res.NetworkUtilization)
	return nil
}

func main() {
	if err := defaultPlans(); err != nil {
		log.Exitf("defaultPlans returned with error: %v", err)
	}
}
