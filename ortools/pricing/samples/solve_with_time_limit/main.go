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

// The solve_with_time_limit command is an example of setting a time limit and an interrupt
// channel on a pricing model.
package main

import (
	"fmt"
	"time"

	log "github.com/golang/glog"
	"github.com/google/pricing-optimizer/ortools/pricing/go/forfait"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

func float(v float64) *float64 { return &v }

func solveWithTimeLimit() error {
	in := forfait.Input{
		Forfaits: []forfait.Forfait{
			{ID: "f1", Name: "Small", Cost: 10, DataGo: 10, DemandA: 1000, DemandB: 10},
			{ID: "f2", Name: "Large", Cost: 20, DataGo: 50, DemandA: 800, DemandB: 8},
		},
		Segments: []forfait.Segment{
			{ID: "s1", Size: 1000, Elasticity: float(1.5), Preferences: map[string]float64{"f1": 0.8, "f2": 0.2}},
		},
		Constraints: forfait.Constraints{TotalCapacity: float(100000), MinMargin: float(5)},
	}

	pm, err := forfait.BuildModel(in, forfait.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to build the pricing model: %w", err)
	}

	// Sets a time limit of 10 seconds.
	params := &qpmodel.Parameters{MaxTime: 10 * time.Second}

	// Stops the search after one second at the latest.
	interrupt := make(chan struct{})
	timer := time.AfterFunc(time.Second, func() { close(interrupt) })
	defer timer.Stop()

	response, err := qpmodel.SolveModelInterruptibleWithParameters(pm.Model, params, interrupt)
	if err != nil {
		return fmt.Errorf("failed to solve the model: %w", err)
	}

	fmt.Printf("Status: %v\n", response.Status)
	if response.Status.HasSolution() {
		res, err := forfait.FormatResult(pm, response)
		if err != nil {
			return err
		}
		for _, f := range pm.Forfaits {
			fmt.Printf(" %s = %.2f\n", f.DisplayName(), res.OptimalPrices[f.ID])
		}
		fmt.Printf(" profit = %.2f\n", res.TotalProfit)
	}
	return nil
}

func main() {
	if err := solveWithTimeLimit(); err != nil {
		log.Exitf("solveWithTimeLimit returned with error: %v", err)
	}
}
