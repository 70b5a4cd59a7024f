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

// The simple_qp_program command is an example of a simple concave quadratic program: the
// revenue p * (100 - 2p) of a single price p under a minimum price.
package main

import (
	"fmt"

	log "github.com/golang/glog"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

func simpleQpProgram() error {
	model := qpmodel.NewModelBuilder("revenue")

	p := model.NewVar(10, 100).WithName("p")
	demand := qpmodel.NewLinearExpr().AddConstant(100).AddTerm(p, -2)

	model.AddGreaterOrEqual(demand, qpmodel.NewConstant(0))
	model.Maximize(qpmodel.NewQuadExpr().AddProduct(p, demand, 1))

	m, err := model.Model()
	if err != nil {
		return fmt.Errorf("failed to instantiate the QP model: %w", err)
	}

	response, err := qpmodel.SolveModel(m)
	if err != nil {
		return fmt.Errorf("failed to solve the model: %w", err)
	}

	fmt.Printf("Status: %v\n", response.Status)
	if response.Status.HasSolution() {
		fmt.Printf(" p = %.2f\n", qpmodel.SolutionValue(response, p))
		fmt.Printf(" revenue = %.2f\n", response.ObjectiveValue)
	}
	return nil
}

func main() {
	if err := simpleQpProgram(); err != nil {
		log.Exitf("simpleQpProgram returned with error: %v", err)
	}
}
