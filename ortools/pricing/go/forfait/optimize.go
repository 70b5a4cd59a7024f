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

	log "github.com/golang/glog"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

// Status messages of a Result.
const (
	StatusOptimal     = "Optimal"
	StatusSuboptimal  = "Suboptimal"
	StatusMissingData = "Missing forfaits or segments data"
)

// Solver solves a pricing model. *qpmodel.Solver implements it.
type Solver interface {
	Solve(m *qpmodel.Model) (*qpmodel.Response, error)
}

// Optimize builds the pricing model of the input, solves it with `s` and formats the
// solution. It never returns an error: failures are reported with Success set to false and a
// Status describing the failure.
//
// Only OPTIMAL and SUBOPTIMAL solves are successful; any other termination is reported as a
// failure without retrying.
func Optimize(s Solver, in Input, cfg Config) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("forfait: optimization panicked: %v", r)
			res = failure(fmt.Sprintf("Internal Error: %v", r))
		}
	}()

	if len(in.Forfaits) == 0 || len(in.Segments) == 0 {
		return failure(StatusMissingData)
	}
	pm, err := BuildModel(in, cfg)
	if err != nil {
		return errorResult(err)
	}
	log.V(1).Infof("forfait: solving model with %d prices and %d constraints", len(pm.Model.Variables), len(pm.Model.Constraints))

	resp, err := s.Solve(pm.Model)
	if err != nil {
		return errorResult(err)
	}
	if !resp.Status.HasSolution() {
		log.Warningf("forfait: solver terminated with status %v", resp.Status)
		return failure(fmt.Sprintf("Optimization failed with status %v", resp.Status))
	}
	res, err = FormatResult(pm, resp)
	if err != nil {
		return errorResult(err)
	}
	return res
}

func failure(status string) Result {
	return Result{Success: false, Status: status}
}

// errorResult maps an error to a failed Result.
func errorResult(err error) Result {
	var qerr *qpmodel.Error
	switch {
	case errors.Is(err, ErrMissingData):
		return failure(StatusMissingData)
	case errors.As(err, &qerr):
		return failure(fmt.Sprintf("Solver Error: %d - %s", int(qerr.Code), qerr.Message))
	}
	log.Errorf("forfait: internal error: %v", err)
	return failure(fmt.Sprintf("Internal Error: %v", err))
}
