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

// Package forfaitapi serves the pricing optimizer over HTTP.
//
// Routes:
//
//	GET  /health         liveness probe
//	POST /optimize       optimize the posted input; JSON, CSV or protobuf response
//	POST /sensitivity    optimize, then run the price sensitivity analysis
//	POST /demand-curves  raw demand curves of the posted plans
package forfaitapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	log "github.com/golang/glog"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/pricing-optimizer/ortools/pricing/go/forfait"
)

const (
	statusNoData = "No data provided"
	mimeCSV      = "text/csv"
)

// Options configures the router.
type Options struct {
	// Config holds the model defaults and price ceiling.
	Config forfait.Config
	// AllowedOrigins lists the CORS origins. Empty or "*" allows any origin.
	AllowedOrigins []string
	// Sensitivity controls the /sensitivity analysis.
	Sensitivity forfait.SensitivityOptions
}

type handler struct {
	solver forfait.Solver
	opts   Options
}

// NewRouter returns the router of the API. Every request is solved by `solver`, which must
// be safe for concurrent use.
func NewRouter(solver forfait.Solver, opts Options) *gin.Engine {
	if opts.Sensitivity.StepPercent == 0 {
		opts.Sensitivity = forfait.DefaultSensitivityOptions()
	}
	h := &handler{solver: solver, opts: opts}

	r := gin.New()
	r.Use(requestID(), requestLogger(), gin.CustomRecovery(recovery), cors(opts.AllowedOrigins))

	r.GET("/health", h.handleHealth)
	r.POST("/optimize", h.handleOptimize)
	r.POST("/sensitivity", h.handleSensitivity)
	r.POST("/demand-curves", h.handleDemandCurves)
	return r
}

func recovery(c *gin.Context, recovered any) {
	log.Errorf("forfaitapi: request %s panicked: %v", c.GetString(requestIDKey), recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"status":  fmt.Sprintf("Server Error: %v", recovered),
	})
}

func (h *handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Telecom Optimizer API is running"})
}

// bindInput decodes the request body. It writes a 400 response and returns false when the
// body is empty or not a JSON object with plans and segments.
func bindInput(c *gin.Context, requireSegments bool) (forfait.Input, bool) {
	var in forfait.Input
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "status": statusNoData})
		return in, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "status": statusNoData})
		return in, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "status": fmt.Sprintf("Invalid request: %v", err)})
		return in, false
	}
	if len(in.Forfaits) == 0 || (requireSegments && len(in.Segments) == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "status": forfait.StatusMissingData})
		return in, false
	}
	return in, true
}

func (h *handler) handleOptimize(c *gin.Context) {
	in, ok := bindInput(c, true)
	if !ok {
		return
	}
	res := forfait.Optimize(h.solver, in, h.opts.Config)

	switch c.NegotiateFormat(gin.MIMEJSON, mimeCSV, binding.MIMEPROTOBUF) {
	case mimeCSV:
		if !res.Success {
			break
		}
		var buf bytes.Buffer
		if err := forfait.WriteCSV(&buf, res, in.Forfaits); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "status": fmt.Sprintf("Server Error: %v", err)})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="optimization.csv"`)
		c.Data(http.StatusOK, mimeCSV+"; charset=utf-8", buf.Bytes())
		return
	case binding.MIMEPROTOBUF:
		st, err := res.Struct()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "status": fmt.Sprintf("Server Error: %v", err)})
			return
		}
		c.ProtoBuf(http.StatusOK, st)
		return
	}
	c.JSON(http.StatusOK, res)
}

type sensitivityResponse struct {
	Result      forfait.Result              `json:"result"`
	Sensitivity []forfait.SensitivityResult `json:"sensitivity,omitempty"`
}

func (h *handler) handleSensitivity(c *gin.Context) {
	in, ok := bindInput(c, true)
	if !ok {
		return
	}
	res := forfait.Optimize(h.solver, in, h.opts.Config)
	resp := sensitivityResponse{Result: res}
	if res.Success {
		sens, err := forfait.Sensitivity(in, h.opts.Config, res, h.opts.Sensitivity)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "status": fmt.Sprintf("Server Error: %v", err)})
			return
		}
		resp.Sensitivity = sens
	}
	c.JSON(http.StatusOK, resp)
}

func queryFloat(c *gin.Context, key string, def float64) (float64, error) {
	s, ok := c.GetQuery(key)
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return v, nil
}

func (h *handler) handleDemandCurves(c *gin.Context) {
	in, ok := bindInput(c, false)
	if !ok {
		return
	}
	var bounds [3]float64
	for i, q := range []struct {
		key string
		def float64
	}{
		{"min", forfait.DefaultCurveMinPrice},
		{"max", forfait.DefaultCurveMaxPrice},
		{"step", forfait.DefaultCurveStep},
	} {
		v, err := queryFloat(c, q.key, q.def)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "status": err.Error()})
			return
		}
		bounds[i] = v
	}
	points, err := forfait.DemandCurves(in, bounds[0], bounds[1], bounds[2])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "status": err.Error()})
		return
	}
	c.JSON(http.StatusOK, points)
}
