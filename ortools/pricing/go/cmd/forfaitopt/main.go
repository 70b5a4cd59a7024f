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

// The forfaitopt command optimizes the prices of the plans described by an input JSON file.
//
// Usage:
//
//	forfaitopt -input data.json [-config cfg.yaml] [-format json|csv|textproto|protojson] [-sensitivity]
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	log "github.com/golang/glog"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"

	"github.com/google/pricing-optimizer/ortools/pricing/go/forfait"
	"github.com/google/pricing-optimizer/ortools/pricing/go/forfaitconfig"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

var (
	inputPath   = flag.String("input", "-", "Path of the input JSON file, - for stdin.")
	configPath  = flag.String("config", "", "Path of the configuration file (YAML, JSON or TOML).")
	format      = flag.String("format", "json", "Output format: json, csv, textproto or protojson.")
	sensitivity = flag.Bool("sensitivity", false, "Also run the price sensitivity analysis (json only).")
)

var errFailed = errors.New("optimization did not succeed")

type options struct {
	format      string
	sensitivity bool
	config      *forfaitconfig.Config
}

func readInput(path string) (forfait.Input, error) {
	var in forfait.Input
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return in, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return in, fmt.Errorf("decoding input: %w", err)
	}
	return in, nil
}

// run optimizes `in` and writes the result to `w`. It returns errFailed, after writing the
// result, when the optimization did not succeed.
func run(w io.Writer, in forfait.Input, opts options) error {
	if opts.sensitivity && opts.format != "json" {
		return fmt.Errorf("-sensitivity requires -format=json, got %q", opts.format)
	}
	res := forfait.Optimize(qpmodel.NewSolver(&opts.config.Solver), in, opts.config.Model)

	switch opts.format {
	case "json":
		var out any = res
		if opts.sensitivity && res.Success {
			sens, err := forfait.Sensitivity(in, opts.config.Model, res, forfait.DefaultSensitivityOptions())
			if err != nil {
				return err
			}
			out = struct {
				Result      forfait.Result              `json:"result"`
				Sensitivity []forfait.SensitivityResult `json:"sensitivity"`
			}{res, sens}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	case "csv":
		if !res.Success {
			fmt.Fprintln(w, res.Status)
			break
		}
		if err := forfait.WriteCSV(w, res, in.Forfaits); err != nil {
			return err
		}
	case "textproto", "protojson":
		st, err := res.Struct()
		if err != nil {
			return err
		}
		var out string
		if opts.format == "textproto" {
			out = prototext.MarshalOptions{Multiline: true}.Format(st)
		} else {
			out = protojson.MarshalOptions{Multiline: true}.Format(st)
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}
	if !res.Success {
		return fmt.Errorf("%w: %s", errFailed, res.Status)
	}
	return nil
}

func main() {
	flag.Parse()
	defer log.Flush()

	cfg, err := forfaitconfig.Load(*configPath)
	if err != nil {
		log.Exitf("Failed to load the configuration: %v", err)
	}
	in, err := readInput(*inputPath)
	if err != nil {
		log.Exitf("Failed to read the input: %v", err)
	}
	if err := run(os.Stdout, in, options{format: *format, sensitivity: *sensitivity, config: cfg}); err != nil {
		log.Exitf("forfaitopt returned with error: %v", err)
	}
}
