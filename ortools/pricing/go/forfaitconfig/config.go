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

// Package forfaitconfig loads the configuration of the pricing optimizer binaries.
//
// Values come, by increasing priority, from built-in defaults, an optional configuration file
// (YAML, JSON or TOML) and FORFAIT_* environment variables, e.g. FORFAIT_MODEL_PRICECEILING
// for `model.priceCeiling` or FORFAIT_SERVER_ADDR for `server.addr`.
package forfaitconfig

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/pricing-optimizer/ortools/pricing/go/forfait"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
	"github.com/spf13/viper"
)

const envPrefix = "FORFAIT"

// Configuration keys.
const (
	KeyPriceCeiling         = "model.priceCeiling"
	KeyDefaultPreference    = "model.defaultPreference"
	KeyDefaultElasticity    = "model.defaultElasticity"
	KeyDefaultMinMargin     = "model.defaultMinMargin"
	KeyMaxTime              = "solver.maxTime"
	KeyMaxIterations        = "solver.maxIterations"
	KeyFeasibilityTolerance = "solver.feasibilityTolerance"
	KeyOptimalityTolerance  = "solver.optimalityTolerance"
	KeyLogSearchProgress    = "solver.logSearchProgress"
	KeyServerAddr           = "server.addr"
	KeyAllowedOrigins       = "server.allowedOrigins"
	KeyServerMode           = "server.mode"
)

// Server holds the HTTP server settings.
type Server struct {
	Addr string
	// AllowedOrigins lists the origins allowed by CORS. Empty or "*" allows any origin.
	AllowedOrigins []string
	// Mode is the gin mode: "debug", "release" or "test".
	Mode string
}

// Config is the configuration of the binaries.
type Config struct {
	Model  forfait.Config
	Solver qpmodel.Parameters
	Server Server
}

func setDefaults(v *viper.Viper) {
	model := forfait.DefaultConfig()
	solver := qpmodel.DefaultParameters()
	v.SetDefault(KeyPriceCeiling, model.PriceCeiling)
	v.SetDefault(KeyDefaultPreference, model.DefaultPreference)
	v.SetDefault(KeyDefaultElasticity, model.DefaultElasticity)
	v.SetDefault(KeyDefaultMinMargin, model.DefaultMinMargin)
	v.SetDefault(KeyMaxTime, 30*time.Second)
	v.SetDefault(KeyMaxIterations, solver.MaxIterations)
	v.SetDefault(KeyFeasibilityTolerance, solver.FeasibilityTolerance)
	v.SetDefault(KeyOptimalityTolerance, solver.OptimalityTolerance)
	v.SetDefault(KeyLogSearchProgress, false)
	v.SetDefault(KeyServerAddr, ":5000")
	v.SetDefault(KeyAllowedOrigins, []string{"*"})
	v.SetDefault(KeyServerMode, "release")
}

// New returns a viper instance with the defaults set and environment overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Default returns the configuration with no file and no environment override.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	c, err := FromViper(v)
	if err != nil {
		panic(fmt.Sprintf("invalid default configuration: %v", err))
	}
	return c
}

// Load reads the configuration file at `path`, if not empty, and applies environment
// overrides.
func Load(path string) (*Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// Read reads a configuration of the given type ("yaml", "json", ...) from `r` and applies
// environment overrides.
func Read(r io.Reader, configType string) (*Config, error) {
	v := New()
	v.SetConfigType(configType)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("reading %s config: %w", configType, err)
	}
	return FromViper(v)
}

// FromViper builds and validates a configuration from `v`.
func FromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Model: forfait.Config{
			DefaultPreference: v.GetFloat64(KeyDefaultPreference),
			DefaultElasticity: v.GetFloat64(KeyDefaultElasticity),
			DefaultMinMargin:  v.GetFloat64(KeyDefaultMinMargin),
			PriceCeiling:      v.GetFloat64(KeyPriceCeiling),
		},
		Solver: qpmodel.Parameters{
			MaxTime:              v.GetDuration(KeyMaxTime),
			MaxIterations:        v.GetInt(KeyMaxIterations),
			FeasibilityTolerance: v.GetFloat64(KeyFeasibilityTolerance),
			OptimalityTolerance:  v.GetFloat64(KeyOptimalityTolerance),
			LogSearchProgress:    v.GetBool(KeyLogSearchProgress),
		},
		Server: Server{
			Addr:           v.GetString(KeyServerAddr),
			AllowedOrigins: splitList(v.GetStringSlice(KeyAllowedOrigins)),
			Mode:           v.GetString(KeyServerMode),
		},
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// splitList splits comma separated entries, as given by environment variables.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	switch {
	case c.Solver.MaxTime < 0:
		return fmt.Errorf("%s must not be negative, got %v", KeyMaxTime, c.Solver.MaxTime)
	case c.Solver.MaxIterations < 0:
		return fmt.Errorf("%s must not be negative, got %d", KeyMaxIterations, c.Solver.MaxIterations)
	case c.Solver.FeasibilityTolerance < 0:
		return fmt.Errorf("%s must not be negative, got %v", KeyFeasibilityTolerance, c.Solver.FeasibilityTolerance)
	case c.Solver.OptimalityTolerance < 0:
		return fmt.Errorf("%s must not be negative, got %v", KeyOptimalityTolerance, c.Solver.OptimalityTolerance)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("%s must be one of debug, release or test, got %q", KeyServerMode, c.Server.Mode)
	}
	return nil
}
