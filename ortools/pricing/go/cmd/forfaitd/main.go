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

// The forfaitd command serves the pricing optimizer over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/golang/glog"
	"github.com/gin-gonic/gin"
	"github.com/google/pricing-optimizer/ortools/pricing/go/forfaitapi"
	"github.com/google/pricing-optimizer/ortools/pricing/go/forfaitconfig"
	"github.com/google/pricing-optimizer/ortools/qp/go/qpmodel"
)

var (
	configPath = flag.String("config", "", "Path of the configuration file (YAML, JSON or TOML).")
	addr       = flag.String("addr", "", "Listen address, overrides server.addr.")
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context) error {
	cfg, err := forfaitconfig.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	gin.SetMode(cfg.Server.Mode)

	router := forfaitapi.NewRouter(qpmodel.NewSolver(&cfg.Solver), forfaitapi.Options{
		Config:         cfg.Model,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	errc := make(chan error, 1)
	go func() {
		log.Infof("forfaitd: listening on %s", cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}
	log.Info("forfaitd: shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func main() {
	flag.Parse()
	defer log.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx); err != nil {
		log.Exitf("forfaitd returned with error: %v", err)
	}
}
