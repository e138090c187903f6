// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the hyperion routing server.
// Hyperion sits in front of a pool of heterogeneous expert models and
// decides, per query, which expert (or experts) should handle it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/hyperionlabs/hyperion/internal/api"
	"github.com/hyperionlabs/hyperion/internal/classifier"
	"github.com/hyperionlabs/hyperion/internal/classifier/cache"
	"github.com/hyperionlabs/hyperion/internal/config"
	"github.com/hyperionlabs/hyperion/internal/hooks"
	"github.com/hyperionlabs/hyperion/internal/invoker"
	"github.com/hyperionlabs/hyperion/internal/logging"
	"github.com/hyperionlabs/hyperion/internal/memory"
	"github.com/hyperionlabs/hyperion/internal/pipeline"
	"github.com/hyperionlabs/hyperion/internal/predictor"
	"github.com/hyperionlabs/hyperion/internal/registry"
	"github.com/hyperionlabs/hyperion/internal/router"
	"github.com/hyperionlabs/hyperion/internal/steering"
	"github.com/hyperionlabs/hyperion/internal/supervisor"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("hyperion %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return
	}

	// A local .env is optional; it only feeds os.Getenv lookups below.
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env")
	}

	if err := run(*configPath); err != nil {
		log.Fatalf("hyperion failed: %v", err)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Sanitize()

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Warnf("Falling back to stdout logging: %v", err)
	}

	reg, err := registry.LoadExpertRegistry(cfg.RegistryPath)
	if err != nil {
		return fmt.Errorf("failed to load expert registry: %w", err)
	}
	log.Infof("Loaded %d experts across domains %v", reg.Count(), reg.Domains())

	mem := memory.NewPerformanceMemory(cfg.Supervisor.EWMAAlpha)
	bus := hooks.NewEventBus()
	defer bus.Shutdown()

	cl := classifier.New(cfg.Classifier, cache.New(cfg.Classifier.CacheCapacity))
	rt := router.New(cfg.Router, reg, mem)
	pr := predictor.New(cfg.Predictor, reg, mem)
	sv := supervisor.New(cfg.Supervisor, reg, mem)

	opts := pipeline.Options{Bus: bus}

	steer, err := steering.NewEngine(cfg.SteeringDir)
	if err != nil {
		return fmt.Errorf("failed to create steering engine: %w", err)
	}
	if err := steer.LoadRules(); err != nil {
		log.Warnf("Steering rules unavailable: %v", err)
	} else {
		if err := steer.StartWatcher(); err != nil {
			log.Warnf("Steering hot reload disabled: %v", err)
		}
		opts.Steering = steer
	}
	defer steer.StopWatcher()

	if cfg.History.Enabled {
		hs, err := memory.NewHistoryStore(cfg.History.BaseDir, cfg.History.MaxLogSizeMB, cfg.History.Compression)
		if err != nil {
			log.Warnf("Decision history disabled: %v", err)
		} else {
			opts.History = hs
			defer func() {
				if err := hs.Close(); err != nil {
					log.Warnf("Failed to close history store: %v", err)
				}
			}()
		}
	}

	p := pipeline.New(cl, rt, pr, sv, mem, reg, opts)
	inv := invoker.NewOllamaInvoker(cfg.Invoker)

	healthCtx, cancelHealth := context.WithTimeout(context.Background(), 3*time.Second)
	if !inv.Healthy(healthCtx) {
		log.Warnf("Expert backend at %s is not answering; routing still works, invocation will fail", cfg.Invoker.BaseURL)
	}
	cancelHealth()

	server := api.NewServer(cfg, p, reg, inv, bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("hyperion %s starting", Version)
	return server.Run(ctx)
}
