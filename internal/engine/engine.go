// Copyright 2025 Tom Barlow
//
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

// Package engine wires the Manifest Registry, Store, Task Runner,
// Workflow Scheduler, Job Driver, and Query Service together from the
// on-disk config, manifest, and runtime registry files. It is the
// composition root the CLI depends on.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/waypost/orchestrator/internal/config"
	"github.com/waypost/orchestrator/internal/tracing"
	"github.com/waypost/orchestrator/pkg/job"
	"github.com/waypost/orchestrator/pkg/manifest"
	"github.com/waypost/orchestrator/pkg/query"
	"github.com/waypost/orchestrator/pkg/runtime"
	"github.com/waypost/orchestrator/pkg/store"
	"github.com/waypost/orchestrator/pkg/store/file"
	"github.com/waypost/orchestrator/pkg/store/memory"
	"github.com/waypost/orchestrator/pkg/store/sqlite"
	"github.com/waypost/orchestrator/pkg/task"
	"github.com/waypost/orchestrator/pkg/workflow"
)

// Paths locates the on-disk inputs the engine needs.
type Paths struct {
	ManifestFile    string
	RuntimeRegistry string
	ConfigFile      string
	TaskTempDir     string
}

// Engine bundles every driver the CLI calls into.
type Engine struct {
	Registry  *manifest.Registry
	Store     store.Store
	Runner    *task.Runner
	Scheduler *workflow.Scheduler
	Driver    *job.Driver
	Query     *query.Service

	tracerProvider *sdktrace.TracerProvider
}

// Shutdown flushes the tracer provider and releases its resources. The
// Store is intentionally left open: callers that hold it beyond a single
// command (e.g. a long-running daemon) close it themselves.
func (e *Engine) Shutdown(ctx context.Context) error {
	return tracing.Shutdown(ctx, e.tracerProvider)
}

// Build loads the manifest, runtime registry, and config, selects the
// Store backend the config names, and wires every driver on top of it.
func Build(p Paths, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, err := manifest.Load(p.ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	for _, w := range registry.Warnings {
		logger.Warn("manifest warning", slog.String("warning", w))
	}

	runtimeRegistry := runtime.Registry{}
	if p.RuntimeRegistry != "" {
		runtimeRegistry, err = runtime.LoadRegistry(p.RuntimeRegistry)
		if err != nil {
			return nil, fmt.Errorf("loading runtime registry: %w", err)
		}
	}
	resolver := runtime.NewResolver(runtimeRegistry)

	cfg := &config.Config{}
	if p.ConfigFile != "" {
		cfg, err = config.Load(p.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	tracerProvider, err := tracing.NewProvider("orchestrator")
	if err != nil {
		return nil, fmt.Errorf("building tracer provider: %w", err)
	}

	metrics := task.NewMetrics(prometheus.DefaultRegisterer)
	runner := task.NewRunner(resolver, st, logger, metrics, p.TaskTempDir)
	scheduler := workflow.NewScheduler(registry, runner, st, logger)
	driver := job.NewDriver(registry, runner, scheduler, st, logger)
	queryService := query.NewService(st)

	return &Engine{
		Registry:       registry,
		Store:          st,
		Runner:         runner,
		Scheduler:      scheduler,
		Driver:         driver,
		Query:          queryService,
		tracerProvider: tracerProvider,
	}, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreProvider() {
	case "sqlite":
		return sqlite.Open(cfg.Database.ConnectionString)
	case "memory":
		return memory.New(), nil
	case "file":
		path := "orchestrator-store.json"
		if cfg.Database != nil && cfg.Database.ConnectionString != "" {
			path = cfg.Database.ConnectionString
		}
		return file.Open(path)
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.StoreProvider())
	}
}
