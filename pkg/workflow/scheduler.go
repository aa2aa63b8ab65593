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

// Package workflow implements the Workflow Scheduler: topological
// execution of a workflow's steps with dependency gating, deadlock
// detection, and live "waiting for" state.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/waypost/orchestrator/internal/log"
	"github.com/waypost/orchestrator/internal/tracing"
	"github.com/waypost/orchestrator/pkg/ctxvalue"
	"github.com/waypost/orchestrator/pkg/manifest"
	"github.com/waypost/orchestrator/pkg/store"
	"github.com/waypost/orchestrator/pkg/task"
)

var tracer = tracing.Tracer("github.com/waypost/orchestrator/pkg/workflow")

// maxIterations bounds the scheduling loop; exceeding it is treated as a
// circular dependency.
const maxIterations = 100

// Scheduler drives one workflow's steps to completion.
type Scheduler struct {
	registry *manifest.Registry
	runner   *task.Runner
	store    store.Store
	logger   *slog.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(registry *manifest.Registry, runner *task.Runner, st store.Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{registry: registry, runner: runner, store: st, logger: logger}
}

type kind int

const (
	kindTask kind = iota
	kindWorkflow
)

type stepEntry struct {
	step manifest.Step
	kind kind
}

// RunWorkflow executes the named workflow to completion and returns the
// accumulated step-output context.
func (s *Scheduler) RunWorkflow(ctx context.Context, name string, inputParams ctxvalue.Map, executionID, jobName, triggerType string) (ctxvalue.Map, error) {
	logger := log.WithWorkflowContext(s.logger, executionID, name)

	ctx, span := tracer.Start(ctx, "workflow.run")
	span.SetAttributes(
		attribute.String(tracing.ExecutionIDAttr, executionID),
		attribute.String("orchestrator.workflow.name", name),
	)
	defer span.End()

	def, err := s.registry.GetWorkflowDef(name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	childTrigger := triggerType
	if !strings.HasPrefix(triggerType, "Invoked by ") {
		childTrigger = "Invoked by " + name
	}

	startedAt := time.Now().UTC()
	if err := s.store.Insert(ctx, store.Workflows, store.Row{
		"WorkflowId":  executionID,
		"JobName":     jobName,
		"Name":        name,
		"Status":      "Running",
		"StartedAt":   startedAt.Format(time.RFC3339Nano),
		"TriggerType": triggerType,
	}); err != nil {
		err = fmt.Errorf("inserting workflow row: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	entries := make([]stepEntry, 0, len(def.Tasks)+len(def.Workflows))
	for _, st := range def.Tasks {
		entries = append(entries, stepEntry{step: st, kind: kindTask})
	}
	for _, st := range def.Workflows {
		entries = append(entries, stepEntry{step: st, kind: kindWorkflow})
	}

	if err := s.preRegisterTaskSteps(ctx, entries, executionID, jobName, name, childTrigger); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resultCtx, runErr := s.schedule(ctx, logger, entries, inputParams, executionID, jobName, name, childTrigger)

	endedAt := time.Now().UTC()
	status := "Completed"
	if runErr != nil {
		status = "Failed"
	}
	if updErr := s.store.Update(ctx, store.Workflows,
		store.Where{"WorkflowId": executionID, "Name": name},
		store.Set{
			"Status":    status,
			"EndedAt":   endedAt.Format(time.RFC3339Nano),
			"RuntimeMs": int(endedAt.Sub(startedAt).Milliseconds()),
		}); updErr != nil {
		logger.Warn("failed to persist workflow terminal state", log.Error(updErr))
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return resultCtx, runErr
}

func (s *Scheduler) preRegisterTaskSteps(ctx context.Context, entries []stepEntry, executionID, jobName, workflowName, triggerType string) error {
	for _, e := range entries {
		if e.kind != kindTask {
			continue
		}
		exists, err := s.store.Exists(ctx, store.TaskExecutions,
			store.Where{"ExecutionId": executionID, "TaskId": e.step.Name})
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := s.store.Insert(ctx, store.TaskExecutions, store.Row{
			"ExecutionId":  executionID,
			"TaskId":       e.step.Name,
			"JobName":      jobName,
			"WorkflowName": workflowName,
			"TriggerType":  triggerType,
			"Status":       "Waiting",
			"State":        "Waiting",
		}); err != nil {
			return err
		}
	}
	return nil
}

// schedule runs the iterate-dispatch-complete loop described by the
// scheduling algorithm: compute the runnable set, dispatch it, publish
// context on completion, repeat until every step is accounted for.
func (s *Scheduler) schedule(ctx context.Context, logger *slog.Logger, entries []stepEntry, inputParams ctxvalue.Map, executionID, jobName, workflowName, childTrigger string) (ctxvalue.Map, error) {
	completed := make(map[string]bool, len(entries))
	sharedCtx := ctxvalue.Clone(inputParams)

	for iteration := 0; len(completed) < len(entries); iteration++ {
		if iteration >= maxIterations {
			return sharedCtx, fmt.Errorf("stuck waiting for dependencies: exceeded %d iterations", maxIterations)
		}

		var runnable []stepEntry
		var blocked []stepEntry
		for _, e := range entries {
			if completed[e.step.Name] {
				continue
			}
			if dependenciesSatisfied(e.step.DependsOn, completed) {
				runnable = append(runnable, e)
			} else {
				blocked = append(blocked, e)
			}
		}

		for _, e := range blocked {
			if e.kind != kindTask {
				continue
			}
			unmet := unmetDependencies(e.step.DependsOn, completed)
			s.store.Update(ctx, store.TaskExecutions,
				store.Where{"ExecutionId": executionID, "TaskId": e.step.Name, "Status": "Waiting"},
				store.Set{"State": "Waiting for: " + strings.Join(unmet, ", ")})
		}

		if len(runnable) == 0 {
			remaining := make([]string, 0, len(blocked))
			for _, e := range blocked {
				remaining = append(remaining, e.step.Name)
			}
			sort.Strings(remaining)
			return sharedCtx, fmt.Errorf("Stuck waiting for dependencies. Remaining: %s", strings.Join(remaining, ", "))
		}

		results, err := s.dispatchSet(ctx, logger, runnable, sharedCtx, executionID, jobName, workflowName, childTrigger)
		if err != nil {
			return sharedCtx, err
		}

		for _, r := range results {
			sharedCtx = ctxvalue.Merge(sharedCtx, ctxvalue.Map{r.name: map[string]any(r.output)})
			completed[r.name] = true
		}
	}

	return sharedCtx, nil
}

type stepResult struct {
	name   string
	output ctxvalue.Map
}

// dispatchSet runs every step in runnable concurrently via errgroup,
// honoring the publish-on-completion rule: the shared context is not
// mutated until every goroutine in the set has returned.
func (s *Scheduler) dispatchSet(ctx context.Context, logger *slog.Logger, runnable []stepEntry, sharedCtx ctxvalue.Map, executionID, jobName, workflowName, childTrigger string) ([]stepResult, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]stepResult, len(runnable))

	for i, e := range runnable {
		i, e := i, e
		g.Go(func() error {
			out, err := s.dispatchStep(gctx, logger, e, sharedCtx, executionID, jobName, workflowName, childTrigger)
			if err != nil {
				return fmt.Errorf("step %q: %w", e.step.Name, err)
			}
			results[i] = stepResult{name: e.step.Name, output: out}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Scheduler) dispatchStep(ctx context.Context, logger *slog.Logger, e stepEntry, sharedCtx ctxvalue.Map, executionID, jobName, workflowName, childTrigger string) (ctxvalue.Map, error) {
	params := ctxvalue.Map(e.step.Params)

	switch e.kind {
	case kindTask:
		taskRef, err := s.registry.GetTask(e.step.Reference)
		if err != nil {
			return nil, err
		}
		return s.runner.RunTask(ctx, task.RunParams{
			ExecutionID:  executionID,
			JobName:      jobName,
			WorkflowName: workflowName,
			TriggerType:  childTrigger,
			TaskName:     e.step.Name,
			TaskRef:      taskRef,
			InputContext: sharedCtx,
			InputParams:  params,
			Retries:      e.step.Retries,
			RetryDelay:   e.step.RetryDelaySeconds(),
		})
	case kindWorkflow:
		nested := ctxvalue.Merge(sharedCtx, params)
		return s.RunWorkflow(ctx, e.step.Reference, nested, executionID, jobName, childTrigger)
	default:
		return nil, fmt.Errorf("unknown step kind for %q", e.step.Name)
	}
}

func dependenciesSatisfied(dependsOn []string, completed map[string]bool) bool {
	for _, d := range dependsOn {
		if !completed[d] {
			return false
		}
	}
	return true
}

func unmetDependencies(dependsOn []string, completed map[string]bool) []string {
	var out []string
	for _, d := range dependsOn {
		if !completed[d] {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
