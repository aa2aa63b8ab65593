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

// Package job implements the Job Driver: the top-level execution unit
// that allocates a correlation id and drives inline tasks, workflows, and
// child jobs in declaration order.
package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/waypost/orchestrator/internal/log"
	"github.com/waypost/orchestrator/internal/tracing"
	"github.com/waypost/orchestrator/pkg/ctxvalue"
	"github.com/waypost/orchestrator/pkg/manifest"
	"github.com/waypost/orchestrator/pkg/store"
	"github.com/waypost/orchestrator/pkg/task"
	"github.com/waypost/orchestrator/pkg/workflow"
)

var tracer = tracing.Tracer("github.com/waypost/orchestrator/pkg/job")

// Driver runs jobs to completion.
type Driver struct {
	registry  *manifest.Registry
	runner    *task.Runner
	scheduler *workflow.Scheduler
	store     store.Store
	logger    *slog.Logger
}

// NewDriver constructs a Driver.
func NewDriver(registry *manifest.Registry, runner *task.Runner, scheduler *workflow.Scheduler, st store.Store, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{registry: registry, runner: runner, scheduler: scheduler, store: st, logger: logger}
}

// RunParams describes one job invocation.
type RunParams struct {
	Name        string
	InputParams ctxvalue.Map
	TriggerType string
	ExecutionID string // empty allocates a new UUID
	IsChild     bool
}

// RunJob drives the named job's inline tasks, workflows, and child jobs in
// declaration order and returns the accumulated step-output context.
func (d *Driver) RunJob(ctx context.Context, p RunParams) (ctxvalue.Map, error) {
	executionID := p.ExecutionID
	if executionID == "" {
		executionID = uuid.NewString()
	}

	def, err := d.registry.GetJobDef(p.Name)
	if err != nil {
		return nil, err
	}

	logger := log.WithJobContext(d.logger, executionID, p.Name)

	ctx, span := tracer.Start(ctx, "job.run")
	span.SetAttributes(
		attribute.String(tracing.ExecutionIDAttr, executionID),
		attribute.String("orchestrator.job.name", p.Name),
	)
	defer span.End()

	triggerType := p.TriggerType
	if triggerType == "" {
		triggerType = "Manual"
	}

	childTrigger := triggerType
	if !strings.HasPrefix(triggerType, "Invoked by ") {
		childTrigger = "Invoked by " + p.Name
	}

	createdBy, _ := os.Hostname()

	startedAt := time.Now().UTC()
	inputParamsJSON := map[string]any(p.InputParams)

	jobRow := store.Row{
		"JobId":       executionID,
		"Name":        p.Name,
		"TriggerType": triggerType,
		"Cron":        def.Cron,
		"Status":      "Running",
		"CreatedAt":   startedAt.Format(time.RFC3339Nano),
		"StartedAt":   startedAt.Format(time.RFC3339Nano),
		"CreatedBy":   createdBy,
		"InputParams": inputParamsJSON,
	}
	if err := d.store.Insert(ctx, store.Jobs, jobRow); err != nil {
		return nil, fmt.Errorf("inserting job row: %w", err)
	}

	if err := d.preRegisterInlineTasks(ctx, def, executionID, p.Name, childTrigger); err != nil {
		return d.fail(ctx, logger, executionID, p.Name, startedAt, err)
	}

	sharedCtx := ctxvalue.Clone(p.InputParams)
	completed := make(map[string]bool)

	for _, step := range def.Tasks {
		taskRef, err := d.registry.GetTask(step.Reference)
		if err != nil {
			return d.fail(ctx, logger, executionID, p.Name, startedAt, err)
		}
		out, err := d.runner.RunTask(ctx, task.RunParams{
			ExecutionID:  executionID,
			JobName:      p.Name,
			TriggerType:  childTrigger,
			TaskName:     step.Name,
			TaskRef:      taskRef,
			InputContext: sharedCtx,
			InputParams:  ctxvalue.Map(step.Params),
			Retries:      step.Retries,
			RetryDelay:   step.RetryDelaySeconds(),
		})
		if err != nil {
			return d.fail(ctx, logger, executionID, p.Name, startedAt, fmt.Errorf("task %q: %w", step.Name, err))
		}
		sharedCtx = ctxvalue.Merge(sharedCtx, ctxvalue.Map{step.Name: map[string]any(out)})
		completed[step.Name] = true
	}

	for _, step := range def.Workflows {
		if !dependenciesSatisfied(step.DependsOn, completed) {
			err := fmt.Errorf("step %q: unsatisfied dependency %v", step.Name, step.DependsOn)
			return d.fail(ctx, logger, executionID, p.Name, startedAt, err)
		}
		nested := ctxvalue.Merge(sharedCtx, ctxvalue.Map(step.Params))
		out, err := d.scheduler.RunWorkflow(ctx, step.Reference, nested, executionID, p.Name, childTrigger)
		if err != nil {
			return d.fail(ctx, logger, executionID, p.Name, startedAt, fmt.Errorf("workflow %q: %w", step.Name, err))
		}
		sharedCtx = ctxvalue.Merge(sharedCtx, ctxvalue.Map{step.Name: map[string]any(out)})
		completed[step.Name] = true
	}

	for _, step := range def.Jobs {
		if !dependenciesSatisfied(step.DependsOn, completed) {
			err := fmt.Errorf("step %q: unsatisfied dependency %v", step.Name, step.DependsOn)
			return d.fail(ctx, logger, executionID, p.Name, startedAt, err)
		}
		nested := ctxvalue.Merge(sharedCtx, ctxvalue.Map(step.Params))
		out, err := d.RunJob(ctx, RunParams{
			Name:        step.Reference,
			InputParams: nested,
			TriggerType: childTrigger,
			ExecutionID: executionID,
			IsChild:     true,
		})
		if err != nil {
			return d.fail(ctx, logger, executionID, p.Name, startedAt, fmt.Errorf("child job %q: %w", step.Name, err))
		}
		sharedCtx = ctxvalue.Merge(sharedCtx, ctxvalue.Map{step.Name: map[string]any(out)})
		completed[step.Name] = true
	}

	endedAt := time.Now().UTC()
	if err := d.store.Update(ctx, store.Jobs,
		store.Where{"JobId": executionID, "Name": p.Name},
		store.Set{
			"Status":    "Completed",
			"EndedAt":   endedAt.Format(time.RFC3339Nano),
			"RuntimeMs": int(endedAt.Sub(startedAt).Milliseconds()),
		}); err != nil {
		logger.Warn("failed to persist job terminal state", log.Error(err))
	}

	span.SetStatus(codes.Ok, "")
	return sharedCtx, nil
}

func (d *Driver) fail(ctx context.Context, logger *slog.Logger, executionID, name string, startedAt time.Time, cause error) (ctxvalue.Map, error) {
	endedAt := time.Now().UTC()
	if err := d.store.Update(ctx, store.Jobs,
		store.Where{"JobId": executionID, "Name": name},
		store.Set{
			"Status":    "Failed",
			"EndedAt":   endedAt.Format(time.RFC3339Nano),
			"RuntimeMs": int(endedAt.Sub(startedAt).Milliseconds()),
		}); err != nil {
		logger.Warn("failed to persist job failure state", log.Error(err))
	}
	logger.Error("job failed", log.Error(cause))
	trace.SpanFromContext(ctx).RecordError(cause)
	trace.SpanFromContext(ctx).SetStatus(codes.Error, cause.Error())
	return nil, cause
}

func (d *Driver) preRegisterInlineTasks(ctx context.Context, def *manifest.JobDef, executionID, jobName, triggerType string) error {
	for _, step := range def.Tasks {
		exists, err := d.store.Exists(ctx, store.TaskExecutions,
			store.Where{"ExecutionId": executionID, "TaskId": step.Name})
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := d.store.Insert(ctx, store.TaskExecutions, store.Row{
			"ExecutionId": executionID,
			"TaskId":      step.Name,
			"JobName":     jobName,
			"TriggerType": triggerType,
			"Status":      "Waiting",
			"State":       "Waiting",
		}); err != nil {
			return err
		}
	}
	return nil
}

func dependenciesSatisfied(dependsOn []string, completed map[string]bool) bool {
	for _, d := range dependsOn {
		if !completed[d] {
			return false
		}
	}
	return true
}
