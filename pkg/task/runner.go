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

// Package task implements the Task Runner: it resolves a task's runtime,
// spawns the external script with the -InputFile/-OutputFile contract,
// retries on nonzero exit, and persists the full attempt history to the
// Store.
package task

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	orcherrors "github.com/waypost/orchestrator/pkg/errors"
	"github.com/waypost/orchestrator/internal/log"
	"github.com/waypost/orchestrator/internal/tracing"
	"github.com/waypost/orchestrator/pkg/ctxvalue"
	"github.com/waypost/orchestrator/pkg/manifest"
	"github.com/waypost/orchestrator/pkg/runtime"
	"github.com/waypost/orchestrator/pkg/store"

	"log/slog"
)

var tracer = tracing.Tracer("github.com/waypost/orchestrator/pkg/task")

// Runner dispatches task executions against a resolved runtime, streams
// their progress, and records every attempt.
type Runner struct {
	resolver *runtime.Resolver
	store    store.Store
	logger   *slog.Logger
	metrics  *Metrics
	tempDir  string
}

// NewRunner constructs a Runner. A zero-value tempDir falls back to
// os.TempDir.
func NewRunner(resolver *runtime.Resolver, st store.Store, logger *slog.Logger, metrics *Metrics, tempDir string) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Runner{resolver: resolver, store: st, logger: logger, metrics: metrics, tempDir: tempDir}
}

// RunParams describes one task dispatch within a job execution tree.
type RunParams struct {
	ExecutionID  string
	JobName      string
	WorkflowName string
	TriggerType  string
	TaskName     string
	TaskRef      manifest.TaskPointer
	InputContext ctxvalue.Map
	InputParams  ctxvalue.Map
	Retries      int
	RetryDelay   int
}

// RunTask executes a task to completion, retrying on nonzero exit up to
// Retries additional attempts, and returns the task's output context.
func (r *Runner) RunTask(ctx context.Context, p RunParams) (ctxvalue.Map, error) {
	logger := log.WithTaskContext(r.logger, p.ExecutionID, p.TaskName, 1)

	ctx, span := tracer.Start(ctx, "task.run")
	span.SetAttributes(
		attribute.String(tracing.ExecutionIDAttr, p.ExecutionID),
		attribute.String("orchestrator.task.name", p.TaskName),
	)
	defer span.End()

	input := ctxvalue.Merge(p.InputContext, p.InputParams)
	maxRetries := p.Retries

	startedAt := time.Now().UTC()
	if err := r.registerExecution(ctx, p, input, startedAt); err != nil {
		err = orcherrors.Wrap(err, "registering task execution")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		output   ctxvalue.Map
		execLog  bytes.Buffer
		errLog   bytes.Buffer
		exitCode int
		attempt  int
		lastErr  error
	)

	for attempt = 1; attempt <= maxRetries+1; attempt++ {
		logger = log.WithTaskContext(r.logger, p.ExecutionID, p.TaskName, attempt)

		out, execOut, errOut, code, runErr := r.dispatchOnce(ctx, logger, p, input, attempt)
		execLog.Write(execOut)
		errLog.Write(errOut)
		exitCode = code
		output = out
		lastErr = runErr

		if runErr == nil && code == 0 {
			break
		}

		if attempt <= maxRetries {
			r.metrics.recordRetry()
			state := fmt.Sprintf("Retrying (%d/%d)", attempt+1, maxRetries+1)
			r.store.Update(ctx, store.TaskExecutions,
				store.Where{"ExecutionId": p.ExecutionID, "TaskId": p.TaskName},
				store.Set{"State": state, "Attempt": attempt + 1})

			if p.RetryDelay > 0 {
				select {
				case <-ctx.Done():
					lastErr = ctx.Err()
					goto done
				case <-time.After(time.Duration(p.RetryDelay) * time.Second):
				}
			}
		}
	}
	// A loop that ran out of attempts leaves attempt one past the last try.
	if attempt > maxRetries+1 {
		attempt = maxRetries + 1
	}
done:

	endedAt := time.Now().UTC()
	runtimeMs := endedAt.Sub(startedAt).Milliseconds()
	r.metrics.recordDuration(float64(runtimeMs) / 1000.0)

	succeeded := lastErr == nil && exitCode == 0
	status := "Failed"
	if succeeded {
		status = "Completed"
	}
	r.metrics.recordAttempt(status)

	terminalState := status
	if s, ok := output["state"].(string); ok && s != "" {
		terminalState = s
	}

	set := store.Set{
		"Status":       status,
		"State":        terminalState,
		"EndedAt":      endedAt.Format(time.RFC3339Nano),
		"RuntimeMs":    int(runtimeMs),
		"ExitCode":     exitCode,
		"ExecutionLog": execLog.String(),
		"Attempt":      attempt,
	}
	if output != nil {
		set["OutputData"] = map[string]any(output)
	}
	if lastErr != nil {
		errLog.WriteString(lastErr.Error())
	}
	set["ErrorLog"] = errLog.String()

	if err := r.store.Update(ctx, store.TaskExecutions,
		store.Where{"ExecutionId": p.ExecutionID, "TaskId": p.TaskName}, set); err != nil {
		logger.Warn("failed to persist task execution result", log.Error(err))
	}

	if !succeeded {
		if lastErr == nil {
			lastErr = fmt.Errorf("task %s exited with code %d", p.TaskName, exitCode)
		}
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
		return output, lastErr
	}
	span.SetStatus(codes.Ok, "")
	return output, nil
}

func (r *Runner) registerExecution(ctx context.Context, p RunParams, input ctxvalue.Map, startedAt time.Time) error {
	exists, err := r.store.Exists(ctx, store.TaskExecutions,
		store.Where{"ExecutionId": p.ExecutionID, "TaskId": p.TaskName})
	if err != nil {
		return err
	}

	row := store.Row{
		"ExecutionId":  p.ExecutionID,
		"TaskId":       p.TaskName,
		"JobName":      p.JobName,
		"WorkflowName": p.WorkflowName,
		"TriggerType":  p.TriggerType,
		"InputData":    map[string]any(input),
		"Status":       "Running",
		"State":        "Running",
		"StartedAt":    startedAt.Format(time.RFC3339Nano),
		"Attempt":      1,
		"MaxRetries":   p.Retries,
	}

	if exists {
		set := store.Set{}
		for k, v := range row {
			set[k] = v
		}
		return r.store.Update(ctx, store.TaskExecutions,
			store.Where{"ExecutionId": p.ExecutionID, "TaskId": p.TaskName}, set)
	}
	return r.store.Insert(ctx, store.TaskExecutions, row)
}

// dispatchOnce runs a single attempt and returns the decoded output, the
// raw stdout/stderr captured for the execution log, the exit code, and a
// spawn-level error (nil even when the child exits nonzero).
func (r *Runner) dispatchOnce(ctx context.Context, logger *slog.Logger, p RunParams, input ctxvalue.Map, attempt int) (ctxvalue.Map, []byte, []byte, int, error) {
	inFile := filepath.Join(r.tempDir, fmt.Sprintf("%s-%s-in.json", p.ExecutionID, p.TaskName))
	outFile := filepath.Join(r.tempDir, fmt.Sprintf("%s-%s-out.json", p.ExecutionID, p.TaskName))
	defer os.Remove(inFile)
	defer os.Remove(outFile)

	inBytes, err := json.Marshal(map[string]any(input))
	if err != nil {
		return nil, nil, []byte(err.Error()), -1, orcherrors.Wrap(err, "encoding task input")
	}
	if err := os.WriteFile(inFile, inBytes, 0o600); err != nil {
		return nil, nil, []byte(err.Error()), -1, orcherrors.Wrap(err, "writing task input")
	}

	runtimePath := r.resolver.Resolve(p.TaskRef.Runtime, p.TaskRef.RuntimeEnv)
	cmd, cleanup, err := buildCommand(ctx, runtimePath, p.TaskRef.File, inFile, outFile)
	if err != nil {
		return nil, nil, []byte(err.Error()), -1, err
	}
	defer cleanup()

	cmd.Env = os.Environ()

	var stdoutLog bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, []byte(err.Error()), -1, orcherrors.Wrap(err, "attaching stdout pipe")
	}

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, nil, []byte(err.Error()), -1, orcherrors.Wrap(err, "starting task process")
	}

	scanner := bufio.NewScanner(stdoutPipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		stdoutLog.WriteString(line)
		stdoutLog.WriteByte('\n')
		log.Trace(logger, "task stdout", log.String("line", line))
		if state, ok := parseStateLine(line); ok {
			r.store.Update(ctx, store.TaskExecutions,
				store.Where{"ExecutionId": p.ExecutionID, "TaskId": p.TaskName},
				store.Set{"State": state})
		}
	}

	waitErr := cmd.Wait()
	_ = time.Since(startedAt)

	exitCode := 0
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, stdoutLog.Bytes(), stderrBuf.Bytes(), -1, orcherrors.Wrap(waitErr, "running task process")
		}
	}

	output, decodeErr := readOutput(outFile)
	if decodeErr != nil {
		logger.Warn("failed to decode task output", log.Error(decodeErr))
		output = ctxvalue.Map{}
	}

	return output, stdoutLog.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// readOutput decodes the child's output file. A missing or empty file is
// not an error: it means the task produced no output.
func readOutput(path string) (ctxvalue.Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctxvalue.Map{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ctxvalue.Map{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return ctxvalue.Map(out), nil
}
