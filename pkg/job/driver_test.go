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

package job_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/orchestrator/pkg/ctxvalue"
	"github.com/waypost/orchestrator/pkg/job"
	"github.com/waypost/orchestrator/pkg/manifest"
	"github.com/waypost/orchestrator/pkg/runtime"
	"github.com/waypost/orchestrator/pkg/store"
	"github.com/waypost/orchestrator/pkg/store/memory"
	"github.com/waypost/orchestrator/pkg/task"
	"github.com/waypost/orchestrator/pkg/workflow"
)

func passthroughScript(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name+".sh")
	body := `#!/bin/sh
in=""
out=""
while [ "$#" -gt 0 ]; do
  case "$1" in
    -InputFile) in="$2"; shift 2 ;;
    -OutputFile) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
cp "$in" "$out"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func writeJSON(t *testing.T, dir, file string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0o644))
}

func newTestDriver(t *testing.T, dir string, tasks map[string]manifest.TaskPointer, workflows, jobs map[string]manifest.DefPointer) (*job.Driver, store.Store) {
	t.Helper()
	writeJSON(t, dir, "manifest.json", manifest.Manifest{
		Tasks: tasks, Workflows: workflows, Jobs: jobs, Integrations: map[string]map[string]any{},
	})
	reg, err := manifest.Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	st := memory.New()
	rt := runtime.NewResolver(runtime.Registry{"sh": {"default": "/bin/sh"}})
	runner := task.NewRunner(rt, st, nil, nil, dir)
	sched := workflow.NewScheduler(reg, runner, st, nil)
	return job.NewDriver(reg, runner, sched, st, nil), st
}

func TestRunJob_InlineTasksShareExecutionID(t *testing.T) {
	dir := t.TempDir()
	scriptA := passthroughScript(t, dir, "a")
	scriptB := passthroughScript(t, dir, "b")

	writeJSON(t, dir, "simple.json", map[string]any{
		"name": "simple",
		"tasks": []map[string]any{
			{"name": "StepA", "reference": "task_a"},
			{"name": "StepB", "reference": "task_b"},
		},
	})

	d, st := newTestDriver(t, dir,
		map[string]manifest.TaskPointer{
			"task_a": {File: scriptA, Runtime: "sh"},
			"task_b": {File: scriptB, Runtime: "sh"},
		},
		nil,
		map[string]manifest.DefPointer{"simple": {File: "simple.json"}},
	)

	out, err := d.RunJob(context.Background(), job.RunParams{Name: "simple", InputParams: ctxvalue.Map{}})
	require.NoError(t, err)
	assert.Contains(t, out, "StepA")
	assert.Contains(t, out, "StepB")

	jobRows, err := st.Query(context.Background(), store.Jobs, store.Where{"Name": "simple"}, nil)
	require.NoError(t, err)
	require.Len(t, jobRows, 1)
	assert.Equal(t, "Completed", jobRows[0]["Status"])

	executionID := jobRows[0]["JobId"]
	taskRows, err := st.Query(context.Background(), store.TaskExecutions, store.Where{"ExecutionId": executionID}, nil)
	require.NoError(t, err)
	assert.Len(t, taskRows, 2)
}

func TestRunJob_ChildJobSharesExecutionID(t *testing.T) {
	dir := t.TempDir()
	scriptT := passthroughScript(t, dir, "t")

	writeJSON(t, dir, "child.json", map[string]any{
		"name": "child",
		"tasks": []map[string]any{
			{"name": "T", "reference": "task_t"},
		},
	})
	writeJSON(t, dir, "parent.json", map[string]any{
		"name": "parent",
		"jobs": []map[string]any{
			{"name": "B", "reference": "child_job"},
		},
	})

	d, st := newTestDriver(t, dir,
		map[string]manifest.TaskPointer{"task_t": {File: scriptT, Runtime: "sh"}},
		nil,
		map[string]manifest.DefPointer{
			"parent":    {File: "parent.json"},
			"child_job": {File: "child.json"},
		},
	)

	_, err := d.RunJob(context.Background(), job.RunParams{Name: "parent", InputParams: ctxvalue.Map{}})
	require.NoError(t, err)

	parentRows, err := st.Query(context.Background(), store.Jobs, store.Where{"Name": "parent"}, nil)
	require.NoError(t, err)
	require.Len(t, parentRows, 1)
	executionID := parentRows[0]["JobId"]

	childRows, err := st.Query(context.Background(), store.Jobs, store.Where{"Name": "child_job", "JobId": executionID}, nil)
	require.NoError(t, err)
	require.Len(t, childRows, 1)
	assert.Equal(t, "Invoked by parent", childRows[0]["TriggerType"])

	taskRows, err := st.Query(context.Background(), store.TaskExecutions, store.Where{"ExecutionId": executionID, "TaskId": "T"}, nil)
	require.NoError(t, err)
	require.Len(t, taskRows, 1)
	assert.Equal(t, executionID, taskRows[0]["ExecutionId"])
}
