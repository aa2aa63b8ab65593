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

package workflow_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/orchestrator/pkg/ctxvalue"
	"github.com/waypost/orchestrator/pkg/manifest"
	"github.com/waypost/orchestrator/pkg/runtime"
	"github.com/waypost/orchestrator/pkg/store"
	"github.com/waypost/orchestrator/pkg/store/memory"
	"github.com/waypost/orchestrator/pkg/task"
	"github.com/waypost/orchestrator/pkg/workflow"
)

// echoScript writes a script that copies its -InputFile verbatim to its
// -OutputFile, so the workflow's context flows through each step untouched.
func echoScript(t *testing.T, dir, name string) string {
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

func newManifestRegistry(t *testing.T, dir string, tasks map[string]manifest.TaskPointer, workflows, jobs map[string]manifest.DefPointer) *manifest.Registry {
	t.Helper()
	m := manifest.Manifest{Tasks: tasks, Workflows: workflows, Jobs: jobs, Integrations: map[string]map[string]any{}}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(manifestPath, data, 0o644))
	reg, err := manifest.Load(manifestPath)
	require.NoError(t, err)
	return reg
}

func writeDef(t *testing.T, dir, file string, def any) {
	t.Helper()
	data, err := json.Marshal(def)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), data, 0o644))
}

func TestRunWorkflow_LinearChain(t *testing.T) {
	dir := t.TempDir()
	extract := echoScript(t, dir, "extract")
	transform := echoScript(t, dir, "transform")
	load := echoScript(t, dir, "load")

	writeDef(t, dir, "pipeline.json", map[string]any{
		"name": "pipeline",
		"tasks": []map[string]any{
			{"name": "Extract", "reference": "extract_task"},
			{"name": "Transform", "reference": "transform_task", "dependsOn": []string{"Extract"}},
			{"name": "Load", "reference": "load_task", "dependsOn": []string{"Transform"}},
		},
	})

	reg := newManifestRegistry(t, dir,
		map[string]manifest.TaskPointer{
			"extract_task":   {File: extract, Runtime: "sh"},
			"transform_task": {File: transform, Runtime: "sh"},
			"load_task":      {File: load, Runtime: "sh"},
		},
		map[string]manifest.DefPointer{"pipeline": {File: "pipeline.json"}},
		nil,
	)

	st := memory.New()
	rt := runtime.NewResolver(runtime.Registry{"sh": {"default": "/bin/sh"}})
	runner := task.NewRunner(rt, st, nil, nil, dir)
	sched := workflow.NewScheduler(reg, runner, st, nil)

	_, err := sched.RunWorkflow(context.Background(), "pipeline", ctxvalue.Map{}, "exec-lin", "job-lin", "Manual")
	require.NoError(t, err)

	rows, err := st.Query(context.Background(), store.TaskExecutions, store.Where{"ExecutionId": "exec-lin"}, nil)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	wfRows, err := st.Query(context.Background(), store.Workflows, store.Where{"WorkflowId": "exec-lin"}, nil)
	require.NoError(t, err)
	require.Len(t, wfRows, 1)
	assert.Equal(t, "Completed", wfRows[0]["Status"])
}

func TestRunWorkflow_CircularDependencyFails(t *testing.T) {
	dir := t.TempDir()
	x := echoScript(t, dir, "x")
	y := echoScript(t, dir, "y")

	writeDef(t, dir, "cycle.json", map[string]any{
		"name": "cycle",
		"tasks": []map[string]any{
			{"name": "X", "reference": "x_task", "dependsOn": []string{"Y"}},
			{"name": "Y", "reference": "y_task", "dependsOn": []string{"X"}},
		},
	})

	reg := newManifestRegistry(t, dir,
		map[string]manifest.TaskPointer{
			"x_task": {File: x, Runtime: "sh"},
			"y_task": {File: y, Runtime: "sh"},
		},
		map[string]manifest.DefPointer{"cycle": {File: "cycle.json"}},
		nil,
	)

	st := memory.New()
	rt := runtime.NewResolver(runtime.Registry{"sh": {"default": "/bin/sh"}})
	runner := task.NewRunner(rt, st, nil, nil, dir)
	sched := workflow.NewScheduler(reg, runner, st, nil)

	_, err := sched.RunWorkflow(context.Background(), "cycle", ctxvalue.Map{}, "exec-cyc", "job-cyc", "Manual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Stuck waiting")

	rows, err := st.Query(context.Background(), store.TaskExecutions, store.Where{"ExecutionId": "exec-cyc"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "Waiting", r["Status"])
	}

	wfRows, err := st.Query(context.Background(), store.Workflows, store.Where{"WorkflowId": "exec-cyc"}, nil)
	require.NoError(t, err)
	require.Len(t, wfRows, 1)
	assert.Equal(t, "Failed", wfRows[0]["Status"])
}
