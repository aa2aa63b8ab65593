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

// Package manifest loads and validates the top-level manifest that names
// every task, workflow, and job the engine can run, and resolves
// individual workflow/job definition files on demand.
package manifest

// TaskPointer is a manifest entry under "tasks": a named external script
// with a runtime binding.
type TaskPointer struct {
	File        string `json:"file"`
	Runtime     string `json:"runtime"`
	RuntimeEnv  string `json:"runtimeEnv"`
	Description string `json:"description,omitempty"`
}

// DefPointer is a manifest entry under "workflows" or "jobs": a pointer
// to an on-disk definition file.
type DefPointer struct {
	File        string `json:"file"`
	Description string `json:"description,omitempty"`
}

// Manifest is the fully parsed, validated top-level registry document.
type Manifest struct {
	Tasks        map[string]TaskPointer    `json:"tasks"`
	Workflows    map[string]DefPointer     `json:"workflows"`
	Jobs         map[string]DefPointer     `json:"jobs"`
	Integrations map[string]map[string]any `json:"integrations"`
}

// Step is one entry in a workflow or job's step list. RetryDelay is a
// pointer so an explicit 0 (no delay between retries) is distinguishable
// from an unset field, which defaults to 5 seconds.
type Step struct {
	Name       string         `json:"name"`
	Reference  string         `json:"reference"`
	DependsOn  []string       `json:"dependsOn,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
	Retries    int            `json:"retries,omitempty"`
	RetryDelay *int           `json:"retry_delay,omitempty"`
}

// WorkflowDef is the on-disk definition of a workflow: an ordered list of
// task steps and nested workflow steps.
type WorkflowDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tasks       []Step `json:"tasks,omitempty"`
	Workflows   []Step `json:"workflows,omitempty"`
}

// JobDef is the on-disk definition of a job: inline task steps, workflow
// steps, and child-job steps, executed in that declaration order.
type JobDef struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tasks       []Step `json:"tasks,omitempty"`
	Workflows   []Step `json:"workflows,omitempty"`
	Jobs        []Step `json:"jobs,omitempty"`
	Cron        string `json:"cron,omitempty"`
	TriggerType string `json:"triggerType,omitempty"`
}

// RetryDelaySeconds returns the effective retry delay: the configured
// value, or 5 seconds when the step left it unset.
func (s Step) RetryDelaySeconds() int {
	if s.RetryDelay == nil {
		return 5
	}
	return *s.RetryDelay
}
