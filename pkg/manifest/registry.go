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

package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	orcherrors "github.com/waypost/orchestrator/pkg/errors"
)

// GetTask returns the named task pointer.
func (r *Registry) GetTask(name string) (TaskPointer, error) {
	t, ok := r.manifest.Tasks[name]
	if !ok {
		return TaskPointer{}, &orcherrors.NotFoundError{Resource: "task", ID: name}
	}
	return t, nil
}

// GetWorkflowDef reads and validates the on-disk definition for the named
// workflow. Validation additionally requires every step's name differ
// from its reference.
func (r *Registry) GetWorkflowDef(name string) (*WorkflowDef, error) {
	ptr, ok := r.manifest.Workflows[name]
	if !ok {
		return nil, &orcherrors.NotFoundError{Resource: "workflow", ID: name}
	}

	var def WorkflowDef
	if err := r.readDefinition(ptr.File, &def); err != nil {
		return nil, orcherrors.Wrapf(err, "loading workflow definition %q", name)
	}
	if def.Name == "" {
		def.Name = name
	}

	if errs := validateStepReferences(def.Tasks, def.Workflows, nil); len(errs) > 0 {
		return nil, &orcherrors.ValidationError{
			Field:   "reference",
			Message: fmt.Sprintf("workflow %q: %v", name, errs),
		}
	}
	return &def, nil
}

// GetJobDef reads and validates the on-disk definition for the named job.
func (r *Registry) GetJobDef(name string) (*JobDef, error) {
	ptr, ok := r.manifest.Jobs[name]
	if !ok {
		return nil, &orcherrors.NotFoundError{Resource: "job", ID: name}
	}

	var def JobDef
	if err := r.readDefinition(ptr.File, &def); err != nil {
		return nil, orcherrors.Wrapf(err, "loading job definition %q", name)
	}
	if def.Name == "" {
		def.Name = name
	}

	if errs := validateStepReferences(def.Tasks, def.Workflows, def.Jobs); len(errs) > 0 {
		return nil, &orcherrors.ValidationError{
			Field:   "reference",
			Message: fmt.Sprintf("job %q: %v", name, errs),
		}
	}
	return &def, nil
}

func (r *Registry) readDefinition(file string, into any) error {
	raw, err := os.ReadFile(filepath.Join(r.baseDir, file))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, into)
}

func validateStepReferences(stepLists ...[]Step) []string {
	var errs []string
	for _, steps := range stepLists {
		for _, s := range steps {
			if s.Name == s.Reference {
				errs = append(errs, fmt.Sprintf("step %q: name equals reference", s.Name))
			}
		}
	}
	return errs
}

// ListTasks returns every registered task name, sorted.
func (r *Registry) ListTasks() []string { return sortedKeys(r.manifest.Tasks) }

// ListWorkflows returns every registered workflow name, sorted.
func (r *Registry) ListWorkflows() []string { return sortedKeysDef(r.manifest.Workflows) }

// ListJobs returns every registered job name, sorted.
func (r *Registry) ListJobs() []string { return sortedKeysDef(r.manifest.Jobs) }

func sortedKeys(m map[string]TaskPointer) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysDef(m map[string]DefPointer) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
