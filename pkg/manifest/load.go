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
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	orcherrors "github.com/waypost/orchestrator/pkg/errors"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Registry is a loaded, validated Manifest plus the base directory its
// file pointers are relative to.
type Registry struct {
	manifest Manifest
	baseDir  string

	// Warnings collects non-fatal file-existence misses found during
	// Load, sorted lexically.
	Warnings []string
}

// Load reads, validates, and registers the manifest at path. Validation
// runs in the order spec §4.1 prescribes: duplicate-key scan, JSON parse,
// name validity, cross-type uniqueness, file-existence (warnings only).
// Steps 1, 3, and 4 aggregate every offense found rather than failing on
// the first.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, orcherrors.Wrapf(err, "reading manifest %s", path)
	}

	dups, err := scanDuplicateKeys(raw)
	if err != nil {
		return nil, orcherrors.Wrap(err, "scanning manifest for duplicate keys")
	}
	if len(dups) > 0 {
		lines := make([]string, len(dups))
		for i, d := range dups {
			lines[i] = d.String()
		}
		return nil, &orcherrors.ValidationError{
			Message: "duplicate manifest keys: " + strings.Join(lines, "; "),
		}
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, &orcherrors.ValidationError{Message: "parsing manifest JSON: " + err.Error()}
	}

	reg := &Registry{manifest: m, baseDir: filepath.Dir(path)}

	if errs := reg.validateNames(); len(errs) > 0 {
		return nil, &orcherrors.ValidationError{Message: "invalid manifest names: " + strings.Join(errs, "; ")}
	}
	if errs := reg.validateUniqueness(); len(errs) > 0 {
		return nil, &orcherrors.ValidationError{Message: "duplicate manifest names: " + strings.Join(errs, "; ")}
	}

	reg.Warnings = reg.checkFileExistence()

	return reg, nil
}

func (r *Registry) validateNames() []string {
	var bad []string
	for name := range r.manifest.Tasks {
		if !namePattern.MatchString(name) {
			bad = append(bad, fmt.Sprintf("task %q", name))
		}
	}
	for name := range r.manifest.Workflows {
		if !namePattern.MatchString(name) {
			bad = append(bad, fmt.Sprintf("workflow %q", name))
		}
	}
	for name := range r.manifest.Jobs {
		if !namePattern.MatchString(name) {
			bad = append(bad, fmt.Sprintf("job %q", name))
		}
	}
	sort.Strings(bad)
	return bad
}

func (r *Registry) validateUniqueness() []string {
	seen := make(map[string]string) // name -> first kind seen
	var dup []string
	check := func(kind string, names map[string]struct{}) {
		for name := range names {
			if existing, ok := seen[name]; ok {
				dup = append(dup, fmt.Sprintf("%q declared as both %s and %s", name, existing, kind))
				continue
			}
			seen[name] = kind
		}
	}

	taskNames := make(map[string]struct{}, len(r.manifest.Tasks))
	for n := range r.manifest.Tasks {
		taskNames[n] = struct{}{}
	}
	workflowNames := make(map[string]struct{}, len(r.manifest.Workflows))
	for n := range r.manifest.Workflows {
		workflowNames[n] = struct{}{}
	}
	jobNames := make(map[string]struct{}, len(r.manifest.Jobs))
	for n := range r.manifest.Jobs {
		jobNames[n] = struct{}{}
	}

	check("task", taskNames)
	check("workflow", workflowNames)
	check("job", jobNames)

	sort.Strings(dup)
	return dup
}

func (r *Registry) checkFileExistence() []string {
	var warnings []string

	checkOne := func(kind, name, file string) {
		if file == "" {
			return
		}
		full := filepath.Join(r.baseDir, file)
		if strings.ContainsAny(file, "*?[") {
			matches, err := doublestar.FilepathGlob(full)
			if err != nil || len(matches) == 0 {
				warnings = append(warnings, fmt.Sprintf("%s %q: no files match %q", kind, name, file))
			}
			return
		}
		if _, err := os.Stat(full); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s %q: file %q does not exist", kind, name, file))
		}
	}

	for name, ptr := range r.manifest.Tasks {
		checkOne("task", name, ptr.File)
	}
	for name, ptr := range r.manifest.Workflows {
		checkOne("workflow", name, ptr.File)
	}
	for name, ptr := range r.manifest.Jobs {
		checkOne("job", name, ptr.File)
	}

	sort.Strings(warnings)
	return warnings
}
