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

// Package file implements store.Store over a single JSON document on
// disk, the backend chosen automatically when no database is configured.
// It is acceptable for single-process use only: every operation takes the
// Backend's own mutex and performs a full load-modify-save cycle, so
// concurrent processes sharing the same path will clobber each other.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/waypost/orchestrator/pkg/store"
)

// document mirrors the on-disk layout from spec §6: one JSON object with
// an array per table.
type document struct {
	Nodes          []store.Row `json:"Nodes"`
	Jobs           []store.Row `json:"Jobs"`
	Workflows      []store.Row `json:"Workflows"`
	Tasks          []store.Row `json:"Tasks"`
	TaskExecutions []store.Row `json:"TaskExecutions"`
	Integrations   []store.Row `json:"Integrations"`
}

// Backend is a single JSON file acting as the whole schema.
type Backend struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*Backend)(nil)

// Open returns a Backend targeting path, creating an empty document there
// if no file exists yet.
func Open(path string) (*Backend, error) {
	b := &Backend{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := b.save(&document{}); err != nil {
			return nil, fmt.Errorf("initializing file store at %s: %w", path, err)
		}
	}
	return b, nil
}

func (b *Backend) load() (*document, error) {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return nil, fmt.Errorf("reading file store %s: %w", b.path, err)
	}
	var doc document
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parsing file store %s: %w", b.path, err)
		}
	}
	return &doc, nil
}

func (b *Backend) save(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding file store: %w", err)
	}
	if err := os.WriteFile(b.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing file store %s: %w", b.path, err)
	}
	return nil
}

func tableSlice(doc *document, table string) (*[]store.Row, error) {
	switch table {
	case store.Nodes:
		return &doc.Nodes, nil
	case store.Jobs:
		return &doc.Jobs, nil
	case store.Workflows:
		return &doc.Workflows, nil
	case store.Tasks:
		return &doc.Tasks, nil
	case store.TaskExecutions:
		return &doc.TaskExecutions, nil
	case store.Integrations:
		return &doc.Integrations, nil
	default:
		return nil, fmt.Errorf("file store: unknown table %q", table)
	}
}

func (b *Backend) Insert(_ context.Context, table string, row store.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}
	slice, err := tableSlice(doc, table)
	if err != nil {
		return err
	}
	*slice = append(*slice, copyRow(row))
	return b.save(doc)
}

func (b *Backend) Update(_ context.Context, table string, where store.Where, set store.Set) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return err
	}
	slice, err := tableSlice(doc, table)
	if err != nil {
		return err
	}
	for i, row := range *slice {
		if matches(row, where) {
			for k, v := range set {
				(*slice)[i][k] = v
			}
		}
	}
	return b.save(doc)
}

func (b *Backend) Query(_ context.Context, table string, where store.Where, projection []string) ([]store.Row, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return nil, err
	}
	slice, err := tableSlice(doc, table)
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for _, row := range *slice {
		if matches(row, where) {
			out = append(out, project(row, projection))
		}
	}
	return out, nil
}

func (b *Backend) Exists(_ context.Context, table string, where store.Where) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	doc, err := b.load()
	if err != nil {
		return false, err
	}
	slice, err := tableSlice(doc, table)
	if err != nil {
		return false, err
	}
	for _, row := range *slice {
		if matches(row, where) {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) Close() error { return nil }

func matches(row store.Row, where store.Where) bool {
	for k, v := range where {
		if row[k] != v {
			return false
		}
	}
	return true
}

func project(row store.Row, projection []string) store.Row {
	if len(projection) == 0 {
		return copyRow(row)
	}
	out := make(store.Row, len(projection))
	for _, col := range projection {
		if v, ok := row[col]; ok {
			out[col] = v
		}
	}
	return out
}

func copyRow(row store.Row) store.Row {
	out := make(store.Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
