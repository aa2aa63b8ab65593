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

// Package memory implements an in-process, non-durable store.Store backed
// by a mutex-guarded map of tables. It is the default backend for tests
// and for engines that do not need durability across process restarts.
package memory

import (
	"context"
	"sync"

	"github.com/waypost/orchestrator/pkg/store"
)

// Backend is a sync.RWMutex-guarded map-of-slices store. Rows are copied
// on the way in and out so callers can never mutate storage state through
// an aliased map.
type Backend struct {
	mu     sync.RWMutex
	tables map[string][]store.Row
}

var _ store.Store = (*Backend)(nil)

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{tables: make(map[string][]store.Row)}
}

func (b *Backend) Insert(_ context.Context, table string, row store.Row) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tables[table] = append(b.tables[table], copyRow(row))
	return nil
}

func (b *Backend) Update(_ context.Context, table string, where store.Where, set store.Set) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rows := b.tables[table]
	for i, row := range rows {
		if matches(row, where) {
			for k, v := range set {
				rows[i][k] = v
			}
		}
	}
	return nil
}

func (b *Backend) Query(_ context.Context, table string, where store.Where, projection []string) ([]store.Row, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []store.Row
	for _, row := range b.tables[table] {
		if matches(row, where) {
			out = append(out, project(row, projection))
		}
	}
	return out, nil
}

func (b *Backend) Exists(_ context.Context, table string, where store.Where) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, row := range b.tables[table] {
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
