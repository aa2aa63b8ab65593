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

// Package store defines the generic persistence contract the execution
// engine depends on. The engine never reaches for a typed repository
// per entity; every driver speaks the same four operations against a
// named table, so any backend honoring this contract is acceptable.
package store

import (
	"context"
	"io"
)

// Table names required by the contract. Column names are documented per
// table in the backend implementations; the contract itself treats rows
// as opaque column maps.
const (
	Jobs           = "Jobs"
	Workflows      = "Workflows"
	Tasks          = "Tasks"
	TaskExecutions = "TaskExecutions"
	Nodes          = "Nodes"
	Integrations   = "Integrations"
)

// Row is a single persisted record, keyed by column name. Values may be
// strings, numbers, bools, nil, or nested maps/slices for JSON-typed
// columns (InputParams, InputData, OutputData, Capabilities, ...).
type Row map[string]any

// Where is a conjunction of column equalities. Every entry must match
// for a row to be selected.
type Where map[string]any

// Set is a column-to-value map applied by Update.
type Set map[string]any

// Store is the operation contract every driver (Manifest Registry aside)
// depends on. Insert does not enforce primary-key uniqueness; callers
// are responsible for not double-inserting a row under the same key.
type Store interface {
	// Insert adds a new row to table. The caller owns uniqueness of
	// whatever the table's composite key is.
	Insert(ctx context.Context, table string, row Row) error

	// Update applies set to every row in table matching where.
	Update(ctx context.Context, table string, where Where, set Set) error

	// Query returns every row in table matching where, projected to the
	// given columns. A nil or empty projection returns full rows.
	Query(ctx context.Context, table string, where Where, projection []string) ([]Row, error)

	// Exists reports whether any row in table matches where.
	Exists(ctx context.Context, table string, where Where) (bool, error)

	io.Closer
}
