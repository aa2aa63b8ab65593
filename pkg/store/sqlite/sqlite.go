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

// Package sqlite implements store.Store on top of modernc.org/sqlite, a
// pure-Go driver requiring no cgo toolchain. One table is created per
// spec entity; every column has TEXT storage affinity and round-trips
// through the kind declared in schema.go.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/waypost/orchestrator/pkg/store"
)

// Backend is a single-writer sqlite-backed store.Store.
type Backend struct {
	db *sql.DB
}

var _ store.Store = (*Backend)(nil)

// Open opens (and migrates) a sqlite database at path. Use ":memory:" for
// a process-local database that still exercises the sqlite code path.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// sqlite serializes writes; a single connection avoids SQLITE_BUSY
	// under concurrent callers instead of surfacing it to them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	b := &Backend{db: db}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate() error {
	for table, cols := range tableSchemas {
		var defs []string
		for _, c := range cols {
			defs = append(defs, fmt.Sprintf("%s TEXT", c.name))
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating table %s: %w", table, err)
		}
	}

	// Every execution-tree query filters by the correlation id; index the
	// column that carries it on each of the three execution tables.
	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_jobs_jobid ON %s (JobId)", store.Jobs),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_workflows_workflowid ON %s (WorkflowId)", store.Workflows),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_taskexec_execid ON %s (ExecutionId)", store.TaskExecutions),
	}
	for _, idx := range indexes {
		if _, err := b.db.Exec(idx); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

func (b *Backend) Insert(ctx context.Context, table string, row store.Row) error {
	cols, ok := columnsOf(table)
	if !ok {
		return fmt.Errorf("sqlite store: unknown table %q", table)
	}

	var names []string
	var placeholders []string
	var args []any
	for name, value := range row {
		kind, known := kindOf(cols, name)
		if !known {
			return fmt.Errorf("sqlite store: unknown column %q on table %q", name, table)
		}
		encoded, err := encode(kind, value)
		if err != nil {
			return fmt.Errorf("encoding column %q: %w", name, err)
		}
		names = append(names, name)
		placeholders = append(placeholders, "?")
		args = append(args, encoded)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(placeholders, ", "))
	_, err := b.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	return nil
}

func (b *Backend) Update(ctx context.Context, table string, where store.Where, set store.Set) error {
	cols, ok := columnsOf(table)
	if !ok {
		return fmt.Errorf("sqlite store: unknown table %q", table)
	}

	var setClauses []string
	var args []any
	for name, value := range set {
		kind, known := kindOf(cols, name)
		if !known {
			return fmt.Errorf("sqlite store: unknown column %q on table %q", name, table)
		}
		encoded, err := encode(kind, value)
		if err != nil {
			return fmt.Errorf("encoding column %q: %w", name, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", name))
		args = append(args, encoded)
	}

	whereClause, whereArgs, err := buildWhere(cols, table, where)
	if err != nil {
		return err
	}
	args = append(args, whereArgs...)

	stmt := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(setClauses, ", "), whereClause)
	_, err = b.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("updating %s: %w", table, err)
	}
	return nil
}

func (b *Backend) Query(ctx context.Context, table string, where store.Where, projection []string) ([]store.Row, error) {
	cols, ok := columnsOf(table)
	if !ok {
		return nil, fmt.Errorf("sqlite store: unknown table %q", table)
	}

	selected := cols
	if len(projection) > 0 {
		selected = nil
		for _, name := range projection {
			kind, known := kindOf(cols, name)
			if !known {
				return nil, fmt.Errorf("sqlite store: unknown column %q on table %q", name, table)
			}
			selected = append(selected, column{name, kind})
		}
	}

	var names []string
	for _, c := range selected {
		names = append(names, c.name)
	}

	whereClause, whereArgs, err := buildWhere(cols, table, where)
	if err != nil {
		return nil, err
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(names, ", "), table, whereClause)
	rows, err := b.db.QueryContext(ctx, stmt, whereArgs...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		scanTargets := make([]any, len(selected))
		raw := make([]sql.NullString, len(selected))
		for i := range raw {
			scanTargets[i] = &raw[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", table, err)
		}

		result := make(store.Row, len(selected))
		for i, c := range selected {
			if !raw[i].Valid {
				result[c.name] = nil
				continue
			}
			decoded, err := decode(c.kind, raw[i].String)
			if err != nil {
				return nil, fmt.Errorf("decoding column %q: %w", c.name, err)
			}
			result[c.name] = decoded
		}
		out = append(out, result)
	}
	return out, rows.Err()
}

func (b *Backend) Exists(ctx context.Context, table string, where store.Where) (bool, error) {
	cols, ok := columnsOf(table)
	if !ok {
		return false, fmt.Errorf("sqlite store: unknown table %q", table)
	}

	whereClause, whereArgs, err := buildWhere(cols, table, where)
	if err != nil {
		return false, err
	}

	stmt := fmt.Sprintf("SELECT 1 FROM %s%s LIMIT 1", table, whereClause)
	row := b.db.QueryRowContext(ctx, stmt, whereArgs...)
	var one int
	switch err := row.Scan(&one); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("checking existence in %s: %w", table, err)
	}
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func buildWhere(cols []column, table string, where store.Where) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}
	var clauses []string
	var args []any
	for name, value := range where {
		kind, known := kindOf(cols, name)
		if !known {
			return "", nil, fmt.Errorf("sqlite store: unknown column %q on table %q", name, table)
		}
		encoded, err := encode(kind, value)
		if err != nil {
			return "", nil, fmt.Errorf("encoding where column %q: %w", name, err)
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", name))
		args = append(args, encoded)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

func encode(kind columnKind, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch kind {
	case kindJSON:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case kindInt:
		switch v := value.(type) {
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		default:
			return fmt.Sprintf("%v", v), nil
		}
	case kindBool:
		return fmt.Sprintf("%v", value), nil
	default:
		return fmt.Sprintf("%v", value), nil
	}
}

func decode(kind columnKind, raw string) (any, error) {
	switch kind {
	case kindJSON:
		if raw == "" {
			return nil, nil
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		return v, nil
	case kindInt:
		return strconv.ParseInt(raw, 10, 64)
	case kindBool:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}
