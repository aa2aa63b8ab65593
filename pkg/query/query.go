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

// Package query implements the Query Service: reconstructing execution
// trees and filtered lists from the Store's persisted records.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/waypost/orchestrator/pkg/store"
)

// Service answers read-only questions against a Store.
type Service struct {
	store store.Store
}

// NewService constructs a Service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Filter narrows ListExecutions. Zero-value fields are unconstrained.
type Filter struct {
	Status string
	Type   string // "job" | "workflow" | "task"
	Name   string
	Since  string // inclusive lower bound on StartedAt, RFC3339
	Until  string // inclusive upper bound on StartedAt, RFC3339
	SortBy string // StartedAt | EndedAt | Status | RuntimeMs
	Desc   bool
	Top    int
}

// entry is one row plus the type tag ListExecutions reports it under.
type entry struct {
	typ string
	row store.Row
}

// ListExecutions returns the union of Jobs, Workflows, and TaskExecutions
// rows matching f, sorted by f.SortBy (ties break by ExecutionId ascending
// for determinism) and capped at f.Top when positive.
func (s *Service) ListExecutions(ctx context.Context, f Filter) ([]store.Row, error) {
	var entries []entry

	if f.Type == "" || f.Type == "job" {
		rows, err := s.store.Query(ctx, store.Jobs, jobWhere(f), nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			entries = append(entries, entry{typ: "job", row: tagged(r, "job")})
		}
	}
	if f.Type == "" || f.Type == "workflow" {
		rows, err := s.store.Query(ctx, store.Workflows, workflowWhere(f), nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			entries = append(entries, entry{typ: "workflow", row: tagged(r, "workflow")})
		}
	}
	if f.Type == "" || f.Type == "task" {
		rows, err := s.store.Query(ctx, store.TaskExecutions, taskWhere(f), nil)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			entries = append(entries, entry{typ: "task", row: tagged(r, "task")})
		}
	}

	filtered := entries[:0]
	for _, e := range entries {
		if withinWindow(e.row, f) {
			filtered = append(filtered, e)
		}
	}
	entries = filtered

	sortKey := f.SortBy
	if sortKey == "" {
		sortKey = "StartedAt"
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return compareByKey(entries[i].row, entries[j].row, sortKey, f.Desc) < 0
	})

	out := make([]store.Row, len(entries))
	for i, e := range entries {
		out[i] = e.row
	}

	if f.Top > 0 && len(out) > f.Top {
		out = out[:f.Top]
	}
	return out, nil
}

// GetExecution reconstructs one execution tree: the Jobs row, the
// Workflows row, and every TaskExecutions row sharing executionID, in
// chronological order by StartedAt. If no Jobs row exists, it falls back
// to returning only the TaskExecutions rows.
func (s *Service) GetExecution(ctx context.Context, executionID string) ([]store.Row, error) {
	jobRows, err := s.store.Query(ctx, store.Jobs, store.Where{"JobId": executionID}, nil)
	if err != nil {
		return nil, err
	}

	var out []store.Row
	for _, r := range jobRows {
		out = append(out, tagged(r, "job"))
	}

	if len(jobRows) == 0 {
		taskRows, err := s.store.Query(ctx, store.TaskExecutions, store.Where{"ExecutionId": executionID}, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range taskRows {
			out = append(out, tagged(r, "task"))
		}
		sortByStartedAt(out)
		return out, nil
	}

	workflowRows, err := s.store.Query(ctx, store.Workflows, store.Where{"WorkflowId": executionID}, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range workflowRows {
		out = append(out, tagged(r, "workflow"))
	}

	taskRows, err := s.store.Query(ctx, store.TaskExecutions, store.Where{"ExecutionId": executionID}, nil)
	if err != nil {
		return nil, err
	}
	for _, r := range taskRows {
		out = append(out, tagged(r, "task"))
	}

	sortByStartedAt(out)
	return out, nil
}

func tagged(row store.Row, typ string) store.Row {
	out := make(store.Row, len(row)+1)
	for k, v := range row {
		out[k] = v
	}
	out["Type"] = typ
	return out
}

func jobWhere(f Filter) store.Where {
	w := store.Where{}
	if f.Status != "" {
		w["Status"] = f.Status
	}
	if f.Name != "" {
		w["Name"] = f.Name
	}
	return w
}

func workflowWhere(f Filter) store.Where {
	w := store.Where{}
	if f.Status != "" {
		w["Status"] = f.Status
	}
	if f.Name != "" {
		w["Name"] = f.Name
	}
	return w
}

func taskWhere(f Filter) store.Where {
	w := store.Where{}
	if f.Status != "" {
		w["Status"] = f.Status
	}
	if f.Name != "" {
		w["TaskId"] = f.Name
	}
	return w
}

func withinWindow(row store.Row, f Filter) bool {
	started, _ := row["StartedAt"].(string)
	if f.Since != "" && started != "" && strings.Compare(started, f.Since) < 0 {
		return false
	}
	if f.Until != "" && started != "" && strings.Compare(started, f.Until) > 0 {
		return false
	}
	return true
}

// compareByKey returns -1, 0, or 1 comparing a and b by key (reversed when
// desc is set), falling back to ExecutionId ascending on a tie so repeated
// queries against an unchanged store are deterministic regardless of sort
// direction.
func compareByKey(a, b store.Row, key string, desc bool) int {
	sign := 1
	if desc {
		sign = -1
	}
	av, bv := a[key], b[key]
	switch key {
	case "RuntimeMs":
		ai, aok := toInt(av)
		bi, bok := toInt(bv)
		if aok && bok && ai != bi {
			if ai < bi {
				return -sign
			}
			return sign
		}
	default:
		as, _ := av.(string)
		bs, _ := bv.(string)
		if as != bs {
			if as < bs {
				return -sign
			}
			return sign
		}
	}

	aid, bid := executionIDOf(a), executionIDOf(b)
	switch {
	case aid < bid:
		return -1
	case aid > bid:
		return 1
	default:
		return 0
	}
}

func executionIDOf(row store.Row) string {
	if v, ok := row["ExecutionId"].(string); ok {
		return v
	}
	if v, ok := row["JobId"].(string); ok {
		return v
	}
	if v, ok := row["WorkflowId"].(string); ok {
		return v
	}
	return ""
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func sortByStartedAt(rows []store.Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		si, _ := rows[i]["StartedAt"].(string)
		sj, _ := rows[j]["StartedAt"].(string)
		return si < sj
	})
}
