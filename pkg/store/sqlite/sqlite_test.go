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

package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waypost/orchestrator/pkg/store"
	"github.com/waypost/orchestrator/pkg/store/sqlite"
)

func openTestBackend(t *testing.T) *sqlite.Backend {
	t.Helper()
	b, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestInsertAndQueryRoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	require.NoError(t, b.Insert(ctx, store.TaskExecutions, store.Row{
		"ExecutionId": "exec-1",
		"TaskId":      "extract",
		"Status":      "Waiting",
		"Attempt":     1,
		"InputData":   map[string]any{"path": "/data/in.csv"},
	}))

	rows, err := b.Query(ctx, store.TaskExecutions, store.Where{"ExecutionId": "exec-1"}, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Waiting", rows[0]["Status"])
	require.Equal(t, int64(1), rows[0]["Attempt"])

	input, ok := rows[0]["InputData"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "/data/in.csv", input["path"])
}

func TestUpdateAppliesOnlyToMatchingRows(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	require.NoError(t, b.Insert(ctx, store.TaskExecutions, store.Row{"ExecutionId": "exec-1", "TaskId": "a", "Status": "Waiting"}))
	require.NoError(t, b.Insert(ctx, store.TaskExecutions, store.Row{"ExecutionId": "exec-1", "TaskId": "b", "Status": "Waiting"}))

	require.NoError(t, b.Update(ctx, store.TaskExecutions,
		store.Where{"ExecutionId": "exec-1", "TaskId": "a"},
		store.Set{"Status": "Completed", "ExitCode": 0},
	))

	rows, err := b.Query(ctx, store.TaskExecutions, store.Where{"TaskId": "a"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Completed", rows[0]["Status"])

	rows, err = b.Query(ctx, store.TaskExecutions, store.Where{"TaskId": "b"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Waiting", rows[0]["Status"])
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	ok, err := b.Exists(ctx, store.Jobs, store.Where{"JobId": "exec-1"})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Insert(ctx, store.Jobs, store.Row{"JobId": "exec-1", "Name": "nightly"}))

	ok, err = b.Exists(ctx, store.Jobs, store.Where{"JobId": "exec-1"})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestQueryProjection(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	require.NoError(t, b.Insert(ctx, store.Jobs, store.Row{"JobId": "exec-1", "Name": "nightly", "Status": "Running"}))

	rows, err := b.Query(ctx, store.Jobs, store.Where{"JobId": "exec-1"}, []string{"Name"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "nightly", rows[0]["Name"])
	_, hasStatus := rows[0]["Status"]
	require.False(t, hasStatus)
}

func TestUnknownColumnRejected(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	err := b.Insert(ctx, store.Jobs, store.Row{"NotAColumn": "x"})
	require.Error(t, err)
}

func TestUnknownTableRejected(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	_, err := b.Query(ctx, "NotATable", nil, nil)
	require.Error(t, err)
}

func TestNullColumnRoundTrips(t *testing.T) {
	ctx := context.Background()
	b := openTestBackend(t)

	require.NoError(t, b.Insert(ctx, store.Jobs, store.Row{"JobId": "exec-1", "Name": "nightly", "Cron": nil}))

	rows, err := b.Query(ctx, store.Jobs, store.Where{"JobId": "exec-1"}, nil)
	require.NoError(t, err)
	require.Nil(t, rows[0]["Cron"])
}
