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

package sqlite

import "github.com/waypost/orchestrator/pkg/store"

// columnKind describes how a column's Go value round-trips through the
// single TEXT-affinity storage representation every column uses. SQLite's
// dynamic typing makes a uniform TEXT column workable for every field;
// kind only governs marshaling on the way in and out.
type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindBool
	kindJSON
)

type column struct {
	name string
	kind columnKind
}

// tableSchemas allowlists the columns each table accepts. Insert/Update
// reject any row or set key outside this list, so an unrecognized column
// name can never reach raw SQL.
var tableSchemas = map[string][]column{
	store.Jobs: {
		{"JobId", kindText},
		{"Name", kindText},
		{"TriggerType", kindText},
		{"Cron", kindText},
		{"Status", kindText},
		{"CreatedAt", kindText},
		{"StartedAt", kindText},
		{"EndedAt", kindText},
		{"RuntimeMs", kindInt},
		{"CreatedBy", kindText},
		{"InputParams", kindJSON},
	},
	store.Workflows: {
		{"WorkflowId", kindText},
		{"JobName", kindText},
		{"Name", kindText},
		{"Status", kindText},
		{"StartedAt", kindText},
		{"EndedAt", kindText},
		{"RuntimeMs", kindInt},
		{"TriggerType", kindText},
	},
	store.Tasks: {
		{"Name", kindText},
		{"File", kindText},
		{"Runtime", kindText},
		{"RuntimeEnv", kindText},
		{"Description", kindText},
	},
	store.TaskExecutions: {
		{"ExecutionId", kindText},
		{"TaskId", kindText},
		{"JobName", kindText},
		{"WorkflowName", kindText},
		{"TriggerType", kindText},
		{"InputData", kindJSON},
		{"OutputData", kindJSON},
		{"ExecutionLog", kindText},
		{"ErrorLog", kindText},
		{"Status", kindText},
		{"State", kindText},
		{"StartedAt", kindText},
		{"EndedAt", kindText},
		{"RuntimeMs", kindInt},
		{"ExitCode", kindInt},
		{"Attempt", kindInt},
		{"MaxRetries", kindInt},
	},
	store.Nodes: {
		{"NodeId", kindText},
		{"Name", kindText},
		{"OS", kindText},
		{"Capabilities", kindJSON},
		{"LastHeartbeat", kindText},
		{"Status", kindText},
	},
	store.Integrations: {
		{"Name", kindText},
		{"Config", kindJSON},
	},
}

func columnsOf(table string) ([]column, bool) {
	cols, ok := tableSchemas[table]
	return cols, ok
}

func kindOf(cols []column, name string) (columnKind, bool) {
	for _, c := range cols {
		if c.name == name {
			return c.kind, true
		}
	}
	return 0, false
}
