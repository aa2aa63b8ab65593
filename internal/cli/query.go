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

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypost/orchestrator/pkg/query"
)

func newQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query recorded executions",
	}
	cmd.AddCommand(newQueryListCommand())
	cmd.AddCommand(newQueryGetCommand())
	return cmd
}

func newQueryListCommand() *cobra.Command {
	var f query.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, workflows, and task executions matching a filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return executionError("building engine", err)
			}
			defer eng.Shutdown(cmd.Context())

			rows, err := eng.Query.ListExecutions(cmd.Context(), f)
			if err != nil {
				return executionError("listing executions", err)
			}
			return printJSON(cmd, rows)
		},
	}

	cmd.Flags().StringVar(&f.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&f.Type, "type", "", "filter by record type: job, workflow, or task")
	cmd.Flags().StringVar(&f.Name, "name", "", "filter by name")
	cmd.Flags().StringVar(&f.Since, "since", "", "only include records started at or after this RFC3339 time")
	cmd.Flags().StringVar(&f.Until, "until", "", "only include records started at or before this RFC3339 time")
	cmd.Flags().StringVar(&f.SortBy, "sort-by", "StartedAt", "field to sort by")
	cmd.Flags().BoolVar(&f.Desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.Top, "top", 0, "limit the number of results, 0 for no limit")

	return cmd
}

func newQueryGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <executionId>",
		Short: "Show every record sharing an execution id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return executionError("building engine", err)
			}
			defer eng.Shutdown(cmd.Context())

			rows, err := eng.Query.GetExecution(cmd.Context(), args[0])
			if err != nil {
				return executionError(fmt.Sprintf("getting execution %q", args[0]), err)
			}
			return printJSON(cmd, rows)
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return executionError("encoding result", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
