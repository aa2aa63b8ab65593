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
	"strings"

	"github.com/spf13/cobra"

	"github.com/waypost/orchestrator/pkg/ctxvalue"
	"github.com/waypost/orchestrator/pkg/job"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job",
	}
	cmd.AddCommand(newRunJobCommand())
	return cmd
}

func newRunJobCommand() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "job <name>",
		Short: "Run the named job to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputParams, err := parseParams(params)
			if err != nil {
				return executionError("parsing --param", err)
			}

			eng, err := buildEngine()
			if err != nil {
				return executionError("building engine", err)
			}
			defer eng.Shutdown(cmd.Context())

			result, err := eng.Driver.RunJob(cmd.Context(), job.RunParams{
				Name:        args[0],
				InputParams: inputParams,
				TriggerType: "Manual",
			})
			if err != nil {
				return executionError(fmt.Sprintf("job %q failed", args[0]), err)
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return executionError("encoding result", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "input parameter as key=value, repeatable")
	return cmd
}

// parseParams turns "key=value" pairs into a ctxvalue.Map. A value that
// parses as JSON is stored as the decoded value; otherwise it is kept
// as a plain string.
func parseParams(pairs []string) (ctxvalue.Map, error) {
	out := ctxvalue.Map{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --param %q, expected key=value", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			out[key] = decoded
		} else {
			out[key] = value
		}
	}
	return out, nil
}
