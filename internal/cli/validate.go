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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waypost/orchestrator/pkg/manifest"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a manifest",
	}
	cmd.AddCommand(newValidateManifestCommand())
	return cmd
}

func newValidateManifestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <path>",
		Short: "Check a manifest file for structural errors and unresolved references",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := manifest.Load(args[0])
			if err != nil {
				return executionError(fmt.Sprintf("manifest %q is invalid", args[0]), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "manifest %q is valid\n", args[0])
			fmt.Fprintf(out, "tasks: %d, workflows: %d, jobs: %d\n",
				len(registry.ListTasks()), len(registry.ListWorkflows()), len(registry.ListJobs()))
			for _, w := range registry.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}
}
