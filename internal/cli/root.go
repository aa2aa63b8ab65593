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

// Package cli is the thin cobra translation layer over the engine's
// public Go API. It contains no orchestration logic of its own: every
// subcommand loads the engine via internal/engine.Build and delegates
// straight into pkg/job, pkg/manifest, or pkg/query.
package cli

import (
	"github.com/spf13/cobra"
)

var globalFlags struct {
	manifestFile    string
	runtimeRegistry string
	configFile      string
	taskTempDir     string
	verbose         bool
}

// NewRootCommand creates the root Cobra command for the orchestrator.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrator",
		Short: "Manifest-driven task, workflow, and job orchestrator",
		Long: `orchestrator executes tasks, workflows, and jobs declared in a
manifest file, dispatching each task to an external script under process
isolation and recording every execution under a shared correlation id.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&globalFlags.manifestFile, "manifest", "manifest.json", "path to the manifest file")
	cmd.PersistentFlags().StringVar(&globalFlags.runtimeRegistry, "runtime-registry", "", "path to the runtime registry file")
	cmd.PersistentFlags().StringVar(&globalFlags.configFile, "config", "", "path to the engine config file")
	cmd.PersistentFlags().StringVar(&globalFlags.taskTempDir, "task-temp-dir", "", "directory for task input/output temp files")
	cmd.PersistentFlags().BoolVarP(&globalFlags.verbose, "verbose", "v", false, "enable trace-level logging")

	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newQueryCommand())

	return cmd
}
