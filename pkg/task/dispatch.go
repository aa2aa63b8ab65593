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

package task

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/waypost/orchestrator/pkg/task/wrapper"
)

func isPowerShell(rt string) bool {
	return rt == "pwsh" || rt == "powershell"
}

// buildCommand constructs the child process for one dispatch attempt.
// PowerShell-family runtimes go through the embedded splat wrapper;
// every other runtime is invoked with the file/InputFile/OutputFile
// convention from spec §6.
func buildCommand(ctx context.Context, runtimePath, scriptFile, inFile, outFile string) (cmd *exec.Cmd, cleanup func(), err error) {
	if isPowerShell(runtimePath) || isPowerShell(runtimeBaseName(runtimePath)) {
		wrapperFile, err := os.CreateTemp("", "orchestrator-wrapper-*.ps1")
		if err != nil {
			return nil, nil, fmt.Errorf("writing wrapper script: %w", err)
		}
		if _, err := wrapperFile.WriteString(wrapper.Script); err != nil {
			wrapperFile.Close()
			os.Remove(wrapperFile.Name())
			return nil, nil, fmt.Errorf("writing wrapper script: %w", err)
		}
		wrapperFile.Close()

		cmd = exec.CommandContext(ctx, runtimePath, "-File", wrapperFile.Name(),
			"-ScriptPath", scriptFile, "-InputFile", inFile, "-OutputFile", outFile)
		cleanup = func() { os.Remove(wrapperFile.Name()) }
		return cmd, cleanup, nil
	}

	cmd = exec.CommandContext(ctx, runtimePath, scriptFile, "-InputFile", inFile, "-OutputFile", outFile)
	return cmd, func() {}, nil
}

// runtimeBaseName strips a resolved path down to its final path element
// so "/usr/local/bin/pwsh" is still recognized as the pwsh runtime.
func runtimeBaseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
