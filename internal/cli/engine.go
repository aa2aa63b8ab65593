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
	"os"

	"github.com/waypost/orchestrator/internal/engine"
	"github.com/waypost/orchestrator/internal/log"
)

func buildEngine() (*engine.Engine, error) {
	logCfg := log.FromEnv()
	if globalFlags.verbose {
		logCfg.Level = "trace"
	}
	logger := log.New(logCfg)

	tempDir := globalFlags.taskTempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return engine.Build(engine.Paths{
		ManifestFile:    globalFlags.manifestFile,
		RuntimeRegistry: globalFlags.runtimeRegistry,
		ConfigFile:      globalFlags.configFile,
		TaskTempDir:     tempDir,
	}, logger)
}
