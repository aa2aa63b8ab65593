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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waypost/orchestrator/internal/config"
)

func TestLoad_DefaultsToFileBackendWhenDatabaseAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"logging":{"directory":"./logs"},"service":{"pollIntervalSeconds":30}}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file", cfg.StoreProvider())
	assert.Equal(t, "./logs", cfg.Logging.Directory)
}

func TestLoad_DatabaseProviderSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"database":{"provider":"sqlite","connectionString":"orchestrator.db"},"logging":{"directory":"./logs"},"service":{}}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreProvider())
	assert.Equal(t, "orchestrator.db", cfg.Database.ConnectionString)
}

func TestLoad_MissingFileReturnsConfigError(t *testing.T) {
	_, err := config.Load("/nonexistent/config.json")
	require.Error(t, err)
}
