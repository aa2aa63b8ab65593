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

// Package config loads the engine's on-disk JSON configuration and
// selects the Store backend it describes.
package config

import (
	"encoding/json"
	"os"

	orcherrors "github.com/waypost/orchestrator/pkg/errors"
)

// DatabaseConfig selects and connects the Store backend. An absent
// Database section means the file-backed store, chosen automatically
// when no database is configured.
type DatabaseConfig struct {
	Provider         string `json:"provider"`
	ConnectionString string `json:"connectionString"`
}

// LoggingConfig configures where the engine writes its logs.
type LoggingConfig struct {
	Directory string `json:"directory"`
}

// ServiceConfig configures the polling daemon's cadence. The engine core
// does not itself poll; this field is read and preserved for the daemon,
// an external collaborator.
type ServiceConfig struct {
	PollIntervalSeconds int `json:"pollIntervalSeconds"`
}

// Config is the engine configuration document described by the on-disk
// layout. Integrations and Documentation are parsed and preserved but
// otherwise inert here: they belong to the bundled health-check
// integrations and documentation build, both external collaborators.
type Config struct {
	Database      *DatabaseConfig `json:"database,omitempty"`
	Logging       LoggingConfig   `json:"logging"`
	Service       ServiceConfig   `json:"service"`
	Integrations  map[string]any  `json:"integrations,omitempty"`
	Documentation map[string]any  `json:"documentation,omitempty"`
}

// Load reads and parses the engine config at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &orcherrors.ConfigError{Key: path, Reason: "reading config file", Cause: err}
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, &orcherrors.ConfigError{Key: path, Reason: "parsing config JSON", Cause: err}
	}
	return &cfg, nil
}

// StoreProvider returns the configured Store backend name: "sqlite",
// "memory", or "file" when no database section is present.
func (c *Config) StoreProvider() string {
	if c == nil || c.Database == nil || c.Database.Provider == "" {
		return "file"
	}
	return c.Database.Provider
}
