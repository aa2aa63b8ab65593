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

package runtime

import (
	"encoding/json"
	"os"

	orcherrors "github.com/waypost/orchestrator/pkg/errors"
)

// LoadRegistry reads the on-disk runtime registry JSON:
// { <runtime>: { default: <path>, <env>: <path> } }.
func LoadRegistry(path string) (Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, orcherrors.Wrapf(err, "reading runtime registry %s", path)
	}
	var reg Registry
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, orcherrors.Wrapf(err, "parsing runtime registry %s", path)
	}
	return reg, nil
}
