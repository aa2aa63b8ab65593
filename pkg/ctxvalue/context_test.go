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

package ctxvalue_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/waypost/orchestrator/pkg/ctxvalue"
)

func TestMergeOverlayWinsOnCollision(t *testing.T) {
	base := ctxvalue.Map{"path": "/data/a.csv", "rows": 10}
	overlay := ctxvalue.Map{"path": "/data/b.csv"}

	merged := ctxvalue.Merge(base, overlay)
	require.Equal(t, "/data/b.csv", merged["path"])
	require.Equal(t, 10, merged["rows"])
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := ctxvalue.Map{"a": 1}
	overlay := ctxvalue.Map{"b": 2}

	merged := ctxvalue.Merge(base, overlay)
	merged["a"] = 99

	require.Equal(t, 1, base["a"])
}

func TestCloneIsIndependent(t *testing.T) {
	m := ctxvalue.Map{"a": 1}
	c := ctxvalue.Clone(m)
	c["a"] = 2
	require.Equal(t, 1, m["a"])
}

func TestStringAccessor(t *testing.T) {
	m := ctxvalue.Map{"name": "extract"}

	v, err := m.String("name")
	require.NoError(t, err)
	require.Equal(t, "extract", v)

	_, err = m.String("missing")
	require.Error(t, err)

	m["count"] = 5
	_, err = m.String("count")
	require.Error(t, err)
}
