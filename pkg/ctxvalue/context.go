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

// Package ctxvalue models the opaque, dynamically-shaped JSON object that
// flows through task parameters, workflow context, and task output. A
// plain map[string]any already is the generic dynamic value; this package
// adds the merge and lookup semantics every driver needs without any
// runtime reflection.
package ctxvalue

import "fmt"

// Map is a dynamically-shaped JSON object: string keys to null, bool,
// number, string, array, or nested object values.
type Map map[string]any

// Merge returns a new Map containing base's entries overridden by
// overlay's entries on key collision, matching the Task Runner's input
// composition rule (parameters override context).
func Merge(base, overlay Map) Map {
	out := make(Map, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of m, safe for a caller to mutate without
// affecting the original.
func Clone(m Map) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// String returns m[key] as a string, or an error if the key is absent or
// not a string.
func (m Map) String(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("ctxvalue: key %q not found", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("ctxvalue: key %q is %T, not string", key, v)
	}
	return s, nil
}
