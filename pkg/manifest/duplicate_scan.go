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

package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// duplicateKey is one offending (line, key) pair found within a single
// object scope.
type duplicateKey struct {
	line int
	key  string
}

func (d duplicateKey) String() string {
	return fmt.Sprintf("line %d: duplicate key %q", d.line, d.key)
}

// frame tracks one open JSON container while scanning tokens.
type frame struct {
	isObject  bool
	expectKey bool
	seen      map[string]bool
}

// scanDuplicateKeys walks raw JSON with the standard tokenizer, which
// silently accepts (and overwrites) duplicate object keys, and reports
// every key re-declared within the same object scope. encoding/json gives
// no hook for this, and none of the third-party JSON helpers in the
// reference corpus (gjson/sjson and similar) are strict parsers either —
// they skip straight to value lookup — so this walks the token stream by
// hand instead.
func scanDuplicateKeys(data []byte) ([]duplicateKey, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var stack []*frame
	var dups []duplicateKey

	for {
		startOffset := dec.InputOffset()
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tokenizing manifest: %w", err)
		}

		if delim, ok := tok.(json.Delim); ok {
			switch delim {
			case json.Delim('{'):
				stack = append(stack, &frame{isObject: true, expectKey: true, seen: map[string]bool{}})
			case json.Delim('['):
				stack = append(stack, &frame{isObject: false})
			case json.Delim('}'), json.Delim(']'):
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
				markValueConsumed(stack)
			}
			continue
		}

		if len(stack) == 0 {
			continue
		}
		top := stack[len(stack)-1]

		if top.isObject && top.expectKey {
			key, ok := tok.(string)
			if !ok {
				return nil, fmt.Errorf("manifest: expected object key, got %v", tok)
			}
			if top.seen[key] {
				dups = append(dups, duplicateKey{line: lineAt(data, startOffset), key: key})
			}
			top.seen[key] = true
			top.expectKey = false
			continue
		}

		// A value token (string/number/bool/null) directly inside an
		// object: the next token is a key again.
		if top.isObject {
			top.expectKey = true
		}
	}

	return dups, nil
}

// markValueConsumed flips the new top-of-stack object frame back to
// expecting a key, since the container that just closed was itself the
// value half of a key/value pair.
func markValueConsumed(stack []*frame) {
	if len(stack) == 0 {
		return
	}
	top := stack[len(stack)-1]
	if top.isObject {
		top.expectKey = true
	}
}

func lineAt(data []byte, offset int64) int {
	if offset < 0 {
		offset = 0
	}
	if int(offset) > len(data) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}
