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

package errors_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	orcherrors "github.com/waypost/orchestrator/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *orcherrors.ValidationError
		wantMsg string
	}{
		{
			name: "with field",
			err: &orcherrors.ValidationError{
				Field:      "name",
				Message:    "does not match ^[A-Za-z0-9_]+$",
				Suggestion: "use only letters, digits, and underscores",
			},
			wantMsg: "validation failed on name: does not match ^[A-Za-z0-9_]+$",
		},
		{
			name: "without field",
			err: &orcherrors.ValidationError{
				Message: "duplicate key at line 4: \"tasks\"",
			},
			wantMsg: "validation failed: duplicate key at line 4: \"tasks\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *orcherrors.NotFoundError
		wantMsg string
	}{
		{
			name: "task not found",
			err: &orcherrors.NotFoundError{
				Resource: "task",
				ID:       "deploy",
			},
			wantMsg: "task not found: deploy",
		},
		{
			name: "execution not found",
			err: &orcherrors.NotFoundError{
				Resource: "execution",
				ID:       "11111111-1111-1111-1111-111111111111",
			},
			wantMsg: "execution not found: 11111111-1111-1111-1111-111111111111",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("NotFoundError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *orcherrors.ConfigError
		wantMsg string
	}{
		{
			name: "with key",
			err: &orcherrors.ConfigError{
				Key:    "database.provider",
				Reason: "unknown provider \"oracle\"",
			},
			wantMsg: "config error at database.provider: unknown provider \"oracle\"",
		},
		{
			name: "without key",
			err: &orcherrors.ConfigError{
				Reason: "file not found",
			},
			wantMsg: "config error: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ConfigError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := errors.New("file read error")
	err := &orcherrors.ConfigError{
		Key:    "config",
		Reason: "failed to load",
		Cause:  cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("ConfigError.Unwrap() = %v, want %v", got, cause)
	}
}

func TestTimeoutError_Error(t *testing.T) {
	err := &orcherrors.TimeoutError{
		Operation: "task execution",
		Duration:  30 * time.Second,
	}
	want := "task execution timed out after 30s"
	if got := err.Error(); got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
}

func TestTimeoutError_Unwrap(t *testing.T) {
	cause := errors.New("context deadline exceeded")
	err := &orcherrors.TimeoutError{
		Operation: "test",
		Duration:  5 * time.Second,
		Cause:     cause,
	}

	if got := err.Unwrap(); got != cause {
		t.Errorf("TimeoutError.Unwrap() = %v, want %v", got, cause)
	}
}

func TestErrorWrapping(t *testing.T) {
	t.Run("ValidationError can be wrapped", func(t *testing.T) {
		original := &orcherrors.ValidationError{
			Field:   "reference",
			Message: "step name equals reference",
		}
		wrapped := fmt.Errorf("loading workflow definition: %w", original)

		var target *orcherrors.ValidationError
		if !errors.As(wrapped, &target) {
			t.Error("errors.As should find ValidationError in wrapped error")
		}
		if target.Field != "reference" {
			t.Errorf("unwrapped error Field = %q, want %q", target.Field, "reference")
		}
	})

	t.Run("NotFoundError can be wrapped", func(t *testing.T) {
		original := &orcherrors.NotFoundError{
			Resource: "workflow",
			ID:       "test",
		}
		wrapped := fmt.Errorf("loading workflow: %w", original)

		var target *orcherrors.NotFoundError
		if !errors.As(wrapped, &target) {
			t.Error("errors.As should find NotFoundError in wrapped error")
		}
		if target.Resource != "workflow" {
			t.Errorf("unwrapped error Resource = %q, want %q", target.Resource, "workflow")
		}
	})

	t.Run("ConfigError preserves cause through wrapping", func(t *testing.T) {
		rootCause := errors.New("file not found")
		configErr := &orcherrors.ConfigError{
			Key:    "manifest",
			Reason: "missing required field",
			Cause:  rootCause,
		}
		wrapped := fmt.Errorf("loading config: %w", configErr)

		var target *orcherrors.ConfigError
		if !errors.As(wrapped, &target) {
			t.Error("errors.As should find ConfigError in wrapped error")
		}

		if target.Unwrap() != rootCause {
			t.Error("ConfigError.Unwrap() should return root cause")
		}
	})
}

func TestErrorsIs(t *testing.T) {
	t.Run("errors.Is works with wrapped ValidationError", func(t *testing.T) {
		original := &orcherrors.ValidationError{Field: "test"}
		wrapped := fmt.Errorf("wrapper: %w", original)

		if !errors.Is(wrapped, original) {
			t.Error("errors.Is should find original error in chain")
		}
	})

	t.Run("errors.Is works with wrapped NotFoundError", func(t *testing.T) {
		original := &orcherrors.NotFoundError{Resource: "test", ID: "123"}
		wrapped := fmt.Errorf("wrapper: %w", original)

		if !errors.Is(wrapped, original) {
			t.Error("errors.Is should find original error in chain")
		}
	})
}
