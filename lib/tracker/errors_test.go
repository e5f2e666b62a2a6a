// Copyright 2026 The Depsync Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	err := &APIError{
		StatusCode: 422,
		Message:    "Validation Failed",
		Errors: []ValidationError{
			{Resource: "Label", Field: "name", Code: "invalid"},
			{Resource: "Item", Field: "state", Message: "not a valid state"},
		},
	}
	want := "tracker: HTTP 422: Validation Failed; Label.name: invalid; Item.state: not a valid state"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		expected  bool
	}{
		{"not found direct", &APIError{StatusCode: 404}, IsNotFound, true},
		{"not found wrapped", fmt.Errorf("getting item: %w", &APIError{StatusCode: 404}), IsNotFound, true},
		{"not found wrong code", &APIError{StatusCode: 500}, IsNotFound, false},
		{"not found non-api", errors.New("boom"), IsNotFound, false},
		{"rate limited 429", &APIError{StatusCode: 429}, IsRateLimited, true},
		{"rate limited 403 message", &APIError{StatusCode: 403, Message: "API rate limit exceeded"}, IsRateLimited, true},
		{"forbidden not rate limit", &APIError{StatusCode: 403, Message: "Resource not accessible"}, IsRateLimited, false},
		{"validation 422", &APIError{StatusCode: 422}, IsValidationFailed, true},
		{"conflict 409", &APIError{StatusCode: 409}, IsConflict, true},
		{"conflict wrong code", &APIError{StatusCode: 404}, IsConflict, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.predicate(test.err); got != test.expected {
				t.Errorf("predicate = %v, want %v", got, test.expected)
			}
		})
	}
}
