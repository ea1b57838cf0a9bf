// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package validation

import (
	"strings"
	"testing"

	"github.com/canonical/task-service/internal/logging"
)

type registerPayload struct {
	Email    string `validate:"required,email"`
	Name     string `validate:"required,min=1,max=200"`
	Password string `validate:"required,min=8"`
}

type memberPayload struct {
	UserID string `validate:"required,uuid"`
	Role   string `validate:"required,project_role"`
}

type taskPayload struct {
	Title    string `validate:"required,min=1,max=500"`
	Status   string `validate:"omitempty,task_status"`
	Priority string `validate:"omitempty,task_priority"`
}

func TestValidator_ValidateStruct(t *testing.T) {
	v := NewValidator(logging.NewNoopLogger())

	testCases := []struct {
		name        string
		payload     any
		expectedErr string
	}{
		{
			name:    "valid registration",
			payload: registerPayload{Email: "a@example.com", Name: "A", Password: "longenough"},
		},
		{
			name:        "bad email",
			payload:     registerPayload{Email: "nope", Name: "A", Password: "longenough"},
			expectedErr: "Email must be a valid email address",
		},
		{
			name:        "short password",
			payload:     registerPayload{Email: "a@example.com", Name: "A", Password: "short"},
			expectedErr: "Password must be at least 8 characters",
		},
		{
			name:        "missing fields fold into one message",
			payload:     registerPayload{},
			expectedErr: "Email is required; Name is required; Password is required",
		},
		{
			name:    "valid member payload",
			payload: memberPayload{UserID: "0190c9a5-7dd1-7cf2-a4b9-2b502ba7e828", Role: "member"},
		},
		{
			name:        "owner is not grantable",
			payload:     memberPayload{UserID: "0190c9a5-7dd1-7cf2-a4b9-2b502ba7e828", Role: "owner"},
			expectedErr: "Role must be one of admin, member, viewer",
		},
		{
			name:    "task enums accepted",
			payload: taskPayload{Title: "t", Status: "in_progress", Priority: "high"},
		},
		{
			name:        "task status rejected",
			payload:     taskPayload{Title: "t", Status: "blocked"},
			expectedErr: "Status must be one of todo, in_progress, done",
		},
		{
			name:        "task priority rejected",
			payload:     taskPayload{Title: "t", Priority: "urgent"},
			expectedErr: "Priority must be one of low, medium, high",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStruct(tc.payload)

			if tc.expectedErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}

			if err == nil {
				t.Fatal("expected error but got none")
			}
			if !strings.Contains(err.Error(), tc.expectedErr) {
				t.Errorf("expected error containing %q, got %q", tc.expectedErr, err.Error())
			}
		})
	}
}
