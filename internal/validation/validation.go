// Copyright 2026 Canonical Ltd.
// SPDX-License-Identifier: AGPL-3.0

package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/canonical/task-service/internal/access"
	"github.com/canonical/task-service/internal/logging"
	"github.com/canonical/task-service/internal/types"
)

type ValidatorInterface interface {
	ValidateStruct(s any) error
}

var _ ValidatorInterface = (*Validator)(nil)

type Validator struct {
	validate *validator.Validate

	logger logging.LoggerInterface
}

// ValidateStruct runs tag validation on a decoded request payload and folds
// the failures into one user-facing message.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		v.logger.Errorf("validator rejected payload shape: %v", err)
		return fmt.Errorf("invalid request payload")
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, fieldMessage(fe))
	}

	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "project_role":
		return fmt.Sprintf("%s must be one of admin, member, viewer", fe.Field())
	case "task_status":
		return fmt.Sprintf("%s must be one of todo, in_progress, done", fe.Field())
	case "task_priority":
		return fmt.Sprintf("%s must be one of low, medium, high", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validateProjectRole(fl validator.FieldLevel) bool {
	return access.ValidRole(fl.Field().String())
}

func validateTaskStatus(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case types.TaskStatusTodo, types.TaskStatusInProgress, types.TaskStatusDone:
		return true
	default:
		return false
	}
}

func validateTaskPriority(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case types.TaskPriorityLow, types.TaskPriorityMedium, types.TaskPriorityHigh:
		return true
	default:
		return false
	}
}

func NewValidator(logger logging.LoggerInterface) *Validator {
	v := new(Validator)

	v.validate = validator.New(validator.WithRequiredStructEnabled())
	v.logger = logger

	for tag, fn := range map[string]validator.Func{
		"project_role":  validateProjectRole,
		"task_status":   validateTaskStatus,
		"task_priority": validateTaskPriority,
	} {
		if err := v.validate.RegisterValidation(tag, fn); err != nil {
			logger.Fatalf("failed to register %q validator: %v", tag, err)
		}
	}

	return v
}
