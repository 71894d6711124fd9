package services

import (
	"errors"
	"fmt"

	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

// ===== SENTINEL ERRORS =====

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrCycleNotFound         = errors.New("evaluation cycle not found")
	ErrSectionNotFound       = errors.New("class section not found")
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	ErrEvaluationNotFound    = errors.New("evaluation not found")
	ErrNoAssociation         = errors.New("user has no sso association")
	ErrInvalidRole           = errors.New("invalid role")
	ErrCycleEnded            = errors.New("evaluation cycle already ended")
	ErrAlreadyResponded      = errors.New("student already responded to this evaluation")
)

// PermissionError indicates the actor is not allowed to perform an action
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Message    string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Message)
}

func NewPermissionError(userID, resourceID, resource, action, message string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Message:    message,
	}
}

// IsPermissionError reports whether err is a permission failure
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsNotFoundError covers both service sentinels and repository not-found
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrCycleNotFound) ||
		errors.Is(err, ErrSectionNotFound) ||
		errors.Is(err, ErrQuestionnaireNotFound) ||
		errors.Is(err, ErrEvaluationNotFound) ||
		repositories.IsNotFoundError(err)
}

// IsRetryableError reports whether the operation lost a benign race and can
// be retried by the caller.
func IsRetryableError(err error) bool {
	return repositories.IsDuplicateKeyError(err)
}
