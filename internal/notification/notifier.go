package notification

import (
	"context"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

// EvaluationNotice is the payload sent to one student when an evaluation
// opens for a section they are enrolled in.
type EvaluationNotice struct {
	Student     *models.User
	CycleName   string
	SubjectName string
	EndsAt      string
}

// Notifier sends evaluation notices. Implementations attempt delivery once
// and return the failure; retry policy belongs to the caller, which logs
// and skips per recipient.
type Notifier interface {
	SendEvaluationNotice(ctx context.Context, notice *EvaluationNotice) error
}
