package notification

import (
	"context"
	"log/slog"
)

// ConsoleNotifier logs notices instead of sending them. Used in development
// and whenever no SendGrid key is configured.
type ConsoleNotifier struct {
	logger *slog.Logger
}

func NewConsoleNotifier(logger *slog.Logger) *ConsoleNotifier {
	return &ConsoleNotifier{logger: logger}
}

func (n *ConsoleNotifier) SendEvaluationNotice(ctx context.Context, notice *EvaluationNotice) error {
	n.logger.InfoContext(ctx, "Evaluation notice (console)",
		"student_id", notice.Student.ID,
		"email", notice.Student.Email,
		"cycle", notice.CycleName,
		"subject", notice.SubjectName,
		"ends_at", notice.EndsAt)
	return nil
}
