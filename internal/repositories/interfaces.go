package repositories

import (
	"time"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type UserFilters struct {
	Query  string // Search query for name or email
	Limit  int    // Page size
	Offset int    // Offset for pagination
}

type CycleFilters struct {
	QuestionnaireID *uint      `json:"questionnaire_id"`
	ActiveAt        *time.Time `json:"active_at"`
	CreatedBy       *string    `json:"created_by"`
	Limit           int        `json:"limit"`
	Offset          int        `json:"offset"`
	SortBy          string     `json:"sort_by"`    // "created_at", "name", "starts_at"
	SortOrder       string     `json:"sort_order"` // "asc", "desc"
}

type EvaluationFilters struct {
	Status      *models.EvaluationStatus `json:"status"`
	CycleID     *uint                    `json:"cycle_id"`
	ProfessorID *string                  `json:"professor_id"`
	Limit       int                      `json:"limit"`
	Offset      int                      `json:"offset"`
}

type SectionFilters struct {
	TermID      *uint   `json:"term_id"`
	SubjectID   *uint   `json:"subject_id"`
	ProfessorID *string `json:"professor_id"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

// EvaluationKey identifies an evaluation by its natural key, the
// (cycle, section) pair.
type EvaluationKey struct {
	CycleID   uint `json:"cycle_id"`
	SectionID uint `json:"section_id"`
}

// CycleStats summarizes evaluation progress for one cycle.
type CycleStats struct {
	TotalEvaluations int64                            `json:"total_evaluations"`
	StatusBreakdown  map[models.EvaluationStatus]int64 `json:"status_breakdown"`
	TotalResponses   int64                            `json:"total_responses"`
}
