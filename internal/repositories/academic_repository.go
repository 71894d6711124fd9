package repositories

import (
	"context"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

type SectionRepository interface {
	Create(ctx context.Context, section *models.ClassSection) error
	GetByID(ctx context.Context, id uint) (*models.ClassSection, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.ClassSection, error)
	List(ctx context.Context, filters SectionFilters) ([]*models.ClassSection, int64, error)
}

type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error

	// GetOrCreate is used by the roster import; re-importing the same row is
	// a no-op.
	GetOrCreate(ctx context.Context, enrollment *models.Enrollment) (created bool, err error)

	// ListActiveBySection returns student IDs with an active enrollment in
	// the section, the audience for evaluation notices.
	ListActiveBySection(ctx context.Context, sectionID uint) ([]string, error)
}

type QuestionnaireRepository interface {
	Create(ctx context.Context, q *models.Questionnaire) error
	GetByID(ctx context.Context, id uint) (*models.Questionnaire, error)
	List(ctx context.Context, limit, offset int) ([]*models.Questionnaire, int64, error)
}
