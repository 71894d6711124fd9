package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

type CycleRepository interface {
	Create(ctx context.Context, cycle *models.EvaluationCycle) error
	GetByID(ctx context.Context, id uint) (*models.EvaluationCycle, error)
	Update(ctx context.Context, cycle *models.EvaluationCycle) error
	List(ctx context.Context, filters CycleFilters) ([]*models.EvaluationCycle, int64, error)

	// Section membership (the many2many side the generator reacts to)
	AttachSections(ctx context.Context, cycleID uint, sectionIDs []uint) error
	DetachSections(ctx context.Context, cycleID uint, sectionIDs []uint) error
	SectionIDs(ctx context.Context, cycleID uint) ([]uint, error)
}

type EvaluationRepository interface {
	// GetOrCreate creates the evaluation for its (cycle, section) key if
	// absent. Must be atomic: concurrent attaches of the same section may
	// race and exactly one row must win.
	GetOrCreate(ctx context.Context, eval *models.Evaluation) (created bool, err error)

	GetByID(ctx context.Context, id uint) (*models.Evaluation, error)
	GetByKey(ctx context.Context, key EvaluationKey) (*models.Evaluation, error)
	ListByCycle(ctx context.Context, cycleID uint) ([]*models.Evaluation, error)
	List(ctx context.Context, filters EvaluationFilters) ([]*models.Evaluation, int64, error)

	UpdateStatus(ctx context.Context, id uint, status models.EvaluationStatus) error
	Delete(ctx context.Context, id uint) error

	// ListOverdue returns pending/in-progress evaluations whose cycle ended
	// before the given instant.
	ListOverdue(ctx context.Context, now time.Time) ([]*models.Evaluation, error)

	Stats(ctx context.Context, cycleID uint) (*CycleStats, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, response *models.EvaluationResponse) error
	CountByEvaluation(ctx context.Context, evaluationID uint) (int64, error)
}
