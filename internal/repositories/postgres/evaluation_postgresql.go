package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/evaluation-service/internal/cache"
	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

type CyclePostgreSQL struct {
	db     *gorm.DB
	caches *cache.CacheManager
}

func NewCyclePostgreSQL(db *gorm.DB, caches *cache.CacheManager) repositories.CycleRepository {
	return &CyclePostgreSQL{db: db, caches: caches}
}

func (r *CyclePostgreSQL) Create(ctx context.Context, cycle *models.EvaluationCycle) error {
	return translateError(r.db.WithContext(ctx).Omit("Sections").Create(cycle).Error)
}

func (r *CyclePostgreSQL) GetByID(ctx context.Context, id uint) (*models.EvaluationCycle, error) {
	cycle := &models.EvaluationCycle{}
	err := r.caches.Cycle.CacheOrExecute(ctx, fmt.Sprintf("id:%d", id), cycle, cache.CycleCacheConfig.TTL,
		func() (interface{}, error) {
			var fresh models.EvaluationCycle
			if err := r.db.WithContext(ctx).
				Preload("Questionnaire").
				Preload("Sections").
				First(&fresh, id).Error; err != nil {
				return nil, translateError(err)
			}
			return &fresh, nil
		})
	if err != nil {
		return nil, err
	}
	return cycle, nil
}

func (r *CyclePostgreSQL) Update(ctx context.Context, cycle *models.EvaluationCycle) error {
	// Section membership is managed through Attach/DetachSections only.
	err := r.db.WithContext(ctx).Omit("Sections", "Evaluations", "Questionnaire").Save(cycle).Error
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}
	return r.caches.InvalidateCycle(ctx, cycle.ID)
}

func (r *CyclePostgreSQL) List(ctx context.Context, filters repositories.CycleFilters) ([]*models.EvaluationCycle, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.EvaluationCycle{})

	if filters.QuestionnaireID != nil {
		query = query.Where("questionnaire_id = ?", *filters.QuestionnaireID)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.ActiveAt != nil {
		query = query.Where("starts_at <= ? AND ends_at > ?", *filters.ActiveAt, *filters.ActiveAt)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count cycles: %w", err)
	}

	// Sorting
	sortBy := "created_at"
	if filters.SortBy == "name" || filters.SortBy == "starts_at" {
		sortBy = filters.SortBy
	}
	sortOrder := "DESC"
	if filters.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	if filters.Limit <= 0 {
		filters.Limit = 20
	}

	var cycles []*models.EvaluationCycle
	err := query.
		Preload("Questionnaire").
		Order(fmt.Sprintf("%s %s", sortBy, sortOrder)).
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&cycles).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cycles: %w", err)
	}

	return cycles, total, nil
}

func (r *CyclePostgreSQL) AttachSections(ctx context.Context, cycleID uint, sectionIDs []uint) error {
	if len(sectionIDs) == 0 {
		return nil
	}

	sections := make([]models.ClassSection, 0, len(sectionIDs))
	for _, id := range sectionIDs {
		sections = append(sections, models.ClassSection{ID: id})
	}

	err := r.db.WithContext(ctx).
		Model(&models.EvaluationCycle{ID: cycleID}).
		Association("Sections").
		Append(&sections)
	if err != nil {
		return fmt.Errorf("failed to attach sections to cycle %d: %w", cycleID, err)
	}
	return r.caches.InvalidateCycle(ctx, cycleID)
}

func (r *CyclePostgreSQL) DetachSections(ctx context.Context, cycleID uint, sectionIDs []uint) error {
	if len(sectionIDs) == 0 {
		return nil
	}

	sections := make([]models.ClassSection, 0, len(sectionIDs))
	for _, id := range sectionIDs {
		sections = append(sections, models.ClassSection{ID: id})
	}

	err := r.db.WithContext(ctx).
		Model(&models.EvaluationCycle{ID: cycleID}).
		Association("Sections").
		Delete(&sections)
	if err != nil {
		return fmt.Errorf("failed to detach sections from cycle %d: %w", cycleID, err)
	}
	return r.caches.InvalidateCycle(ctx, cycleID)
}

func (r *CyclePostgreSQL) SectionIDs(ctx context.Context, cycleID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Table("cycle_sections").
		Where("evaluation_cycle_id = ?", cycleID).
		Order("class_section_id").
		Pluck("class_section_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cycle sections: %w", err)
	}
	return ids, nil
}

type EvaluationPostgreSQL struct {
	db     *gorm.DB
	caches *cache.CacheManager
}

func NewEvaluationPostgreSQL(db *gorm.DB, caches *cache.CacheManager) repositories.EvaluationRepository {
	return &EvaluationPostgreSQL{db: db, caches: caches}
}

// GetOrCreate inserts the evaluation unless its (cycle, section) row already
// exists. ON CONFLICT DO NOTHING keeps concurrent attaches of the same
// section from failing; the loser reloads the winner's row.
func (r *EvaluationPostgreSQL) GetOrCreate(ctx context.Context, eval *models.Evaluation) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cycle_id"}, {Name: "section_id"}},
			DoNothing: true,
		}).
		Create(eval)
	if result.Error != nil {
		return false, translateError(result.Error)
	}

	if result.RowsAffected > 0 {
		if err := r.caches.InvalidateCycle(ctx, eval.CycleID); err != nil {
			return true, err
		}
		return true, nil
	}

	existing, err := r.GetByKey(ctx, repositories.EvaluationKey{CycleID: eval.CycleID, SectionID: eval.SectionID})
	if err != nil {
		return false, err
	}
	*eval = *existing
	return false, nil
}

func (r *EvaluationPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.WithContext(ctx).First(&eval, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &eval, nil
}

func (r *EvaluationPostgreSQL) GetByKey(ctx context.Context, key repositories.EvaluationKey) (*models.Evaluation, error) {
	var eval models.Evaluation
	err := r.db.WithContext(ctx).
		Where("cycle_id = ? AND section_id = ?", key.CycleID, key.SectionID).
		First(&eval).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &eval, nil
}

func (r *EvaluationPostgreSQL) ListByCycle(ctx context.Context, cycleID uint) ([]*models.Evaluation, error) {
	var evals []*models.Evaluation
	err := r.db.WithContext(ctx).
		Where("cycle_id = ?", cycleID).
		Order("section_id").
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations for cycle %d: %w", cycleID, err)
	}
	return evals, nil
}

func (r *EvaluationPostgreSQL) List(ctx context.Context, filters repositories.EvaluationFilters) ([]*models.Evaluation, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Evaluation{})

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.CycleID != nil {
		query = query.Where("cycle_id = ?", *filters.CycleID)
	}
	if filters.ProfessorID != nil {
		query = query.Where("professor_id = ?", *filters.ProfessorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count evaluations: %w", err)
	}

	if filters.Limit <= 0 {
		filters.Limit = 20
	}

	var evals []*models.Evaluation
	err := query.
		Preload("Section").
		Order("created_at DESC").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&evals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list evaluations: %w", err)
	}

	return evals, total, nil
}

func (r *EvaluationPostgreSQL) UpdateStatus(ctx context.Context, id uint, status models.EvaluationStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update evaluation status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *EvaluationPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Evaluation{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete evaluation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *EvaluationPostgreSQL) ListOverdue(ctx context.Context, now time.Time) ([]*models.Evaluation, error) {
	var evals []*models.Evaluation
	err := r.db.WithContext(ctx).
		Joins("JOIN evaluation_cycles ON evaluation_cycles.id = evaluations.cycle_id").
		Where("evaluation_cycles.ends_at < ?", now).
		Where("evaluations.status IN ?", []models.EvaluationStatus{models.EvaluationPending, models.EvaluationInProgress}).
		Find(&evals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue evaluations: %w", err)
	}
	return evals, nil
}

// Stats serves from a short-lived cache: submissions keep arriving while a
// cycle runs, so the aggregate is allowed to lag by the cache TTL.
func (r *EvaluationPostgreSQL) Stats(ctx context.Context, cycleID uint) (*repositories.CycleStats, error) {
	stats := &repositories.CycleStats{}
	err := r.caches.Stats.CacheOrExecute(ctx, fmt.Sprintf("cycle:%d", cycleID), stats, cache.StatsCacheConfig.TTL,
		func() (interface{}, error) {
			return r.computeStats(ctx, cycleID)
		})
	if err != nil {
		return nil, err
	}
	if stats.StatusBreakdown == nil {
		stats.StatusBreakdown = make(map[models.EvaluationStatus]int64)
	}
	return stats, nil
}

func (r *EvaluationPostgreSQL) computeStats(ctx context.Context, cycleID uint) (*repositories.CycleStats, error) {
	stats := &repositories.CycleStats{
		StatusBreakdown: make(map[models.EvaluationStatus]int64),
	}

	type statusCount struct {
		Status models.EvaluationStatus
		Count  int64
	}
	var counts []statusCount
	err := r.db.WithContext(ctx).
		Model(&models.Evaluation{}).
		Select("status, COUNT(*) as count").
		Where("cycle_id = ?", cycleID).
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation stats: %w", err)
	}

	for _, c := range counts {
		stats.StatusBreakdown[c.Status] = c.Count
		stats.TotalEvaluations += c.Count
	}

	err = r.db.WithContext(ctx).
		Model(&models.EvaluationResponse{}).
		Joins("JOIN evaluations ON evaluations.id = evaluation_responses.evaluation_id").
		Where("evaluations.cycle_id = ?", cycleID).
		Count(&stats.TotalResponses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}

	return stats, nil
}

type ResponsePostgreSQL struct {
	db *gorm.DB
}

func NewResponsePostgreSQL(db *gorm.DB) repositories.ResponseRepository {
	return &ResponsePostgreSQL{db: db}
}

func (r *ResponsePostgreSQL) Create(ctx context.Context, response *models.EvaluationResponse) error {
	return translateError(r.db.WithContext(ctx).Create(response).Error)
}

func (r *ResponsePostgreSQL) CountByEvaluation(ctx context.Context, evaluationID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.EvaluationResponse{}).
		Where("evaluation_id = ?", evaluationID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return count, nil
}
