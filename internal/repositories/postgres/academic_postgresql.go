package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

type SectionPostgreSQL struct {
	db *gorm.DB
}

func NewSectionPostgreSQL(db *gorm.DB) repositories.SectionRepository {
	return &SectionPostgreSQL{db: db}
}

func (r *SectionPostgreSQL) Create(ctx context.Context, section *models.ClassSection) error {
	return translateError(r.db.WithContext(ctx).Create(section).Error)
}

func (r *SectionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ClassSection, error) {
	var section models.ClassSection
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Preload("Term").
		First(&section, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &section, nil
}

func (r *SectionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.ClassSection, error) {
	if len(ids) == 0 {
		return []*models.ClassSection{}, nil
	}

	var sections []*models.ClassSection
	err := r.db.WithContext(ctx).
		Preload("Subject").
		Preload("Term").
		Where("id IN ?", ids).
		Find(&sections).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get sections: %w", err)
	}
	return sections, nil
}

func (r *SectionPostgreSQL) List(ctx context.Context, filters repositories.SectionFilters) ([]*models.ClassSection, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ClassSection{})

	if filters.TermID != nil {
		query = query.Where("term_id = ?", *filters.TermID)
	}
	if filters.SubjectID != nil {
		query = query.Where("subject_id = ?", *filters.SubjectID)
	}
	if filters.ProfessorID != nil {
		query = query.Where("professor_id = ?", *filters.ProfessorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sections: %w", err)
	}

	if filters.Limit <= 0 {
		filters.Limit = 20
	}

	var sections []*models.ClassSection
	err := query.
		Preload("Subject").
		Preload("Term").
		Order("id").
		Limit(filters.Limit).
		Offset(filters.Offset).
		Find(&sections).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sections: %w", err)
	}

	return sections, total, nil
}

type EnrollmentPostgreSQL struct {
	db *gorm.DB
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db}
}

func (r *EnrollmentPostgreSQL) Create(ctx context.Context, enrollment *models.Enrollment) error {
	return translateError(r.db.WithContext(ctx).Create(enrollment).Error)
}

func (r *EnrollmentPostgreSQL) GetOrCreate(ctx context.Context, enrollment *models.Enrollment) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("section_id = ? AND student_id = ?", enrollment.SectionID, enrollment.StudentID).
		FirstOrCreate(enrollment)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *EnrollmentPostgreSQL) ListActiveBySection(ctx context.Context, sectionID uint) ([]string, error) {
	var studentIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("section_id = ? AND status = ?", sectionID, models.EnrollmentActive).
		Order("student_id").
		Pluck("student_id", &studentIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active enrollments: %w", err)
	}
	return studentIDs, nil
}

type QuestionnairePostgreSQL struct {
	db *gorm.DB
}

func NewQuestionnairePostgreSQL(db *gorm.DB) repositories.QuestionnaireRepository {
	return &QuestionnairePostgreSQL{db: db}
}

func (r *QuestionnairePostgreSQL) Create(ctx context.Context, q *models.Questionnaire) error {
	return translateError(r.db.WithContext(ctx).Create(q).Error)
}

func (r *QuestionnairePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Questionnaire, error) {
	var q models.Questionnaire
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questionnaire_questions.order")
		}).
		First(&q, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &q, nil
}

func (r *QuestionnairePostgreSQL) List(ctx context.Context, limit, offset int) ([]*models.Questionnaire, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Questionnaire{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questionnaires: %w", err)
	}

	if limit <= 0 {
		limit = 20
	}

	var qs []*models.Questionnaire
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&qs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list questionnaires: %w", err)
	}

	return qs, total, nil
}
