package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

type StudentProfilePostgreSQL struct {
	db *gorm.DB
}

func NewStudentProfilePostgreSQL(db *gorm.DB) repositories.StudentProfileRepository {
	return &StudentProfilePostgreSQL{db: db}
}

func (r *StudentProfilePostgreSQL) GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &profile, nil
}

func (r *StudentProfilePostgreSQL) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.StudentProfile{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check student profile existence: %w", err)
	}
	return count > 0, nil
}

func (r *StudentProfilePostgreSQL) GetOrCreate(ctx context.Context, profile *models.StudentProfile) (bool, error) {
	// FirstOrCreate is select-then-insert; a concurrent creator can still
	// win the insert. The unique index on user_id turns that into a
	// duplicate-key error, which translateError surfaces as retryable.
	result := r.db.WithContext(ctx).Where("user_id = ?", profile.UserID).FirstOrCreate(profile)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *StudentProfilePostgreSQL) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.StudentProfile{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete student profile: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

type ProfessorProfilePostgreSQL struct {
	db *gorm.DB
}

func NewProfessorProfilePostgreSQL(db *gorm.DB) repositories.ProfessorProfileRepository {
	return &ProfessorProfilePostgreSQL{db: db}
}

func (r *ProfessorProfilePostgreSQL) GetByUserID(ctx context.Context, userID string) (*models.ProfessorProfile, error) {
	var profile models.ProfessorProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &profile, nil
}

func (r *ProfessorProfilePostgreSQL) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProfessorProfile{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check professor profile existence: %w", err)
	}
	return count > 0, nil
}

func (r *ProfessorProfilePostgreSQL) GetOrCreate(ctx context.Context, profile *models.ProfessorProfile) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", profile.UserID).FirstOrCreate(profile)
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ProfessorProfilePostgreSQL) DeleteByUserID(ctx context.Context, userID string) (bool, error) {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ProfessorProfile{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete professor profile: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}
