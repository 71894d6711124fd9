package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

type SSOAssociationPostgreSQL struct {
	db *gorm.DB
}

func NewSSOAssociationPostgreSQL(db *gorm.DB) repositories.SSOAssociationRepository {
	return &SSOAssociationPostgreSQL{db: db}
}

func (r *SSOAssociationPostgreSQL) Find(ctx context.Context, userID, provider string) (*models.SSOAssociation, error) {
	var assoc models.SSOAssociation
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ?", userID, provider).
		First(&assoc).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &assoc, nil
}

func (r *SSOAssociationPostgreSQL) Upsert(ctx context.Context, assoc *models.SSOAssociation) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"subject_id", "extra_data", "updated_at"}),
		}).
		Create(assoc).Error
	if err != nil {
		return fmt.Errorf("failed to upsert sso association: %w", err)
	}
	return nil
}

func (r *SSOAssociationPostgreSQL) SetManualOverride(ctx context.Context, userID, provider string, overridden bool) error {
	assoc, err := r.Find(ctx, userID, provider)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return repositories.ErrNoAssociation
		}
		return err
	}

	assoc.ManuallyOverridden = overridden
	if !overridden && assoc.ExtraData != nil {
		// Resets remove the legacy marker entirely rather than writing false.
		delete(assoc.ExtraData, models.LegacyOverrideKey)
	}

	if err := r.db.WithContext(ctx).Save(assoc).Error; err != nil {
		return fmt.Errorf("failed to update manual override: %w", err)
	}
	return nil
}

func (r *SSOAssociationPostgreSQL) ListOverridden(ctx context.Context, provider string) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&models.SSOAssociation{}).
		Where("provider = ? AND manually_overridden = ?", provider, true).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list overridden associations: %w", err)
	}
	return userIDs, nil
}
