package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

// IdentityReader is the slice of the Casdoor repository the local mirror
// needs: identity and role reads only, never writes.
type IdentityReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)
	List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error)
	ExistsByID(ctx context.Context, id string) (bool, error)
}

// UserPostgreSQL mirrors Casdoor identities into the local users table.
// Casdoor owns identity; the local row exists for foreign keys, the active
// flag, and last-login tracking.
type UserPostgreSQL struct {
	db       *gorm.DB
	identity IdentityReader
}

func NewUserPostgreSQL(db *gorm.DB, identity IdentityReader) repositories.UserRepository {
	return &UserPostgreSQL{db: db, identity: identity}
}

// overlayLocal merges the mirrored columns onto an identity read, creating
// the mirror row on first sight of the user.
func (r *UserPostgreSQL) overlayLocal(ctx context.Context, user *models.User) error {
	local := models.User{
		ID:       user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Email:    user.Email,
		IsActive: true,
	}
	result := r.db.WithContext(ctx).Where("id = ?", user.ID).FirstOrCreate(&local)
	if result.Error != nil {
		return translateError(result.Error)
	}

	user.IsActive = local.IsActive
	user.LastLoginAt = local.LastLoginAt
	return nil
}

func (r *UserPostgreSQL) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.identity.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.overlayLocal(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserPostgreSQL) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := r.identity.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := r.overlayLocal(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (r *UserPostgreSQL) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	users, err := r.identity.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if err := r.overlayLocal(ctx, user); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (r *UserPostgreSQL) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	users, total, err := r.identity.List(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	for _, user := range users {
		if err := r.overlayLocal(ctx, user); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

func (r *UserPostgreSQL) ExistsByID(ctx context.Context, id string) (bool, error) {
	// The local mirror answers faster than a Casdoor round-trip and covers
	// every user who has ever logged in or been referenced.
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	return r.identity.ExistsByID(ctx, id)
}

func (r *UserPostgreSQL) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"username":  user.Username,
			"full_name": user.FullName,
			"email":     user.Email,
			"is_active": user.IsActive,
		}).Error
	if err != nil {
		return translateError(err)
	}
	return nil
}

func (r *UserPostgreSQL) TouchLastLogin(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", time.Now())
	if result.Error != nil {
		return fmt.Errorf("failed to record login: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Deactivate soft-disables the account. Username and email are anonymized
// so the unique indexes free up for re-registration; evaluation history
// keyed by the user ID stays intact.
func (r *UserPostgreSQL) Deactivate(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"username":  fmt.Sprintf("disabled-%s", id),
			"email":     fmt.Sprintf("disabled-%s@invalid.local", id),
			"is_active": false,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
