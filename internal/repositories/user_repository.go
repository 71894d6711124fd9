package repositories

import (
	"context"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

// UserRepository interface for user operations. User identity is owned by
// Casdoor; this service reads it and mirrors a local row for foreign keys
// and the last-login timestamp.
type UserRepository interface {
	// Basic read operations
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.User, error)

	// List and search operations
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)

	// Validation and checks
	ExistsByID(ctx context.Context, id string) (bool, error)

	// Identity mutations (admin lifecycle only)
	Update(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id string) error

	// Deactivate soft-disables the account: anonymized username/email,
	// active flag cleared. History rows are preserved.
	Deactivate(ctx context.Context, id string) error
}

// RoleStore is the capability lookup for the four managed role tags. It is
// an external collaborator (Casdoor roles); the reconciler never calls it,
// only the SetRole funnel and the SSO adapter do.
type RoleStore interface {
	HasRole(ctx context.Context, userID string, role models.UserRole) (bool, error)
	AssignRole(ctx context.Context, userID string, role models.UserRole) error
	RemoveRole(ctx context.Context, userID string, role models.UserRole) error

	// EffectiveRole returns the single role the user carries, or "" when
	// none. When the store holds more than one tag (which the reconciler
	// prevents but the store does not), admin wins, then coordinator,
	// professor, student.
	EffectiveRole(ctx context.Context, userID string) (models.UserRole, error)
}
