package repositories

import (
	"context"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

// StudentProfileRepository manages the student extension record, 1:1 per
// user. GetOrCreate must be atomic so racing role changes cannot produce
// duplicate rows.
type StudentProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	ExistsByUserID(ctx context.Context, userID string) (bool, error)

	// GetOrCreate returns the existing profile or creates one with the given
	// defaults. created reports whether a new row was written.
	GetOrCreate(ctx context.Context, profile *models.StudentProfile) (created bool, err error)

	DeleteByUserID(ctx context.Context, userID string) (deleted bool, err error)
}

// ProfessorProfileRepository is the professor-side counterpart.
type ProfessorProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.ProfessorProfile, error)
	ExistsByUserID(ctx context.Context, userID string) (bool, error)
	GetOrCreate(ctx context.Context, profile *models.ProfessorProfile) (created bool, err error)
	DeleteByUserID(ctx context.Context, userID string) (deleted bool, err error)
}

// SSOAssociationRepository manages the federated identity link and the
// manual-override flag stored on it.
type SSOAssociationRepository interface {
	Find(ctx context.Context, userID, provider string) (*models.SSOAssociation, error)
	Upsert(ctx context.Context, assoc *models.SSOAssociation) error

	// SetManualOverride flips the override column. Clearing it also removes
	// the legacy extra-data marker. Returns ErrNoAssociation when the user
	// has no link with the provider.
	SetManualOverride(ctx context.Context, userID, provider string, overridden bool) error

	// ListOverridden returns user IDs whose association carries the flag.
	ListOverridden(ctx context.Context, provider string) ([]string, error)
}
