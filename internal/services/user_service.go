package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

type userService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewUserService(repo repositories.Repository, logger *slog.Logger) UserService {
	return &userService{
		repo:   repo,
		logger: logger,
	}
}

func (s *userService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return s.repo.User().List(ctx, filters)
}

// Deactivate soft-disables the account. Role tags are stripped best-effort
// first, profiles dropped in one transaction, then the local mirror is
// anonymized. Evaluation history keyed by the user ID is never touched.
func (s *userService) Deactivate(ctx context.Context, userID, requestedBy string) error {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, role := range models.AllRoles() {
		if err := s.repo.RoleStore().RemoveRole(ctx, userID, role); err != nil {
			s.logger.Warn("Failed to remove role tag during deactivation, continuing",
				"user_id", userID, "role", role, "error", err)
		}
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if _, err := txRepo.StudentProfile().DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to remove student profile: %w", err)
		}
		if _, err := txRepo.ProfessorProfile().DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("failed to remove professor profile: %w", err)
		}
		return txRepo.User().Deactivate(ctx, userID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("User deactivated",
		"user_id", userID,
		"username", user.Username,
		"requested_by", requestedBy)

	return nil
}
