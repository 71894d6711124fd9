package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/evaluation-service/internal/events"
	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

type roleService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewRoleService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher) RoleService {
	return &roleService{
		repo:           repo,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
	}
}

// ===== RECONCILER =====

// Reconcile aligns profile rows with the target role. It is idempotent: a
// user already consistent with the target produces no mutations and no
// messages. The role store is never touched here.
func (s *roleService) Reconcile(ctx context.Context, repo repositories.Repository, user *models.User, target models.UserRole) ([]string, error) {
	if !models.ValidRole(string(target)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, target)
	}

	var messages []string

	switch {
	case target == models.RoleStudent:
		deleted, err := repo.ProfessorProfile().DeleteByUserID(ctx, user.ID)
		if err != nil {
			return messages, fmt.Errorf("failed to remove professor profile: %w", err)
		}
		if deleted {
			messages = append(messages, fmt.Sprintf("removed professor profile for user %s", user.ID))
		}

		profile := &models.StudentProfile{
			UserID:           user.ID,
			EnrollmentStatus: models.DefaultEnrollmentStatus,
		}
		created, err := repo.StudentProfile().GetOrCreate(ctx, profile)
		if err != nil {
			return messages, fmt.Errorf("failed to ensure student profile: %w", err)
		}
		if created {
			messages = append(messages, fmt.Sprintf("created student profile for user %s", user.ID))
		}

	case target.RequiresProfessorProfile():
		deleted, err := repo.StudentProfile().DeleteByUserID(ctx, user.ID)
		if err != nil {
			return messages, fmt.Errorf("failed to remove student profile: %w", err)
		}
		if deleted {
			messages = append(messages, fmt.Sprintf("removed student profile for user %s", user.ID))
		}

		profile := &models.ProfessorProfile{
			UserID:               user.ID,
			AcademicRegistration: user.Username,
		}
		created, err := repo.ProfessorProfile().GetOrCreate(ctx, profile)
		if err != nil {
			return messages, fmt.Errorf("failed to ensure professor profile: %w", err)
		}
		if created {
			messages = append(messages, fmt.Sprintf("created professor profile for user %s", user.ID))
		}

	case target == models.RoleAdmin:
		deleted, err := repo.StudentProfile().DeleteByUserID(ctx, user.ID)
		if err != nil {
			return messages, fmt.Errorf("failed to remove student profile: %w", err)
		}
		if deleted {
			messages = append(messages, fmt.Sprintf("removed student profile for user %s", user.ID))
		}

		deleted, err = repo.ProfessorProfile().DeleteByUserID(ctx, user.ID)
		if err != nil {
			return messages, fmt.Errorf("failed to remove professor profile: %w", err)
		}
		if deleted {
			messages = append(messages, fmt.Sprintf("removed professor profile for user %s", user.ID))
		}
	}

	return messages, nil
}

// ===== SET ROLE FUNNEL =====

// SetRole is the single entry point for every role mutation: admin form,
// SSO adapter and CLI all land here.
func (s *roleService) SetRole(ctx context.Context, userID string, target models.UserRole, opts SetRoleOptions) ([]string, error) {
	if !models.ValidRole(string(target)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, target)
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	previous, err := s.repo.RoleStore().EffectiveRole(ctx, userID)
	if err != nil {
		s.logger.Warn("Failed to read effective role before change",
			"user_id", userID, "error", err)
		previous = ""
	}

	// Profiles move first, in one transaction. A reconcile failure then
	// leaves the role store untouched, so a failed change never strands the
	// user with the new tag over the old profiles.
	var messages []string
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		var reconcileErr error
		messages, reconcileErr = s.Reconcile(ctx, txRepo, user, target)
		return reconcileErr
	})
	if err != nil {
		return nil, err
	}

	// Tag removals are isolated: one store hiccup must not strand the user
	// with a half-removed tag set that a later assign cannot fix.
	for _, role := range models.AllRoles() {
		if role == target {
			continue
		}
		if err := s.repo.RoleStore().RemoveRole(ctx, userID, role); err != nil {
			s.logger.Warn("Failed to remove role tag, continuing",
				"user_id", userID, "role", role, "error", err)
		}
	}

	if err := s.repo.RoleStore().AssignRole(ctx, userID, target); err != nil {
		s.restorePrevious(ctx, user, previous)
		return nil, fmt.Errorf("failed to assign role %s: %w", target, err)
	}

	if opts.MarkOverride {
		if err := s.MarkOverride(ctx, userID); err != nil {
			if errors.Is(err, ErrNoAssociation) {
				// User has never logged in through SSO; there is nothing
				// for future logins to override yet.
				s.logger.Info("No SSO association to mark overridden",
					"user_id", userID)
			} else {
				return nil, err
			}
		}
	}

	s.publishRoleChanged(ctx, userID, previous, target, opts)

	s.logger.Info("Role changed",
		"user_id", userID,
		"previous_role", string(previous),
		"new_role", string(target),
		"changed_by", opts.ChangedBy,
		"override_marked", opts.MarkOverride,
		"mutations", len(messages))

	return messages, nil
}

// restorePrevious is the best-effort undo for an assign failure after the
// profile transaction already committed. Every step is logged rather than
// returned: the caller is about to surface the assign error itself.
func (s *roleService) restorePrevious(ctx context.Context, user *models.User, previous models.UserRole) {
	if previous == "" {
		return
	}

	if err := s.repo.RoleStore().AssignRole(ctx, user.ID, previous); err != nil {
		s.logger.Error("Failed to restore previous role tag after assign failure",
			"user_id", user.ID, "role", previous, "error", err)
	}

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		_, reconcileErr := s.Reconcile(ctx, txRepo, user, previous)
		return reconcileErr
	})
	if err != nil {
		s.logger.Error("Failed to restore previous profiles after assign failure",
			"user_id", user.ID, "role", previous, "error", err)
	}
}

func (s *roleService) publishRoleChanged(ctx context.Context, userID string, previous, target models.UserRole, opts SetRoleOptions) {
	event := events.NewEvent(events.EventRoleChanged, events.RoleChangedEvent{
		UserID:       userID,
		PreviousRole: string(previous),
		NewRole:      string(target),
		ChangedBy:    opts.ChangedBy,
		Manual:       opts.MarkOverride,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish role change event",
			"user_id", userID, "error", err)
	}
}

func (s *roleService) EffectiveRole(ctx context.Context, userID string) (models.UserRole, error) {
	return s.repo.RoleStore().EffectiveRole(ctx, userID)
}

// ===== MANUAL OVERRIDE FLAG =====

func (s *roleService) MarkOverride(ctx context.Context, userID string) error {
	err := s.repo.SSOAssociation().SetManualOverride(ctx, userID, models.ProviderCasdoor, true)
	if err != nil {
		if errors.Is(err, repositories.ErrNoAssociation) {
			return ErrNoAssociation
		}
		return fmt.Errorf("failed to mark override: %w", err)
	}
	s.publishOverrideChanged(ctx, events.EventOverrideSet, userID)
	return nil
}

func (s *roleService) ResetOverride(ctx context.Context, userID string) error {
	err := s.repo.SSOAssociation().SetManualOverride(ctx, userID, models.ProviderCasdoor, false)
	if err != nil {
		if errors.Is(err, repositories.ErrNoAssociation) {
			return ErrNoAssociation
		}
		return fmt.Errorf("failed to reset override: %w", err)
	}
	s.publishOverrideChanged(ctx, events.EventOverrideReset, userID)
	return nil
}

func (s *roleService) publishOverrideChanged(ctx context.Context, eventType, userID string) {
	event := events.NewEvent(eventType, events.OverrideChangedEvent{UserID: userID})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish override change event",
			"user_id", userID, "error", err)
	}
}

// IsOverridden defaults to false when the association is missing or
// unreadable. The legacy extra-data marker still counts for rows written
// before the flag became a column.
func (s *roleService) IsOverridden(ctx context.Context, userID string) bool {
	assoc, err := s.repo.SSOAssociation().Find(ctx, userID, models.ProviderCasdoor)
	if err != nil {
		if !repositories.IsNotFoundError(err) {
			s.logger.Warn("Failed to read override flag, treating as not overridden",
				"user_id", userID, "error", err)
		}
		return false
	}
	return assoc.ManuallyOverridden || assoc.LegacyOverrideSet()
}

func (s *roleService) ListOverridden(ctx context.Context) ([]string, error) {
	return s.repo.SSOAssociation().ListOverridden(ctx, models.ProviderCasdoor)
}
