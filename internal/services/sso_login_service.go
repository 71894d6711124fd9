package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

// Classification tokens recognized in the SSO "tipo_usuario" field. Student
// tokens are checked first, then coordinator BEFORE professor: a value like
// "coordenador do curso" must classify as coordinator even though other
// staff markers may appear around it.
var (
	studentTokens     = []string{"aluno", "discente", "estudante"}
	coordinatorTokens = []string{"coordenador"}
	professorTokens   = []string{"professor", "docente"}
)

type ssoLoginService struct {
	repo   repositories.Repository
	roles  RoleService
	logger *slog.Logger
}

func NewSSOLoginService(repo repositories.Repository, roles RoleService, logger *slog.Logger) SSOLoginService {
	return &ssoLoginService{
		repo:   repo,
		roles:  roles,
		logger: logger,
	}
}

// ProcessLogin applies the post-login role policy. Nothing here may fail
// the login: every error is logged and swallowed.
func (s *ssoLoginService) ProcessLogin(ctx context.Context, user *models.User, provider string, payload map[string]interface{}) {
	if err := s.process(ctx, user, provider, payload); err != nil {
		s.logger.Error("Post-login role processing failed, login continues",
			"user_id", user.ID,
			"provider", provider,
			"error", err)
	}
}

func (s *ssoLoginService) process(ctx context.Context, user *models.User, provider string, payload map[string]interface{}) error {
	// Guard (a): only the configured provider is auto-managed
	if provider != models.ProviderCasdoor {
		s.logger.Debug("Skipping role processing for foreign provider",
			"user_id", user.ID, "provider", provider)
		return nil
	}

	assoc, err := s.refreshAssociation(ctx, user, provider, payload)
	if err != nil {
		return err
	}

	effective, err := s.roles.EffectiveRole(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to read effective role: %w", err)
	}

	// Guard (b): admins are never auto-managed
	if effective == models.RoleAdmin {
		s.logger.Debug("Skipping role processing for admin", "user_id", user.ID)
		return nil
	}

	// Guard (c): returning user with a managed role and a manual override
	// keeps whatever the admin set. First logins bypass the override so a
	// stale flag cannot strand a brand-new account.
	if !user.IsFirstLogin() && s.holdsManagedRole(effective) && s.roles.IsOverridden(ctx, user.ID) {
		s.logger.Debug("Skipping role processing, manual override active",
			"user_id", user.ID, "role", string(effective))
		return nil
	}

	classification := s.classification(payload, assoc)
	if classification == "" {
		s.logger.Debug("No classification in SSO payload, leaving role as is",
			"user_id", user.ID)
		return nil
	}

	derived, ok := ClassifyUserType(classification)
	if !ok {
		s.logger.Info("Unrecognized SSO classification, leaving role as is",
			"user_id", user.ID, "classification", classification)
		return nil
	}

	if derived == effective {
		// Role already matches; still reconcile so missing profiles heal
		return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
			messages, err := s.roles.Reconcile(ctx, txRepo, user, derived)
			for _, msg := range messages {
				s.logger.Info("Login reconcile: " + msg)
			}
			return err
		})
	}

	messages, err := s.roles.SetRole(ctx, user.ID, derived, SetRoleOptions{ChangedBy: "sso-login"})
	if err != nil {
		return err
	}
	for _, msg := range messages {
		s.logger.Info("Login role change: " + msg)
	}

	return nil
}

// refreshAssociation upserts the association row with the latest provider
// payload so classification can fall back to it when a later login omits
// the field. It runs before the admin and override guards: the row is a
// payload cache (and carries the override flag), so it must stay current
// even for logins that skip role management entirely.
func (s *ssoLoginService) refreshAssociation(ctx context.Context, user *models.User, provider string, payload map[string]interface{}) (*models.SSOAssociation, error) {
	existing, err := s.repo.SSOAssociation().Find(ctx, user.ID, provider)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to load sso association: %w", err)
	}

	assoc := &models.SSOAssociation{
		UserID:    user.ID,
		Provider:  provider,
		SubjectID: user.Username,
		ExtraData: datatypes.JSONMap{},
	}
	if existing != nil {
		assoc = existing
		if assoc.ExtraData == nil {
			assoc.ExtraData = datatypes.JSONMap{}
		}
	}

	for key, value := range payload {
		assoc.ExtraData[key] = value
	}

	if err := s.repo.SSOAssociation().Upsert(ctx, assoc); err != nil {
		return nil, fmt.Errorf("failed to refresh sso association: %w", err)
	}

	return assoc, nil
}

// classification prefers the live payload field, falling back to the copy
// cached on the association from an earlier login.
func (s *ssoLoginService) classification(payload map[string]interface{}, assoc *models.SSOAssociation) string {
	if raw, ok := payload[models.ExtraDataUserType]; ok {
		if str, ok := raw.(string); ok && strings.TrimSpace(str) != "" {
			return str
		}
	}
	if assoc != nil {
		return assoc.CachedUserType()
	}
	return ""
}

func (s *ssoLoginService) holdsManagedRole(role models.UserRole) bool {
	return role == models.RoleStudent || role == models.RoleProfessor || role == models.RoleCoordinator
}

// ClassifyUserType maps a raw SSO classification string to a role. The
// match is normalized (trimmed, case-folded) and substring-based. Returns
// false when nothing matches.
func ClassifyUserType(raw string) (models.UserRole, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", false
	}

	for _, token := range studentTokens {
		if strings.Contains(normalized, token) {
			return models.RoleStudent, true
		}
	}
	for _, token := range coordinatorTokens {
		if strings.Contains(normalized, token) {
			return models.RoleCoordinator, true
		}
	}
	for _, token := range professorTokens {
		if strings.Contains(normalized, token) {
			return models.RoleProfessor, true
		}
	}

	return "", false
}
