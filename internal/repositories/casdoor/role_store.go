package casdoor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

// RoleStoreCasdoor manages the four role tags as Casdoor roles whose
// member lists hold "organization/username" entries. It is deliberately
// dumb storage: exclusivity between tags is the reconciler's job, not the
// store's.
type RoleStoreCasdoor struct {
	client *casdoorsdk.Client
	redis  *redis.Client
	config CasdoorConfig

	cachePrefix string
	cacheTTL    time.Duration
}

func NewRoleStore(config CasdoorConfig, redisClient *redis.Client) repositories.RoleStore {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &RoleStoreCasdoor{
		client:      client,
		redis:       redisClient,
		config:      config,
		cachePrefix: "roles:",
		cacheTTL:    5 * time.Minute,
	}
}

// memberRef is the entry format Casdoor stores in Role.Users.
func (s *RoleStoreCasdoor) memberRef(ctx context.Context, userID string) (string, error) {
	casdoorUser, err := s.client.GetUserByUserId(userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user %s: %w", userID, err)
	}
	if casdoorUser == nil {
		return "", repositories.ErrNotFound
	}
	return fmt.Sprintf("%s/%s", s.config.OrganizationName, casdoorUser.Name), nil
}

func (s *RoleStoreCasdoor) getRole(role models.UserRole) (*casdoorsdk.Role, error) {
	casdoorRole, err := s.client.GetRole(string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to get role %s: %w", role, err)
	}
	if casdoorRole == nil {
		return nil, fmt.Errorf("role %s is not provisioned in Casdoor", role)
	}
	return casdoorRole, nil
}

func (s *RoleStoreCasdoor) invalidate(ctx context.Context, userID string) {
	if s.redis != nil {
		s.redis.Del(ctx, s.cachePrefix+userID)
	}
}

func (s *RoleStoreCasdoor) HasRole(ctx context.Context, userID string, role models.UserRole) (bool, error) {
	ref, err := s.memberRef(ctx, userID)
	if err != nil {
		return false, err
	}

	casdoorRole, err := s.getRole(role)
	if err != nil {
		return false, err
	}

	return slices.Contains(casdoorRole.Users, ref), nil
}

func (s *RoleStoreCasdoor) AssignRole(ctx context.Context, userID string, role models.UserRole) error {
	ref, err := s.memberRef(ctx, userID)
	if err != nil {
		return err
	}

	casdoorRole, err := s.getRole(role)
	if err != nil {
		return err
	}

	if slices.Contains(casdoorRole.Users, ref) {
		return nil // Already assigned
	}

	casdoorRole.Users = append(casdoorRole.Users, ref)
	if _, err := s.client.UpdateRole(casdoorRole); err != nil {
		return fmt.Errorf("failed to assign role %s to %s: %w", role, userID, err)
	}

	s.invalidate(ctx, userID)
	return nil
}

func (s *RoleStoreCasdoor) RemoveRole(ctx context.Context, userID string, role models.UserRole) error {
	ref, err := s.memberRef(ctx, userID)
	if err != nil {
		return err
	}

	casdoorRole, err := s.getRole(role)
	if err != nil {
		return err
	}

	idx := slices.Index(casdoorRole.Users, ref)
	if idx < 0 {
		return nil // Not assigned; removal is idempotent
	}

	casdoorRole.Users = slices.Delete(casdoorRole.Users, idx, idx+1)
	if _, err := s.client.UpdateRole(casdoorRole); err != nil {
		return fmt.Errorf("failed to remove role %s from %s: %w", role, userID, err)
	}

	s.invalidate(ctx, userID)
	return nil
}

// EffectiveRole returns the single tag the user carries. When the store
// holds more than one (the reconciler prevents this, the store does not),
// the strongest wins: admin, coordinator, professor, student.
func (s *RoleStoreCasdoor) EffectiveRole(ctx context.Context, userID string) (models.UserRole, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, s.cachePrefix+userID).Result()
		if err == nil {
			return models.UserRole(cached), nil
		}
	}

	ref, err := s.memberRef(ctx, userID)
	if err != nil {
		return "", err
	}

	var effective models.UserRole
	for _, role := range models.AllRoles() {
		casdoorRole, err := s.getRole(role)
		if err != nil {
			return "", err
		}
		if slices.Contains(casdoorRole.Users, ref) {
			effective = role
			break
		}
	}

	if s.redis != nil && effective != "" {
		s.redis.Set(ctx, s.cachePrefix+userID, string(effective), s.cacheTTL)
	}

	return effective, nil
}
