package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

func newTestSSOService(repo *mockRepo) SSOLoginService {
	roles, _ := newTestRoleService(repo)
	return NewSSOLoginService(repo, roles, testLogger())
}

func TestClassifyUserType(t *testing.T) {
	tests := []struct {
		raw  string
		want models.UserRole
		ok   bool
	}{
		{"Aluno de graduação", models.RoleStudent, true},
		{"Discente", models.RoleStudent, true},
		{"  estudante  ", models.RoleStudent, true},
		{"Coordenador do curso", models.RoleCoordinator, true},
		{"Professor coordenador", models.RoleCoordinator, true},
		{"PROFESSOR", models.RoleProfessor, true},
		{"Docente permanente", models.RoleProfessor, true},
		{"funcionário", "", false},
		{"", "", false},
		{"   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ClassifyUserType(tt.raw)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ClassifyUserType(%q) = (%q, %v), want (%q, %v)",
					tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSSOLoginService_ProcessLogin(t *testing.T) {
	ctx := context.Background()
	yesterday := time.Now().Add(-24 * time.Hour)

	studentPayload := map[string]interface{}{models.ExtraDataUserType: "Aluno"}

	t.Run("foreign provider is ignored", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "maria", nil)

		svc.ProcessLogin(ctx, user, "google", studentPayload)

		if len(repo.associations) != 0 {
			t.Error("no association should be written for a foreign provider")
		}
		if len(repo.roleTags["u1"]) != 0 {
			t.Error("roles should be untouched for a foreign provider")
		}
	})

	t.Run("first login classifies a new student", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "maria", nil)

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, studentPayload)

		if !repo.roleTags["u1"][models.RoleStudent] {
			t.Error("student role should be assigned")
		}
		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("student profile should be created")
		}

		assoc := repo.associations[repo.assocKey("u1", models.ProviderCasdoor)]
		if assoc == nil {
			t.Fatal("association should be created")
		}
		if assoc.ExtraData[models.ExtraDataUserType] != "Aluno" {
			t.Error("classification should be cached on the association")
		}
	})

	t.Run("admins are never auto-managed", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "root", &yesterday)
		repo.setRoleTag("u1", models.RoleAdmin)

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, studentPayload)

		if !repo.roleTags["u1"][models.RoleAdmin] {
			t.Error("admin role should survive login")
		}
		if repo.roleTags["u1"][models.RoleStudent] {
			t.Error("admin should not be reclassified")
		}
		if _, ok := repo.studentProfiles["u1"]; ok {
			t.Error("no student profile should be created for an admin")
		}
	})

	t.Run("manual override pins a returning user", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "joao", &yesterday)
		repo.setRoleTag("u1", models.RoleProfessor)
		repo.professorProfiles["u1"] = &models.ProfessorProfile{UserID: "u1"}
		repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
			UserID: "u1", Provider: models.ProviderCasdoor, ManuallyOverridden: true,
		}

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, studentPayload)

		if !repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("overridden professor should keep the professor role")
		}
		if repo.roleTags["u1"][models.RoleStudent] {
			t.Error("overridden user should not be reclassified")
		}
		assoc := repo.associations[repo.assocKey("u1", models.ProviderCasdoor)]
		if assoc.CachedUserType() == "" {
			t.Error("payload cache should be refreshed even when the override short-circuits")
		}
	})

	t.Run("first login bypasses a stale override", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "maria", nil)
		repo.setRoleTag("u1", models.RoleProfessor)
		repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
			UserID: "u1", Provider: models.ProviderCasdoor, ManuallyOverridden: true,
		}

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, studentPayload)

		if !repo.roleTags["u1"][models.RoleStudent] {
			t.Error("first login should reclassify despite the override flag")
		}
		if repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("professor role should be removed")
		}
	})

	t.Run("matching role heals a missing profile", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "maria", &yesterday)
		repo.setRoleTag("u1", models.RoleStudent)

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, studentPayload)

		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("missing student profile should be recreated")
		}
		if !repo.roleTags["u1"][models.RoleStudent] {
			t.Error("role should stay student")
		}
	})

	t.Run("cached classification covers an empty payload", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "joao", &yesterday)
		repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
			UserID: "u1", Provider: models.ProviderCasdoor,
			ExtraData: datatypes.JSONMap{models.ExtraDataUserType: "docente"},
		}

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, map[string]interface{}{})

		if !repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("cached classification should drive the role")
		}
	})

	t.Run("unrecognized classification leaves the role alone", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "joao", &yesterday)
		repo.setRoleTag("u1", models.RoleProfessor)

		svc.ProcessLogin(ctx, user, models.ProviderCasdoor,
			map[string]interface{}{models.ExtraDataUserType: "funcionário"})

		if !repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("unrecognized classification should not change the role")
		}
	})

	t.Run("store failures never reach the caller", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestSSOService(repo)
		user := repo.addUser("u1", "maria", nil)
		repo.effectiveRoleErr = errors.New("store unavailable")

		// Must not panic or propagate; login continues regardless
		svc.ProcessLogin(ctx, user, models.ProviderCasdoor, studentPayload)

		if len(repo.roleTags["u1"]) != 0 {
			t.Error("failed processing should leave roles untouched")
		}
	})
}
