package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/evaluation-service/internal/events"
	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRoleService(repo *mockRepo) (RoleService, *events.MockEventPublisher) {
	logger := testLogger()
	publisher := events.NewMockEventPublisher(logger)
	return NewRoleService(repo, logger, validator.New(), publisher), publisher
}

func TestRoleService_Reconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("creates student profile", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		user := repo.addUser("u1", "maria", nil)

		messages, err := svc.Reconcile(ctx, repo, user, models.RoleStudent)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages) != 1 {
			t.Fatalf("expected 1 mutation, got %d: %v", len(messages), messages)
		}
		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("student profile not created")
		}
	})

	t.Run("idempotent when already consistent", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		user := repo.addUser("u1", "maria", nil)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}

		messages, err := svc.Reconcile(ctx, repo, user, models.RoleStudent)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("expected no mutations, got %v", messages)
		}
	})

	t.Run("professor replaces student profile", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		user := repo.addUser("u1", "joao", nil)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}

		messages, err := svc.Reconcile(ctx, repo, user, models.RoleProfessor)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("expected 2 mutations, got %v", messages)
		}
		if _, ok := repo.studentProfiles["u1"]; ok {
			t.Error("student profile should be removed")
		}
		profile, ok := repo.professorProfiles["u1"]
		if !ok {
			t.Fatal("professor profile not created")
		}
		if profile.AcademicRegistration != "joao" {
			t.Errorf("academic registration = %q, want username", profile.AcademicRegistration)
		}
	})

	t.Run("coordinator keeps professor profile", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		user := repo.addUser("u1", "ana", nil)
		repo.professorProfiles["u1"] = &models.ProfessorProfile{UserID: "u1"}

		messages, err := svc.Reconcile(ctx, repo, user, models.RoleCoordinator)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages) != 0 {
			t.Errorf("expected no mutations, got %v", messages)
		}
		if _, ok := repo.professorProfiles["u1"]; !ok {
			t.Error("professor profile should survive coordinator target")
		}
	})

	t.Run("admin clears both profiles", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		user := repo.addUser("u1", "root", nil)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}
		repo.professorProfiles["u1"] = &models.ProfessorProfile{UserID: "u1"}

		messages, err := svc.Reconcile(ctx, repo, user, models.RoleAdmin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(messages) != 2 {
			t.Fatalf("expected 2 mutations, got %v", messages)
		}
		if len(repo.studentProfiles) != 0 || len(repo.professorProfiles) != 0 {
			t.Error("profiles should be removed for admin")
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		user := repo.addUser("u1", "maria", nil)

		_, err := svc.Reconcile(ctx, repo, user, models.UserRole("janitor"))
		if !errors.Is(err, ErrInvalidRole) {
			t.Errorf("expected ErrInvalidRole, got %v", err)
		}
	})
}

func TestRoleService_SetRole(t *testing.T) {
	ctx := context.Background()

	t.Run("swaps tag, reconciles and publishes", func(t *testing.T) {
		repo := newMockRepo()
		svc, publisher := newTestRoleService(repo)
		repo.addUser("u1", "joao", nil)
		repo.setRoleTag("u1", models.RoleStudent)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}

		_, err := svc.SetRole(ctx, "u1", models.RoleProfessor, SetRoleOptions{ChangedBy: "admin-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if repo.roleTags["u1"][models.RoleStudent] {
			t.Error("student tag should be removed")
		}
		if !repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("professor tag should be assigned")
		}
		if _, ok := repo.professorProfiles["u1"]; !ok {
			t.Error("professor profile should exist")
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 {
			t.Fatalf("expected 1 event, got %d", len(published))
		}
		if published[0].Type != events.EventRoleChanged {
			t.Errorf("event type = %q, want %q", published[0].Type, events.EventRoleChanged)
		}
	})

	t.Run("mark override flips association flag", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		repo.addUser("u1", "joao", nil)
		repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
			UserID: "u1", Provider: models.ProviderCasdoor,
		}

		_, err := svc.SetRole(ctx, "u1", models.RoleProfessor, SetRoleOptions{
			MarkOverride: true, ChangedBy: "admin-1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !repo.associations[repo.assocKey("u1", models.ProviderCasdoor)].ManuallyOverridden {
			t.Error("override flag should be set")
		}
	})

	t.Run("tolerates missing association when marking override", func(t *testing.T) {
		repo := newMockRepo()
		svc, publisher := newTestRoleService(repo)
		repo.addUser("u1", "joao", nil)

		_, err := svc.SetRole(ctx, "u1", models.RoleStudent, SetRoleOptions{
			MarkOverride: true, ChangedBy: "admin-1",
		})
		if err != nil {
			t.Fatalf("missing association should not fail the change: %v", err)
		}
		if len(publisher.GetPublishedEvents()) != 1 {
			t.Error("role change event should still be published")
		}
	})

	t.Run("continues past tag removal failure", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		repo.addUser("u1", "joao", nil)
		repo.setRoleTag("u1", models.RoleStudent)
		repo.removeRoleErr[models.RoleStudent] = errors.New("store unavailable")

		_, err := svc.SetRole(ctx, "u1", models.RoleProfessor, SetRoleOptions{ChangedBy: "admin-1"})
		if err != nil {
			t.Fatalf("isolated removal failure should not abort: %v", err)
		}
		if !repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("target tag should be assigned despite removal failure")
		}
	})

	t.Run("failed reconcile leaves tags and profiles untouched", func(t *testing.T) {
		repo := newMockRepo()
		svc, publisher := newTestRoleService(repo)
		repo.addUser("u1", "joao", nil)
		repo.setRoleTag("u1", models.RoleStudent)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}
		repo.txErr = errors.New("deadlock detected")

		_, err := svc.SetRole(ctx, "u1", models.RoleProfessor, SetRoleOptions{ChangedBy: "admin-1"})
		if err == nil {
			t.Fatal("expected the transaction failure to surface")
		}
		if !repo.roleTags["u1"][models.RoleStudent] {
			t.Error("student tag should survive the failed change")
		}
		if repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("professor tag should not be assigned on failure")
		}
		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("student profile should survive the failed change")
		}
		if _, ok := repo.professorProfiles["u1"]; ok {
			t.Error("professor profile should not exist after failure")
		}
		if len(publisher.GetPublishedEvents()) != 0 {
			t.Error("no event should be published for a failed change")
		}
	})

	t.Run("failed assign restores previous profiles", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		repo.addUser("u1", "joao", nil)
		repo.setRoleTag("u1", models.RoleStudent)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}
		repo.assignRoleErr[models.RoleProfessor] = errors.New("store unavailable")

		_, err := svc.SetRole(ctx, "u1", models.RoleProfessor, SetRoleOptions{ChangedBy: "admin-1"})
		if err == nil {
			t.Fatal("expected the assign failure to surface")
		}
		if !repo.roleTags["u1"][models.RoleStudent] {
			t.Error("student tag should be restored")
		}
		if repo.roleTags["u1"][models.RoleProfessor] {
			t.Error("professor tag should not be present")
		}
		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("student profile should be restored")
		}
		if _, ok := repo.professorProfiles["u1"]; ok {
			t.Error("professor profile should be rolled back")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)

		_, err := svc.SetRole(ctx, "ghost", models.RoleStudent, SetRoleOptions{})
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestRoleService_IsOverridden(t *testing.T) {
	ctx := context.Background()

	t.Run("column flag counts", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
			UserID: "u1", Provider: models.ProviderCasdoor, ManuallyOverridden: true,
		}
		if !svc.IsOverridden(ctx, "u1") {
			t.Error("expected overridden")
		}
	})

	t.Run("legacy marker counts", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
			UserID: "u1", Provider: models.ProviderCasdoor,
			ExtraData: datatypes.JSONMap{models.LegacyOverrideKey: true},
		}
		if !svc.IsOverridden(ctx, "u1") {
			t.Error("legacy marker should count as overridden")
		}
	})

	t.Run("missing association is not overridden", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		if svc.IsOverridden(ctx, "u1") {
			t.Error("missing association should read as not overridden")
		}
	})

	t.Run("read failure fails open to false", func(t *testing.T) {
		repo := newMockRepo()
		svc, _ := newTestRoleService(repo)
		repo.findAssocErr = errors.New("connection refused")
		if svc.IsOverridden(ctx, "u1") {
			t.Error("unreadable flag should read as not overridden")
		}
	})
}

func TestRoleService_ResetOverride(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepo()
	svc, _ := newTestRoleService(repo)

	repo.associations[repo.assocKey("u1", models.ProviderCasdoor)] = &models.SSOAssociation{
		UserID: "u1", Provider: models.ProviderCasdoor,
		ManuallyOverridden: true,
		ExtraData:          datatypes.JSONMap{models.LegacyOverrideKey: true},
	}

	if err := svc.ResetOverride(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assoc := repo.associations[repo.assocKey("u1", models.ProviderCasdoor)]
	if assoc.ManuallyOverridden {
		t.Error("column flag should be cleared")
	}
	if _, ok := assoc.ExtraData[models.LegacyOverrideKey]; ok {
		t.Error("legacy marker should be removed on reset")
	}

	if err := svc.ResetOverride(ctx, "ghost"); !errors.Is(err, ErrNoAssociation) {
		t.Errorf("expected ErrNoAssociation, got %v", err)
	}
}
