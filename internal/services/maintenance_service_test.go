package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

func newTestMaintenanceService(repo *mockRepo) MaintenanceService {
	roles, _ := newTestRoleService(repo)
	evaluation, _, _ := newTestEvaluationService(repo)
	return NewMaintenanceService(repo, roles, evaluation, testLogger())
}

// rosterFile builds an xlsx with one value per row in the first column.
func rosterFile(t *testing.T, cells ...string) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, cell := range cells {
		if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", i+1), cell); err != nil {
			t.Fatalf("failed to build roster: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to serialize roster: %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestMaintenanceService_Repair(t *testing.T) {
	ctx := context.Background()

	t.Run("dry run reports without fixing", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addUser("u1", "maria", nil)
		repo.setRoleTag("u1", models.RoleStudent)

		findings, err := svc.Repair(ctx, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(findings))
		}
		if findings[0].Fixed {
			t.Error("dry run must not mark findings fixed")
		}
		if _, ok := repo.studentProfiles["u1"]; ok {
			t.Error("dry run must not create profiles")
		}
	})

	t.Run("fixes a missing student profile", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addUser("u1", "maria", nil)
		repo.setRoleTag("u1", models.RoleStudent)

		findings, err := svc.Repair(ctx, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 1 || !findings[0].Fixed {
			t.Fatalf("expected 1 fixed finding, got %+v", findings)
		}
		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("student profile should be created")
		}
	})

	t.Run("removes a conflicting profile", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addUser("u1", "joao", nil)
		repo.setRoleTag("u1", models.RoleProfessor)
		repo.professorProfiles["u1"] = &models.ProfessorProfile{UserID: "u1"}
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}

		findings, err := svc.Repair(ctx, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 1 || !findings[0].Fixed {
			t.Fatalf("expected 1 fixed finding, got %+v", findings)
		}
		if _, ok := repo.studentProfiles["u1"]; ok {
			t.Error("student profile should be removed for a professor")
		}
	})

	t.Run("profiles without a role are report-only", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addUser("u1", "maria", nil)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}

		findings, err := svc.Repair(ctx, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 1 {
			t.Fatalf("expected 1 finding, got %d", len(findings))
		}
		if findings[0].Fixed {
			t.Error("nothing to reconcile against, must not be marked fixed")
		}
		if _, ok := repo.studentProfiles["u1"]; !ok {
			t.Error("orphan profile must be left for a human to review")
		}
	})

	t.Run("consistent users produce no findings", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addUser("u1", "maria", nil)
		repo.setRoleTag("u1", models.RoleStudent)
		repo.studentProfiles["u1"] = &models.StudentProfile{UserID: "u1"}
		repo.addUser("u2", "ana", nil)
		repo.setRoleTag("u2", models.RoleCoordinator)
		repo.professorProfiles["u2"] = &models.ProfessorProfile{UserID: "u2"}

		findings, err := svc.Repair(ctx, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(findings) != 0 {
			t.Errorf("expected no findings, got %+v", findings)
		}
	})
}

func TestMaintenanceService_BackfillAll(t *testing.T) {
	ctx := context.Background()
	start := time.Now().Add(time.Hour)
	end := start.Add(72 * time.Hour)

	t.Run("dry run counts without creating", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addCycle(1, start, end)
		repo.addSection(10, "prof-1", 1)
		repo.addSection(11, "prof-2", 2)
		repo.cycleSections[1] = []uint{10, 11}

		report, err := svc.BackfillAll(ctx, nil, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.CyclesScanned != 1 || report.EvaluationsCreated != 2 {
			t.Errorf("report = %+v, want 1 cycle and 2 missing", report)
		}
		if len(repo.evaluations) != 0 {
			t.Error("dry run must not create evaluations")
		}
	})

	t.Run("creates missing evaluations across cycles", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addCycle(1, start, end)
		repo.addCycle(2, start, end)
		repo.addSection(10, "prof-1", 1)
		repo.addSection(11, "prof-2", 2)
		repo.cycleSections[1] = []uint{10}
		repo.cycleSections[2] = []uint{10, 11}

		report, err := svc.BackfillAll(ctx, nil, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.CyclesScanned != 2 || report.EvaluationsCreated != 3 {
			t.Errorf("report = %+v, want 2 cycles and 3 created", report)
		}
		if len(repo.evaluations) != 3 {
			t.Errorf("expected 3 evaluations, got %d", len(repo.evaluations))
		}
	})

	t.Run("scopes to one cycle", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addCycle(1, start, end)
		repo.addCycle(2, start, end)
		repo.addSection(10, "prof-1", 1)
		repo.cycleSections[1] = []uint{10}
		repo.cycleSections[2] = []uint{10}

		target := uint(1)
		report, err := svc.BackfillAll(ctx, &target, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.CyclesScanned != 1 || report.EvaluationsCreated != 1 {
			t.Errorf("report = %+v, want 1 cycle and 1 created", report)
		}
	})
}

func TestMaintenanceService_ImportEnrollments(t *testing.T) {
	ctx := context.Background()

	t.Run("imports a roster with a header row", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addSection(10, "prof-1", 1)
		repo.addUser("s1", "maria", nil)
		repo.addUser("s2", "joao", nil)

		report, err := svc.ImportEnrollments(ctx,
			rosterFile(t, "student_id", "s1", "s2", "zz"), 10, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.RowsRead != 3 {
			t.Errorf("rows read = %d, want 3 (header excluded)", report.RowsRead)
		}
		if report.EnrollmentsNew != 2 {
			t.Errorf("new enrollments = %d, want 2", report.EnrollmentsNew)
		}
		if len(report.Errors) != 1 {
			t.Errorf("errors = %v, want 1 unknown user", report.Errors)
		}
		if len(repo.enrollments[10]) != 2 {
			t.Errorf("section should have 2 enrollments, got %d", len(repo.enrollments[10]))
		}
	})

	t.Run("dry run validates without enrolling", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addSection(10, "prof-1", 1)
		repo.addUser("s1", "maria", nil)

		report, err := svc.ImportEnrollments(ctx, rosterFile(t, "s1"), 10, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.EnrollmentsNew != 1 {
			t.Errorf("new enrollments = %d, want 1", report.EnrollmentsNew)
		}
		if len(repo.enrollments[10]) != 0 {
			t.Error("dry run must not enroll anyone")
		}
	})

	t.Run("repeated import counts skips", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)
		repo.addSection(10, "prof-1", 1)
		repo.addUser("s1", "maria", nil)
		repo.enroll(10, "s1")

		report, err := svc.ImportEnrollments(ctx, rosterFile(t, "s1"), 10, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.EnrollmentsNew != 0 || report.EnrollmentsSkip != 1 {
			t.Errorf("report = %+v, want 0 new and 1 skipped", report)
		}
	})

	t.Run("unknown section", func(t *testing.T) {
		repo := newMockRepo()
		svc := newTestMaintenanceService(repo)

		_, err := svc.ImportEnrollments(ctx, rosterFile(t, "s1"), 99, false)
		if !errors.Is(err, ErrSectionNotFound) {
			t.Errorf("expected ErrSectionNotFound, got %v", err)
		}
	})
}
