package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
)

const repairPageSize = 100

type maintenanceService struct {
	repo       repositories.Repository
	roles      RoleService
	evaluation EvaluationService
	logger     *slog.Logger
}

func NewMaintenanceService(repo repositories.Repository, roles RoleService, evaluation EvaluationService, logger *slog.Logger) MaintenanceService {
	return &maintenanceService{
		repo:       repo,
		roles:      roles,
		evaluation: evaluation,
		logger:     logger,
	}
}

// ===== PROFILE CONSISTENCY SWEEP =====

// Repair walks every user and diagnoses role/profile mismatches. Failures
// on individual users are logged and skipped so one bad record never
// aborts the sweep.
func (s *maintenanceService) Repair(ctx context.Context, dryRun bool) ([]RepairFinding, error) {
	var findings []RepairFinding

	offset := 0
	for {
		users, total, err := s.repo.User().List(ctx, repositories.UserFilters{
			Limit:  repairPageSize,
			Offset: offset,
		})
		if err != nil {
			return findings, fmt.Errorf("failed to list users: %w", err)
		}

		for _, user := range users {
			finding, err := s.diagnose(ctx, user)
			if err != nil {
				s.logger.Error("Repair sweep skipped user",
					"user_id", user.ID, "error", err)
				continue
			}
			if finding == nil {
				continue
			}

			if !dryRun && finding.Role != "" {
				if err := s.fix(ctx, user, finding.Role); err != nil {
					s.logger.Error("Repair failed for user, continuing",
						"user_id", user.ID, "error", err)
				} else {
					finding.Fixed = true
				}
			}

			findings = append(findings, *finding)
		}

		offset += len(users)
		if int64(offset) >= total || len(users) == 0 {
			break
		}
	}

	s.logger.Info("Repair sweep finished",
		"findings", len(findings), "dry_run", dryRun)

	return findings, nil
}

func (s *maintenanceService) diagnose(ctx context.Context, user *models.User) (*RepairFinding, error) {
	role, err := s.roles.EffectiveRole(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to read role: %w", err)
	}

	hasStudent, err := s.repo.StudentProfile().ExistsByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	hasProfessor, err := s.repo.ProfessorProfile().ExistsByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	switch {
	case role == "":
		if hasStudent || hasProfessor {
			// No role to reconcile against; report only
			return &RepairFinding{
				UserID:  user.ID,
				Problem: "profiles present but no role assigned",
			}, nil
		}
		return nil, nil

	case role == models.RoleStudent:
		if !hasStudent {
			return &RepairFinding{UserID: user.ID, Role: role, Problem: "student role without student profile"}, nil
		}
		if hasProfessor {
			return &RepairFinding{UserID: user.ID, Role: role, Problem: "student role with professor profile"}, nil
		}

	case role.RequiresProfessorProfile():
		if !hasProfessor {
			return &RepairFinding{UserID: user.ID, Role: role, Problem: fmt.Sprintf("%s role without professor profile", role)}, nil
		}
		if hasStudent {
			return &RepairFinding{UserID: user.ID, Role: role, Problem: fmt.Sprintf("%s role with student profile", role)}, nil
		}

	case role == models.RoleAdmin:
		if hasStudent || hasProfessor {
			return &RepairFinding{UserID: user.ID, Role: role, Problem: "admin with leftover profiles"}, nil
		}
	}

	return nil, nil
}

func (s *maintenanceService) fix(ctx context.Context, user *models.User, role models.UserRole) error {
	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		messages, err := s.roles.Reconcile(ctx, txRepo, user, role)
		for _, msg := range messages {
			s.logger.Info("Repair: " + msg)
		}
		return err
	})
}

// ===== BACKFILL =====

func (s *maintenanceService) BackfillAll(ctx context.Context, cycleID *uint, dryRun bool) (*BackfillReport, error) {
	report := &BackfillReport{}

	var cycles []*models.EvaluationCycle
	if cycleID != nil {
		cycle, err := s.evaluation.GetCycle(ctx, *cycleID)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, cycle)
	} else {
		offset := 0
		for {
			page, total, err := s.repo.Cycle().List(ctx, repositories.CycleFilters{
				Limit:  repairPageSize,
				Offset: offset,
			})
			if err != nil {
				return nil, err
			}
			cycles = append(cycles, page...)
			offset += len(page)
			if int64(offset) >= total || len(page) == 0 {
				break
			}
		}
	}

	for _, cycle := range cycles {
		report.CyclesScanned++

		if dryRun {
			missing, err := s.countMissing(ctx, cycle.ID)
			if err != nil {
				s.logger.Error("Backfill dry-run skipped cycle",
					"cycle_id", cycle.ID, "error", err)
				continue
			}
			report.EvaluationsCreated += missing
			continue
		}

		created, err := s.evaluation.Backfill(ctx, cycle.ID)
		if err != nil {
			s.logger.Error("Backfill skipped cycle",
				"cycle_id", cycle.ID, "error", err)
			continue
		}
		report.EvaluationsCreated += created
	}

	return report, nil
}

func (s *maintenanceService) countMissing(ctx context.Context, cycleID uint) (int, error) {
	sectionIDs, err := s.repo.Cycle().SectionIDs(ctx, cycleID)
	if err != nil {
		return 0, err
	}

	existing, err := s.repo.Evaluation().ListByCycle(ctx, cycleID)
	if err != nil {
		return 0, err
	}

	have := make(map[uint]bool, len(existing))
	for _, eval := range existing {
		have[eval.SectionID] = true
	}

	missing := 0
	for _, id := range sectionIDs {
		if !have[id] {
			missing++
		}
	}
	return missing, nil
}

// ===== ROSTER IMPORT =====

// ImportEnrollments reads an xlsx roster and enrolls each student listed
// in the first column into the section. A header row is detected and
// skipped when its first cell is not a known user.
func (s *maintenanceService) ImportEnrollments(ctx context.Context, r io.Reader, sectionID uint, dryRun bool) (*ImportReport, error) {
	if _, err := s.repo.Section().GetByID(ctx, sectionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSectionNotFound
		}
		return nil, err
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster sheet: %w", err)
	}

	report := &ImportReport{}
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		studentID := strings.TrimSpace(row[0])
		report.RowsRead++

		exists, err := s.repo.User().ExistsByID(ctx, studentID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: lookup failed for %s: %v", i+1, studentID, err))
			continue
		}
		if !exists {
			if i == 0 {
				// First row with an unknown value is treated as a header
				report.RowsRead--
				continue
			}
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: unknown user %s", i+1, studentID))
			continue
		}

		if dryRun {
			report.EnrollmentsNew++
			continue
		}

		enrollment := &models.Enrollment{
			SectionID: sectionID,
			StudentID: studentID,
			Status:    models.EnrollmentActive,
		}
		created, err := s.repo.Enrollment().GetOrCreate(ctx, enrollment)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: enroll failed for %s: %v", i+1, studentID, err))
			continue
		}
		if created {
			report.EnrollmentsNew++
		} else {
			report.EnrollmentsSkip++
		}
	}

	s.logger.Info("Roster import finished",
		"section_id", sectionID,
		"rows", report.RowsRead,
		"new", report.EnrollmentsNew,
		"skipped", report.EnrollmentsSkip,
		"errors", len(report.Errors),
		"dry_run", dryRun)

	return report, nil
}
