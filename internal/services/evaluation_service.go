package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/evaluation-service/internal/events"
	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/notification"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

type evaluationService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	notifier       notification.Notifier
}

func NewEvaluationService(repo repositories.Repository, logger *slog.Logger, v *validator.Validator, publisher events.EventPublisher, notifier notification.Notifier) EvaluationService {
	return &evaluationService{
		repo:           repo,
		logger:         logger,
		validator:      v,
		eventPublisher: publisher,
		notifier:       notifier,
	}
}

// ===== CYCLE CRUD =====

func (s *evaluationService) CreateCycle(ctx context.Context, req *validator.CycleCreateRequest, createdBy string) (*models.EvaluationCycle, error) {
	if errs := s.validator.GetBusinessValidator().ValidateCycleCreate(req); errs.HasErrors() {
		return nil, errs
	}

	if _, err := s.repo.Questionnaire().GetByID(ctx, req.QuestionnaireID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionnaireNotFound
		}
		return nil, fmt.Errorf("failed to load questionnaire: %w", err)
	}

	cycle := &models.EvaluationCycle{
		Name:            req.Name,
		QuestionnaireID: req.QuestionnaireID,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		SendReminders:   req.SendReminders,
		CreatedBy:       createdBy,
	}

	var createdSections []uint
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Cycle().Create(ctx, cycle); err != nil {
			return fmt.Errorf("failed to create cycle: %w", err)
		}
		if len(req.SectionIDs) > 0 {
			if err := txRepo.Cycle().AttachSections(ctx, cycle.ID, req.SectionIDs); err != nil {
				return err
			}
			var genErr error
			_, createdSections, genErr = s.generateForSections(ctx, txRepo, cycle, req.SectionIDs)
			return genErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventCycleCreated, events.SectionsChangedEvent{
		CycleID:    cycle.ID,
		SectionIDs: req.SectionIDs,
	})

	s.logger.Info("Evaluation cycle created",
		"cycle_id", cycle.ID,
		"name", cycle.Name,
		"sections", len(req.SectionIDs),
		"created_by", createdBy)

	// Reminders go out after commit so a rollback never leaves students
	// notified about evaluations that do not exist.
	if cycle.SendReminders && len(createdSections) > 0 {
		s.notifySections(ctx, cycle, createdSections)
	}

	return s.GetCycle(ctx, cycle.ID)
}

func (s *evaluationService) UpdateCycle(ctx context.Context, cycleID uint, req *validator.CycleUpdateRequest, userID string) (*models.EvaluationCycle, error) {
	cycle, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	if errs := s.validator.GetBusinessValidator().ValidateCycleUpdate(req, cycle); errs.HasErrors() {
		return nil, errs
	}

	if req.Name != nil {
		cycle.Name = *req.Name
	}
	if req.StartsAt != nil {
		cycle.StartsAt = *req.StartsAt
	}
	if req.EndsAt != nil {
		cycle.EndsAt = *req.EndsAt
	}
	if req.SendReminders != nil {
		cycle.SendReminders = *req.SendReminders
	}

	if err := s.repo.Cycle().Update(ctx, cycle); err != nil {
		return nil, err
	}

	// Every non-create save re-syncs evaluations with the section set, so
	// memberships edited out-of-band still converge.
	if _, err := s.Backfill(ctx, cycleID); err != nil {
		s.logger.Error("Backfill after cycle update failed",
			"cycle_id", cycleID, "error", err)
	}

	s.logger.Info("Evaluation cycle updated", "cycle_id", cycleID, "updated_by", userID)

	return s.GetCycle(ctx, cycleID)
}

func (s *evaluationService) GetCycle(ctx context.Context, cycleID uint) (*models.EvaluationCycle, error) {
	return s.loadCycle(ctx, cycleID)
}

func (s *evaluationService) ListCycles(ctx context.Context, filters repositories.CycleFilters) ([]*models.EvaluationCycle, int64, error) {
	return s.repo.Cycle().List(ctx, filters)
}

func (s *evaluationService) GetCycleStats(ctx context.Context, cycleID uint) (*CycleStatsResponse, error) {
	if _, err := s.loadCycle(ctx, cycleID); err != nil {
		return nil, err
	}

	stats, err := s.repo.Evaluation().Stats(ctx, cycleID)
	if err != nil {
		return nil, err
	}

	return &CycleStatsResponse{
		CycleID:          cycleID,
		TotalEvaluations: stats.TotalEvaluations,
		StatusBreakdown:  stats.StatusBreakdown,
		TotalResponses:   stats.TotalResponses,
	}, nil
}

// ===== SECTION MEMBERSHIP / GENERATOR =====

func (s *evaluationService) AttachSections(ctx context.Context, cycleID uint, sectionIDs []uint, userID string) ([]string, error) {
	cycle, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if cycle.Ended(time.Now()) {
		return nil, ErrCycleEnded
	}

	var messages []string
	var createdSections []uint
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Cycle().AttachSections(ctx, cycleID, sectionIDs); err != nil {
			return err
		}
		var genErr error
		messages, createdSections, genErr = s.generateForSections(ctx, txRepo, cycle, sectionIDs)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventCycleSectionsAdded, events.SectionsChangedEvent{
		CycleID:    cycleID,
		SectionIDs: sectionIDs,
	})

	// Only freshly generated evaluations trigger notices. Re-attaching a
	// section that already has one must not re-mail its students.
	if cycle.SendReminders && len(createdSections) > 0 {
		s.notifySections(ctx, cycle, createdSections)
	}

	s.logger.Info("Sections attached to cycle",
		"cycle_id", cycleID, "sections", len(sectionIDs), "user_id", userID)

	return messages, nil
}

func (s *evaluationService) DetachSections(ctx context.Context, cycleID uint, sectionIDs []uint, userID string) ([]string, error) {
	if _, err := s.loadCycle(ctx, cycleID); err != nil {
		return nil, err
	}

	var messages []string
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Cycle().DetachSections(ctx, cycleID, sectionIDs); err != nil {
			return err
		}

		for _, sectionID := range sectionIDs {
			eval, err := txRepo.Evaluation().GetByKey(ctx, repositories.EvaluationKey{
				CycleID:   cycleID,
				SectionID: sectionID,
			})
			if err != nil {
				if repositories.IsNotFoundError(err) {
					continue
				}
				return err
			}

			count, err := txRepo.Response().CountByEvaluation(ctx, eval.ID)
			if err != nil {
				return err
			}
			if count > 0 {
				// Recorded responses make the evaluation permanent
				messages = append(messages, fmt.Sprintf(
					"kept evaluation %d for section %d: %d responses recorded", eval.ID, sectionID, count))
				continue
			}

			if err := txRepo.Evaluation().Delete(ctx, eval.ID); err != nil {
				return err
			}
			messages = append(messages, fmt.Sprintf("removed evaluation %d for section %d", eval.ID, sectionID))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventCycleSectionsRemoved, events.SectionsChangedEvent{
		CycleID:    cycleID,
		SectionIDs: sectionIDs,
	})

	s.logger.Info("Sections detached from cycle",
		"cycle_id", cycleID, "sections", len(sectionIDs), "user_id", userID)

	return messages, nil
}

// generateForSections creates the missing evaluation rows for the given
// sections. Idempotent: existing rows are left alone. The second return
// value lists only the sections that actually got a new evaluation, so
// callers can scope notifications to real creations.
func (s *evaluationService) generateForSections(ctx context.Context, repo repositories.Repository, cycle *models.EvaluationCycle, sectionIDs []uint) ([]string, []uint, error) {
	sections, err := repo.Section().GetByIDs(ctx, sectionIDs)
	if err != nil {
		return nil, nil, err
	}
	if len(sections) != len(sectionIDs) {
		return nil, nil, ErrSectionNotFound
	}

	var messages []string
	var createdSections []uint
	for _, section := range sections {
		eval := &models.Evaluation{
			CycleID:     cycle.ID,
			SectionID:   section.ID,
			ProfessorID: section.ProfessorID,
			SubjectID:   section.SubjectID,
			Status:      models.EvaluationPending,
		}

		created, err := repo.Evaluation().GetOrCreate(ctx, eval)
		if err != nil {
			return messages, createdSections, fmt.Errorf("failed to create evaluation for section %d: %w", section.ID, err)
		}
		if !created {
			continue
		}

		messages = append(messages, fmt.Sprintf(
			"created evaluation %d for section %d (professor %s)", eval.ID, section.ID, section.ProfessorID))
		createdSections = append(createdSections, section.ID)

		s.publish(ctx, events.EventEvaluationCreated, events.EvaluationCreatedEvent{
			EvaluationID: eval.ID,
			CycleID:      cycle.ID,
			SectionID:    section.ID,
			ProfessorID:  section.ProfessorID,
		})
	}

	return messages, createdSections, nil
}

// notifySections sends one notice per actively enrolled student. Each send
// failure is logged and skipped; one bad address never blocks the rest.
func (s *evaluationService) notifySections(ctx context.Context, cycle *models.EvaluationCycle, sectionIDs []uint) {
	sections, err := s.repo.Section().GetByIDs(ctx, sectionIDs)
	if err != nil {
		s.logger.Error("Failed to load sections for notification",
			"cycle_id", cycle.ID, "error", err)
		return
	}

	for _, section := range sections {
		studentIDs, err := s.repo.Enrollment().ListActiveBySection(ctx, section.ID)
		if err != nil {
			s.logger.Error("Failed to list enrollments for notification",
				"section_id", section.ID, "error", err)
			continue
		}

		students, err := s.repo.User().GetByIDs(ctx, studentIDs)
		if err != nil {
			s.logger.Error("Failed to load students for notification",
				"section_id", section.ID, "error", err)
			continue
		}

		for _, student := range students {
			notice := &notification.EvaluationNotice{
				Student:     student,
				CycleName:   cycle.Name,
				SubjectName: section.Subject.Name,
				EndsAt:      cycle.EndsAt.Format("2006-01-02 15:04"),
			}
			if err := s.notifier.SendEvaluationNotice(ctx, notice); err != nil {
				s.logger.Error("Failed to send evaluation notice, skipping recipient",
					"student_id", student.ID,
					"section_id", section.ID,
					"error", err)
			}
		}
	}
}

// ===== BACKFILL / EXPIRY =====

func (s *evaluationService) Backfill(ctx context.Context, cycleID uint) (int, error) {
	cycle, err := s.loadCycle(ctx, cycleID)
	if err != nil {
		return 0, err
	}

	sectionIDs, err := s.repo.Cycle().SectionIDs(ctx, cycleID)
	if err != nil {
		return 0, err
	}
	if len(sectionIDs) == 0 {
		return 0, nil
	}

	var created int
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		_, createdSections, genErr := s.generateForSections(ctx, txRepo, cycle, sectionIDs)
		created = len(createdSections)
		return genErr
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		s.logger.Info("Backfill created missing evaluations",
			"cycle_id", cycleID, "created", created)
	}

	return created, nil
}

func (s *evaluationService) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	overdue, err := s.repo.Evaluation().ListOverdue(ctx, now)
	if err != nil {
		return 0, err
	}

	var expired int
	for _, eval := range overdue {
		if !eval.Status.CanTransitionTo(models.EvaluationExpired) {
			continue
		}
		if err := s.repo.Evaluation().UpdateStatus(ctx, eval.ID, models.EvaluationExpired); err != nil {
			s.logger.Error("Failed to expire evaluation, skipping",
				"evaluation_id", eval.ID, "error", err)
			continue
		}
		expired++

		s.publish(ctx, events.EventEvaluationExpired, events.EvaluationCreatedEvent{
			EvaluationID: eval.ID,
			CycleID:      eval.CycleID,
			SectionID:    eval.SectionID,
			ProfessorID:  eval.ProfessorID,
		})
	}

	if expired > 0 {
		s.logger.Info("Expired overdue evaluations", "count", expired)
	}

	return expired, nil
}

// ===== RESPONSES =====

func (s *evaluationService) SubmitResponse(ctx context.Context, studentID string, req *validator.ResponseSubmitRequest) error {
	if errs := s.validator.Validate(req); errs.HasErrors() {
		return errs
	}

	return s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		eval, err := s.loadEvaluation(ctx, txRepo, req.EvaluationID)
		if err != nil {
			return err
		}

		cycle, err := txRepo.Cycle().GetByID(ctx, eval.CycleID)
		if err != nil {
			return err
		}
		if cycle.Ended(time.Now()) {
			return ErrCycleEnded
		}

		enrolled, err := txRepo.Enrollment().ListActiveBySection(ctx, eval.SectionID)
		if err != nil {
			return err
		}
		if !contains(enrolled, studentID) {
			return NewPermissionError(studentID, fmt.Sprint(eval.ID), "evaluation", "respond",
				"student is not actively enrolled in this section")
		}

		response := &models.EvaluationResponse{
			EvaluationID: eval.ID,
			StudentID:    studentID,
			Answers:      datatypes.JSONMap(req.Answers),
		}
		if err := txRepo.Response().Create(ctx, response); err != nil {
			if repositories.IsDuplicateKeyError(err) {
				return ErrAlreadyResponded
			}
			return err
		}

		return s.advanceStatus(ctx, txRepo, eval, len(enrolled))
	})
}

// advanceStatus moves pending to in_progress on the first response and to
// completed once every actively enrolled student has responded.
func (s *evaluationService) advanceStatus(ctx context.Context, repo repositories.Repository, eval *models.Evaluation, enrolledCount int) error {
	count, err := repo.Response().CountByEvaluation(ctx, eval.ID)
	if err != nil {
		return err
	}

	status := eval.Status
	if status == models.EvaluationPending && count > 0 {
		if err := repo.Evaluation().UpdateStatus(ctx, eval.ID, models.EvaluationInProgress); err != nil {
			return err
		}
		status = models.EvaluationInProgress
	}
	if status == models.EvaluationInProgress && enrolledCount > 0 && count >= int64(enrolledCount) {
		return repo.Evaluation().UpdateStatus(ctx, eval.ID, models.EvaluationCompleted)
	}
	return nil
}

func (s *evaluationService) ListEvaluations(ctx context.Context, filters repositories.EvaluationFilters) ([]*models.Evaluation, int64, error) {
	return s.repo.Evaluation().List(ctx, filters)
}

// ===== HELPERS =====

func (s *evaluationService) loadCycle(ctx context.Context, cycleID uint) (*models.EvaluationCycle, error) {
	cycle, err := s.repo.Cycle().GetByID(ctx, cycleID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("failed to load cycle: %w", err)
	}
	return cycle, nil
}

func (s *evaluationService) loadEvaluation(ctx context.Context, repo repositories.Repository, id uint) (*models.Evaluation, error) {
	eval, err := repo.Evaluation().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrEvaluationNotFound
		}
		return nil, err
	}
	return eval, nil
}

func (s *evaluationService) publish(ctx context.Context, eventType string, data interface{}) {
	event := events.NewEvent(eventType, data)
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", eventType, "error", err)
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
