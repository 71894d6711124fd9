package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
	"github.com/SAP-F-2025/evaluation-service/internal/repositories"
	"github.com/SAP-F-2025/evaluation-service/internal/validator"
)

// ===== ROLE SERVICE =====

// SetRoleOptions controls how a role change is applied
type SetRoleOptions struct {
	// MarkOverride flags the user's SSO association so later logins stop
	// auto-managing the role. Set on the admin form path, never on the SSO
	// path.
	MarkOverride bool

	// ChangedBy is the acting user, for events and audit logging
	ChangedBy string
}

// RoleService owns role tags and the profile reconciliation they imply
type RoleService interface {
	// Reconcile aligns profile rows with the target role inside the given
	// repository view (pass a transaction-scoped repo to make it atomic).
	// It never touches the role store. Returned strings describe each real
	// mutation; an already-consistent user yields none.
	Reconcile(ctx context.Context, repo repositories.Repository, user *models.User, target models.UserRole) ([]string, error)

	// SetRole is the single mutation funnel: removes all managed tags
	// (best-effort, each removal isolated), assigns the target tag, and
	// reconciles profiles in one transaction.
	SetRole(ctx context.Context, userID string, target models.UserRole, opts SetRoleOptions) ([]string, error)

	// EffectiveRole reports the user's current tag, "" when none
	EffectiveRole(ctx context.Context, userID string) (models.UserRole, error)

	// Manual override flag operations
	MarkOverride(ctx context.Context, userID string) error
	ResetOverride(ctx context.Context, userID string) error
	IsOverridden(ctx context.Context, userID string) bool
	ListOverridden(ctx context.Context) ([]string, error)
}

// ===== SSO LOGIN SERVICE =====

// SSOLoginService applies post-login role policy. It never fails the login:
// every internal error is logged and swallowed.
type SSOLoginService interface {
	// ProcessLogin runs the guard cascade and, when it passes, derives a
	// role from the SSO classification and applies it through the role
	// service.
	ProcessLogin(ctx context.Context, user *models.User, provider string, payload map[string]interface{})
}

// ===== EVALUATION SERVICE =====

// CycleStatsResponse is the per-cycle progress summary
type CycleStatsResponse struct {
	CycleID          uint                              `json:"cycle_id"`
	TotalEvaluations int64                             `json:"total_evaluations"`
	StatusBreakdown  map[models.EvaluationStatus]int64 `json:"status_breakdown"`
	TotalResponses   int64                             `json:"total_responses"`
}

// EvaluationService owns cycles and the auto-evaluation generator
type EvaluationService interface {
	CreateCycle(ctx context.Context, req *validator.CycleCreateRequest, createdBy string) (*models.EvaluationCycle, error)
	UpdateCycle(ctx context.Context, cycleID uint, req *validator.CycleUpdateRequest, userID string) (*models.EvaluationCycle, error)
	GetCycle(ctx context.Context, cycleID uint) (*models.EvaluationCycle, error)
	ListCycles(ctx context.Context, filters repositories.CycleFilters) ([]*models.EvaluationCycle, int64, error)
	GetCycleStats(ctx context.Context, cycleID uint) (*CycleStatsResponse, error)

	// Section membership changes drive the generator
	AttachSections(ctx context.Context, cycleID uint, sectionIDs []uint, userID string) ([]string, error)
	DetachSections(ctx context.Context, cycleID uint, sectionIDs []uint, userID string) ([]string, error)

	// Backfill creates any evaluation missing for the cycle's current
	// sections. Idempotent with AttachSections; zero work is fine.
	Backfill(ctx context.Context, cycleID uint) (int, error)

	// ExpireOverdue marks pending/in-progress evaluations of ended cycles
	// as expired. Returns how many were expired.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)

	// SubmitResponse records a student's answers and advances the
	// evaluation status.
	SubmitResponse(ctx context.Context, studentID string, req *validator.ResponseSubmitRequest) error

	ListEvaluations(ctx context.Context, filters repositories.EvaluationFilters) ([]*models.Evaluation, int64, error)
}

// ===== MAINTENANCE SERVICE =====

// RepairFinding is one diagnosed role/profile inconsistency
type RepairFinding struct {
	UserID  string          `json:"user_id"`
	Role    models.UserRole `json:"role"`
	Problem string          `json:"problem"`
	Fixed   bool            `json:"fixed"`
}

// BackfillReport summarizes a backfill sweep
type BackfillReport struct {
	CyclesScanned      int `json:"cycles_scanned"`
	EvaluationsCreated int `json:"evaluations_created"`
}

// ImportReport summarizes a roster import
type ImportReport struct {
	RowsRead        int      `json:"rows_read"`
	EnrollmentsNew  int      `json:"enrollments_new"`
	EnrollmentsSkip int      `json:"enrollments_skipped"`
	Errors          []string `json:"errors,omitempty"`
}

// MaintenanceService hosts the batch operations the admin CLI drives
type MaintenanceService interface {
	// Repair sweeps all users and reports role/profile mismatches. With
	// dryRun it only diagnoses; otherwise it reconciles each finding.
	Repair(ctx context.Context, dryRun bool) ([]RepairFinding, error)

	// BackfillAll backfills one cycle, or every cycle when cycleID is nil
	BackfillAll(ctx context.Context, cycleID *uint, dryRun bool) (*BackfillReport, error)

	// ImportEnrollments reads an xlsx roster (student ID in the first
	// column) and enrolls each student into the section.
	ImportEnrollments(ctx context.Context, r io.Reader, sectionID uint, dryRun bool) (*ImportReport, error)
}

// ===== USER SERVICE =====

// UserService wraps identity reads and the soft-disable lifecycle
type UserService interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListUsers(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error)

	// Deactivate soft-disables the account: strips all role tags
	// (best-effort), drops both profiles, anonymizes the local mirror.
	// History rows survive.
	Deactivate(ctx context.Context, userID, requestedBy string) error
}

// ===== SERVICE MANAGER =====

// ServiceManager provides access to all services with lifecycle management
type ServiceManager interface {
	Role() RoleService
	SSOLogin() SSOLoginService
	Evaluation() EvaluationService
	Maintenance() MaintenanceService
	User() UserService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
