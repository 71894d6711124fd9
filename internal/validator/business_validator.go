package validator

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/evaluation-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateCycleCreate validates cycle creation business rules
func (bv *BusinessValidator) ValidateCycleCreate(req *CycleCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateCycleWindow(req.StartsAt, req.EndsAt)...)

	return errors
}

// ValidateCycleUpdate validates cycle update business rules
func (bv *BusinessValidator) ValidateCycleUpdate(req *CycleUpdateRequest, existing *models.EvaluationCycle) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	startsAt := existing.StartsAt
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
	}
	endsAt := existing.EndsAt
	if req.EndsAt != nil {
		endsAt = *req.EndsAt
	}
	errors = append(errors, bv.validateCycleWindow(startsAt, endsAt)...)

	// A cycle that already ended cannot be re-opened by stretching its window
	if existing.Ended(time.Now()) && req.EndsAt != nil && req.EndsAt.After(existing.EndsAt) {
		errors = append(errors, ValidationError{
			Field:   "ends_at",
			Message: "cannot extend a cycle that already ended",
			Value:   req.EndsAt,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateRoleChange validates an admin role-change request
func (bv *BusinessValidator) ValidateRoleChange(req *RoleChangeRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if !models.ValidRole(req.Role) {
		errors = append(errors, ValidationError{
			Field:   "role",
			Message: fmt.Sprintf("unknown role %q", req.Role),
			Value:   req.Role,
			Rule:    "user_role",
		})
	}

	return errors
}

// ValidateStatusTransition validates evaluation status transitions
func (bv *BusinessValidator) ValidateStatusTransition(current, next models.EvaluationStatus) ValidationErrors {
	var errors ValidationErrors

	if !current.CanTransitionTo(next) {
		errors = append(errors, ValidationError{
			Field:   "status",
			Message: fmt.Sprintf("cannot transition from %s to %s", current, next),
			Value:   next,
			Rule:    "status_transition",
		})
	}

	return errors
}

// ValidateEvaluationDelete validates whether an evaluation can be removed.
// Anything with recorded responses is permanent.
func (bv *BusinessValidator) ValidateEvaluationDelete(responseCount int64) ValidationErrors {
	var errors ValidationErrors

	if responseCount > 0 {
		errors = append(errors, ValidationError{
			Field:   "responses",
			Message: "cannot delete evaluation with recorded responses",
			Value:   responseCount,
			Rule:    "business_logic",
		})
	}

	return errors
}

func (bv *BusinessValidator) validateCycleWindow(startsAt, endsAt time.Time) ValidationErrors {
	var errors ValidationErrors

	if !endsAt.After(startsAt) {
		errors = append(errors, ValidationError{
			Field:   "ends_at",
			Message: "must be after starts_at",
			Value:   endsAt,
			Rule:    "business_logic",
		})
	}

	if endsAt.Sub(startsAt) < 24*time.Hour {
		errors = append(errors, ValidationError{
			Field:   "ends_at",
			Message: "cycle window must be at least one day",
			Value:   endsAt,
			Rule:    "business_logic",
		})
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// One of the four managed role tags
	bv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return models.ValidRole(fl.Field().String())
	})

	// Class section shift
	bv.validate.RegisterValidation("shift", func(fl validator.FieldLevel) bool {
		switch models.Shift(fl.Field().String()) {
		case models.ShiftMorning, models.ShiftAfternoon, models.ShiftEvening:
			return true
		}
		return false
	})

	// Cycle name validation (1-200 characters after trimming)
	bv.validate.RegisterValidation("cycle_name", func(fl validator.FieldLevel) bool {
		name := strings.TrimSpace(fl.Field().String())
		return len(name) >= 1 && len(name) <= 200
	})

	// Question order within a questionnaire (1-100)
	bv.validate.RegisterValidation("question_order", func(fl validator.FieldLevel) bool {
		order := fl.Field().Int()
		return order >= 1 && order <= 100
	})
}
