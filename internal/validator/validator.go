package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes a single failed rule on one field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every failed rule for one request
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// HasErrors reports whether any validation failed
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ToValidationErrors converts go-playground validator errors to our format
func ToValidationErrors(err error) ValidationErrors {
	if err == nil {
		return nil
	}

	var errors ValidationErrors

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return ValidationErrors{{
			Field:   "request",
			Message: err.Error(),
			Rule:    "invalid",
		}}
	}

	for _, fieldErr := range validationErrs {
		errors = append(errors, ValidationError{
			Field:   strings.ToLower(fieldErr.Field()),
			Message: messageForTag(fieldErr),
			Value:   fieldErr.Value(),
			Rule:    fieldErr.Tag(),
		})
	}

	return errors
}

func messageForTag(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fieldErr.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", strings.ToLower(fieldErr.Param()))
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fieldErr.Param())
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}

// Validator is the top-level entry point services and handlers share
type Validator struct {
	business *BusinessValidator
}

// New creates a validator with all business rules registered
func New() *Validator {
	return &Validator{
		business: NewBusinessValidator(),
	}
}

// Validate runs struct-tag validation on any request
func (v *Validator) Validate(s interface{}) ValidationErrors {
	return v.business.Validate(s)
}

// GetBusinessValidator exposes the business validator for rule-specific checks
func (v *Validator) GetBusinessValidator() *BusinessValidator {
	return v.business
}
