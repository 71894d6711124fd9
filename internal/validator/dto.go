package validator

import (
	"time"
)

// RoleChangeRequest is the admin form for assigning a role to a user
type RoleChangeRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,user_role"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// OverrideResetRequest clears the manual-override flag for a user
type OverrideResetRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Provider string `json:"provider" validate:"required"`
}

// CycleCreateRequest is the request structure for creating evaluation cycles
type CycleCreateRequest struct {
	Name            string    `json:"name" validate:"required,cycle_name"`
	QuestionnaireID uint      `json:"questionnaire_id" validate:"required"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	SendReminders   bool      `json:"send_reminders"`
	SectionIDs      []uint    `json:"section_ids" validate:"omitempty,dive,min=1"`
}

// CycleUpdateRequest is the request structure for updating evaluation cycles
type CycleUpdateRequest struct {
	Name          *string    `json:"name" validate:"omitempty,cycle_name"`
	StartsAt      *time.Time `json:"starts_at"`
	EndsAt        *time.Time `json:"ends_at"`
	SendReminders *bool      `json:"send_reminders"`
}

// SectionsChangeRequest attaches or detaches sections on a cycle
type SectionsChangeRequest struct {
	SectionIDs []uint `json:"section_ids" validate:"required,min=1,dive,min=1"`
}

// SectionCreateRequest creates a class section
type SectionCreateRequest struct {
	SubjectID   uint   `json:"subject_id" validate:"required"`
	TermID      uint   `json:"term_id" validate:"required"`
	Shift       string `json:"shift" validate:"required,shift"`
	ProfessorID string `json:"professor_id" validate:"required"`
}

// QuestionnaireCreateRequest creates a questionnaire with its questions
type QuestionnaireCreateRequest struct {
	Title     string                         `json:"title" validate:"required,min=1,max=200"`
	Questions []QuestionnaireQuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// QuestionnaireQuestionRequest is one question inside a questionnaire
type QuestionnaireQuestionRequest struct {
	Text  string `json:"text" validate:"required,min=1,max=2000"`
	Kind  string `json:"kind" validate:"required,oneof=scale text"`
	Order int    `json:"order" validate:"required,question_order"`
}

// ResponseSubmitRequest records a student's answers for one evaluation
type ResponseSubmitRequest struct {
	EvaluationID uint                   `json:"evaluation_id" validate:"required"`
	Answers      map[string]interface{} `json:"answers" validate:"required,min=1"`
}

// EnrollmentImportRequest targets an upload at one section
type EnrollmentImportRequest struct {
	SectionID uint `json:"section_id" validate:"required"`
}

// DeactivateUserRequest soft-disables an account
type DeactivateUserRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}
