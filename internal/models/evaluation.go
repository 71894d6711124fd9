package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type EvaluationStatus string

const (
	EvaluationPending    EvaluationStatus = "pending"
	EvaluationInProgress EvaluationStatus = "in_progress"
	EvaluationCompleted  EvaluationStatus = "completed"
	EvaluationExpired    EvaluationStatus = "expired"
)

// CanTransitionTo validates the evaluation state machine:
// pending -> in_progress -> completed, with expired reachable from any
// non-terminal state once the cycle window closes.
func (s EvaluationStatus) CanTransitionTo(next EvaluationStatus) bool {
	allowed := map[EvaluationStatus][]EvaluationStatus{
		EvaluationPending:    {EvaluationInProgress, EvaluationExpired},
		EvaluationInProgress: {EvaluationCompleted, EvaluationExpired},
		EvaluationCompleted:  {},
		EvaluationExpired:    {},
	}
	for _, a := range allowed[s] {
		if a == next {
			return true
		}
	}
	return false
}

// EvaluationCycle is a time-boxed campaign associating one questionnaire
// with a set of class sections.
type EvaluationCycle struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Name            string    `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	QuestionnaireID uint      `json:"questionnaire_id" gorm:"not null;index" validate:"required"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	SendReminders   bool      `json:"send_reminders" gorm:"not null;default:false"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questionnaire Questionnaire  `json:"questionnaire" gorm:"foreignKey:QuestionnaireID"`
	Sections      []ClassSection `json:"sections" gorm:"many2many:cycle_sections"`
	Evaluations   []Evaluation   `json:"-" gorm:"foreignKey:CycleID"`
}

// Ended reports whether the cycle window has closed at the given instant.
func (c *EvaluationCycle) Ended(now time.Time) bool {
	return now.After(c.EndsAt)
}

// Evaluation is the per-(cycle, section) record tracking a student body's
// progress responding about one professor/subject pairing. Professor and
// subject are denormalized at creation time so later section edits do not
// rewrite evaluation history.
type Evaluation struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	CycleID   uint `json:"cycle_id" gorm:"not null;uniqueIndex:idx_evaluation_cycle_section"`
	SectionID uint `json:"section_id" gorm:"not null;uniqueIndex:idx_evaluation_cycle_section"`

	ProfessorID string           `json:"professor_id" gorm:"not null;size:255;index"`
	SubjectID   uint             `json:"subject_id" gorm:"not null;index"`
	Status      EvaluationStatus `json:"status" gorm:"not null;size:20;default:pending;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Cycle     EvaluationCycle      `json:"-" gorm:"foreignKey:CycleID"`
	Section   ClassSection         `json:"section" gorm:"foreignKey:SectionID"`
	Responses []EvaluationResponse `json:"-" gorm:"foreignKey:EvaluationID"`

	// Computed fields (not stored)
	ResponseCount int `json:"response_count" gorm:"-"`
}

// EvaluationResponse is one student's recorded answers against an
// evaluation. Its existence is what makes the evaluation permanent.
type EvaluationResponse struct {
	ID           uint              `json:"id" gorm:"primaryKey"`
	EvaluationID uint              `json:"evaluation_id" gorm:"not null;uniqueIndex:idx_response_evaluation_student"`
	StudentID    string            `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_response_evaluation_student"`
	Answers      datatypes.JSONMap `json:"answers"`

	CreatedAt time.Time `json:"created_at"`
}

func (EvaluationCycle) TableName() string {
	return "evaluation_cycles"
}

func (Evaluation) TableName() string {
	return "evaluations"
}

func (EvaluationResponse) TableName() string {
	return "evaluation_responses"
}
