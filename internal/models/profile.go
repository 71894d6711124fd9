package models

import (
	"time"
)

const DefaultEnrollmentStatus = "enrolled"

// StudentProfile is the student extension record, owned 1:1 by a user.
// It exists iff the user's effective role is student.
type StudentProfile struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	UserID           string `json:"user_id" gorm:"uniqueIndex;not null;size:255"`
	EnrollmentStatus string `json:"enrollment_status" gorm:"not null;size:50;default:enrolled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfessorProfile is the professor extension record, owned 1:1 by a user.
// It exists iff the user's effective role is professor or coordinator.
type ProfessorProfile struct {
	ID                   uint   `json:"id" gorm:"primaryKey"`
	UserID               string `json:"user_id" gorm:"uniqueIndex;not null;size:255"`
	AcademicRegistration string `json:"academic_registration" gorm:"not null;size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}

func (ProfessorProfile) TableName() string {
	return "professor_profiles"
}
