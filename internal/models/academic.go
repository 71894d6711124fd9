package models

import (
	"time"

	"gorm.io/gorm"
)

type Shift string

const (
	ShiftMorning   Shift = "morning"
	ShiftAfternoon Shift = "afternoon"
	ShiftEvening   Shift = "evening"
)

type Subject struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Code string `json:"code" gorm:"uniqueIndex;not null;size:20" validate:"required,max=20"`
	Name string `json:"name" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Term is an academic period, unique per (year, semester).
type Term struct {
	ID       uint `json:"id" gorm:"primaryKey"`
	Year     int  `json:"year" gorm:"not null;uniqueIndex:idx_term_year_semester" validate:"required,min=2000,max=2100"`
	Semester int  `json:"semester" gorm:"not null;uniqueIndex:idx_term_year_semester" validate:"required,min=1,max=2"`

	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClassSection is one offering of a subject in a term, taught by one
// professor. Unique per (subject, term, shift).
type ClassSection struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	SubjectID   uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_section_subject_term_shift" validate:"required"`
	TermID      uint   `json:"term_id" gorm:"not null;uniqueIndex:idx_section_subject_term_shift" validate:"required"`
	Shift       Shift  `json:"shift" gorm:"not null;size:20;uniqueIndex:idx_section_subject_term_shift" validate:"required,oneof=morning afternoon evening"`
	ProfessorID string `json:"professor_id" gorm:"not null;size:255;index" validate:"required"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Subject     Subject      `json:"subject" gorm:"foreignKey:SubjectID"`
	Term        Term         `json:"term" gorm:"foreignKey:TermID"`
	Enrollments []Enrollment `json:"-" gorm:"foreignKey:SectionID"`
}

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentDropped   EnrollmentStatus = "dropped"
	EnrollmentCompleted EnrollmentStatus = "completed"
)

// Enrollment places a student in a class section, unique per
// (section, student).
type Enrollment struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	SectionID uint             `json:"section_id" gorm:"not null;uniqueIndex:idx_enrollment_section_student"`
	StudentID string           `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_enrollment_section_student"`
	Status    EnrollmentStatus `json:"status" gorm:"not null;size:20;default:active;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Subject) TableName() string {
	return "subjects"
}

func (Term) TableName() string {
	return "terms"
}

func (ClassSection) TableName() string {
	return "class_sections"
}

func (Enrollment) TableName() string {
	return "enrollments"
}
