package models

import (
	"time"

	"gorm.io/gorm"
)

type QuestionKind string

const (
	QuestionScale QuestionKind = "scale"
	QuestionText  QuestionKind = "text"
)

type Questionnaire struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`

	CreatedBy string         `json:"created_by" gorm:"not null;size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []QuestionnaireQuestion `json:"questions" gorm:"foreignKey:QuestionnaireID"`
}

type QuestionnaireQuestion struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	QuestionnaireID uint         `json:"questionnaire_id" gorm:"not null;index"`
	Kind            QuestionKind `json:"kind" gorm:"not null;size:20" validate:"required,oneof=scale text"`
	Text            string       `json:"text" gorm:"not null;type:text" validate:"required,min=1,max=2000"`
	Order           int          `json:"order" gorm:"not null;default:1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Questionnaire) TableName() string {
	return "questionnaires"
}

func (QuestionnaireQuestion) TableName() string {
	return "questionnaire_questions"
}
