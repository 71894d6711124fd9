package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const eventSource = "evaluation-service"

// Event types published by the evaluation domain
const (
	EventCycleCreated         = "cycle.created"
	EventCycleSectionsAdded   = "cycle.sections_added"
	EventCycleSectionsRemoved = "cycle.sections_removed"
	EventEvaluationCreated    = "evaluation.created"
	EventEvaluationExpired    = "evaluation.expired"
	EventRoleChanged          = "user.role_changed"
	EventOverrideSet          = "user.override_set"
	EventOverrideReset        = "user.override_reset"
)

// Event is the envelope every published message uses
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent creates an event envelope with generated ID and timestamp
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher abstracts the message broker
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

// RoleChangedEvent is emitted whenever the SetRole funnel commits
type RoleChangedEvent struct {
	UserID       string `json:"user_id"`
	PreviousRole string `json:"previous_role"`
	NewRole      string `json:"new_role"`
	ChangedBy    string `json:"changed_by"`
	Manual       bool   `json:"manual"`
}

// OverrideChangedEvent is emitted when the manual-override flag flips
type OverrideChangedEvent struct {
	UserID string `json:"user_id"`
}

// SectionsChangedEvent is emitted when cycle membership changes
type SectionsChangedEvent struct {
	CycleID    uint   `json:"cycle_id"`
	SectionIDs []uint `json:"section_ids"`
}

// EvaluationCreatedEvent is emitted per evaluation the generator creates
type EvaluationCreatedEvent struct {
	EvaluationID uint   `json:"evaluation_id"`
	CycleID      uint   `json:"cycle_id"`
	SectionID    uint   `json:"section_id"`
	ProfessorID  string `json:"professor_id"`
}
