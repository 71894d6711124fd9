package models

import (
	"time"

	"gorm.io/gorm"
)

type UserRole string

const (
	RoleStudent     UserRole = "student"
	RoleProfessor   UserRole = "professor"
	RoleCoordinator UserRole = "coordinator"
	RoleAdmin       UserRole = "admin"
)

// AllRoles lists every role tag the reconciler manages. Order matters for
// cleanup sweeps: removal is attempted in this order.
func AllRoles() []UserRole {
	return []UserRole{RoleAdmin, RoleCoordinator, RoleProfessor, RoleStudent}
}

// ValidRole reports whether s is one of the four managed role tags.
func ValidRole(s string) bool {
	switch UserRole(s) {
	case RoleStudent, RoleProfessor, RoleCoordinator, RoleAdmin:
		return true
	}
	return false
}

// RequiresProfessorProfile reports whether the role implies a professor
// profile. Coordinators keep one because they also teach.
func (r UserRole) RequiresProfessorProfile() bool {
	return r == RoleProfessor || r == RoleCoordinator
}

type User struct {
	ID       string   `json:"id" gorm:"primaryKey;size:255"`
	Username string   `json:"username" gorm:"uniqueIndex;not null;size:150"`
	FullName string   `json:"full_name" gorm:"not null;size:100"`
	Email    string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     UserRole `json:"role" gorm:"-"`

	// Status
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (User) TableName() string {
	return "users"
}

// IsFirstLogin reports whether the user has never completed a login before.
// The SSO adapter uses it to bypass the manual-override guard on first entry.
func (u *User) IsFirstLogin() bool {
	return u.LastLoginAt == nil
}
