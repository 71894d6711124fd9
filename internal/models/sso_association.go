package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	// ProviderCasdoor is the expected federated provider name. Associations
	// with any other provider are ignored by the login adapter.
	ProviderCasdoor = "casdoor"

	// ExtraDataUserType is the key under which the provider's classification
	// string ("user type") is cached in the association's extra data.
	ExtraDataUserType = "tipo_usuario"

	// LegacyOverrideKey is the old location of the manual-override marker
	// inside extra data. Reads fall back to it, resets clear it.
	LegacyOverrideKey = "role_manually_changed"
)

// SSOAssociation links a user to their federated identity and carries the
// provider's last known payload. ManuallyOverridden records that an
// administrator assigned the role by hand, which blocks automatic role
// management on subsequent logins.
type SSOAssociation struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	UserID   string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_sso_user_provider"`
	Provider string `json:"provider" gorm:"not null;size:50;uniqueIndex:idx_sso_user_provider"`

	SubjectID          string            `json:"subject_id" gorm:"not null;size:255;index"`
	ExtraData          datatypes.JSONMap `json:"extra_data"`
	ManuallyOverridden bool              `json:"manually_overridden" gorm:"not null;default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SSOAssociation) TableName() string {
	return "sso_associations"
}

// CachedUserType returns the classification string cached from the provider
// payload, or "" when absent.
func (a *SSOAssociation) CachedUserType() string {
	if a == nil || a.ExtraData == nil {
		return ""
	}
	if v, ok := a.ExtraData[ExtraDataUserType].(string); ok {
		return v
	}
	return ""
}

// LegacyOverrideSet reports whether the old extra-data override marker is
// set. Used as a fallback when the column read is unavailable.
func (a *SSOAssociation) LegacyOverrideSet() bool {
	if a == nil || a.ExtraData == nil {
		return false
	}
	v, ok := a.ExtraData[LegacyOverrideKey].(bool)
	return ok && v
}
