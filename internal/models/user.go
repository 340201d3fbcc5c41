package models

import (
	"fmt"
	"time"
)

// User is the core user record, linked to provider identities through the
// user_identities table.
type User struct {
	id          string
	sequence    int
	email       string
	displayName string
	avatarURL   string
	tier        string
	isActive    bool
	createdAt   time.Time
	updatedAt   time.Time
	lastLoginAt *time.Time
}

// NewUser creates a user with the free tier and timestamps set to now.
func NewUser(sequence int, email, displayName string) *User {
	now := time.Now().UTC()
	return &User{
		sequence:    sequence,
		email:       email,
		displayName: displayName,
		tier:        "free",
		isActive:    true,
		createdAt:   now,
		updatedAt:   now,
	}
}

func (u *User) ID() string             { return u.id }
func (u *User) Sequence() int          { return u.sequence }
func (u *User) Email() string          { return u.email }
func (u *User) DisplayName() string    { return u.displayName }
func (u *User) AvatarURL() string      { return u.avatarURL }
func (u *User) Tier() string           { return u.tier }
func (u *User) IsActive() bool         { return u.isActive }
func (u *User) CreatedAt() time.Time   { return u.createdAt }
func (u *User) UpdatedAt() time.Time   { return u.updatedAt }
func (u *User) LastLoginAt() *time.Time { return u.lastLoginAt }

func (u *User) SetID(id string)                 { u.id = id }
func (u *User) SetSequence(sequence int)        { u.sequence = sequence }
func (u *User) SetEmail(email string)           { u.email = email }
func (u *User) SetDisplayName(name string)      { u.displayName = name }
func (u *User) SetAvatarURL(url string)         { u.avatarURL = url }
func (u *User) SetTier(tier string)             { u.tier = tier }
func (u *User) SetIsActive(active bool)         { u.isActive = active }
func (u *User) SetCreatedAt(t time.Time)        { u.createdAt = t }
func (u *User) SetUpdatedAt(t time.Time)        { u.updatedAt = t }
func (u *User) SetLastLoginAt(t *time.Time)     { u.lastLoginAt = t }

// Validate checks the user's data.
func (u *User) Validate() error {
	if u.displayName == "" {
		return fmt.Errorf("display name is required")
	}
	switch u.tier {
	case "free", "premium":
	default:
		return fmt.Errorf("unknown tier: %s", u.tier)
	}
	return nil
}

// ToDict returns the user's wire representation mirroring the frontend contract.
func (u *User) ToDict() map[string]any {
	var lastLogin any
	if u.lastLoginAt != nil {
		lastLogin = u.lastLoginAt.Format(time.RFC3339)
	}

	var email any
	if u.email != "" {
		email = u.email
	}

	return map[string]any{
		"id":            u.id,
		"email":         email,
		"display_name":  u.displayName,
		"avatar_url":    u.avatarURL,
		"tier":          u.tier,
		"is_active":     u.isActive,
		"created_at":    u.createdAt.Format(time.RFC3339),
		"last_login_at": lastLogin,
	}
}
