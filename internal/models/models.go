package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Roles assigned by the backend
const (
	RoleAdmin         = "admin"
	RoleFacilityOwner = "facility_owner"
	RolePlayer        = "player"
)

// SelectableRoles are the roles a user may pick for themselves
var SelectableRoles = []string{RolePlayer, RoleFacilityOwner}

// User is the cached profile snapshot of the signed-in account.
// The backend is the source of truth.
type User struct {
	ID             string `json:"id" validate:"required"`
	Email          string `json:"email" validate:"omitempty,email"`
	Role           string `json:"role,omitempty"`
	Username       string `json:"username,omitempty"`
	FullName       string `json:"fullName,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// DisplayName returns the best human readable name for the user
func (u *User) DisplayName() string {
	switch {
	case u.FullName != "":
		return u.FullName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// BaseModel provides common fields and auto-generated ULID for all models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// PersistedSession is the durable authToken/authUser pair for one API profile.
// Token and user always live in the same row so they are written and cleared together.
type PersistedSession struct {
	BaseModel
	Profile   string    `gorm:"not null;uniqueIndex"`
	AuthToken string    `gorm:"type:text;not null"`
	AuthUser  string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&PersistedSession{})
}
