package models

import (
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

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

// User is an account known to the auth simulator
type User struct {
	BaseModel
	Email              string    `json:"email" gorm:"unique;not null"`
	PasswordHash       string    `json:"-" gorm:"not null"`
	Name               string    `json:"name"`
	Role               string    `json:"role" gorm:"not null;default:'operator'"`
	IsAdmin            bool      `json:"is_admin" gorm:"not null;default:false"`
	MFAEnabled         bool      `json:"mfa_enabled" gorm:"not null;default:false"`
	ForcePasswordReset bool      `json:"force_password_reset" gorm:"not null;default:false"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Challenge purposes
const (
	PurposeMFA           = "MFA"
	PurposePasswordReset = "PASSWORD_RESET"
)

// Challenge is an outstanding one-time passcode. A new challenge replaces any
// earlier one with the same email and purpose.
type Challenge struct {
	BaseModel
	Email     string    `json:"email" gorm:"not null;index:idx_challenge_email_purpose"`
	Purpose   string    `json:"purpose" gorm:"not null;index:idx_challenge_email_purpose"`
	Code      string    `json:"-" gorm:"type:varchar(16);not null"`
	Attempts  int       `json:"attempts" gorm:"not null;default:0"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
}

// Expired reports whether the challenge can no longer be used at now
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// RevokedToken records a session token ended by logout
type RevokedToken struct {
	TokenID   string    `json:"token_id" gorm:"primaryKey;type:varchar(26)"`
	UserID    string    `json:"user_id" gorm:"type:varchar(26);index"`
	RevokedAt time.Time `json:"revoked_at" gorm:"autoCreateTime"`
	ExpiresAt time.Time `json:"expires_at" gorm:"index"`
}

func AutoMigrate(db *gorm.DB) error {
	// Collect all models
	models := []interface{}{
		&User{}, &Challenge{}, &RevokedToken{},
	}

	return db.AutoMigrate(models...)
}

// FindByID safely finds a record by string ID
func FindByID[T any](db *gorm.DB, id string, model *T) error {
	return db.Where("id = ?", id).First(model).Error
}
