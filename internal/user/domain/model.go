// Package domain contains core types for the user directory.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a forum account. Emails are stored lower-case and
// the unique index on them is the final authority against duplicate
// accounts.
type User struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	ExternalID   string            `gorm:"column:external_id;type:text;not null;uniqueIndex"`
	Username     string            `gorm:"type:text;not null;uniqueIndex"`
	Name         string            `gorm:"type:text"`
	Email        string            `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash *string           `gorm:"type:text"`
	Active       bool              `gorm:"not null;default:false"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// HasPassword reports whether the account can log in locally.
func (u User) HasPassword() bool { return u.PasswordHash != nil }
