package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Group is a named membership bucket granted on redemption.
type Group struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Group) TableName() string { return "groups" }

// GroupMember joins a user into a group. The pair is unique so grants
// are idempotent.
type GroupMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	GroupID   snowflake.ID `gorm:"not null;index;uniqueIndex:ux_group_user,priority:1" json:"group_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_group_user,priority:2" json:"user_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (GroupMember) TableName() string { return "group_members" }
