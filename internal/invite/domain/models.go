package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EmailedStatus records how an invite was (or was not) delivered.
type EmailedStatus int

const (
	EmailedStatusNotRequired EmailedStatus = iota
	EmailedStatusPending
	EmailedStatusBulkPending
	EmailedStatusSending
	EmailedStatusSent
)

// Invite is a single-use registration token. The token string is the
// lookup key and never changes after creation.
type Invite struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Token          string        `gorm:"type:text;not null;uniqueIndex" json:"token"`
	InviterID      snowflake.ID  `gorm:"column:inviter_id;not null;index" json:"inviter_id"`
	Email          *string       `gorm:"type:text" json:"email,omitempty"`
	EmailedStatus  EmailedStatus `gorm:"column:emailed_status;not null;default:0" json:"emailed_status"`
	RedeemedAt     *time.Time    `gorm:"column:redeemed_at" json:"redeemed_at,omitempty"`
	RedeemedUserID *snowflake.ID `gorm:"column:redeemed_user_id" json:"redeemed_user_id,omitempty"`
	ExpiresAt      *time.Time    `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invite) TableName() string { return "invites" }

// Redeemed reports whether the invite has been consumed.
func (i Invite) Redeemed() bool { return i.RedeemedAt != nil }

// Expired reports whether the invite's expiry, if any, has passed.
func (i Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// InvitedGroup binds a group grant to an invite. The pair is unique so
// binding is idempotent.
type InvitedGroup struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	InviteID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_invite_group,priority:1" json:"invite_id"`
	GroupID   snowflake.ID `gorm:"not null;uniqueIndex:ux_invite_group,priority:2" json:"group_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvitedGroup) TableName() string { return "invited_groups" }

// TopicInvite binds a landing topic to an invite. First write wins; at
// most one binding is read back.
type TopicInvite struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	InviteID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_invite_topic,priority:1" json:"invite_id"`
	TopicID   snowflake.ID `gorm:"not null;uniqueIndex:ux_invite_topic,priority:2" json:"topic_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (TopicInvite) TableName() string { return "topic_invites" }

// InvitedUser records which account a redeemed invite produced.
type InvitedUser struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	InviteID  snowflake.ID `gorm:"not null;index;uniqueIndex:ux_invite_user,priority:1" json:"invite_id"`
	UserID    snowflake.ID `gorm:"not null;uniqueIndex:ux_invite_user,priority:2" json:"user_id"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (InvitedUser) TableName() string { return "invited_users" }
