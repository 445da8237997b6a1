package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the invite token store. Callers pass the db handle so
// writes can participate in an enclosing transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *Invite) error
	// FindByToken returns nil without error when no invite matches.
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*Invite, error)

	BoundGroupIDs(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) ([]snowflake.ID, error)
	// BindGroups inserts the missing (invite, group) pairs only.
	BindGroups(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, groupIDs []snowflake.ID) error
	// BindTopic inserts the (invite, topic) pair if absent.
	BindTopic(ctx context.Context, db *gorm.DB, inviteID, topicID snowflake.ID) error
	// FirstBoundTopic returns the earliest bound topic ID, or nil.
	FirstBoundTopic(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*snowflake.ID, error)

	// BindEmail sets the invite's email if none is bound yet.
	BindEmail(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, email string) error
	// MarkRedeemed flips the invite to redeemed iff it is still
	// unredeemed, and reports whether this caller won the flip.
	MarkRedeemed(ctx context.Context, db *gorm.DB, inviteID, userID snowflake.ID, at time.Time) (bool, error)
	RecordInvitedUser(ctx context.Context, db *gorm.DB, record InvitedUser) error
}
