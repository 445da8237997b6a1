package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Topic is a discussion thread a redeemed user can be landed on.
type Topic struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Title     string       `gorm:"type:text;not null" json:"title"`
	Slug      string       `gorm:"type:text;not null" json:"slug"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Topic) TableName() string { return "topics" }

// RelativeURL is the path a redeemed user is redirected to.
func (t Topic) RelativeURL() string {
	return fmt.Sprintf("/t/%s/%d", t.Slug, t.ID)
}
