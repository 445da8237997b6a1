package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// ResolveNames maps group names to IDs. Unknown names are skipped.
	ResolveNames(ctx context.Context, db *gorm.DB, names []string) ([]snowflake.ID, error)
	// AddMember grants membership, ignoring an already-present pair.
	AddMember(ctx context.Context, db *gorm.DB, member GroupMember) error
}
