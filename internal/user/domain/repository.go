package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	// FindByEmail matches case-insensitively and returns nil without
	// error when no account exists.
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
}
