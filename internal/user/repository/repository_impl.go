package repository

import (
	"context"
	"strings"

	"github.com/discourse/discourse-invite-tokens/internal/user/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (id, external_id, username, name, email, password_hash, active, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalID,
		user.Username,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Active,
		user.Metadata,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_id, username, name, email, password_hash, active, metadata, created_at, updated_at
		 FROM users WHERE LOWER(email) = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_id, username, name, email, password_hash, active, metadata, created_at, updated_at
		 FROM users WHERE LOWER(username) = ?`,
		strings.ToLower(strings.TrimSpace(username)),
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}
