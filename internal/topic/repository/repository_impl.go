package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/discourse/discourse-invite-tokens/internal/topic/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Topic, error) {
	var topic domain.Topic
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, slug, created_at FROM topics WHERE id = ?`,
		id,
	).Scan(&topic).Error
	if err != nil {
		return nil, err
	}
	if topic.ID == 0 {
		return nil, nil
	}
	return &topic, nil
}
