package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/discourse/discourse-invite-tokens/internal/group/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ResolveNames(ctx context.Context, db *gorm.DB, names []string) ([]snowflake.ID, error) {
	if len(names) == 0 {
		return nil, nil
	}

	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("name IN ?", names).
		Order("id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) AddMember(ctx context.Context, db *gorm.DB, member domain.GroupMember) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error
}
