package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	genID *snowflake.Node
}

func Provide(genID *snowflake.Node) domain.Repository {
	return &repo{genID: genID}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invite *domain.Invite) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invites (id, token, inviter_id, email, emailed_status, redeemed_at, redeemed_user_id, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invite.ID,
		invite.Token,
		invite.InviterID,
		invite.Email,
		invite.EmailedStatus,
		invite.RedeemedAt,
		invite.RedeemedUserID,
		invite.ExpiresAt,
		invite.CreatedAt,
		invite.UpdatedAt,
	).Error
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.Invite, error) {
	var invite domain.Invite
	err := db.WithContext(ctx).Raw(
		`SELECT id, token, inviter_id, email, emailed_status, redeemed_at, redeemed_user_id, expires_at, created_at, updated_at
		 FROM invites WHERE token = ?`,
		token,
	).Scan(&invite).Error
	if err != nil {
		return nil, err
	}
	if invite.ID == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repo) BoundGroupIDs(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.InvitedGroup{}).
		Where("invite_id = ?", inviteID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repo) BindGroups(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, groupIDs []snowflake.ID) error {
	if len(groupIDs) == 0 {
		return nil
	}

	now := time.Now().UTC()
	rows := make([]domain.InvitedGroup, 0, len(groupIDs))
	seen := make(map[snowflake.ID]struct{}, len(groupIDs))
	for _, groupID := range groupIDs {
		if _, ok := seen[groupID]; ok {
			continue
		}
		seen[groupID] = struct{}{}
		rows = append(rows, domain.InvitedGroup{
			ID:        r.genID.Generate(),
			InviteID:  inviteID,
			GroupID:   groupID,
			CreatedAt: now,
		})
	}

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
}

func (r *repo) BindTopic(ctx context.Context, db *gorm.DB, inviteID, topicID snowflake.ID) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.TopicInvite{
			ID:        r.genID.Generate(),
			InviteID:  inviteID,
			TopicID:   topicID,
			CreatedAt: time.Now().UTC(),
		}).Error
}

func (r *repo) FirstBoundTopic(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*snowflake.ID, error) {
	var binding domain.TopicInvite
	err := db.WithContext(ctx).Raw(
		`SELECT id, invite_id, topic_id, created_at
		 FROM topic_invites WHERE invite_id = ?
		 ORDER BY created_at ASC, id ASC LIMIT 1`,
		inviteID,
	).Scan(&binding).Error
	if err != nil {
		return nil, err
	}
	if binding.ID == 0 {
		return nil, nil
	}
	return &binding.TopicID, nil
}

func (r *repo) BindEmail(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, email string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invites SET email = ?, updated_at = ?
		 WHERE id = ? AND email IS NULL`,
		email,
		time.Now().UTC(),
		inviteID,
	).Error
}

// MarkRedeemed performs the single allowed state transition. The WHERE
// clause on redeemed_at makes it an atomic check-and-set: the second
// writer sees zero affected rows.
func (r *repo) MarkRedeemed(ctx context.Context, db *gorm.DB, inviteID, userID snowflake.ID, at time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invites SET redeemed_at = ?, redeemed_user_id = ?, updated_at = ?
		 WHERE id = ? AND redeemed_at IS NULL`,
		at,
		userID,
		at,
		inviteID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) RecordInvitedUser(ctx context.Context, db *gorm.DB, record domain.InvitedUser) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&record).Error
}
