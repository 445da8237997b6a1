package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/discourse/discourse-invite-tokens/internal/actor"
	"github.com/discourse/discourse-invite-tokens/internal/config"
	groupdomain "github.com/discourse/discourse-invite-tokens/internal/group/domain"
	"github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	topicdomain "github.com/discourse/discourse-invite-tokens/internal/topic/domain"
	userdomain "github.com/discourse/discourse-invite-tokens/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tokenBytes = 16

type Params struct {
	fx.In

	Cfg       config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Groups    groupdomain.Repository
	Topics    topicdomain.Repository
	Directory userdomain.Directory
}

type Service struct {
	cfg       config.InviteConfig
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	groups    groupdomain.Repository
	topics    topicdomain.Repository
	directory userdomain.Directory
}

func New(p Params) domain.Service {
	return &Service{
		cfg:       p.Cfg.Invite,
		db:        p.DB,
		log:       p.Log.Named("invite.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		groups:    p.Groups,
		topics:    p.Topics,
		directory: p.Directory,
	}
}

// Generate mints req.Quantity single-use tokens owned by the inviter,
// each bound to the requested groups. Tokens are returned in creation
// order. Each invite and its bindings commit atomically.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) ([]string, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrFeatureDisabled
	}
	if !actor.IsAdmin(ctx) {
		return nil, domain.ErrNotAuthorized
	}

	quantity, err := parseQuantity(req.Quantity)
	if err != nil {
		return nil, err
	}

	inviter, err := s.directory.FindByUsernameOrEmail(ctx, req.Inviter)
	if err != nil {
		return nil, err
	}
	if inviter == nil {
		return nil, userdomain.ErrUserNotFound
	}

	groupIDs, err := s.groups.ResolveNames(ctx, s.db, splitGroupNames(req.GroupNames))
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if s.cfg.ExpiryDays > 0 {
		expiry := time.Now().UTC().AddDate(0, 0, s.cfg.ExpiryDays)
		expiresAt = &expiry
	}

	tokens := make([]string, 0, quantity)
	for i := 0; i < quantity; i++ {
		token, err := newToken()
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		invite := &domain.Invite{
			ID:            s.genID.Generate(),
			Token:         token,
			InviterID:     inviter.ID,
			EmailedStatus: domain.EmailedStatusNotRequired,
			ExpiresAt:     expiresAt,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(ctx, tx, invite); err != nil {
				return err
			}

			// A fresh invite has no bindings; recomputing the residual
			// set keeps the write idempotent regardless.
			bound, err := s.repo.BoundGroupIDs(ctx, tx, invite.ID)
			if err != nil {
				return err
			}
			residual := subtractIDs(groupIDs, bound)
			return s.repo.BindGroups(ctx, tx, invite.ID, residual)
		})
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, token)
	}

	s.log.Info("invite tokens generated",
		zap.String("inviter_id", inviter.ID.String()),
		zap.Int("quantity", quantity),
		zap.Int("groups", len(groupIDs)),
	)
	return tokens, nil
}

// Show is the read-only preview of an unredeemed invite. Redeemed and
// expired invites answer exactly like unknown tokens.
func (s *Service) Show(ctx context.Context, req domain.ShowRequest) (*domain.Preview, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrFeatureDisabled
	}

	invite, err := s.repo.FindByToken(ctx, s.db, strings.TrimSpace(req.Token))
	if err != nil {
		return nil, err
	}
	if invite == nil || invite.Redeemed() || invite.Expired(time.Now().UTC()) {
		return nil, domain.ErrNotFound
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	return &domain.Preview{
		Valid:    true,
		Email:    email,
		Username: strings.TrimSpace(req.Username),
		Name:     strings.TrimSpace(req.Name),
		Topic:    strings.TrimSpace(req.Topic),
	}, nil
}

// Redeem exchanges a token plus an email for an account. All
// preconditions are checked before any write; the only mutation outside
// the directory's transaction is the idempotent topic binding.
func (s *Service) Redeem(ctx context.Context, req domain.RedeemRequest) (*domain.RedeemResult, error) {
	if !s.cfg.Enabled {
		return nil, domain.ErrFeatureDisabled
	}
	if !s.cfg.AllowNewRegistrations {
		return nil, domain.ErrRegistrationsDisabled
	}

	invite, err := s.repo.FindByToken(ctx, s.db, strings.TrimSpace(req.Token))
	if err != nil {
		return nil, err
	}
	if invite == nil {
		return nil, domain.ErrNotFound
	}
	if invite.Redeemed() {
		return nil, domain.ErrAlreadyRedeemed
	}
	if invite.Expired(time.Now().UTC()) {
		return nil, domain.ErrExpired
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if invite.Email != nil && !strings.EqualFold(*invite.Email, email) {
		return nil, domain.ErrEmailMismatch
	}

	// Advisory pre-check for a friendly failure; the users.email unique
	// index remains the final authority under concurrency.
	existing, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, userdomain.ErrEmailTaken
	}

	if req.TopicID != 0 {
		if err := s.bindTopic(ctx, invite.ID, snowflake.ID(req.TopicID)); err != nil {
			return nil, err
		}
	}

	user, err := s.directory.CreateFromInvite(ctx, userdomain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    email,
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
		Activate: !s.cfg.RequiresEmailConfirmation,
	})
	if err != nil {
		return nil, err
	}

	result := &domain.RedeemResult{User: user}
	if user.Active {
		result.TopicURL, err = s.landingTopicURL(ctx, invite.ID)
		if err != nil {
			// The account exists and the invite is consumed; a broken
			// landing lookup only costs the redirect.
			s.log.Warn("landing topic lookup failed", zap.Error(err))
		}
	}
	return result, nil
}

func (s *Service) bindTopic(ctx context.Context, inviteID, topicID snowflake.ID) error {
	topic, err := s.topics.FindByID(ctx, s.db, topicID)
	if err != nil {
		return err
	}
	if topic == nil {
		return nil
	}
	return s.repo.BindTopic(ctx, s.db, inviteID, topic.ID)
}

func (s *Service) landingTopicURL(ctx context.Context, inviteID snowflake.ID) (string, error) {
	topicID, err := s.repo.FirstBoundTopic(ctx, s.db, inviteID)
	if err != nil || topicID == nil {
		return "", err
	}
	topic, err := s.topics.FindByID(ctx, s.db, *topicID)
	if err != nil || topic == nil {
		return "", err
	}
	return topic.RelativeURL(), nil
}

func parseQuantity(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 1, nil
	}
	quantity, err := strconv.Atoi(value)
	if err != nil || quantity < 0 {
		return 0, domain.ErrInvalidQuantity
	}
	return quantity, nil
}

func splitGroupNames(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		names = append(names, part)
	}
	return names
}

func subtractIDs(ids, remove []snowflake.ID) []snowflake.ID {
	if len(remove) == 0 {
		return ids
	}
	removed := make(map[snowflake.ID]struct{}, len(remove))
	for _, id := range remove {
		removed[id] = struct{}{}
	}
	residual := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := removed[id]; ok {
			continue
		}
		residual = append(residual, id)
	}
	return residual
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
