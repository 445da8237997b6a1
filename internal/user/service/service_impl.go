package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	groupdomain "github.com/discourse/discourse-invite-tokens/internal/group/domain"
	invitedomain "github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	"github.com/discourse/discourse-invite-tokens/internal/user/domain"
	dbpkg "github.com/discourse/discourse-invite-tokens/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16

	// usernameAttempts bounds suffix probing when a derived username
	// collides with an existing account.
	usernameAttempts = 10
)

var usernameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// errDuplicateAccount carries a unique violation out of the account
// transaction so it can be classified after the rollback.
var errDuplicateAccount = errors.New("duplicate_account")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Invites invitedomain.Repository
	Groups  groupdomain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	invites invitedomain.Repository
	groups  groupdomain.Repository
}

func New(p Params) domain.Directory {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("user.directory"),
		genID:   p.GenID,
		repo:    p.Repo,
		invites: p.Invites,
		groups:  p.Groups,
	}
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, s.db, email)
}

func (s *Service) FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*domain.User, error) {
	value := strings.TrimSpace(usernameOrEmail)
	if value == "" {
		return nil, nil
	}
	if strings.Contains(value, "@") {
		return s.repo.FindByEmail(ctx, s.db, value)
	}
	return s.repo.FindByUsername(ctx, s.db, value)
}

// CreateFromInvite creates the account, grants the invite's bound
// groups, records the invite-to-account link, and flips the invite to
// redeemed, all in one transaction. The flip uses an atomic
// check-and-set, so of two concurrent redeemers exactly one commits.
func (s *Service) CreateFromInvite(ctx context.Context, req domain.CreateFromInviteRequest) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username, err := s.pickUsername(ctx, req.Username, email)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if strings.TrimSpace(req.Password) != "" {
		hashed, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		passwordHash = &hashed
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           s.genID.Generate(),
		ExternalID:   uuid.NewString(),
		Username:     username,
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       req.Activate,
		Metadata:     datatypes.JSONMap{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				// Postgres aborts the transaction on the failed
				// insert, so classification has to wait for the
				// rollback and run on a fresh connection.
				return errDuplicateAccount
			}
			return err
		}

		groupIDs, err := s.invites.BoundGroupIDs(ctx, tx, req.InviteID)
		if err != nil {
			return err
		}
		for _, groupID := range groupIDs {
			member := groupdomain.GroupMember{
				ID:        s.genID.Generate(),
				GroupID:   groupID,
				UserID:    user.ID,
				CreatedAt: now,
			}
			if err := s.groups.AddMember(ctx, tx, member); err != nil {
				return err
			}
		}

		if err := s.invites.RecordInvitedUser(ctx, tx, invitedomain.InvitedUser{
			ID:        s.genID.Generate(),
			InviteID:  req.InviteID,
			UserID:    user.ID,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if err := s.invites.BindEmail(ctx, tx, req.InviteID, email); err != nil {
			return err
		}

		won, err := s.invites.MarkRedeemed(ctx, tx, req.InviteID, user.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return invitedomain.ErrAlreadyRedeemed
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errDuplicateAccount) {
			return nil, s.classifyDuplicate(ctx, email)
		}
		return nil, err
	}

	s.log.Info("account created from invite",
		zap.String("user_id", user.ID.String()),
		zap.String("invite_id", req.InviteID.String()),
		zap.Bool("active", user.Active),
	)
	return user, nil
}

// classifyDuplicate decides which unique index the insert tripped. It
// queries the root connection, never the rolled-back transaction.
// Email wins the tie: it is the error the redeemer is contracted to
// surface on a commit-time race.
func (s *Service) classifyDuplicate(ctx context.Context, email string) error {
	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrEmailTaken
	}
	return domain.ErrUsernameTaken
}

func (s *Service) pickUsername(ctx context.Context, requested, email string) (string, error) {
	base := sanitizeUsername(requested)
	if base == "" {
		base = sanitizeUsername(strings.SplitN(email, "@", 2)[0])
	}
	if base == "" {
		return "", domain.ErrInvalidUsername
	}

	candidate := base
	for i := 1; i <= usernameAttempts; i++ {
		existing, err := s.repo.FindByUsername(ctx, s.db, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
	return "", domain.ErrUsernameTaken
}

func sanitizeUsername(raw string) string {
	return usernameSanitizer.ReplaceAllString(strings.TrimSpace(raw), "")
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	saltB64 := base64.RawStdEncoding.EncodeToString(salt)
	hashB64 := base64.RawStdEncoding.EncodeToString(hash)
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s", argonMemory, argonTime, argonThreads, saltB64, hashB64), nil
}
