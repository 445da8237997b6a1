package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	groupdomain "github.com/discourse/discourse-invite-tokens/internal/group/domain"
	grouprepo "github.com/discourse/discourse-invite-tokens/internal/group/repository"
	invitedomain "github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	inviterepo "github.com/discourse/discourse-invite-tokens/internal/invite/repository"
	"github.com/discourse/discourse-invite-tokens/internal/user/domain"
	userrepo "github.com/discourse/discourse-invite-tokens/internal/user/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	dir     *Service
	invites invitedomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&groupdomain.Group{},
		&groupdomain.GroupMember{},
		&invitedomain.Invite{},
		&invitedomain.InvitedGroup{},
		&invitedomain.InvitedUser{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	invites := inviterepo.Provide(node)
	dir := New(Params{
		DB:      db,
		Log:     zaptest.NewLogger(t),
		GenID:   node,
		Repo:    userrepo.Provide(),
		Invites: invites,
		Groups:  grouprepo.Provide(),
	}).(*Service)

	return &fixture{db: db, node: node, dir: dir, invites: invites}
}

func (f *fixture) seedInvite(t *testing.T) *invitedomain.Invite {
	t.Helper()
	now := time.Now().UTC()
	invite := &invitedomain.Invite{
		ID:            f.node.Generate(),
		Token:         fmt.Sprintf("%032x", f.node.Generate()),
		InviterID:     f.node.Generate(),
		EmailedStatus: invitedomain.EmailedStatusNotRequired,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.invites.Insert(context.Background(), f.db, invite))
	return invite
}

func (f *fixture) seedUser(t *testing.T, username, email string) *domain.User {
	t.Helper()
	now := time.Now().UTC()
	user := &domain.User{
		ID:         f.node.Generate(),
		ExternalID: fmt.Sprintf("ext-%s", username),
		Username:   username,
		Email:      strings.ToLower(email),
		Active:     true,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func TestCreateFromInviteDerivesUsernameFromEmail(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	user, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "Someone.New@Example.com",
		Activate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "someone.new", user.Username)
	assert.Equal(t, "someone.new@example.com", user.Email)
	assert.True(t, user.Active)
	assert.False(t, user.HasPassword())
	assert.NotEmpty(t, user.ExternalID)
}

func TestCreateFromInviteSanitizesRequestedUsername(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	user, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "a@example.com",
		Username: "  weird name!! ",
		Activate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "weirdname", user.Username)
}

func TestCreateFromInviteSuffixesCollidingUsername(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "sam", "taken@example.com")
	f.seedUser(t, "sam1", "taken1@example.com")
	invite := f.seedInvite(t)

	user, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "sam@other.example.com",
		Activate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sam2", user.Username)
}

func TestCreateFromInviteHashesPassword(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	user, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "secure@example.com",
		Password: "hunter2hunter2",
		Activate: true,
	})
	require.NoError(t, err)
	require.True(t, user.HasPassword())
	assert.True(t, strings.HasPrefix(*user.PasswordHash, "$argon2id$v=19$"))
	assert.NotContains(t, *user.PasswordHash, "hunter2hunter2")
}

func TestCreateFromInviteGrantsBoundGroups(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	group := &groupdomain.Group{ID: f.node.Generate(), Name: "staff", CreatedAt: time.Now().UTC()}
	require.NoError(t, f.db.Create(group).Error)
	require.NoError(t, f.invites.BindGroups(context.Background(), f.db, invite.ID, []snowflake.ID{group.ID}))

	user, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "member@example.com",
		Activate: true,
	})
	require.NoError(t, err)

	var memberships int64
	require.NoError(t, f.db.Model(&groupdomain.GroupMember{}).Where("user_id = ?", user.ID).Count(&memberships).Error)
	assert.EqualValues(t, 1, memberships)

	var linked int64
	require.NoError(t, f.db.Model(&invitedomain.InvitedUser{}).Where("invite_id = ? AND user_id = ?", invite.ID, user.ID).Count(&linked).Error)
	assert.EqualValues(t, 1, linked)
}

func TestCreateFromInviteMarksRedeemed(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	user, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "done@example.com",
		Activate: true,
	})
	require.NoError(t, err)

	var stored invitedomain.Invite
	require.NoError(t, f.db.First(&stored, "id = ?", invite.ID).Error)
	require.True(t, stored.Redeemed())
	assert.Equal(t, user.ID, *stored.RedeemedUserID)
	require.NotNil(t, stored.Email)
	assert.Equal(t, "done@example.com", *stored.Email)
}

func TestCreateFromInviteDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "original", "dupe@example.com")
	invite := f.seedInvite(t)

	_, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "dupe@example.com",
		Username: "fresh",
		Activate: true,
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	var stored invitedomain.Invite
	require.NoError(t, f.db.First(&stored, "id = ?", invite.ID).Error)
	assert.False(t, stored.Redeemed(), "failed insert must not consume the invite")
}

func TestCreateFromInviteLosesRaceOnRedeemedInvite(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	winner, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "winner@example.com",
		Activate: true,
	})
	require.NoError(t, err)

	_, err = f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "loser@example.com",
		Activate: true,
	})
	assert.ErrorIs(t, err, invitedomain.ErrAlreadyRedeemed)

	// The loser's whole transaction rolls back, account included.
	var count int64
	require.NoError(t, f.db.Model(&domain.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var stored invitedomain.Invite
	require.NoError(t, f.db.First(&stored, "id = ?", invite.ID).Error)
	assert.Equal(t, winner.ID, *stored.RedeemedUserID)
}

func TestCreateFromInviteEmptyDerivableUsername(t *testing.T) {
	f := newFixture(t)
	invite := f.seedInvite(t)

	_, err := f.dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: invite.ID,
		Email:    "!!!@example.com",
		Activate: true,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidUsername)
}

// recordingUserRepo fails every insert with a driver-shaped unique
// violation and records which db handle the classification lookup ran on.
type recordingUserRepo struct {
	insertErr   error
	emailHit    *domain.User
	findEmailDB []*gorm.DB
}

func (r *recordingUserRepo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return r.insertErr
}

func (r *recordingUserRepo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	r.findEmailDB = append(r.findEmailDB, db)
	return r.emailHit, nil
}

func (r *recordingUserRepo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return nil, nil
}

func TestDuplicateClassificationRunsOnRootConnection(t *testing.T) {
	f := newFixture(t)

	// Postgres-shaped violation: after this insert fails, the
	// enclosing transaction is aborted and unusable for queries.
	stub := &recordingUserRepo{
		insertErr: errors.New(`ERROR: duplicate key value violates unique constraint "ux_users_email" (SQLSTATE 23505)`),
		emailHit:  &domain.User{ID: f.node.Generate(), Email: "dupe@example.com"},
	}
	dir := New(Params{
		DB:      f.db,
		Log:     zaptest.NewLogger(t),
		GenID:   f.node,
		Repo:    stub,
		Invites: f.invites,
		Groups:  grouprepo.Provide(),
	}).(*Service)

	_, err := dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: f.node.Generate(),
		Email:    "dupe@example.com",
		Username: "fresh",
		Activate: true,
	})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	require.Len(t, stub.findEmailDB, 1)
	assert.Same(t, f.db, stub.findEmailDB[0], "classification must not reuse the transaction handle")
}

func TestDuplicateClassificationFallsBackToUsername(t *testing.T) {
	f := newFixture(t)

	stub := &recordingUserRepo{
		insertErr: errors.New(`ERROR: duplicate key value violates unique constraint "ux_users_username" (SQLSTATE 23505)`),
	}
	dir := New(Params{
		DB:      f.db,
		Log:     zaptest.NewLogger(t),
		GenID:   f.node,
		Repo:    stub,
		Invites: f.invites,
		Groups:  grouprepo.Provide(),
	}).(*Service)

	_, err := dir.CreateFromInvite(context.Background(), domain.CreateFromInviteRequest{
		InviteID: f.node.Generate(),
		Email:    "free@example.com",
		Username: "contested",
		Activate: true,
	})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestFindByUsernameOrEmail(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedUser(t, "lookup", "lookup@example.com")

	byName, err := f.dir.FindByUsernameOrEmail(context.Background(), "lookup")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, seeded.ID, byName.ID)

	byEmail, err := f.dir.FindByUsernameOrEmail(context.Background(), "Lookup@Example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, seeded.ID, byEmail.ID)

	missing, err := f.dir.FindByUsernameOrEmail(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	blank, err := f.dir.FindByUsernameOrEmail(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, blank)
}
