package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/discourse/discourse-invite-tokens/internal/config"
	groupdomain "github.com/discourse/discourse-invite-tokens/internal/group/domain"
	grouprepo "github.com/discourse/discourse-invite-tokens/internal/group/repository"
	invitedomain "github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	inviterepo "github.com/discourse/discourse-invite-tokens/internal/invite/repository"
	inviteservice "github.com/discourse/discourse-invite-tokens/internal/invite/service"
	"github.com/discourse/discourse-invite-tokens/internal/notifier"
	"github.com/discourse/discourse-invite-tokens/internal/providers/email"
	"github.com/discourse/discourse-invite-tokens/internal/server"
	topicdomain "github.com/discourse/discourse-invite-tokens/internal/topic/domain"
	topicrepo "github.com/discourse/discourse-invite-tokens/internal/topic/repository"
	userdomain "github.com/discourse/discourse-invite-tokens/internal/user/domain"
	userrepo "github.com/discourse/discourse-invite-tokens/internal/user/repository"
	userservice "github.com/discourse/discourse-invite-tokens/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const adminKey = "e2e-admin-key"

type env struct {
	db     *gorm.DB
	node   *snowflake.Node
	engine *gin.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&userdomain.User{},
		&groupdomain.Group{},
		&groupdomain.GroupMember{},
		&topicdomain.Topic{},
		&invitedomain.Invite{},
		&invitedomain.InvitedGroup{},
		&invitedomain.TopicInvite{},
		&invitedomain.InvitedUser{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	cfg := config.Config{
		AdminAPIKey: adminKey,
		Invite: config.InviteConfig{
			Enabled:               true,
			AllowNewRegistrations: true,
			ExpiryDays:            90,
		},
	}
	log := zaptest.NewLogger(t)

	invites := inviterepo.Provide(node)
	groups := grouprepo.Provide()
	topics := topicrepo.Provide()

	directory := userservice.New(userservice.Params{
		DB:      db,
		Log:     log,
		GenID:   node,
		Repo:    userrepo.Provide(),
		Invites: invites,
		Groups:  groups,
	})

	svc := inviteservice.New(inviteservice.Params{
		Cfg:       cfg,
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      invites,
		Groups:    groups,
		Topics:    topics,
		Directory: directory,
	})

	engine := server.NewEngine(cfg, log)
	srv := server.NewServer(server.Params{
		Cfg:      cfg,
		Log:      log,
		Engine:   engine,
		Invites:  svc,
		Notifier: notifier.New(log, &email.NoOpProvider{}),
	})
	srv.RegisterRoutes()

	return &env{db: db, node: node, engine: engine}
}

func (e *env) request(t *testing.T, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", adminKey)
	}
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	return rec
}

func (e *env) seedAdmin(t *testing.T) *userdomain.User {
	t.Helper()
	now := time.Now().UTC()
	admin := &userdomain.User{
		ID:         e.node.Generate(),
		ExternalID: "e2e-admin",
		Username:   "admin",
		Email:      "admin@example.com",
		Active:     true,
		Metadata:   datatypes.JSONMap{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, e.db.Create(admin).Error)
	return admin
}

func TestInviteFlow(t *testing.T) {
	e := newEnv(t)
	e.seedAdmin(t)

	staff := &groupdomain.Group{ID: e.node.Generate(), Name: "staff", CreatedAt: time.Now().UTC()}
	require.NoError(t, e.db.Create(staff).Error)

	welcome := &topicdomain.Topic{ID: e.node.Generate(), Title: "Welcome", Slug: "welcome", CreatedAt: time.Now().UTC()}
	require.NoError(t, e.db.Create(welcome).Error)

	// Generate two tokens bound to staff.
	rec := e.request(t, http.MethodPost, "/invite-token/generate",
		`{"username":"admin","quantity":"2","group_names":"staff"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokens []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokens))
	require.Len(t, tokens, 2)
	require.NotEqual(t, tokens[0], tokens[1])

	// Preview without consuming.
	rec = e.request(t, http.MethodGet,
		"/invite-token/redeem/"+tokens[0]+"?email=new@example.com&username=new", "", false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, true, preview["valid"])

	// Redeem with a landing topic.
	rec = e.request(t, http.MethodPut,
		"/invite-token/redeem/"+tokens[0],
		fmt.Sprintf(`{"email":"new@example.com","topic":"%d"}`, welcome.ID), false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var redeemed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeemed))
	assert.Equal(t, true, redeemed["success"])
	assert.Equal(t, welcome.RelativeURL(), redeemed["redirect_to"])

	user := redeemed["user"].(map[string]any)
	assert.Equal(t, "new", user["username"])
	assert.Equal(t, true, user["active"])

	// Group granted.
	var memberships int64
	require.NoError(t, e.db.Model(&groupdomain.GroupMember{}).Where("group_id = ?", staff.ID).Count(&memberships).Error)
	assert.EqualValues(t, 1, memberships)

	// Spent token answers like an unknown one, for preview and redeem.
	rec = e.request(t, http.MethodGet, "/invite-token/redeem/"+tokens[0]+"?email=x@example.com", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.request(t, http.MethodPut, "/invite-token/redeem/"+tokens[0], `{"email":"other@example.com"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var again map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, false, again["success"])
	assert.Equal(t, "invite not found", again["message"])

	// The second token is still live and refuses the taken email.
	rec = e.request(t, http.MethodPut, "/invite-token/redeem/"+tokens[1], `{"email":"new@example.com"}`, false)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "an account with that email already exists")
}

func TestGenerateWithoutAdminKey(t *testing.T) {
	e := newEnv(t)
	e.seedAdmin(t)

	rec := e.request(t, http.MethodPost, "/invite-token/generate", `{"username":"admin"}`, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
