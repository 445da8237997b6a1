package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	invitedomain "github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	userdomain "github.com/discourse/discourse-invite-tokens/internal/user/domain"
	"go.uber.org/zap"
)

type generateRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Quantity   string `json:"quantity"`
	GroupNames string `json:"group_names"`
}

type redeemRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Topic    string `json:"topic"`
}

func (s *Server) GenerateInviteTokens(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inviter := strings.TrimSpace(req.Username)
	if inviter == "" {
		inviter = strings.TrimSpace(req.Email)
	}
	if inviter == "" {
		AbortWithError(c, newValidationError("username", "required", "username or email is required"))
		return
	}

	tokens, err := s.invites.Generate(c.Request.Context(), invitedomain.GenerateRequest{
		Inviter:    inviter,
		Quantity:   req.Quantity,
		GroupNames: req.GroupNames,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (s *Server) ShowInvite(c *gin.Context) {
	preview, err := s.invites.Show(c.Request.Context(), invitedomain.ShowRequest{
		Token:    c.Param("token"),
		Email:    restorePlus(c.Query("email")),
		Username: c.Query("username"),
		Name:     c.Query("name"),
		Topic:    c.Query("topic"),
	})
	if err != nil {
		if errors.Is(err, invitedomain.ErrFeatureDisabled) {
			c.Redirect(http.StatusFound, "/")
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (s *Server) RedeemInviteToken(c *gin.Context) {
	allowed, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		s.log.Warn("redeem rate limit check failed", zap.Error(err))
		allowed = true
	}
	if !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"message": "too many attempts, slow down",
		})
		return
	}

	var req redeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.invites.Redeem(c.Request.Context(), invitedomain.RedeemRequest{
		Token:    c.Param("token"),
		Email:    restorePlus(req.Email),
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
		TopicID:  parseTopicID(req.Topic),
	})
	if err != nil {
		s.renderRedeemError(c, err)
		return
	}

	user := result.User
	if user.Active {
		s.notifier.SendWelcome(c.Request.Context(), user)
	} else {
		s.notifier.SendConfirmation(c.Request.Context(), user)
	}

	resp := gin.H{
		"success": true,
		"user": gin.H{
			"id":       user.ID.String(),
			"username": user.Username,
			"email":    user.Email,
			"active":   user.Active,
		},
	}
	if user.Active {
		redirect := result.TopicURL
		if redirect == "" {
			redirect = "/"
		}
		resp["redirect_to"] = redirect
	} else {
		resp["message"] = "confirm your email to activate your account"
	}
	c.JSON(http.StatusOK, resp)
}

// renderRedeemError keeps the redemption surface from leaking invite
// state: unknown, consumed, and expired tokens all answer alike.
func (s *Server) renderRedeemError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, invitedomain.ErrFeatureDisabled),
		errors.Is(err, invitedomain.ErrRegistrationsDisabled):
		c.Redirect(http.StatusFound, "/")
	case errors.Is(err, invitedomain.ErrNotFound),
		errors.Is(err, invitedomain.ErrAlreadyRedeemed),
		errors.Is(err, invitedomain.ErrExpired):
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"message": "invite not found",
		})
	case errors.Is(err, userdomain.ErrEmailTaken):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"errors": []string{"an account with that email already exists"},
		})
	default:
		AbortWithError(c, err)
	}
}

// restorePlus undoes form decoding that turned '+' into a space. Runs
// of whitespace collapse to a single '+'.
func restorePlus(email string) string {
	return strings.Join(strings.Fields(email), "+")
}

// parseTopicID is deliberately lenient: a malformed topic reference
// means no landing topic, not a failed redemption.
func parseTopicID(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
