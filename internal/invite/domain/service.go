package domain

import (
	"context"
	"errors"

	userdomain "github.com/discourse/discourse-invite-tokens/internal/user/domain"
)

// GenerateRequest creates Quantity invites owned by Inviter.
type GenerateRequest struct {
	// Inviter is a username or email of an existing account.
	Inviter string
	// Quantity is kept as the raw request value; empty means 1, and
	// anything that does not parse to a non-negative integer is
	// rejected rather than silently treated as zero.
	Quantity string
	// GroupNames is a comma-separated list. Unknown names are skipped.
	GroupNames string
}

type ShowRequest struct {
	Token    string
	Email    string
	Username string
	Name     string
	Topic    string
}

// Preview is the read-only view of an unredeemed invite.
type Preview struct {
	Valid    bool   `json:"valid"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Topic    string `json:"topic,omitempty"`
}

type RedeemRequest struct {
	Token    string
	Email    string
	Username string
	Name     string
	Password string
	TopicID  int64
}

// RedeemResult carries the account produced by a redemption and, when
// the account is active and the invite has a landing topic, its URL.
type RedeemResult struct {
	User     *userdomain.User
	TopicURL string
}

type Service interface {
	Generate(ctx context.Context, req GenerateRequest) ([]string, error)
	Show(ctx context.Context, req ShowRequest) (*Preview, error)
	Redeem(ctx context.Context, req RedeemRequest) (*RedeemResult, error)
}

var (
	ErrNotFound              = errors.New("invite_not_found")
	ErrAlreadyRedeemed       = errors.New("invite_already_redeemed")
	ErrExpired               = errors.New("invite_expired")
	ErrInvalidQuantity       = errors.New("invalid_quantity")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrEmailMismatch         = errors.New("email_mismatch")
	ErrFeatureDisabled       = errors.New("invite_tokens_disabled")
	ErrRegistrationsDisabled = errors.New("new_registrations_disabled")
	ErrNotAuthorized         = errors.New("not_authorized")
)
