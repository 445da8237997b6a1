package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// CreateFromInviteRequest materializes an account for a redeemed
// invite. Group grants and the redeemed flip are applied from the
// invite's bindings inside one transaction.
type CreateFromInviteRequest struct {
	InviteID snowflake.ID
	Email    string
	Username string
	Name     string
	Password string
	// Activate marks the account usable immediately; left false the
	// account waits for email confirmation.
	Activate bool
}

// Directory is the account subsystem the invite core delegates to.
type Directory interface {
	// FindByEmail returns nil without error when no account exists.
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (*User, error)
	CreateFromInvite(ctx context.Context, req CreateFromInviteRequest) (*User, error)
}
