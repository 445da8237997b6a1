// Package actor carries the authorization context for invite operations.
// The core re-checks capabilities itself rather than trusting that an
// upstream filter ran.
package actor

import (
	"context"
)

// Actor identifies the caller of an invite operation.
type Actor struct {
	// ID is the caller's user ID as resolved by the host, if any.
	ID int64
	// Admin grants invite generation.
	Admin bool
}

type actorContextKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// FromContext returns the actor from context, if set.
func FromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}

// IsAdmin reports whether the context carries an admin actor.
func IsAdmin(ctx context.Context) bool {
	a, ok := FromContext(ctx)
	return ok && a.Admin
}
