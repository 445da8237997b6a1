// Package notifier sends post-redemption mail. Delivery is best
// effort: failures are logged, never surfaced to the redeemer.
package notifier

import (
	"context"
	"fmt"

	"github.com/discourse/discourse-invite-tokens/internal/providers/email"
	userdomain "github.com/discourse/discourse-invite-tokens/internal/user/domain"
	"go.uber.org/zap"
)

type Notifier interface {
	SendWelcome(ctx context.Context, user *userdomain.User)
	SendConfirmation(ctx context.Context, user *userdomain.User)
}

type mailNotifier struct {
	log      *zap.Logger
	provider email.Provider
}

func New(log *zap.Logger, provider email.Provider) Notifier {
	return &mailNotifier{
		log:      log.Named("notifier"),
		provider: provider,
	}
}

func (n *mailNotifier) SendWelcome(ctx context.Context, user *userdomain.User) {
	body := fmt.Sprintf("<p>Welcome, %s! Your account is ready.</p>", user.Username)
	n.send(ctx, user, "Welcome aboard", body)
}

func (n *mailNotifier) SendConfirmation(ctx context.Context, user *userdomain.User) {
	body := fmt.Sprintf("<p>Hi %s, confirm your email address to activate your account.</p>", user.Username)
	n.send(ctx, user, "Confirm your email", body)
}

func (n *mailNotifier) send(ctx context.Context, user *userdomain.User, subject, body string) {
	if err := n.provider.Send(ctx, []string{user.Email}, subject, body); err != nil {
		n.log.Warn("mail delivery failed",
			zap.String("user_id", user.ID.String()),
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}
