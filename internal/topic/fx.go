package topic

import (
	"github.com/discourse/discourse-invite-tokens/internal/topic/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("topic",
	fx.Provide(repository.Provide),
)
