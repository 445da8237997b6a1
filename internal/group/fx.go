package group

import (
	"github.com/discourse/discourse-invite-tokens/internal/group/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("group",
	fx.Provide(repository.Provide),
)
