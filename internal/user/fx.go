package user

import (
	"github.com/discourse/discourse-invite-tokens/internal/user/repository"
	"github.com/discourse/discourse-invite-tokens/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.directory",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
