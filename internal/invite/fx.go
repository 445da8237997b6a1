package invite

import (
	"github.com/discourse/discourse-invite-tokens/internal/invite/repository"
	"github.com/discourse/discourse-invite-tokens/internal/invite/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invite.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
