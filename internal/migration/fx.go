package migration

import (
	"github.com/discourse/discourse-invite-tokens/internal/config"
	groupdomain "github.com/discourse/discourse-invite-tokens/internal/group/domain"
	invitedomain "github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	topicdomain "github.com/discourse/discourse-invite-tokens/internal/topic/domain"
	userdomain "github.com/discourse/discourse-invite-tokens/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// Non-postgres targets (local sqlite, mysql) take the schema
		// straight from the models.
		return conn.AutoMigrate(
			&userdomain.User{},
			&groupdomain.Group{},
			&groupdomain.GroupMember{},
			&topicdomain.Topic{},
			&invitedomain.Invite{},
			&invitedomain.InvitedGroup{},
			&invitedomain.TopicInvite{},
			&invitedomain.InvitedUser{},
		)
	}),
)
