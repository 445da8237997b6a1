package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/discourse/discourse-invite-tokens/internal/config"
	"github.com/discourse/discourse-invite-tokens/internal/migration"
	"github.com/discourse/discourse-invite-tokens/internal/server"
	"github.com/discourse/discourse-invite-tokens/pkg/db"
	"github.com/discourse/discourse-invite-tokens/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
