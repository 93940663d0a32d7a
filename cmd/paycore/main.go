package main

import (
	"github.com/bwmarrin/snowflake"
	auditservice "github.com/smallbiznis/paycore/internal/audit/service"
	"github.com/smallbiznis/paycore/internal/clock"
	"github.com/smallbiznis/paycore/internal/config"
	ledgerservice "github.com/smallbiznis/paycore/internal/ledger/service"
	"github.com/smallbiznis/paycore/internal/migration"
	"github.com/smallbiznis/paycore/internal/observability"
	"github.com/smallbiznis/paycore/internal/orchestrator"
	"github.com/smallbiznis/paycore/internal/ratelimit"
	"github.com/smallbiznis/paycore/internal/server"
	"github.com/smallbiznis/paycore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Billing domains
		auditservice.Module,
		ledgerservice.Module,
		ratelimit.Module,
		orchestrator.Module,

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
