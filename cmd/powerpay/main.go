package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/events"
	"github.com/TheCyberMayor/PowerPay/internal/events/publisher"
	"github.com/TheCyberMayor/PowerPay/internal/meter"
	"github.com/TheCyberMayor/PowerPay/internal/migration"
	"github.com/TheCyberMayor/PowerPay/internal/observability"
	"github.com/TheCyberMayor/PowerPay/internal/payment"
	"github.com/TheCyberMayor/PowerPay/internal/reference"
	"github.com/TheCyberMayor/PowerPay/internal/seed"
	"github.com/TheCyberMayor/PowerPay/internal/server"
	"github.com/TheCyberMayor/PowerPay/internal/settlement"
	"github.com/TheCyberMayor/PowerPay/internal/tariff"
	"github.com/TheCyberMayor/PowerPay/internal/token"
	"github.com/TheCyberMayor/PowerPay/internal/token/expiry"
	"github.com/TheCyberMayor/PowerPay/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		clock.Module,

		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if !cfg.IsProduction() {
				return seed.EnsureDemoMeters(conn)
			}
			return nil
		}),

		reference.Module,
		tariff.Module,
		meter.Module,
		token.Module,
		expiry.Module,
		settlement.Module,
		events.Module,
		publisher.Module,
		payment.Module,
		server.Module,
	)
	app.Run()
}
