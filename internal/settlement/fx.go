package settlement

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/reference"
	"github.com/TheCyberMayor/PowerPay/internal/tariff"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

var Module = fx.Module("settlement",
	fx.Provide(func(
		log *zap.Logger,
		genID *snowflake.Node,
		calc *tariff.Calculator,
		tokenRepo tokendomain.Repository,
		refs *reference.Generator,
		clk clock.Clock,
		cfg config.Config,
	) *Coordinator {
		validity := time.Duration(cfg.Payment.TokenValidityDays) * 24 * time.Hour
		return NewCoordinator(log, genID, calc, tokenRepo, refs, clk, validity)
	}),
)
