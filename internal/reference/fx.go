package reference

import (
	"go.uber.org/fx"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
)

var Module = fx.Module("reference",
	fx.Provide(func(clk clock.Clock) *Generator {
		return NewGenerator(clk)
	}),
)
