package meter

import (
	"go.uber.org/fx"

	"github.com/TheCyberMayor/PowerPay/internal/meter/repository"
	"github.com/TheCyberMayor/PowerPay/internal/meter/service"
)

var Module = fx.Module("meter.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
