package token

import (
	"go.uber.org/fx"

	"github.com/TheCyberMayor/PowerPay/internal/token/repository"
	"github.com/TheCyberMayor/PowerPay/internal/token/service"
)

var Module = fx.Module("token.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
