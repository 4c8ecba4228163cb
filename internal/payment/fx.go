package payment

import (
	"go.uber.org/fx"

	"github.com/TheCyberMayor/PowerPay/internal/payment/gateway"
	"github.com/TheCyberMayor/PowerPay/internal/payment/repository"
	"github.com/TheCyberMayor/PowerPay/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(gateway.NewRegistry),
)
