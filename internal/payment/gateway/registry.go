package gateway

import (
	"strings"

	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/payment/domain"
)

// Registry maps gateway names from the webhook path to their adapters.
type Registry struct {
	adapters map[domain.PaymentGateway]domain.GatewayAdapter
}

// NewRegistry builds the adapter set for every supported gateway.
func NewRegistry(cfg config.Config) *Registry {
	adapters := []domain.GatewayAdapter{
		&flutterwaveAdapter{secret: cfg.Webhook.FlutterwaveSecret},
		&genericAdapter{gateway: domain.GatewayRemita, secret: cfg.Webhook.RemitaSecret},
		&genericAdapter{gateway: domain.GatewayInterswitch, secret: cfg.Webhook.InterswitchSecret},
	}
	byGateway := make(map[domain.PaymentGateway]domain.GatewayAdapter, len(adapters))
	for _, adapter := range adapters {
		byGateway[adapter.Gateway()] = adapter
	}
	return &Registry{adapters: byGateway}
}

// Lookup resolves the adapter for a gateway path segment.
func (r *Registry) Lookup(name string) (domain.GatewayAdapter, error) {
	adapter, ok := r.adapters[domain.PaymentGateway(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, domain.ErrGatewayUnsupported
	}
	return adapter, nil
}
