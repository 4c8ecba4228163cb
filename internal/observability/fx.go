// Package observability wires logging, tracing and metrics into the fx app.
package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/observability/logger"
	"github.com/TheCyberMayor/PowerPay/internal/observability/metrics"
	"github.com/TheCyberMayor/PowerPay/internal/observability/tracing"
)

var version = "dev"

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(func(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
		return tracing.NewProvider(lc, tracing.Config{
			Enabled:          cfg.Tracing.Enabled,
			ServiceName:      cfg.ServiceName,
			ServiceVersion:   version,
			Environment:      cfg.Environment,
			ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
			ExporterProtocol: cfg.Tracing.ExporterProtocol,
			SamplingRatio:    cfg.Tracing.SamplingRatio,
		}, log)
	}),
	fx.Provide(func(cfg config.Config) *metrics.OutboxMetrics {
		return metrics.OutboxWithConfig(metrics.Config{
			ServiceName: cfg.ServiceName,
			Environment: cfg.Environment,
		})
	}),
	// Providers are lazy; force the tracer provider to initialize at startup.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
