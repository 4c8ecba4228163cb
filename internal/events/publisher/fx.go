package publisher

import (
	"context"

	"github.com/IBM/sarama"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/TheCyberMayor/PowerPay/internal/config"
)

var Module = fx.Module("events.publisher",
	fx.Provide(DefaultConfig),
	fx.Provide(NewProducer),
	fx.Provide(func(cfg config.Config) Topic {
		return Topic(cfg.Kafka.Topic)
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

// NewProducer builds a synchronous Kafka producer, or nil when Kafka is
// disabled; the worker then idles.
func NewProducer(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (sarama.SyncProducer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 5
	saramaCfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, saramaCfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("closing kafka producer")
			return producer.Close()
		},
	})
	return producer, nil
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	// The OnStart context only covers startup; the drain loop needs its own.
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
