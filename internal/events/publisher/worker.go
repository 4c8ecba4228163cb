package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/events"
	"github.com/TheCyberMayor/PowerPay/internal/observability/metrics"
	"github.com/TheCyberMayor/PowerPay/internal/observability/tracing"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Producer sarama.SyncProducer `optional:"true"`
	Topic    Topic
	Config   Config                 `optional:"true"`
	Metrics  *metrics.OutboxMetrics `optional:"true"`
}

// Topic is the Kafka topic outbox events are drained to.
type Topic string

// Worker drains unpublished outbox rows to Kafka. Rows are marked published
// only after the broker acknowledges the message, so delivery is
// at-least-once; consumers dedupe on the event id.
type Worker struct {
	db       *gorm.DB
	log      *zap.Logger
	producer sarama.SyncProducer
	topic    string
	cfg      Config
	metrics  *metrics.OutboxMetrics
}

type envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Reference string          `json:"reference"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:       p.DB,
		log:      p.Log.Named("events.publisher"),
		producer: p.Producer,
		topic:    string(p.Topic),
		cfg:      p.Config.withDefaults(),
		metrics:  p.Metrics,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce() error {
	if w.producer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := w.drainBatch(ctx, w.cfg.BatchSize)
	return err
}

func (w *Worker) drainBatch(ctx context.Context, limit int) (int, error) {
	if w.db == nil {
		return 0, errors.New("publisher_unavailable")
	}
	if limit <= 0 {
		limit = w.cfg.BatchSize
	}

	var rows []events.OutboxRecord
	err := w.db.WithContext(ctx).
		Where("published = ?", false).
		Order("id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	published := 0
	for _, row := range rows {
		if err := w.send(ctx, row); err != nil {
			w.metrics.IncPublished(row.EventType, "failed")
			return published, err
		}

		result := w.db.WithContext(ctx).Exec(
			`UPDATE outbox_events SET published = true WHERE id = ? AND published = false`,
			row.ID,
		)
		if result.Error != nil {
			return published, result.Error
		}
		w.metrics.IncPublished(row.EventType, "success")
		w.metrics.ObservePublishLag(time.Since(row.CreatedAt))
		published++
	}

	var backlog int64
	if err := w.db.WithContext(ctx).
		Model(&events.OutboxRecord{}).
		Where("published = ?", false).
		Count(&backlog).Error; err == nil {
		w.metrics.SetBacklog(backlog)
	}
	return published, nil
}

func (w *Worker) send(ctx context.Context, row events.OutboxRecord) error {
	body, err := json.Marshal(envelope{
		ID:        row.ID.String(),
		Type:      row.EventType,
		Reference: row.Reference,
		Payload:   json.RawMessage(row.Payload),
		CreatedAt: row.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	carrier := propagation.MapCarrier{}
	tracing.InjectContext(ctx, carrier)
	headers := make([]sarama.RecordHeader, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{
			Key:   []byte(k),
			Value: []byte(v),
		})
	}

	_, _, err = w.producer.SendMessage(&sarama.ProducerMessage{
		Topic:   w.topic,
		Key:     sarama.StringEncoder(row.Reference),
		Value:   sarama.ByteEncoder(body),
		Headers: headers,
	})
	return err
}
