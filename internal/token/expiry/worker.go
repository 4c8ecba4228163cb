package expiry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Repo   tokendomain.Repository
	Clock  clock.Clock
	Config Config `optional:"true"`
}

// Worker sweeps generated tokens past their validity window into expired
// status. Redeemed tokens are untouched; expiry only closes the window for
// codes that were never loaded into a meter.
type Worker struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tokendomain.Repository
	clk  clock.Clock
	cfg  Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:   p.DB,
		log:  p.Log.Named("token.expiry"),
		repo: p.Repo,
		clk:  p.Clock,
		cfg:  p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("token expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := w.sweep(ctx)
	return err
}

func (w *Worker) sweep(ctx context.Context) (int64, error) {
	if w.db == nil || w.repo == nil {
		return 0, errors.New("expiry_worker_unavailable")
	}

	expired, err := w.repo.ExpireBatch(ctx, w.db, w.clk.Now(), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		w.log.Info("expired tokens", zap.Int64("count", expired))
	}
	return expired, nil
}
