package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/cache"
	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
)

// meterCacheTTL bounds how stale a cached meter can be. Status changes from
// the disco feed take at most this long to be visible to new payments.
const meterCacheTTL = 30 * time.Second

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo meterdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     meterdomain.Repository
	byNumber *cache.TTLCache[string, *meterdomain.Meter]
}

func NewService(p Params) meterdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("meter.service"),
		repo:     p.Repo,
		byNumber: cache.NewTTLCache[string, *meterdomain.Meter](),
	}
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*meterdomain.Meter, error) {
	if id == 0 {
		return nil, meterdomain.ErrMeterNotFound
	}
	meter, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrMeterNotFound
	}
	return meter, nil
}

func (s *Service) FindByNumber(ctx context.Context, meterNumber string) (*meterdomain.Meter, error) {
	meterNumber = strings.TrimSpace(meterNumber)
	if meterNumber == "" {
		return nil, meterdomain.ErrMeterNotFound
	}

	if meter, ok := s.byNumber.Get(meterNumber); ok {
		return meter, nil
	}

	meter, err := s.repo.FindByNumber(ctx, s.db, meterNumber)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrMeterNotFound
	}

	s.byNumber.Set(meterNumber, meter, meterCacheTTL)
	return meter, nil
}
