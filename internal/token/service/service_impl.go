package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	"github.com/TheCyberMayor/PowerPay/internal/token/derive"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  tokendomain.Repository
	Clock clock.Clock
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo tokendomain.Repository
	clk  clock.Clock
}

func NewService(p Params) tokendomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("token.service"),
		repo: p.Repo,
		clk:  p.Clock,
	}
}

func (s *Service) FindByCode(ctx context.Context, code string) (*tokendomain.Token, error) {
	code = strings.TrimSpace(code)
	if !derive.IsWellFormed(code) {
		return nil, tokendomain.ErrTokenMalformed
	}
	token, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, tokendomain.ErrTokenNotFound
	}
	return token, nil
}

func (s *Service) Redeem(ctx context.Context, code string) (*tokendomain.Token, error) {
	code = strings.TrimSpace(code)
	if !derive.IsWellFormed(code) {
		return nil, tokendomain.ErrTokenMalformed
	}

	now := s.clk.Now()
	var redeemed *tokendomain.Token
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if token == nil {
			return tokendomain.ErrTokenNotFound
		}
		if err := redeemErr(token, now); err != nil {
			return err
		}

		ok, err := s.repo.MarkUsed(ctx, tx, code, now)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race with another redeem or the expiry sweep.
			return tokendomain.ErrTokenNotRedeemable
		}

		token.Status = tokendomain.TokenStatusUsed
		token.UsedAt = &now
		redeemed = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("token redeemed",
		zap.String("payment_id", redeemed.PaymentID.String()),
		zap.String("meter_id", redeemed.MeterID.String()),
	)
	return redeemed, nil
}

func redeemErr(token *tokendomain.Token, now time.Time) error {
	switch {
	case token.Status == tokendomain.TokenStatusUsed:
		return tokendomain.ErrTokenAlreadyUsed
	case token.Status == tokendomain.TokenStatusExpired || tokendomain.IsExpired(token, now):
		return tokendomain.ErrTokenExpired
	case token.Status != tokendomain.TokenStatusGenerated:
		return tokendomain.ErrTokenNotRedeemable
	}
	return nil
}
