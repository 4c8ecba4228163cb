// Package settlement converts a payment's first successful confirmation into
// a prepaid token (or a postpaid bill credit). It always runs inside the
// transaction that moves the payment to successful, so token and status
// commit together or not at all.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
	"github.com/TheCyberMayor/PowerPay/internal/reference"
	"github.com/TheCyberMayor/PowerPay/internal/tariff"
	"github.com/TheCyberMayor/PowerPay/internal/token/derive"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

var (
	// ErrAmountBelowMinimumUnits means the amount buys zero units after the
	// service charge and VAT. The payment is forced to failed, never left
	// successful without a token.
	ErrAmountBelowMinimumUnits = errors.New("amount_below_minimum_units")
	// ErrTokenCollisionExhausted means repeated derivations kept colliding
	// with stored codes.
	ErrTokenCollisionExhausted = errors.New("token_collision_exhausted")
)

// maxDeriveAttempts bounds the regenerate-on-collision loop.
const maxDeriveAttempts = 5

// Result is the outcome of one settlement.
type Result struct {
	// Token is nil for postpaid settlements.
	Token     *tokendomain.Token
	Breakdown tariff.Breakdown
	Postpaid  bool
}

// Coordinator performs idempotent token issuance. Callers must hold the
// exclusive right to settle the payment: exactly one confirmation wins the
// status compare-and-set before Settle runs.
type Coordinator struct {
	log       *zap.Logger
	genID     *snowflake.Node
	calc      *tariff.Calculator
	tokenRepo tokendomain.Repository
	clk       clock.Clock
	validity  time.Duration

	// disambiguate is swappable in tests to force collisions.
	disambiguate func() string
}

func NewCoordinator(
	log *zap.Logger,
	genID *snowflake.Node,
	calc *tariff.Calculator,
	tokenRepo tokendomain.Repository,
	refs *reference.Generator,
	clk clock.Clock,
	validity time.Duration,
) *Coordinator {
	if validity <= 0 {
		validity = 30 * 24 * time.Hour
	}
	return &Coordinator{
		log:          log.Named("settlement"),
		genID:        genID,
		calc:         calc,
		tokenRepo:    tokenRepo,
		clk:          clk,
		validity:     validity,
		disambiguate: refs.Disambiguator,
	}
}

// Settle computes the unit/fee breakdown and issues the token for a payment
// transitioning into successful for the first time. All writes go through tx;
// a returned error leaves no partial state behind once tx rolls back.
func (c *Coordinator) Settle(ctx context.Context, tx *gorm.DB, p *paymentdomain.Payment, m *meterdomain.Meter) (*Result, error) {
	if p.Type == paymentdomain.PaymentTypePostpaidBill {
		// Postpaid payments settle against an outstanding bill balance, not
		// a token.
		return &Result{
			Breakdown: tariff.Breakdown{Amount: p.Amount, Fee: p.Fee},
			Postpaid:  true,
		}, nil
	}

	breakdown := c.calc.Calculate(p.Amount, m.Disco)
	if breakdown.Units <= 0 {
		return nil, ErrAmountBelowMinimumUnits
	}

	token, err := c.issueToken(ctx, tx, p, m, breakdown)
	if err != nil {
		return nil, err
	}

	c.log.Info("payment settled",
		zap.String("reference", p.Reference),
		zap.String("disco", m.Disco),
		zap.Int64("amount", p.Amount),
		zap.Int64("units", breakdown.Units),
	)
	return &Result{Token: token, Breakdown: breakdown}, nil
}

func (c *Coordinator) issueToken(
	ctx context.Context,
	tx *gorm.DB,
	p *paymentdomain.Payment,
	m *meterdomain.Meter,
	breakdown tariff.Breakdown,
) (*tokendomain.Token, error) {
	now := c.clk.Now()

	for attempt := 0; attempt < maxDeriveAttempts; attempt++ {
		code := derive.Code(m.MeterNumber, p.Amount, p.Reference, c.disambiguate())

		exists, err := c.tokenRepo.CodeExists(ctx, tx, code)
		if err != nil {
			return nil, err
		}
		if exists {
			c.log.Warn("token code collision, regenerating",
				zap.String("reference", p.Reference),
				zap.Int("attempt", attempt+1),
			)
			continue
		}

		token := &tokendomain.Token{
			ID:        c.genID.Generate(),
			TokenCode: code,
			PaymentID: p.ID,
			MeterID:   m.ID,
			Amount:    p.Amount,
			Units:     breakdown.Units,
			Status:    tokendomain.TokenStatusGenerated,
			ExpiresAt: now.Add(c.validity),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := c.tokenRepo.Insert(ctx, tx, token); err != nil {
			return nil, err
		}
		return token, nil
	}

	return nil, ErrTokenCollisionExhausted
}
