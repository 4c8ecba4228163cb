package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/events"
	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
	"github.com/TheCyberMayor/PowerPay/internal/reference"
	"github.com/TheCyberMayor/PowerPay/internal/settlement"
	"github.com/TheCyberMayor/PowerPay/internal/tariff"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      paymentdomain.Repository
	MeterRepo meterdomain.Repository
	TokenRepo tokendomain.Repository
	Settler   *settlement.Coordinator
	Outbox    *events.Outbox
	Refs      *reference.Generator
	Calc      *tariff.Calculator
	Clock     clock.Clock
	Cfg       config.Config
}

// Service owns every payment status mutation. Confirmation is the critical
// path: the status compare-and-set, the settlement writes and the outbox
// rows all commit in one transaction, so a payment can never be successful
// without its settled outcome.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      paymentdomain.Repository
	meterRepo meterdomain.Repository
	tokenRepo tokendomain.Repository
	settler   *settlement.Coordinator
	outbox    *events.Outbox
	refs      *reference.Generator
	calc      *tariff.Calculator
	clk       clock.Clock
	minAmount int64
	maxAmount int64
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("payment.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		meterRepo: p.MeterRepo,
		tokenRepo: p.TokenRepo,
		settler:   p.Settler,
		outbox:    p.Outbox,
		refs:      p.Refs,
		calc:      p.Calc,
		clk:       p.Clock,
		minAmount: p.Cfg.Payment.MinAmount,
		maxAmount: p.Cfg.Payment.MaxAmount,
	}
}

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.Payment, error) {
	if req.Amount < s.minAmount || req.Amount > s.maxAmount {
		return nil, paymentdomain.ErrInvalidAmount
	}

	meter, err := s.resolveMeter(ctx, req)
	if err != nil {
		return nil, err
	}
	if !meterdomain.Eligible(meter) {
		return nil, paymentdomain.ErrMeterNotEligible
	}

	method := req.Method
	if method == "" {
		method = paymentdomain.PaymentMethodCard
	}
	paymentType := req.Type
	if paymentType == "" {
		paymentType = paymentdomain.PaymentTypePrepaidRecharge
	}

	now := s.clk.Now()
	fee := s.calc.Fee(req.Amount)
	payment := &paymentdomain.Payment{
		ID:          s.genID.Generate(),
		Reference:   s.refs.Payment(),
		MeterID:     meter.ID,
		Amount:      req.Amount,
		Fee:         fee,
		TotalAmount: req.Amount + fee,
		Currency:    "NGN",
		Status:      paymentdomain.PaymentStatusPending,
		Method:      method,
		Gateway:     req.Gateway,
		Type:        paymentType,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, s.db, payment); err != nil {
		return nil, err
	}

	s.log.Info("payment initiated",
		zap.String("reference", payment.Reference),
		zap.String("meter_number", meter.MeterNumber),
		zap.Int64("amount", payment.Amount),
		zap.Int64("fee", payment.Fee),
	)
	return payment, nil
}

func (s *Service) resolveMeter(ctx context.Context, req paymentdomain.InitiateRequest) (*meterdomain.Meter, error) {
	if id := strings.TrimSpace(req.MeterID); id != "" {
		meterID, err := snowflake.ParseString(id)
		if err != nil {
			return nil, meterdomain.ErrMeterNotFound
		}
		meter, err := s.meterRepo.FindByID(ctx, s.db, meterID)
		if err != nil {
			return nil, err
		}
		if meter == nil {
			return nil, meterdomain.ErrMeterNotFound
		}
		return meter, nil
	}
	number := strings.TrimSpace(req.MeterNumber)
	if number == "" {
		return nil, meterdomain.ErrMeterNotFound
	}
	meter, err := s.meterRepo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrMeterNotFound
	}
	return meter, nil
}

// MarkProcessing records that the gateway accepted the payment. Repeated
// deliveries of the same transition are no-ops.
func (s *Service) MarkProcessing(ctx context.Context, ref string) (*paymentdomain.Payment, error) {
	moved, err := s.repo.MarkProcessing(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	payment, err := s.mustFind(ctx, s.db, ref)
	if err != nil {
		return nil, err
	}
	if !moved && payment.Status != paymentdomain.PaymentStatusProcessing {
		return nil, paymentdomain.ErrInvalidTransition
	}
	return payment, nil
}

// Confirm settles a gateway success exactly once. The winner of the status
// compare-and-set issues the token and stores the outbox events inside the
// same transaction; every later delivery gets the recorded outcome of that
// first confirmation.
func (s *Service) Confirm(ctx context.Context, req paymentdomain.ConfirmRequest) (*paymentdomain.ConfirmResult, error) {
	ref := strings.TrimSpace(req.Reference)
	if ref == "" {
		return nil, paymentdomain.ErrPaymentNotFound
	}

	var result *paymentdomain.ConfirmResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.confirmTx(ctx, tx, ref, req)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) confirmTx(ctx context.Context, tx *gorm.DB, ref string, req paymentdomain.ConfirmRequest) (*paymentdomain.ConfirmResult, error) {
	payment, err := s.repo.FindByAnyReference(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}

	now := s.clk.Now()
	won, err := s.repo.ClaimSuccess(ctx, tx, payment.Reference, strings.TrimSpace(req.GatewayReference), req.GatewayPayload, now)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.recordedOutcome(ctx, tx, payment.Reference)
	}
	return s.settleClaimed(ctx, tx, payment.Reference)
}

// settleClaimed runs after this transaction won the pending|processing ->
// successful compare-and-set. A settlement business failure demotes the
// payment to failed in the same transaction; any other error rolls the claim
// back entirely.
func (s *Service) settleClaimed(ctx context.Context, tx *gorm.DB, ref string) (*paymentdomain.ConfirmResult, error) {
	payment, err := s.mustFind(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	meter, err := s.meterRepo.FindByID(ctx, tx, payment.MeterID)
	if err != nil {
		return nil, err
	}
	if meter == nil {
		return nil, meterdomain.ErrMeterNotFound
	}

	settled, err := s.settler.Settle(ctx, tx, payment, meter)
	if errors.Is(err, settlement.ErrAmountBelowMinimumUnits) || errors.Is(err, settlement.ErrTokenCollisionExhausted) {
		return s.demoteToFailed(ctx, tx, payment, err)
	}
	if err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventPaymentSettled,
		Reference: payment.Reference,
		DedupeKey: payment.Reference + ":settled",
		Payload: events.PaymentPayload{
			Reference:        payment.Reference,
			GatewayReference: payment.GatewayReference,
			MeterID:          payment.MeterID.String(),
			Amount:           payment.Amount,
			Status:           string(paymentdomain.PaymentStatusSuccessful),
		}.ToMap(),
	}); err != nil {
		return nil, err
	}

	out := &paymentdomain.ConfirmResult{Payment: payment}
	if settled.Token != nil {
		out.Token = settled.Token
		out.Units = settled.Token.Units
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventTokenGenerated,
			Reference: payment.Reference,
			DedupeKey: payment.Reference + ":token",
			Payload: events.TokenPayload{
				PaymentReference: payment.Reference,
				MeterID:          payment.MeterID.String(),
				CodeTail:         codeTail(settled.Token.TokenCode),
				Units:            settled.Token.Units,
				Amount:           settled.Token.Amount,
				ExpiresAt:        settled.Token.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			}.ToMap(),
		}); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// demoteToFailed converts a freshly claimed success into a failed payment
// when settlement cannot produce a token. The demotion commits with the
// claim so the payment is never observable as successful.
func (s *Service) demoteToFailed(ctx context.Context, tx *gorm.DB, payment *paymentdomain.Payment, cause error) (*paymentdomain.ConfirmResult, error) {
	now := s.clk.Now()
	demoted, err := s.repo.MarkFailed(ctx, tx, payment.Reference, paymentdomain.FailureReasonSettlement, now,
		paymentdomain.PaymentStatusSuccessful)
	if err != nil {
		return nil, err
	}
	if !demoted {
		return nil, paymentdomain.ErrInvalidTransition
	}

	s.log.Warn("settlement failed, payment demoted",
		zap.String("reference", payment.Reference),
		zap.Error(cause),
	)

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventPaymentFailed,
		Reference: payment.Reference,
		DedupeKey: payment.Reference + ":failed",
		Payload: events.PaymentPayload{
			Reference: payment.Reference,
			MeterID:   payment.MeterID.String(),
			Amount:    payment.Amount,
			Status:    string(paymentdomain.PaymentStatusFailed),
			Reason:    paymentdomain.FailureReasonSettlement,
		}.ToMap(),
	}); err != nil {
		return nil, err
	}

	failed, err := s.mustFind(ctx, tx, payment.Reference)
	if err != nil {
		return nil, err
	}
	return &paymentdomain.ConfirmResult{Payment: failed}, nil
}

// recordedOutcome answers a confirmation that lost the compare-and-set by
// replaying what the winning confirmation recorded.
func (s *Service) recordedOutcome(ctx context.Context, tx *gorm.DB, ref string) (*paymentdomain.ConfirmResult, error) {
	payment, err := s.mustFind(ctx, tx, ref)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case paymentdomain.PaymentStatusSuccessful:
		token, err := s.tokenRepo.FindByPaymentID(ctx, tx, payment.ID)
		if err != nil {
			return nil, err
		}
		out := &paymentdomain.ConfirmResult{Payment: payment, Token: token, Duplicate: true}
		if token != nil {
			out.Units = token.Units
		}
		return out, nil
	case paymentdomain.PaymentStatusFailed:
		return &paymentdomain.ConfirmResult{Payment: payment, Duplicate: true}, nil
	default:
		// pending after a lost claim means the row moved to cancelled and
		// back is impossible; only cancelled remains.
		return nil, paymentdomain.ErrInvalidTransition
	}
}

func (s *Service) Fail(ctx context.Context, ref, reason string) (*paymentdomain.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "gateway_failure"
	}

	var payment *paymentdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		payment, txErr = s.failTx(ctx, tx, ref, reason)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) failTx(ctx context.Context, tx *gorm.DB, ref, reason string) (*paymentdomain.Payment, error) {
	moved, err := s.repo.MarkFailed(ctx, tx, ref, reason, s.clk.Now())
	if err != nil {
		return nil, err
	}
	payment, err := s.mustFind(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if !moved {
		if payment.Status == paymentdomain.PaymentStatusFailed {
			return payment, nil
		}
		return nil, paymentdomain.ErrInvalidTransition
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventPaymentFailed,
		Reference: payment.Reference,
		DedupeKey: payment.Reference + ":failed",
		Payload: events.PaymentPayload{
			Reference: payment.Reference,
			MeterID:   payment.MeterID.String(),
			Amount:    payment.Amount,
			Status:    string(paymentdomain.PaymentStatusFailed),
			Reason:    reason,
		}.ToMap(),
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

// Cancel abandons a payment before any gateway activity. Only pending
// payments may be cancelled.
func (s *Service) Cancel(ctx context.Context, ref string) (*paymentdomain.Payment, error) {
	var payment *paymentdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.MarkCancelled(ctx, tx, ref)
		if err != nil {
			return err
		}
		payment, err = s.mustFind(ctx, tx, ref)
		if err != nil {
			return err
		}
		if !moved {
			if payment.Status == paymentdomain.PaymentStatusCancelled {
				return nil
			}
			return paymentdomain.ErrInvalidTransition
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:      events.EventPaymentCancelled,
			Reference: payment.Reference,
			DedupeKey: payment.Reference + ":cancelled",
			Payload: events.PaymentPayload{
				Reference: payment.Reference,
				MeterID:   payment.MeterID.String(),
				Amount:    payment.Amount,
				Status:    string(paymentdomain.PaymentStatusCancelled),
			}.ToMap(),
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Refund records a full or partial refund against a successful payment. The
// running refunded total can never exceed the paid amount.
func (s *Service) Refund(ctx context.Context, ref string, amount int64) (*paymentdomain.Payment, error) {
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}

	var payment *paymentdomain.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		payment, txErr = s.refundTx(ctx, tx, ref, amount)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment refunded",
		zap.String("reference", payment.Reference),
		zap.Int64("amount", amount),
		zap.Int64("refunded_total", payment.RefundedAmount),
	)
	return payment, nil
}

func (s *Service) refundTx(ctx context.Context, tx *gorm.DB, ref string, amount int64) (*paymentdomain.Payment, error) {
	current, err := s.mustFind(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if current.Status != paymentdomain.PaymentStatusSuccessful {
		return nil, paymentdomain.ErrRefundNotAllowed
	}

	applied, err := s.repo.ApplyRefund(ctx, tx, current.Reference, amount, s.clk.Now())
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, paymentdomain.ErrRefundExceedsPayment
	}

	payment, err := s.mustFind(ctx, tx, current.Reference)
	if err != nil {
		return nil, err
	}

	if err := s.outbox.PublishTx(ctx, tx, events.Event{
		Type:      events.EventPaymentRefunded,
		Reference: payment.Reference,
		Payload: events.PaymentPayload{
			Reference:      payment.Reference,
			MeterID:        payment.MeterID.String(),
			Amount:         amount,
			Status:         string(payment.Status),
			RefundedAmount: payment.RefundedAmount,
		}.ToMap(),
	}); err != nil {
		return nil, err
	}
	return payment, nil
}

// HandleGatewayEvent applies a gateway notification exactly once per provider
// event id. The event row and the state change it causes commit in one
// transaction; a redelivery conflicts on the event row and answers with the
// payment's recorded state instead of reprocessing. A row left unprocessed by
// a crashed delivery is taken over, since none of its effects committed.
func (s *Service) HandleGatewayEvent(ctx context.Context, gateway paymentdomain.PaymentGateway, event *paymentdomain.WebhookEvent) (*paymentdomain.WebhookOutcome, error) {
	ref := strings.TrimSpace(event.Reference)
	if ref == "" {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	if strings.TrimSpace(event.ProviderEventID) == "" {
		return nil, paymentdomain.ErrWebhookPayload
	}

	now := s.clk.Now()
	record := &paymentdomain.GatewayEvent{
		ID:              s.genID.Generate(),
		Gateway:         gateway,
		ProviderEventID: strings.TrimSpace(event.ProviderEventID),
		Event:           event.Event,
		Reference:       ref,
		ReceivedAt:      now,
	}
	if len(event.Payload) > 0 {
		record.Payload = datatypes.JSON(event.Payload)
	}

	var outcome *paymentdomain.WebhookOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertEvent(ctx, tx, record)
		if err != nil {
			return err
		}
		if !inserted {
			stored, err := s.repo.FindEvent(ctx, tx, gateway, record.ProviderEventID)
			if err != nil {
				return err
			}
			if stored == nil {
				return paymentdomain.ErrWebhookPayload
			}
			if stored.ProcessedAt != nil {
				outcome, err = s.replayedOutcome(ctx, tx, stored.Reference)
				return err
			}
			record = stored
		}

		outcome, err = s.applyGatewayEvent(ctx, tx, ref, event)
		if err != nil {
			return err
		}
		return s.repo.MarkEventProcessed(ctx, tx, record.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Service) applyGatewayEvent(ctx context.Context, tx *gorm.DB, ref string, event *paymentdomain.WebhookEvent) (*paymentdomain.WebhookOutcome, error) {
	switch event.Event {
	case paymentdomain.WebhookEventSuccess:
		result, err := s.confirmTx(ctx, tx, ref, paymentdomain.ConfirmRequest{
			Reference:        ref,
			GatewayReference: event.GatewayReference,
			GatewayPayload:   event.Payload,
		})
		if err != nil {
			return nil, err
		}
		return &paymentdomain.WebhookOutcome{
			Payment:   result.Payment,
			Token:     result.Token,
			Units:     result.Units,
			Duplicate: result.Duplicate,
		}, nil

	case paymentdomain.WebhookEventFailure:
		payment, err := s.failTx(ctx, tx, ref, failureReason(event.Reason))
		if err != nil {
			return nil, err
		}
		return &paymentdomain.WebhookOutcome{Payment: payment}, nil

	case paymentdomain.WebhookEventChargeback:
		amount := event.Amount
		if amount == 0 {
			current, err := s.mustFind(ctx, tx, ref)
			if err != nil {
				return nil, err
			}
			amount = paymentdomain.RefundableAmount(current)
			if amount == 0 {
				return nil, paymentdomain.ErrRefundExceedsPayment
			}
		}
		payment, err := s.refundTx(ctx, tx, ref, amount)
		if err != nil {
			return nil, err
		}
		return &paymentdomain.WebhookOutcome{Payment: payment}, nil

	default:
		return nil, paymentdomain.ErrWebhookPayload
	}
}

// replayedOutcome answers a redelivered event with the payment state the
// original delivery produced.
func (s *Service) replayedOutcome(ctx context.Context, tx *gorm.DB, ref string) (*paymentdomain.WebhookOutcome, error) {
	payment, err := s.mustFind(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	out := &paymentdomain.WebhookOutcome{Payment: payment, Duplicate: true}
	if payment.Status == paymentdomain.PaymentStatusSuccessful {
		token, err := s.tokenRepo.FindByPaymentID(ctx, tx, payment.ID)
		if err != nil {
			return nil, err
		}
		out.Token = token
		if token != nil {
			out.Units = token.Units
		}
	}
	return out, nil
}

func failureReason(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "gateway_failure"
	}
	return strings.TrimSpace(reason)
}

func (s *Service) Get(ctx context.Context, ref string) (*paymentdomain.Payment, error) {
	return s.mustFind(ctx, s.db, ref)
}

func (s *Service) mustFind(ctx context.Context, db *gorm.DB, ref string) (*paymentdomain.Payment, error) {
	payment, err := s.repo.FindByAnyReference(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func codeTail(code string) string {
	if len(code) <= 4 {
		return code
	}
	return code[len(code)-4:]
}
