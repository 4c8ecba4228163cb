package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/TheCyberMayor/PowerPay/internal/clock"
	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/events"
	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
	meterrepo "github.com/TheCyberMayor/PowerPay/internal/meter/repository"
	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
	paymentrepo "github.com/TheCyberMayor/PowerPay/internal/payment/repository"
	"github.com/TheCyberMayor/PowerPay/internal/reference"
	"github.com/TheCyberMayor/PowerPay/internal/settlement"
	"github.com/TheCyberMayor/PowerPay/internal/tariff"
	"github.com/TheCyberMayor/PowerPay/internal/token/derive"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
	tokenrepo "github.com/TheCyberMayor/PowerPay/internal/token/repository"
)

type harness struct {
	db    *gorm.DB
	svc   paymentdomain.Service
	node  *snowflake.Node
	clk   clock.Clock
	meter *meterdomain.Meter
}

func setupService(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the in-memory database shared and serializes
	// transactions the way row locks would in postgres.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&meterdomain.Meter{},
		&paymentdomain.Payment{},
		&paymentdomain.GatewayEvent{},
		&tokendomain.Token{},
		&events.OutboxRecord{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	clk := clock.Fixed(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	calc := tariff.NewCalculator(tariff.DefaultTable(), tariff.DefaultPolicy())
	refs := reference.NewGenerator(clk)
	tokens := tokenrepo.Provide()
	settler := settlement.NewCoordinator(zap.NewNop(), node, calc, tokens, refs, clk, 30*24*time.Hour)

	svc := NewService(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Repo:      paymentrepo.Provide(),
		MeterRepo: meterrepo.Provide(),
		TokenRepo: tokens,
		Settler:   settler,
		Outbox:    events.NewOutbox(db, node),
		Refs:      refs,
		Calc:      calc,
		Clock:     clk,
		Cfg: config.Config{
			Payment: config.PaymentConfig{
				MinAmount:         100_00,
				MaxAmount:         50_000_00,
				TokenValidityDays: 30,
			},
		},
	})

	h := &harness{db: db, svc: svc, node: node, clk: clk}
	h.meter = h.seedMeter(t, "04123456789", "IKEDC", meterdomain.MeterTypePrepaid, meterdomain.MeterStatusActive)
	return h
}

func (h *harness) seedMeter(t *testing.T, number, disco string, mtype meterdomain.MeterType, status meterdomain.MeterStatus) *meterdomain.Meter {
	t.Helper()
	meter := &meterdomain.Meter{
		ID:          h.node.Generate(),
		MeterNumber: number,
		Disco:       disco,
		Type:        mtype,
		Status:      status,
	}
	if err := h.db.Create(meter).Error; err != nil {
		t.Fatalf("seed meter: %v", err)
	}
	return meter
}

func (h *harness) initiate(t *testing.T, amount int64) *paymentdomain.Payment {
	t.Helper()
	payment, err := h.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		MeterNumber: h.meter.MeterNumber,
		Amount:      amount,
		Method:      paymentdomain.PaymentMethodCard,
		Gateway:     paymentdomain.GatewayFlutterwave,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return payment
}

func (h *harness) countOutbox(t *testing.T, eventType string) int64 {
	t.Helper()
	var count int64
	err := h.db.Model(&events.OutboxRecord{}).
		Where("event_type = ?", eventType).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return count
}

func TestInitiateValidatesAmount(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	for _, amount := range []int64{0, 99_99, 50_000_01} {
		_, err := h.svc.Initiate(ctx, paymentdomain.InitiateRequest{
			MeterNumber: h.meter.MeterNumber,
			Amount:      amount,
		})
		if !errors.Is(err, paymentdomain.ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestInitiateRejectsBadMeter(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	_, err := h.svc.Initiate(ctx, paymentdomain.InitiateRequest{
		MeterNumber: "00000000000",
		Amount:      5000_00,
	})
	if !errors.Is(err, meterdomain.ErrMeterNotFound) {
		t.Fatalf("expected ErrMeterNotFound, got %v", err)
	}

	suspended := h.seedMeter(t, "04987654321", "EKEDC", meterdomain.MeterTypePrepaid, meterdomain.MeterStatusSuspended)
	_, err = h.svc.Initiate(ctx, paymentdomain.InitiateRequest{
		MeterNumber: suspended.MeterNumber,
		Amount:      5000_00,
	})
	if !errors.Is(err, paymentdomain.ErrMeterNotEligible) {
		t.Fatalf("expected ErrMeterNotEligible, got %v", err)
	}
}

func TestInitiateCreatesPendingPayment(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)

	if !reference.IsPaymentReference(payment.Reference) {
		t.Fatalf("unexpected reference format %q", payment.Reference)
	}
	if payment.Status != paymentdomain.PaymentStatusPending {
		t.Fatalf("expected pending, got %s", payment.Status)
	}
	if payment.Fee != 75_00 {
		t.Fatalf("expected fee 7500, got %d", payment.Fee)
	}
	if payment.TotalAmount != 5075_00 {
		t.Fatalf("expected total 507500, got %d", payment.TotalAmount)
	}
	if payment.MeterID != h.meter.ID {
		t.Fatalf("payment bound to wrong meter")
	}
}

func TestMarkProcessingIsIdempotent(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	first, err := h.svc.MarkProcessing(ctx, payment.Reference)
	if err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if first.Status != paymentdomain.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %s", first.Status)
	}

	again, err := h.svc.MarkProcessing(ctx, payment.Reference)
	if err != nil {
		t.Fatalf("repeat mark processing: %v", err)
	}
	if again.Status != paymentdomain.PaymentStatusProcessing {
		t.Fatalf("expected processing, got %s", again.Status)
	}
}

func TestConfirmSettlesAndIssuesToken(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	result, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{
		Reference:        payment.Reference,
		GatewayReference: "FLW-12345",
		GatewayPayload:   []byte(`{"event":"charge.completed"}`),
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Duplicate {
		t.Fatalf("first confirmation flagged duplicate")
	}
	if result.Payment.Status != paymentdomain.PaymentStatusSuccessful {
		t.Fatalf("expected successful, got %s", result.Payment.Status)
	}
	if result.Payment.PaidAt == nil {
		t.Fatalf("paidAt not recorded")
	}
	if result.Payment.GatewayReference != "FLW-12345" {
		t.Fatalf("gateway reference not recorded, got %q", result.Payment.GatewayReference)
	}

	if result.Token == nil {
		t.Fatalf("no token issued")
	}
	if !derive.IsWellFormed(result.Token.TokenCode) {
		t.Fatalf("malformed token code %q", result.Token.TokenCode)
	}
	if result.Units != 38789 {
		t.Fatalf("expected 38789 centi-units, got %d", result.Units)
	}
	if result.Token.Status != tokendomain.TokenStatusGenerated {
		t.Fatalf("expected generated token, got %s", result.Token.Status)
	}

	if got := h.countOutbox(t, events.EventPaymentSettled); got != 1 {
		t.Fatalf("expected 1 settled event, got %d", got)
	}
	if got := h.countOutbox(t, events.EventTokenGenerated); got != 1 {
		t.Fatalf("expected 1 token event, got %d", got)
	}
}

func TestConfirmDuplicateReturnsRecordedOutcome(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()
	req := paymentdomain.ConfirmRequest{Reference: payment.Reference, GatewayReference: "FLW-1"}

	first, err := h.svc.Confirm(ctx, req)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	second, err := h.svc.Confirm(ctx, req)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}

	if !second.Duplicate {
		t.Fatalf("second confirmation not flagged duplicate")
	}
	if second.Token == nil || second.Token.TokenCode != first.Token.TokenCode {
		t.Fatalf("duplicate confirmation returned a different token")
	}
	if second.Units != first.Units {
		t.Fatalf("duplicate confirmation returned different units: %d vs %d", second.Units, first.Units)
	}

	var tokenCount int64
	if err := h.db.Model(&tokendomain.Token{}).Count(&tokenCount).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if tokenCount != 1 {
		t.Fatalf("expected 1 token row, got %d", tokenCount)
	}
	if got := h.countOutbox(t, events.EventPaymentSettled); got != 1 {
		t.Fatalf("duplicate confirmation stored extra settled event")
	}
}

func TestConfirmConcurrentIssuesOneToken(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	req := paymentdomain.ConfirmRequest{Reference: payment.Reference, GatewayReference: "FLW-9"}

	var wg sync.WaitGroup
	results := make([]*paymentdomain.ConfirmResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = h.svc.Confirm(context.Background(), req)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("confirm %d: %v", i, errs[i])
		}
		if results[i].Token == nil {
			t.Fatalf("confirm %d returned no token", i)
		}
	}
	if results[0].Token.TokenCode != results[1].Token.TokenCode {
		t.Fatalf("concurrent confirmations issued different tokens")
	}
	if results[0].Duplicate == results[1].Duplicate {
		t.Fatalf("expected exactly one winner, got duplicates %v and %v",
			results[0].Duplicate, results[1].Duplicate)
	}

	var tokenCount int64
	if err := h.db.Model(&tokendomain.Token{}).Count(&tokenCount).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if tokenCount != 1 {
		t.Fatalf("expected 1 token row, got %d", tokenCount)
	}
}

func TestConfirmBelowMinimumUnitsFailsPayment(t *testing.T) {
	h := setupService(t)
	// ₦100 is entirely consumed by the service charge, leaving zero units.
	payment := h.initiate(t, 100_00)
	ctx := context.Background()

	result, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Token != nil {
		t.Fatalf("token issued for zero-unit settlement")
	}
	if result.Payment.Status != paymentdomain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", result.Payment.Status)
	}
	if result.Payment.FailureReason != paymentdomain.FailureReasonSettlement {
		t.Fatalf("expected settlement failure reason, got %q", result.Payment.FailureReason)
	}

	var tokenCount int64
	if err := h.db.Model(&tokendomain.Token{}).Count(&tokenCount).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if tokenCount != 0 {
		t.Fatalf("expected no token rows, got %d", tokenCount)
	}
	if got := h.countOutbox(t, events.EventPaymentFailed); got != 1 {
		t.Fatalf("expected 1 failed event, got %d", got)
	}
}

func TestConfirmUnknownReference(t *testing.T) {
	h := setupService(t)

	_, err := h.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{Reference: "PWP_1_NOSUCH"})
	if !errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestConfirmPostpaidSkipsToken(t *testing.T) {
	h := setupService(t)
	postpaid := h.seedMeter(t, "62000011122", "AEDC", meterdomain.MeterTypePostpaid, meterdomain.MeterStatusActive)
	ctx := context.Background()

	payment, err := h.svc.Initiate(ctx, paymentdomain.InitiateRequest{
		MeterNumber: postpaid.MeterNumber,
		Amount:      5000_00,
		Type:        paymentdomain.PaymentTypePostpaidBill,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	result, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Token != nil {
		t.Fatalf("postpaid settlement issued a token")
	}
	if result.Payment.Status != paymentdomain.PaymentStatusSuccessful {
		t.Fatalf("expected successful, got %s", result.Payment.Status)
	}
	if got := h.countOutbox(t, events.EventTokenGenerated); got != 0 {
		t.Fatalf("expected no token events, got %d", got)
	}
}

func TestFailRecordsReason(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	failed, err := h.svc.Fail(ctx, payment.Reference, "card_declined")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != paymentdomain.PaymentStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	if failed.FailureReason != "card_declined" {
		t.Fatalf("expected reason recorded, got %q", failed.FailureReason)
	}
	if failed.FailedAt == nil {
		t.Fatalf("failedAt not recorded")
	}

	// Repeated failure deliveries are no-ops.
	if _, err := h.svc.Fail(ctx, payment.Reference, "card_declined"); err != nil {
		t.Fatalf("repeat fail: %v", err)
	}
	if got := h.countOutbox(t, events.EventPaymentFailed); got != 1 {
		t.Fatalf("expected 1 failed event, got %d", got)
	}

	// A late success for a failed payment replays the recorded failure.
	result, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference})
	if err != nil {
		t.Fatalf("confirm after fail: %v", err)
	}
	if !result.Duplicate || result.Payment.Status != paymentdomain.PaymentStatusFailed {
		t.Fatalf("expected recorded failed outcome, got duplicate=%v status=%s",
			result.Duplicate, result.Payment.Status)
	}
}

func TestFailAfterSuccessRejected(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	if _, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	_, err := h.svc.Fail(ctx, payment.Reference, "late_failure")
	if !errors.Is(err, paymentdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelPendingOnly(t *testing.T) {
	h := setupService(t)
	ctx := context.Background()

	payment := h.initiate(t, 5000_00)
	cancelled, err := h.svc.Cancel(ctx, payment.Reference)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != paymentdomain.PaymentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	if _, err := h.svc.Cancel(ctx, payment.Reference); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}

	processing := h.initiate(t, 5000_00)
	if _, err := h.svc.MarkProcessing(ctx, processing.Reference); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	_, err = h.svc.Cancel(ctx, processing.Reference)
	if !errors.Is(err, paymentdomain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRefundLifecycle(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	_, err := h.svc.Refund(ctx, payment.Reference, 1000_00)
	if !errors.Is(err, paymentdomain.ErrRefundNotAllowed) {
		t.Fatalf("refund before success: expected ErrRefundNotAllowed, got %v", err)
	}

	if _, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	_, err = h.svc.Refund(ctx, payment.Reference, 0)
	if !errors.Is(err, paymentdomain.ErrInvalidAmount) {
		t.Fatalf("zero refund: expected ErrInvalidAmount, got %v", err)
	}

	partial, err := h.svc.Refund(ctx, payment.Reference, 1000_00)
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if !partial.IsRefunded || partial.RefundedAmount != 1000_00 {
		t.Fatalf("partial refund not recorded: refunded=%v amount=%d",
			partial.IsRefunded, partial.RefundedAmount)
	}
	if partial.Status != paymentdomain.PaymentStatusSuccessful {
		t.Fatalf("refund changed payment status to %s", partial.Status)
	}

	full, err := h.svc.Refund(ctx, payment.Reference, 4000_00)
	if err != nil {
		t.Fatalf("closing refund: %v", err)
	}
	if full.RefundedAmount != 5000_00 {
		t.Fatalf("expected full refund total, got %d", full.RefundedAmount)
	}

	_, err = h.svc.Refund(ctx, payment.Reference, 1)
	if !errors.Is(err, paymentdomain.ErrRefundExceedsPayment) {
		t.Fatalf("overshoot refund: expected ErrRefundExceedsPayment, got %v", err)
	}
	if got := h.countOutbox(t, events.EventPaymentRefunded); got != 2 {
		t.Fatalf("expected 2 refunded events, got %d", got)
	}
}

func TestGetResolvesGatewayReference(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	if _, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{
		Reference:        payment.Reference,
		GatewayReference: "FLW-777",
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	byGateway, err := h.svc.Get(ctx, "FLW-777")
	if err != nil {
		t.Fatalf("get by gateway reference: %v", err)
	}
	if byGateway.Reference != payment.Reference {
		t.Fatalf("gateway reference resolved wrong payment")
	}

	_, err = h.svc.Get(ctx, "PWP_1_MISSING")
	if !errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestHandleGatewayEventChargebackRedelivery(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	if _, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	event := &paymentdomain.WebhookEvent{
		Event:           paymentdomain.WebhookEventChargeback,
		Reference:       payment.Reference,
		ProviderEventID: "evt-cb-1",
		Amount:          2000_00,
	}
	first, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, event)
	if err != nil {
		t.Fatalf("chargeback: %v", err)
	}
	if first.Duplicate || first.Payment.RefundedAmount != 2000_00 {
		t.Fatalf("unexpected first delivery: duplicate=%v refunded=%d", first.Duplicate, first.Payment.RefundedAmount)
	}

	second, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, event)
	if err != nil {
		t.Fatalf("redelivered chargeback: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("redelivery not flagged duplicate")
	}
	if second.Payment.RefundedAmount != 2000_00 {
		t.Fatalf("redelivery changed state: refunded = %d, want %d", second.Payment.RefundedAmount, 2000_00)
	}

	// A distinct event id is a new chargeback and applies.
	next, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, &paymentdomain.WebhookEvent{
		Event:           paymentdomain.WebhookEventChargeback,
		Reference:       payment.Reference,
		ProviderEventID: "evt-cb-2",
		Amount:          1000_00,
	})
	if err != nil {
		t.Fatalf("second chargeback: %v", err)
	}
	if next.Duplicate || next.Payment.RefundedAmount != 3000_00 {
		t.Fatalf("unexpected second chargeback: duplicate=%v refunded=%d", next.Duplicate, next.Payment.RefundedAmount)
	}
}

func TestHandleGatewayEventFullChargebackRedelivery(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 4000_00)
	ctx := context.Background()

	if _, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	// Amount zero means the full remaining balance.
	event := &paymentdomain.WebhookEvent{
		Event:           paymentdomain.WebhookEventChargeback,
		Reference:       payment.Reference,
		ProviderEventID: "evt-cb-full",
	}
	first, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, event)
	if err != nil {
		t.Fatalf("full chargeback: %v", err)
	}
	if first.Payment.RefundedAmount != 4000_00 || !first.Payment.IsRefunded {
		t.Fatalf("expected fully refunded payment, got refunded=%d", first.Payment.RefundedAmount)
	}

	// The redelivery must not fail on the exhausted balance; it replays the
	// recorded outcome.
	second, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, event)
	if err != nil {
		t.Fatalf("redelivered full chargeback: %v", err)
	}
	if !second.Duplicate || second.Payment.RefundedAmount != 4000_00 {
		t.Fatalf("unexpected redelivery outcome: duplicate=%v refunded=%d", second.Duplicate, second.Payment.RefundedAmount)
	}

	// A genuinely new chargeback against the exhausted balance is rejected.
	_, err = h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, &paymentdomain.WebhookEvent{
		Event:           paymentdomain.WebhookEventChargeback,
		Reference:       payment.Reference,
		ProviderEventID: "evt-cb-late",
	})
	if !errors.Is(err, paymentdomain.ErrRefundExceedsPayment) {
		t.Fatalf("expected ErrRefundExceedsPayment, got %v", err)
	}
}

func TestHandleGatewayEventSuccessRedelivery(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	event := &paymentdomain.WebhookEvent{
		Event:            paymentdomain.WebhookEventSuccess,
		Reference:        payment.Reference,
		ProviderEventID:  "evt-ok-1",
		GatewayReference: "FLW-900",
	}
	first, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayFlutterwave, event)
	if err != nil {
		t.Fatalf("success event: %v", err)
	}
	if first.Duplicate || first.Token == nil {
		t.Fatalf("expected fresh settlement with token")
	}

	second, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayFlutterwave, event)
	if err != nil {
		t.Fatalf("redelivered success event: %v", err)
	}
	if !second.Duplicate || second.Token == nil || second.Token.TokenCode != first.Token.TokenCode {
		t.Fatalf("redelivery did not replay the issued token")
	}

	var tokenCount int64
	if err := h.db.Model(&tokendomain.Token{}).Count(&tokenCount).Error; err != nil {
		t.Fatalf("count tokens: %v", err)
	}
	if tokenCount != 1 {
		t.Fatalf("expected 1 token, found %d", tokenCount)
	}
}

func TestHandleGatewayEventRequiresEventID(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)

	_, err := h.svc.HandleGatewayEvent(context.Background(), paymentdomain.GatewayRemita, &paymentdomain.WebhookEvent{
		Event:     paymentdomain.WebhookEventFailure,
		Reference: payment.Reference,
	})
	if !errors.Is(err, paymentdomain.ErrWebhookPayload) {
		t.Fatalf("expected ErrWebhookPayload, got %v", err)
	}
}

func TestHandleGatewayEventFailedProcessingRetries(t *testing.T) {
	h := setupService(t)
	payment := h.initiate(t, 5000_00)
	ctx := context.Background()

	// A chargeback against a payment that is not successful rolls back the
	// whole delivery, event row included, so the gateway's retry is processed
	// fresh once the payment settles.
	event := &paymentdomain.WebhookEvent{
		Event:           paymentdomain.WebhookEventChargeback,
		Reference:       payment.Reference,
		ProviderEventID: "evt-cb-early",
		Amount:          1000_00,
	}
	if _, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, event); !errors.Is(err, paymentdomain.ErrRefundNotAllowed) {
		t.Fatalf("expected ErrRefundNotAllowed, got %v", err)
	}

	if _, err := h.svc.Confirm(ctx, paymentdomain.ConfirmRequest{Reference: payment.Reference}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	retried, err := h.svc.HandleGatewayEvent(ctx, paymentdomain.GatewayRemita, event)
	if err != nil {
		t.Fatalf("retried chargeback: %v", err)
	}
	if retried.Duplicate || retried.Payment.RefundedAmount != 1000_00 {
		t.Fatalf("retry after rollback not applied: duplicate=%v refunded=%d", retried.Duplicate, retried.Payment.RefundedAmount)
	}
}
