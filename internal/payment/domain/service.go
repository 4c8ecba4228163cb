package domain

import (
	"context"
	"errors"

	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

// InitiateRequest creates a new pending payment.
type InitiateRequest struct {
	MeterID string
	// MeterNumber may be supplied instead of MeterID.
	MeterNumber string
	// Amount is the recharge amount in kobo.
	Amount  int64
	Method  PaymentMethod
	Gateway PaymentGateway
	Type    PaymentType
}

// ConfirmRequest carries a normalized gateway success event.
type ConfirmRequest struct {
	// Reference is the internal or gateway-assigned payment reference.
	Reference        string
	GatewayReference string
	GatewayPayload   []byte
}

// ConfirmResult is the authoritative outcome of a confirmation. Duplicate
// deliveries receive the recorded outcome of the first confirmation.
type ConfirmResult struct {
	Payment *Payment
	// Token is nil for postpaid settlements and settlement failures.
	Token *tokendomain.Token
	// Units is the kWh credit in hundredths of a kWh.
	Units int64
	// Duplicate is true when this confirmation had already been processed.
	Duplicate bool
}

// WebhookOutcome is what a gateway delivery resolved to.
type WebhookOutcome struct {
	Payment *Payment
	// Token is set when the delivery confirmed a prepaid recharge.
	Token *tokendomain.Token
	Units int64
	// Duplicate is true when this delivery had already been processed and the
	// outcome was replayed from the stored event record.
	Duplicate bool
}

// Service owns the payment state machine. It is the only component permitted
// to mutate payment status.
type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Payment, error)
	MarkProcessing(ctx context.Context, reference string) (*Payment, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error)
	Fail(ctx context.Context, reference, reason string) (*Payment, error)
	Cancel(ctx context.Context, reference string) (*Payment, error)
	Refund(ctx context.Context, reference string, amount int64) (*Payment, error)
	Get(ctx context.Context, reference string) (*Payment, error)
	// HandleGatewayEvent applies a verified, normalized gateway notification
	// exactly once per provider event id. Redeliveries return the recorded
	// outcome with Duplicate set.
	HandleGatewayEvent(ctx context.Context, gateway PaymentGateway, event *WebhookEvent) (*WebhookOutcome, error)
}

var (
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrMeterNotEligible      = errors.New("meter_not_eligible")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrDuplicateConfirmation = errors.New("duplicate_confirmation")
	ErrRefundExceedsPayment  = errors.New("refund_exceeds_payment")
	ErrRefundNotAllowed      = errors.New("refund_not_allowed")
)
