package domain

import (
	"errors"
	"net/http"
)

// Normalized webhook event names. Gateway adapters translate each processor's
// native event vocabulary into these before the payload reaches the core.
const (
	WebhookEventSuccess    = "payment.success"
	WebhookEventFailure    = "payment.failure"
	WebhookEventChargeback = "payment.chargeback"
)

var (
	ErrWebhookSignature   = errors.New("webhook_signature_invalid")
	ErrWebhookPayload     = errors.New("webhook_payload_invalid")
	ErrGatewayUnsupported = errors.New("gateway_unsupported")
)

// WebhookEvent is the gateway-neutral form of a processor notification.
type WebhookEvent struct {
	Event     string
	Reference string
	// ProviderEventID is the gateway's delivery id, used to deduplicate
	// redeliveries. When the gateway supplies none, the caller derives one
	// from the raw body.
	ProviderEventID  string
	GatewayReference string
	Reason           string
	// Amount only applies to chargebacks, in kobo. Zero means the full
	// remaining refundable balance.
	Amount  int64
	Payload []byte
}

// GatewayAdapter verifies and translates one processor's native webhook
// payload. Verify runs before Parse; a nil error from Verify does not imply
// the payload is well formed.
type GatewayAdapter interface {
	Gateway() PaymentGateway
	Verify(payload []byte, headers http.Header) error
	Parse(payload []byte) (*WebhookEvent, error)
}
