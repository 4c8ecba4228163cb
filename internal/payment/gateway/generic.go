package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/TheCyberMayor/PowerPay/internal/payment/domain"
)

// signatureHeader carries the hex HMAC-SHA256 of the raw request body.
const signatureHeader = "X-Webhook-Signature"

// genericAdapter handles gateways that already deliver the normalized event
// shape, authenticated with an HMAC signature over the body.
type genericAdapter struct {
	gateway domain.PaymentGateway
	secret  string
}

type genericPayload struct {
	Event            string          `json:"event"`
	EventID          string          `json:"event_id"`
	Reference        string          `json:"reference"`
	GatewayReference string          `json:"gateway_reference"`
	Reason           string          `json:"reason"`
	Amount           int64           `json:"amount"`
	Payload          json.RawMessage `json:"payload"`
}

func (a *genericAdapter) Gateway() domain.PaymentGateway { return a.gateway }

func (a *genericAdapter) Verify(payload []byte, headers http.Header) error {
	if a.secret == "" {
		return nil
	}
	mac := hmac.New(sha256.New, []byte(a.secret))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))
	got := strings.TrimSpace(headers.Get(signatureHeader))
	if !hmac.Equal([]byte(got), []byte(want)) {
		return domain.ErrWebhookSignature
	}
	return nil
}

func (a *genericAdapter) Parse(payload []byte) (*domain.WebhookEvent, error) {
	var native genericPayload
	if err := json.Unmarshal(payload, &native); err != nil {
		return nil, domain.ErrWebhookPayload
	}
	switch native.Event {
	case domain.WebhookEventSuccess, domain.WebhookEventFailure, domain.WebhookEventChargeback:
	default:
		return nil, domain.ErrWebhookPayload
	}
	return &domain.WebhookEvent{
		Event:            native.Event,
		ProviderEventID:  strings.TrimSpace(native.EventID),
		Reference:        strings.TrimSpace(native.Reference),
		GatewayReference: strings.TrimSpace(native.GatewayReference),
		Reason:           strings.TrimSpace(native.Reason),
		Amount:           native.Amount,
		Payload:          []byte(native.Payload),
	}, nil
}
