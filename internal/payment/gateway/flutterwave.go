package gateway

import (
	"crypto/subtle"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/TheCyberMayor/PowerPay/internal/payment/domain"
)

// flutterwaveAdapter handles Flutterwave's webhook format: the shared secret
// is echoed back verbatim in the verif-hash header, and charge outcomes
// arrive as charge.completed events with a per-charge status field.
type flutterwaveAdapter struct {
	secret string
}

type flutterwavePayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		FlwRef string `json:"flw_ref"`
		Status string `json:"status"`
		// Amount is in naira.
		Amount           float64 `json:"amount"`
		ProcessorMessage string  `json:"processor_response"`
	} `json:"data"`
}

func (a *flutterwaveAdapter) Gateway() domain.PaymentGateway { return domain.GatewayFlutterwave }

func (a *flutterwaveAdapter) Verify(_ []byte, headers http.Header) error {
	if a.secret == "" {
		return nil
	}
	got := headers.Get("verif-hash")
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.secret)) != 1 {
		return domain.ErrWebhookSignature
	}
	return nil
}

func (a *flutterwaveAdapter) Parse(payload []byte) (*domain.WebhookEvent, error) {
	var native flutterwavePayload
	if err := json.Unmarshal(payload, &native); err != nil {
		return nil, domain.ErrWebhookPayload
	}
	if native.Data.TxRef == "" {
		return nil, domain.ErrWebhookPayload
	}

	event := &domain.WebhookEvent{
		Reference:        native.Data.TxRef,
		GatewayReference: native.Data.FlwRef,
		Payload:          payload,
	}
	if native.Data.ID != 0 {
		event.ProviderEventID = strconv.FormatInt(native.Data.ID, 10)
	}
	switch {
	case native.Event == "charge.completed" && strings.EqualFold(native.Data.Status, "successful"):
		event.Event = domain.WebhookEventSuccess
	case native.Event == "charge.completed":
		event.Event = domain.WebhookEventFailure
		event.Reason = native.Data.ProcessorMessage
	case native.Event == "charge.dispute":
		event.Event = domain.WebhookEventChargeback
		// Flutterwave amounts are float naira; round, don't truncate.
		event.Amount = int64(math.Round(native.Data.Amount * 100))
	default:
		return nil, domain.ErrWebhookPayload
	}
	return event, nil
}
