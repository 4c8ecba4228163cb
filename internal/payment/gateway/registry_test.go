package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"testing"

	"github.com/TheCyberMayor/PowerPay/internal/config"
	"github.com/TheCyberMayor/PowerPay/internal/payment/domain"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(config.Config{
		Webhook: config.WebhookConfig{
			FlutterwaveSecret: "flw-secret",
			RemitaSecret:      "remita-secret",
		},
	})
}

func TestLookupUnsupportedGateway(t *testing.T) {
	registry := testRegistry(t)

	if _, err := registry.Lookup("paystack"); !errors.Is(err, domain.ErrGatewayUnsupported) {
		t.Fatalf("expected ErrGatewayUnsupported, got %v", err)
	}
	if _, err := registry.Lookup(" Flutterwave "); err != nil {
		t.Fatalf("lookup should normalize case and spacing: %v", err)
	}
}

func TestFlutterwaveVerify(t *testing.T) {
	registry := testRegistry(t)
	adapter, err := registry.Lookup("flutterwave")
	if err != nil {
		t.Fatal(err)
	}

	headers := http.Header{}
	headers.Set("verif-hash", "wrong")
	if err := adapter.Verify(nil, headers); !errors.Is(err, domain.ErrWebhookSignature) {
		t.Fatalf("expected ErrWebhookSignature, got %v", err)
	}

	headers.Set("verif-hash", "flw-secret")
	if err := adapter.Verify(nil, headers); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestFlutterwaveParse(t *testing.T) {
	registry := testRegistry(t)
	adapter, err := registry.Lookup("flutterwave")
	if err != nil {
		t.Fatal(err)
	}

	payload := []byte(`{"event":"charge.completed","data":{"id":456790,"tx_ref":"PAY-1","flw_ref":"FLW-9","status":"successful","amount":5075}}`)
	event, err := adapter.Parse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if event.Event != domain.WebhookEventSuccess {
		t.Fatalf("expected success event, got %s", event.Event)
	}
	if event.Reference != "PAY-1" || event.GatewayReference != "FLW-9" {
		t.Fatalf("unexpected references: %q %q", event.Reference, event.GatewayReference)
	}
	if event.ProviderEventID != "456790" {
		t.Fatalf("unexpected provider event id: %q", event.ProviderEventID)
	}

	payload = []byte(`{"event":"charge.completed","data":{"tx_ref":"PAY-1","status":"failed","processor_response":"insufficient funds"}}`)
	event, err = adapter.Parse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if event.Event != domain.WebhookEventFailure || event.Reason != "insufficient funds" {
		t.Fatalf("unexpected failure event: %+v", event)
	}

	payload = []byte(`{"event":"charge.dispute","data":{"tx_ref":"PAY-1","amount":1000.50}}`)
	event, err = adapter.Parse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if event.Event != domain.WebhookEventChargeback || event.Amount != 100050 {
		t.Fatalf("unexpected chargeback event: %+v", event)
	}

	// 49.35 naira is 4934.999... in float; the conversion must round.
	payload = []byte(`{"event":"charge.dispute","data":{"tx_ref":"PAY-1","amount":49.35}}`)
	event, err = adapter.Parse(payload)
	if err != nil {
		t.Fatal(err)
	}
	if event.Amount != 4935 {
		t.Fatalf("naira conversion truncated: got %d, want 4935", event.Amount)
	}

	if _, err := adapter.Parse([]byte(`{"event":"transfer.completed","data":{"tx_ref":"PAY-1"}}`)); !errors.Is(err, domain.ErrWebhookPayload) {
		t.Fatalf("expected ErrWebhookPayload for unknown event, got %v", err)
	}
	if _, err := adapter.Parse([]byte(`not json`)); !errors.Is(err, domain.ErrWebhookPayload) {
		t.Fatalf("expected ErrWebhookPayload for bad json, got %v", err)
	}
}

func TestGenericVerifyAndParse(t *testing.T) {
	registry := testRegistry(t)
	adapter, err := registry.Lookup("remita")
	if err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"event":"payment.success","event_id":"evt-42","reference":"PAY-2","gateway_reference":"RRR-7"}`)
	mac := hmac.New(sha256.New, []byte("remita-secret"))
	mac.Write(body)

	headers := http.Header{}
	headers.Set(signatureHeader, "deadbeef")
	if err := adapter.Verify(body, headers); !errors.Is(err, domain.ErrWebhookSignature) {
		t.Fatalf("expected ErrWebhookSignature, got %v", err)
	}

	headers.Set(signatureHeader, hex.EncodeToString(mac.Sum(nil)))
	if err := adapter.Verify(body, headers); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	event, err := adapter.Parse(body)
	if err != nil {
		t.Fatal(err)
	}
	if event.Event != domain.WebhookEventSuccess || event.Reference != "PAY-2" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if event.ProviderEventID != "evt-42" {
		t.Fatalf("unexpected provider event id: %q", event.ProviderEventID)
	}

	if _, err := adapter.Parse([]byte(`{"event":"payment.mystery","reference":"PAY-2"}`)); !errors.Is(err, domain.ErrWebhookPayload) {
		t.Fatalf("expected ErrWebhookPayload, got %v", err)
	}
}

func TestGenericVerifySkippedWithoutSecret(t *testing.T) {
	registry := testRegistry(t)
	adapter, err := registry.Lookup("interswitch")
	if err != nil {
		t.Fatal(err)
	}
	if err := adapter.Verify([]byte(`{}`), http.Header{}); err != nil {
		t.Fatalf("verification should be skipped without a secret: %v", err)
	}
}
