package events

// Domain event types emitted on payment terminal transitions and token
// issuance. Delivery of the resulting SMS/email/push is entirely external.
const (
	EventPaymentSettled   = "payment.settled"
	EventPaymentFailed    = "payment.failed"
	EventPaymentCancelled = "payment.cancelled"
	EventPaymentRefunded  = "payment.refunded"
	EventTokenGenerated   = "token.generated"
)

// PaymentPayload captures the minimal data consumers need to act on a
// payment transition. Amounts are kobo.
type PaymentPayload struct {
	Reference        string `json:"reference"`
	GatewayReference string `json:"gateway_reference,omitempty"`
	MeterID          string `json:"meter_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	Reason           string `json:"reason,omitempty"`
	RefundedAmount   int64  `json:"refunded_amount,omitempty"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p PaymentPayload) ToMap() map[string]any {
	payload := map[string]any{
		"reference": p.Reference,
		"meter_id":  p.MeterID,
		"amount":    p.Amount,
		"status":    p.Status,
	}
	if p.GatewayReference != "" {
		payload["gateway_reference"] = p.GatewayReference
	}
	if p.Reason != "" {
		payload["reason"] = p.Reason
	}
	if p.RefundedAmount != 0 {
		payload["refunded_amount"] = p.RefundedAmount
	}
	return payload
}

// TokenPayload captures the data needed to notify a customer of a freshly
// issued token. The code is delivered masked except for its tail; the full
// code lives only in the tokens table.
type TokenPayload struct {
	PaymentReference string `json:"payment_reference"`
	MeterID          string `json:"meter_id"`
	CodeTail         string `json:"code_tail"`
	Units            int64  `json:"units"`
	Amount           int64  `json:"amount"`
	ExpiresAt        string `json:"expires_at"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p TokenPayload) ToMap() map[string]any {
	return map[string]any{
		"payment_reference": p.PaymentReference,
		"meter_id":          p.MeterID,
		"code_tail":         p.CodeTail,
		"units":             p.Units,
		"amount":            p.Amount,
		"expires_at":        p.ExpiresAt,
	}
}
