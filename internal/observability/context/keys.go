package context

import "context"

type contextKey string

const (
	requestIDKey contextKey = "observability_request_id"
	gatewayKey   contextKey = "observability_gateway"
	referenceKey contextKey = "observability_payment_reference"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithGateway(ctx context.Context, gateway string) context.Context {
	if ctx == nil || gateway == "" {
		return ctx
	}
	return context.WithValue(ctx, gatewayKey, gateway)
}

func GatewayFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(gatewayKey).(string)
	return value
}

func WithPaymentReference(ctx context.Context, reference string) context.Context {
	if ctx == nil || reference == "" {
		return ctx
	}
	return context.WithValue(ctx, referenceKey, reference)
}

func PaymentReferenceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(referenceKey).(string)
	return value
}
