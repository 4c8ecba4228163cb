package server

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obscontext "github.com/TheCyberMayor/PowerPay/internal/observability/context"
	"github.com/TheCyberMayor/PowerPay/internal/observability/logger"
	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
)

// HandleWebhook verifies, translates and applies a gateway notification to
// the payment state machine. Gateways retry deliveries, so every event is
// keyed by its provider event id; a redelivery acknowledges with the recorded
// outcome instead of reprocessing.
func (s *Server) HandleWebhook(c *gin.Context) {
	gateway := strings.TrimSpace(c.Param("gateway"))
	c.Set("gateway", gateway)
	ctx := obscontext.WithGateway(c.Request.Context(), gateway)
	c.Request = c.Request.WithContext(ctx)

	adapter, err := s.gateways.Lookup(gateway)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if err := adapter.Verify(body, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}
	event, err := adapter.Parse(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if event.Reference == "" {
		AbortWithError(c, newValidationError("reference", "required", "reference is required"))
		return
	}
	if event.ProviderEventID == "" {
		// No delivery id from the gateway; an identical redelivery still
		// dedupes on the body digest.
		sum := sha256.Sum256(body)
		event.ProviderEventID = hex.EncodeToString(sum[:])
	}

	log := logger.FromContext(ctx).With(
		zap.String("gateway", gateway),
		zap.String("event", event.Event),
		zap.String("reference", event.Reference),
	)

	outcome, err := s.paymentSvc.HandleGatewayEvent(ctx, adapter.Gateway(), event)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	log.Info("webhook applied", zap.Bool("duplicate", outcome.Duplicate))

	resp := gin.H{
		"reference": outcome.Payment.Reference,
		"status":    string(outcome.Payment.Status),
		"duplicate": outcome.Duplicate,
	}
	if outcome.Token != nil {
		resp["token"] = gin.H{
			"code_tail": logger.MaskTokenCode(outcome.Token.TokenCode),
			"units":     outcome.Token.Units,
		}
	}
	if event.Event == paymentdomain.WebhookEventChargeback || outcome.Payment.IsRefunded {
		resp["refunded_amount"] = outcome.Payment.RefundedAmount
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
