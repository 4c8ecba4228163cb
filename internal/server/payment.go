package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
	"github.com/TheCyberMayor/PowerPay/internal/tariff"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

type initiatePaymentRequest struct {
	MeterID     string `json:"meter_id"`
	MeterNumber string `json:"meter_number"`
	// Amount is the recharge amount in kobo.
	Amount  int64  `json:"amount"`
	Method  string `json:"method"`
	Gateway string `json:"gateway"`
	Type    string `json:"type"`
}

type refundPaymentRequest struct {
	// Amount is the refund amount in kobo. Zero means refund the full
	// remaining balance.
	Amount int64 `json:"amount"`
}

func (s *Server) InitiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.MeterID) == "" && strings.TrimSpace(req.MeterNumber) == "" {
		AbortWithError(c, newValidationError("meter_number", "required", "meter_id or meter_number is required"))
		return
	}
	if strings.TrimSpace(req.Gateway) == "" {
		AbortWithError(c, newValidationError("gateway", "required", "gateway is required"))
		return
	}

	payment, err := s.paymentSvc.Initiate(c.Request.Context(), paymentdomain.InitiateRequest{
		MeterID:     strings.TrimSpace(req.MeterID),
		MeterNumber: strings.TrimSpace(req.MeterNumber),
		Amount:      req.Amount,
		Method:      paymentdomain.PaymentMethod(strings.TrimSpace(req.Method)),
		Gateway:     paymentdomain.PaymentGateway(strings.TrimSpace(req.Gateway)),
		Type:        paymentdomain.PaymentType(strings.TrimSpace(req.Type)),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": paymentView(payment)})
}

func (s *Server) GetPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))
	if reference == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	payment, err := s.paymentSvc.Get(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	view := gin.H{"data": paymentView(payment)}
	if payment.Status == paymentdomain.PaymentStatusSuccessful {
		token, err := s.tokenRepo.FindByPaymentID(c.Request.Context(), s.db, payment.ID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if token != nil {
			view["token"] = tokenView(token)
		}
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) CancelPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))

	payment, err := s.paymentSvc.Cancel(c.Request.Context(), reference)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": paymentView(payment)})
}

func (s *Server) RefundPayment(c *gin.Context) {
	reference := strings.TrimSpace(c.Param("reference"))

	var req refundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount := req.Amount
	if amount == 0 {
		current, err := s.paymentSvc.Get(c.Request.Context(), reference)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		amount = paymentdomain.RefundableAmount(current)
	}

	payment, err := s.paymentSvc.Refund(c.Request.Context(), reference, amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": paymentView(payment)})
}

func paymentView(p *paymentdomain.Payment) gin.H {
	view := gin.H{
		"reference":       p.Reference,
		"meter_id":        p.MeterID.String(),
		"amount":          p.Amount,
		"fee":             p.Fee,
		"total_amount":    p.TotalAmount,
		"currency":        p.Currency,
		"status":          string(p.Status),
		"method":          string(p.Method),
		"gateway":         string(p.Gateway),
		"type":            string(p.Type),
		"is_refunded":     p.IsRefunded,
		"refunded_amount": p.RefundedAmount,
		"created_at":      p.CreatedAt.UTC().Format(time.RFC3339),
	}
	if p.GatewayReference != "" {
		view["gateway_reference"] = p.GatewayReference
	}
	if p.FailureReason != "" {
		view["failure_reason"] = p.FailureReason
	}
	if p.PaidAt != nil {
		view["paid_at"] = p.PaidAt.UTC().Format(time.RFC3339)
	}
	if p.FailedAt != nil {
		view["failed_at"] = p.FailedAt.UTC().Format(time.RFC3339)
	}
	if p.RefundedAt != nil {
		view["refunded_at"] = p.RefundedAt.UTC().Format(time.RFC3339)
	}
	return view
}

func tokenView(t *tokendomain.Token) gin.H {
	return gin.H{
		"code":       tokendomain.FormatCode(t.TokenCode),
		"units":      t.Units,
		"units_kwh":  tariff.UnitsToKWh(t.Units),
		"amount":     t.Amount,
		"status":     string(t.Status),
		"expires_at": t.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
