package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
	paymentdomain "github.com/TheCyberMayor/PowerPay/internal/payment/domain"
	tokendomain "github.com/TheCyberMayor/PowerPay/internal/token/domain"
)

// ErrNotFound is the catch-all for routes and resources that do not exist.
var ErrNotFound = errors.New("not_found")

type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Code }

func invalidRequestError() *apiError {
	return &apiError{
		Status:  http.StatusBadRequest,
		Code:    "invalid_request",
		Message: "request body could not be parsed",
	}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{
		Status:  http.StatusUnprocessableEntity,
		Code:    code,
		Message: message,
		Field:   field,
	}
}

// AbortWithError converts a domain error into an HTTP response.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrGatewayUnsupported),
		errors.Is(err, meterdomain.ErrMeterNotFound),
		errors.Is(err, tokendomain.ErrTokenNotFound):
		status = http.StatusNotFound
		code = err.Error()
	case errors.Is(err, paymentdomain.ErrWebhookSignature):
		status = http.StatusUnauthorized
		code = err.Error()
	case errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrWebhookPayload),
		errors.Is(err, tokendomain.ErrTokenMalformed):
		status = http.StatusUnprocessableEntity
		code = err.Error()
	case errors.Is(err, paymentdomain.ErrMeterNotEligible),
		errors.Is(err, paymentdomain.ErrInvalidTransition),
		errors.Is(err, paymentdomain.ErrRefundNotAllowed),
		errors.Is(err, paymentdomain.ErrRefundExceedsPayment),
		errors.Is(err, tokendomain.ErrTokenAlreadyUsed),
		errors.Is(err, tokendomain.ErrTokenExpired),
		errors.Is(err, tokendomain.ErrTokenNotRedeemable):
		status = http.StatusConflict
		code = err.Error()
	}

	c.AbortWithStatusJSON(status, gin.H{"error": &apiError{
		Status:  status,
		Code:    code,
		Message: messageFor(status, code),
	}})
}

func messageFor(status int, code string) string {
	if status == http.StatusInternalServerError {
		return "an unexpected error occurred"
	}
	return code
}
