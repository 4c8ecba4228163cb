package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/TheCyberMayor/PowerPay/internal/token/derive"
)

type tokenRequest struct {
	Code string `json:"code"`
}

// ValidateToken checks a code's shape without touching storage. Dashes and
// spaces from display formatting are stripped first.
func (s *Server) ValidateToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	code := normalizeTokenCode(req.Code)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"well_formed": derive.IsWellFormed(code),
	}})
}

// RedeemToken marks a token as loaded into its meter. In production this is
// called by the disco integration once the meter acknowledges the credit.
func (s *Server) RedeemToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	token, err := s.tokenSvc.Redeem(c.Request.Context(), normalizeTokenCode(req.Code))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tokenView(token)})
}

func normalizeTokenCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}
