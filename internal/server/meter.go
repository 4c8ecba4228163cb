package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	meterdomain "github.com/TheCyberMayor/PowerPay/internal/meter/domain"
)

// GetMeter resolves a meter before payment so the customer can verify the
// registered name and disco.
func (s *Server) GetMeter(c *gin.Context) {
	number := strings.TrimSpace(c.Param("meterNumber"))
	if number == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	meter, err := s.meterSvc.FindByNumber(c.Request.Context(), number)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"id":            meter.ID.String(),
		"meter_number":  meter.MeterNumber,
		"customer_name": meter.CustomerName,
		"address":       meter.Address,
		"disco":         meter.Disco,
		"type":          string(meter.Type),
		"status":        string(meter.Status),
		"eligible":      meterdomain.Eligible(meter),
	}})
}
