package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

func (s *Server) ZoneSummary(c *gin.Context) {
	resp, err := s.caseSvc.ZoneSummary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) Forecast(c *gin.Context) {
	days, err := parseOptionalInt64(c.Query("days"))
	if err != nil {
		AbortWithError(c, newValidationError("days", "invalid_days", "invalid days"))
		return
	}

	req := casedomain.ForecastRequest{}
	if days != nil {
		req.Days = int(*days)
	}

	resp, err := s.caseSvc.Forecast(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
