package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TriggerIngestion runs the configured feed synchronously and returns the run report.
func (s *Server) TriggerIngestion(c *gin.Context) {
	report, err := s.ingestionSvc.Run(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) TriggerReclassification(c *gin.Context) {
	report, err := s.riskSvc.Reclassify(c.Request.Context(), s.clock.Now())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
