package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/recovery/internal/payment/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	settlementdomain "github.com/smallbiznis/recovery/internal/settlement/domain"
)

type applyPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) ApplyPayment(c *gin.Context) {
	var req applyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.paymentSvc.ApplyPayment(c.Request.Context(), paymentdomain.ApplyPaymentRequest{
		CaseID: strings.TrimSpace(c.Param("id")),
		Amount: req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type negotiationRequest struct {
	CashBalance    decimal.Decimal `json:"cash_balance"`
	MonthlyRevenue decimal.Decimal `json:"monthly_revenue"`
}

func (s *Server) StartNegotiation(c *gin.Context) {
	var req negotiationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.settlementSvc.Negotiate(c.Request.Context(), settlementdomain.NegotiateRequest{
		CaseID:         strings.TrimSpace(c.Param("id")),
		CashBalance:    req.CashBalance,
		MonthlyRevenue: req.MonthlyRevenue,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type decisionRequest struct {
	Accepted *bool `json:"accepted"`
}

func (s *Server) DecideNegotiation(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Accepted == nil {
		AbortWithError(c, newValidationError("accepted", "required", "accepted is required"))
		return
	}

	resp, err := s.settlementSvc.Decide(c.Request.Context(), settlementdomain.DecideRequest{
		CaseID:   strings.TrimSpace(c.Param("id")),
		Accepted: *req.Accepted,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type predictionRequest struct {
	PredictedPaymentDate string   `json:"predicted_payment_date"`
	PredictedDelay       *float64 `json:"predicted_delay"`
}

func (s *Server) RecordPrediction(c *gin.Context) {
	var req predictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	predicted, err := parseOptionalTime(req.PredictedPaymentDate, false)
	if err != nil {
		AbortWithError(c, newValidationError("predicted_payment_date", "invalid_predicted_payment_date", "invalid predicted_payment_date"))
		return
	}

	resp, err := s.riskSvc.RecordPrediction(c.Request.Context(), riskdomain.RecordPredictionRequest{
		CaseID:               strings.TrimSpace(c.Param("id")),
		PredictedPaymentDate: predicted,
		PredictedDelay:       req.PredictedDelay,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
