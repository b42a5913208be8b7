package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/pkg/db/pagination"
)

type createCaseRequest struct {
	InvoiceID    string          `json:"invoice_id"`
	CustomerName string          `json:"customer_name"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      string          `json:"due_date"`
	Currency     string          `json:"currency"`
}

func (s *Server) CreateCase(c *gin.Context) {
	var req createCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate, false)
	if err != nil || dueDate == nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "due_date must be YYYY-MM-DD"))
		return
	}

	resp, err := s.caseSvc.CreateManual(c.Request.Context(), casedomain.CreateCaseRequest{
		InvoiceID:    strings.TrimSpace(req.InvoiceID),
		CustomerName: strings.TrimSpace(req.CustomerName),
		Amount:       req.Amount,
		DueDate:      *dueDate,
		Currency:     strings.TrimSpace(req.Currency),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCases(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Zone       string `form:"zone"`
		Action     string `form:"action"`
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
		IsOpen     string `form:"is_open"`
		Escalated  string `form:"escalated"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	isOpen, err := parseOptionalBool(query.IsOpen)
	if err != nil {
		AbortWithError(c, newValidationError("is_open", "invalid_is_open", "invalid is_open"))
		return
	}
	escalated, err := parseOptionalBool(query.Escalated)
	if err != nil {
		AbortWithError(c, newValidationError("escalated", "invalid_escalated", "invalid escalated"))
		return
	}

	resp, err := s.caseSvc.List(c.Request.Context(), casedomain.ListCaseRequest{
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
		Zone:       query.Zone,
		Action:     query.Action,
		Status:     query.Status,
		CustomerID: query.CustomerID,
		IsOpen:     isOpen,
		Escalated:  escalated,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":      resp.Cases,
		"page_info": resp.PageInfo,
	})
}

func (s *Server) GetCaseByID(c *gin.Context) {
	resp, err := s.caseSvc.Get(c.Request.Context(), casedomain.GetCaseRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCaseHistory(c *gin.Context) {
	resp, err := s.caseSvc.History(c.Request.Context(), casedomain.GetCaseRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type closeCaseRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CloseCase(c *gin.Context) {
	var req closeCaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.caseSvc.Close(c.Request.Context(), casedomain.CloseCaseRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Reason: req.Reason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
