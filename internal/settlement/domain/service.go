package domain

import (
	"context"

	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

type NegotiateRequest struct {
	CaseID         string
	CashBalance    decimal.Decimal
	MonthlyRevenue decimal.Decimal
}

type NegotiateResponse struct {
	Case  casedomain.Case `json:"case"`
	Offer Offer           `json:"offer"`
	Agent Agent           `json:"agent"`
}

type DecideRequest struct {
	CaseID   string
	Accepted bool
}

type Service interface {
	Negotiate(ctx context.Context, req NegotiateRequest) (NegotiateResponse, error)
	Decide(ctx context.Context, req DecideRequest) (casedomain.Case, error)
}
