package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/recovery/pkg/db/pagination"
)

type ListCaseRequest struct {
	PageToken  string
	PageSize   int
	Zone       string
	Action     string
	Status     string
	CustomerID string
	IsOpen     *bool
	Escalated  *bool
}

type ListCaseFilter struct {
	Zone       Zone
	Action     Action
	Status     Status
	CustomerID string
	IsOpen     *bool
	Escalated  *bool
}

type ListCaseResponse struct {
	pagination.PageInfo
	Cases []Case `json:"cases"`
}

type GetCaseRequest struct {
	ID string
}

// CreateCaseRequest is an operator-entered case outside the feed.
type CreateCaseRequest struct {
	InvoiceID    string
	CustomerName string
	Amount       decimal.Decimal
	DueDate      time.Time
	Currency     string
}

type CloseCaseRequest struct {
	ID     string
	Reason string
}

type ForecastRequest struct {
	Days int
}

type Service interface {
	List(context.Context, ListCaseRequest) (ListCaseResponse, error)
	Get(context.Context, GetCaseRequest) (Case, error)
	History(context.Context, GetCaseRequest) ([]HistoryEntry, error)
	CreateManual(context.Context, CreateCaseRequest) (Case, error)
	Close(context.Context, CloseCaseRequest) (Case, error)
	ZoneSummary(context.Context) ([]ZoneTotal, error)
	Forecast(context.Context, ForecastRequest) (Forecast, error)
}
