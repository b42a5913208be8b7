package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

type Kind string

const (
	KindFull    Kind = "full"
	KindPartial Kind = "partial"
)

type ApplyPaymentRequest struct {
	CaseID string
	Amount decimal.Decimal
}

type ApplyPaymentResponse struct {
	Case     casedomain.Case `json:"case"`
	Kind     Kind            `json:"kind"`
	Deducted decimal.Decimal `json:"deducted"`
}

type Service interface {
	ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (ApplyPaymentResponse, error)
}

// Apply deducts a payment from the case. A payment that covers the
// outstanding balance settles the case; any surplus is not carried.
// It returns the history entry to append and the amount actually deducted.
func Apply(c *casedomain.Case, amount decimal.Decimal, now time.Time) (casedomain.HistoryEntry, Kind, decimal.Decimal, error) {
	if err := casedomain.ValidateAmount(amount); err != nil {
		return casedomain.HistoryEntry{}, "", decimal.Zero, err
	}
	if c.Status.Terminal() {
		return casedomain.HistoryEntry{}, "", decimal.Zero, casedomain.ErrCaseClosed
	}

	c.UpdatedAt = now
	if amount.GreaterThanOrEqual(c.OutstandingAmount) {
		deducted := c.OutstandingAmount
		c.CollectedAmount = c.CollectedAmount.Add(deducted)
		cleared := now.UTC()
		c.ClearedAt = &cleared
		c.Resolve(casedomain.StatusPaid, now)

		note := fmt.Sprintf("Received %s, case settled", deducted.StringFixed(2))
		entry := casedomain.NewHistoryEntry(c, casedomain.HistoryFullPayment, "Paid", note, now).
			WithAmounts(deducted, c.OutstandingAmount)
		return entry, KindFull, deducted, nil
	}

	c.OutstandingAmount = c.OutstandingAmount.Sub(amount)
	c.CollectedAmount = c.CollectedAmount.Add(amount)

	note := fmt.Sprintf("Received %s, %s outstanding", amount.StringFixed(2), c.OutstandingAmount.StringFixed(2))
	entry := casedomain.NewHistoryEntry(c, casedomain.HistoryPartial, "Partial", note, now).
		WithAmounts(amount, c.OutstandingAmount)
	return entry, KindPartial, amount, nil
}
