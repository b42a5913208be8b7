package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// History labels used across the lifecycle.
const (
	HistoryCreated      = "Case created"
	HistoryReclassified = "Risk reclassified"
	HistoryPrediction   = "Prediction updated"
	HistoryNegotiation  = "Negotiation"
	HistoryFullPayment  = "Full Payment"
	HistoryPartial      = "Partial Payment"
	HistoryClosed       = "Case closed"
)

// NewHistoryEntry builds an entry stamped with the case's resulting status.
// The caller assigns ID; the store assigns CaseID and Seq.
func NewHistoryEntry(c *Case, label, outcome, note string, at time.Time) HistoryEntry {
	return HistoryEntry{
		OccurredAt:  at.UTC(),
		ActionLabel: label,
		Outcome:     outcome,
		Note:        note,
		Status:      c.Status,
	}
}

// WithAmounts attaches the money moved and the balance left.
func (h HistoryEntry) WithAmounts(amount, balance decimal.Decimal) HistoryEntry {
	h.Amount = decimal.NewNullDecimal(amount)
	h.Balance = decimal.NewNullDecimal(balance)
	return h
}
