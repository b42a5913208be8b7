package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"gorm.io/datatypes"
)

// NewCase builds a case first seen in the feed. Zone and action stay
// UNKNOWN until the next classification.
func NewCase(id snowflake.ID, rec Record, row Row, fingerprint string, graceDays int, now time.Time) casedomain.Case {
	key := rec.Key
	amount := decimal.Zero
	if rec.Amount != nil {
		amount = *rec.Amount
	}

	c := casedomain.Case{
		ID:                id,
		SourceKey:         &key,
		InvoiceID:         rec.InvoiceID,
		CustomerID:        rec.CustomerID,
		CustomerName:      rec.CustomerName,
		Currency:          rec.Currency,
		PaymentTerms:      rec.PaymentTerms,
		OriginalAmount:    amount,
		OutstandingAmount: amount,
		CollectedAmount:   decimal.Zero,
		DocumentDate:      rec.DocumentDate,
		DueDate:           rec.DueDate,
		ClearedAt:         rec.ClearedAt,
		Zone:              casedomain.ZoneUnknown,
		Action:            casedomain.ActionNone,
		Status:            casedomain.StatusOpen,
		IsOpen:            true,
		Fingerprint:       fingerprint,
		SourceFields:      datatypes.JSONMap(row.Fields()),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	c.ApplySLA(graceDays)
	if rec.Open != nil && !*rec.Open {
		c.Resolve(casedomain.StatusClosed, now)
	}
	return c
}

// MergeInto refreshes an existing case from the feed. The original amount
// never changes, the outstanding amount only goes down, and a locally
// terminal case is never reopened. A moved due date keeps the grace days
// fixed when the case was created.
func MergeInto(c *casedomain.Case, rec Record, row Row, fingerprint string, now time.Time) {
	if rec.InvoiceID != "" {
		c.InvoiceID = rec.InvoiceID
	}
	if rec.CustomerID != "" {
		c.CustomerID = rec.CustomerID
	}
	if rec.CustomerName != "" {
		c.CustomerName = rec.CustomerName
	}
	if rec.Currency != "" {
		c.Currency = rec.Currency
	}
	if rec.PaymentTerms != "" {
		c.PaymentTerms = rec.PaymentTerms
	}
	if rec.DocumentDate != nil {
		c.DocumentDate = rec.DocumentDate
	}
	if rec.DueDate != nil {
		c.DueDate = rec.DueDate
		c.ApplySLA(c.SLADays)
	}
	if rec.ClearedAt != nil && c.ClearedAt == nil {
		c.ClearedAt = rec.ClearedAt
	}

	if !c.Status.Terminal() {
		if rec.Amount != nil && rec.Amount.LessThan(c.OutstandingAmount) {
			c.OutstandingAmount = *rec.Amount
		}
		if rec.Open != nil && !*rec.Open {
			c.Resolve(casedomain.StatusClosed, now)
		}
	}

	merged := datatypes.JSONMap{}
	for k, v := range c.SourceFields {
		merged[k] = v
	}
	for k, v := range row {
		merged[k] = v
	}
	c.SourceFields = merged
	c.Fingerprint = fingerprint
	c.UpdatedAt = now
}
