package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Case is one outstanding invoice tracked through collection.
type Case struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	SourceKey    *string      `gorm:"column:source_key;size:128;uniqueIndex" json:"source_key,omitempty"`
	InvoiceID    string       `gorm:"column:invoice_id;size:128;index" json:"invoice_id"`
	CustomerID   string       `gorm:"column:customer_id;size:64;index" json:"customer_id"`
	CustomerName string       `gorm:"column:customer_name" json:"customer_name"`
	Currency     string       `gorm:"column:currency;size:8" json:"currency,omitempty"`
	PaymentTerms string       `gorm:"column:payment_terms;size:32" json:"payment_terms,omitempty"`

	OriginalAmount    decimal.Decimal `gorm:"column:original_amount;type:decimal(18,2);not null" json:"original_amount"`
	OutstandingAmount decimal.Decimal `gorm:"column:outstanding_amount;type:decimal(18,2);not null" json:"outstanding_amount"`
	CollectedAmount   decimal.Decimal `gorm:"column:collected_amount;type:decimal(18,2);not null" json:"collected_amount"`

	DocumentDate         *time.Time `gorm:"column:document_date" json:"document_date,omitempty"`
	DueDate              *time.Time `gorm:"column:due_date;index" json:"due_date,omitempty"`
	SLADate              *time.Time `gorm:"column:sla_date" json:"sla_date,omitempty"`
	SLADays              int        `gorm:"column:sla_days;not null" json:"sla_days"`
	ClearedAt            *time.Time `gorm:"column:cleared_at" json:"cleared_at,omitempty"`
	PredictedPaymentDate *time.Time `gorm:"column:predicted_payment_date" json:"predicted_payment_date,omitempty"`
	PredictedDelay       *float64   `gorm:"column:predicted_delay" json:"predicted_delay,omitempty"`

	Zone      Zone   `gorm:"column:zone;size:16;not null;index" json:"zone"`
	Action    Action `gorm:"column:action;size:16;not null;index" json:"action"`
	Status    Status `gorm:"column:status;size:32;not null;index" json:"status"`
	IsOpen    bool   `gorm:"column:is_open;not null;index" json:"is_open"`
	Escalated bool   `gorm:"column:escalated;not null" json:"escalated"`

	Fingerprint  string            `gorm:"column:fingerprint;size:64" json:"-"`
	SourceFields datatypes.JSONMap `gorm:"column:source_fields" json:"source_fields,omitempty"`

	AssignedAgentID   string         `gorm:"column:assigned_agent_id;size:64" json:"assigned_agent_id,omitempty"`
	AssignedAgentName string         `gorm:"column:assigned_agent_name" json:"assigned_agent_name,omitempty"`
	NegotiationOffer  datatypes.JSON `gorm:"column:negotiation_offer" json:"negotiation_offer,omitempty"`

	Version   int64     `gorm:"column:version;not null" json:"version"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Case) TableName() string { return "cases" }

// HistoryEntry is one append-only audit record of a case mutation.
type HistoryEntry struct {
	ID          snowflake.ID        `gorm:"primaryKey" json:"id"`
	CaseID      snowflake.ID        `gorm:"column:case_id;not null;uniqueIndex:ux_case_history_seq,priority:1" json:"case_id"`
	Seq         int                 `gorm:"column:seq;not null;uniqueIndex:ux_case_history_seq,priority:2" json:"seq"`
	OccurredAt  time.Time           `gorm:"column:occurred_at;not null" json:"occurred_at"`
	ActionLabel string              `gorm:"column:action_label;size:64;not null" json:"action"`
	Outcome     string              `gorm:"column:outcome;size:64;not null" json:"outcome"`
	Note        string              `gorm:"column:note" json:"note"`
	Status      Status              `gorm:"column:status;size:32;not null" json:"status"`
	Amount      decimal.NullDecimal `gorm:"column:amount;type:decimal(18,2)" json:"amount"`
	Balance     decimal.NullDecimal `gorm:"column:balance;type:decimal(18,2)" json:"balance"`
}

func (HistoryEntry) TableName() string { return "case_history" }

// Resolve moves the case into a terminal status. The original amount is kept.
func (c *Case) Resolve(status Status, at time.Time) {
	c.Status = status
	c.OutstandingAmount = decimal.Zero
	c.Zone = ZoneGreen
	c.Action = ActionResolved
	c.IsOpen = false
	c.Escalated = false
	if c.ClearedAt == nil {
		cleared := at.UTC()
		c.ClearedAt = &cleared
	}
}

// ApplySLA stamps the grace window on top of the due date.
func (c *Case) ApplySLA(graceDays int) {
	c.SLADays = graceDays
	if c.DueDate == nil {
		c.SLADate = nil
		return
	}
	sla := AddDays(*c.DueDate, graceDays)
	c.SLADate = &sla
}

// EffectiveDelay is the externally predicted delay, falling back to the gap
// between the predicted payment date and the due date.
func (c *Case) EffectiveDelay() float64 {
	if c.PredictedDelay != nil {
		return *c.PredictedDelay
	}
	if c.PredictedPaymentDate != nil && c.DueDate != nil {
		return DaysBetween(*c.DueDate, *c.PredictedPaymentDate)
	}
	return 0
}

// ZoneTotal aggregates open exposure per zone.
type ZoneTotal struct {
	Zone        Zone            `json:"zone"`
	Count       int64           `json:"count"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// ForecastBucket is the outstanding amount expected on one day.
type ForecastBucket struct {
	Date        time.Time       `json:"date"`
	Count       int64           `json:"count"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type Forecast struct {
	From    time.Time        `json:"from"`
	To      time.Time        `json:"to"`
	Total   decimal.Decimal  `json:"total"`
	Buckets []ForecastBucket `json:"buckets"`
}
