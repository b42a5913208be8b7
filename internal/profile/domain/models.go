package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultAvgDueDays     = 30
	DefaultAvgDaysToClear = 30
	ManualIDPrefix        = "MANUAL-"
)

// Profile holds the payment behaviour of one customer, derived from its
// cleared invoices.
type Profile struct {
	ID                 string          `gorm:"primaryKey;size:64" json:"id"`
	Name               string          `gorm:"column:name;index" json:"name"`
	LatePaymentRatio   float64         `gorm:"column:late_payment_ratio;not null" json:"late_payment_ratio"`
	AvgPaymentDelay    float64         `gorm:"column:avg_payment_delay;not null" json:"avg_payment_delay"`
	StdPaymentDelay    float64         `gorm:"column:std_payment_delay;not null" json:"std_payment_delay"`
	MinPaymentDelay    float64         `gorm:"column:min_payment_delay;not null" json:"min_payment_delay"`
	MaxPaymentDelay    float64         `gorm:"column:max_payment_delay;not null" json:"max_payment_delay"`
	AvgDaysToClear     float64         `gorm:"column:avg_days_to_clear;not null" json:"avg_days_to_clear"`
	AvgDueDays         float64         `gorm:"column:avg_due_days;not null" json:"avg_due_days"`
	AvgInvoiceAmount   decimal.Decimal `gorm:"column:avg_invoice_amount;type:decimal(18,2);not null" json:"avg_invoice_amount"`
	TotalLifetimeValue decimal.Decimal `gorm:"column:total_lifetime_value;type:decimal(18,2);not null" json:"total_lifetime_value"`
	TransactionCount   int             `gorm:"column:transaction_count;not null" json:"transaction_count"`
	Synthetic          bool            `gorm:"column:synthetic;not null" json:"synthetic"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "customer_profiles" }

// ClearedCase is the slice of a closed case the aggregation reads.
type ClearedCase struct {
	CustomerID     string
	CustomerName   string
	DocumentDate   *time.Time
	DueDate        time.Time
	ClearedAt      time.Time
	OriginalAmount decimal.Decimal
}

// NewSynthetic builds the cold-start profile used for a customer with no
// history.
func NewSynthetic(id, name string, now time.Time) Profile {
	return Profile{
		ID:                 id,
		Name:               name,
		AvgDaysToClear:     DefaultAvgDaysToClear,
		AvgDueDays:         DefaultAvgDueDays,
		AvgInvoiceAmount:   decimal.Zero,
		TotalLifetimeValue: decimal.Zero,
		Synthetic:          true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
