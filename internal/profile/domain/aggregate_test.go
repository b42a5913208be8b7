package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestAggregate(t *testing.T) {
	now := date("2024-03-01")
	rows := []ClearedCase{
		{CustomerName: "Acme", DocumentDate: ptr(date("2024-01-01")), DueDate: date("2024-01-31"), ClearedAt: date("2024-02-05"), OriginalAmount: decimal.NewFromInt(100)},
		{CustomerName: "Acme", DocumentDate: ptr(date("2024-01-01")), DueDate: date("2024-01-31"), ClearedAt: date("2024-01-26"), OriginalAmount: decimal.NewFromInt(200)},
		{CustomerName: "ACME Ltd", DueDate: date("2024-01-31"), ClearedAt: date("2024-02-10"), OriginalAmount: decimal.NewFromInt(300)},
	}

	p := Aggregate("C1", rows, now)

	assert.Equal(t, "C1", p.ID)
	assert.Equal(t, "Acme", p.Name)
	assert.Equal(t, 3, p.TransactionCount)
	assert.InDelta(t, 2.0/3.0, p.LatePaymentRatio, 1e-9)
	// delays 5, -5, 10
	assert.InDelta(t, 10.0/3.0, p.AvgPaymentDelay, 1e-9)
	assert.InDelta(t, math.Sqrt(175.0/3.0), p.StdPaymentDelay, 1e-9)
	assert.Equal(t, -5.0, p.MinPaymentDelay)
	assert.Equal(t, 10.0, p.MaxPaymentDelay)
	// days to clear only from rows with a document date: 35, 25
	assert.InDelta(t, 30.0, p.AvgDaysToClear, 1e-9)
	assert.InDelta(t, 30.0, p.AvgDueDays, 1e-9)
	assert.True(t, p.AvgInvoiceAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, p.TotalLifetimeValue.Equal(decimal.NewFromInt(600)))
	assert.False(t, p.Synthetic)
}

func TestAggregateSingleCase(t *testing.T) {
	p := Aggregate("C2", []ClearedCase{
		{CustomerName: "Solo", DueDate: date("2024-01-10"), ClearedAt: date("2024-01-13"), OriginalAmount: decimal.NewFromInt(50)},
	}, date("2024-02-01"))

	assert.Equal(t, 0.0, p.StdPaymentDelay)
	assert.Equal(t, 1.0, p.LatePaymentRatio)
	assert.Equal(t, float64(DefaultAvgDaysToClear), p.AvgDaysToClear)
	assert.Equal(t, float64(DefaultAvgDueDays), p.AvgDueDays)
}

func TestNewSynthetic(t *testing.T) {
	p := NewSynthetic("MANUAL-1", "New Co", date("2024-01-01"))
	assert.True(t, p.Synthetic)
	assert.Equal(t, 0.0, p.LatePaymentRatio)
	assert.Equal(t, float64(30), p.AvgDueDays)
	assert.Equal(t, float64(30), p.AvgDaysToClear)
}
