package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openCase(outstanding string) *casedomain.Case {
	amount := decimal.RequireFromString(outstanding)
	return &casedomain.Case{
		ID:                7,
		Status:            casedomain.StatusOpen,
		Zone:              casedomain.ZoneRed,
		Action:            casedomain.ActionEscalate,
		Escalated:         true,
		IsOpen:            true,
		OriginalAmount:    amount,
		OutstandingAmount: amount,
		CollectedAmount:   decimal.Zero,
	}
}

func TestApplyPartialPayment(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := openCase("1000")

	entry, kind, deducted, err := Apply(c, decimal.RequireFromString("250.50"), now)
	require.NoError(t, err)
	assert.Equal(t, KindPartial, kind)
	assert.True(t, deducted.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, c.OutstandingAmount.Equal(decimal.RequireFromString("749.50")))
	assert.True(t, c.CollectedAmount.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, c.IsOpen)
	assert.Equal(t, casedomain.StatusOpen, c.Status)
	assert.Equal(t, casedomain.ZoneRed, c.Zone)

	assert.Equal(t, casedomain.HistoryPartial, entry.ActionLabel)
	assert.Equal(t, "Received 250.50, 749.50 outstanding", entry.Note)
	assert.True(t, entry.Balance.Decimal.Equal(c.OutstandingAmount))
}

func TestApplyOverpaymentSettlesWithDeductedAmount(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := openCase("400")

	entry, kind, deducted, err := Apply(c, decimal.NewFromInt(500), now)
	require.NoError(t, err)
	assert.Equal(t, KindFull, kind)
	assert.True(t, deducted.Equal(decimal.NewFromInt(400)))
	assert.True(t, c.OutstandingAmount.IsZero())
	assert.True(t, c.CollectedAmount.Equal(decimal.NewFromInt(400)))
	assert.True(t, c.OriginalAmount.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, casedomain.StatusPaid, c.Status)
	assert.Equal(t, casedomain.ZoneGreen, c.Zone)
	assert.Equal(t, casedomain.ActionResolved, c.Action)
	assert.False(t, c.IsOpen)
	assert.False(t, c.Escalated)
	require.NotNil(t, c.ClearedAt)
	assert.Equal(t, now, *c.ClearedAt)

	assert.Equal(t, casedomain.HistoryFullPayment, entry.ActionLabel)
	assert.Equal(t, "Received 400.00, case settled", entry.Note)
	assert.Equal(t, casedomain.StatusPaid, entry.Status)
}

func TestApplyRejectsInvalidPayments(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := openCase("100")

	for _, amount := range []string{"0", "-5", "1.005"} {
		_, _, _, err := Apply(c, decimal.RequireFromString(amount), now)
		assert.ErrorIs(t, err, casedomain.ErrInvalidAmount, amount)
	}
	assert.True(t, c.OutstandingAmount.Equal(decimal.NewFromInt(100)))

	c.Status = casedomain.StatusClosed
	_, _, _, err := Apply(c, decimal.NewFromInt(10), now)
	assert.ErrorIs(t, err, casedomain.ErrCaseClosed)
}
