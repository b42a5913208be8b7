package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateShapes(t *testing.T) {
	want := time.Date(2020, 1, 25, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"20200125", "20200125.0", "2020-01-25", "2020-01-25T00:00:00Z", " 2020-01-25 00:00:00 "} {
		got, err := ParseDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
	}

	for _, raw := range []string{"", "n/a", "2020-13-45", "1.0"} {
		_, err := ParseDate(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseEnums(t *testing.T) {
	z, err := ParseZone(" red ")
	require.NoError(t, err)
	assert.Equal(t, ZoneRed, z)

	_, err = ParseZone("PURPLE")
	assert.True(t, errors.Is(err, ErrInvalidZone))

	_, err = ParseAction("SMS")
	assert.True(t, errors.Is(err, ErrInvalidAction))

	s, err := ParseStatus("negotiation_active")
	require.NoError(t, err)
	assert.Equal(t, StatusNegotiationActive, s)
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusClosed.Terminal())
	assert.False(t, StatusPlanAgreed.Terminal())

	assert.True(t, StatusOpen.Reclassifiable())
	assert.True(t, StatusNegotiationActive.Reclassifiable())
	assert.False(t, StatusPlanAgreed.Reclassifiable())
	assert.False(t, StatusNegotiationFailed.Reclassifiable())
}

func TestResolveKeepsOriginalAmount(t *testing.T) {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := &Case{
		Status:            StatusOpen,
		Zone:              ZoneRed,
		Action:            ActionEscalate,
		IsOpen:            true,
		Escalated:         true,
		OriginalAmount:    decimal.NewFromInt(1000),
		OutstandingAmount: decimal.NewFromInt(400),
	}

	c.Resolve(StatusPaid, at)

	assert.Equal(t, StatusPaid, c.Status)
	assert.True(t, c.OutstandingAmount.IsZero())
	assert.True(t, c.OriginalAmount.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, ZoneGreen, c.Zone)
	assert.Equal(t, ActionResolved, c.Action)
	assert.False(t, c.IsOpen)
	assert.False(t, c.Escalated)
	require.NotNil(t, c.ClearedAt)
	assert.True(t, at.Equal(*c.ClearedAt))
}

func TestApplySLA(t *testing.T) {
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	c := &Case{DueDate: &due}
	c.ApplySLA(5)
	require.NotNil(t, c.SLADate)
	assert.Equal(t, "2024-01-15", c.SLADate.Format("2006-01-02"))
	assert.Equal(t, 5, c.SLADays)

	c.DueDate = nil
	c.ApplySLA(3)
	assert.Nil(t, c.SLADate)
}

func TestEffectiveDelay(t *testing.T) {
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	predicted := due.AddDate(0, 0, 9)
	c := &Case{DueDate: &due, PredictedPaymentDate: &predicted}
	assert.InDelta(t, 9.0, c.EffectiveDelay(), 1e-9)

	explicit := 2.5
	c.PredictedDelay = &explicit
	assert.InDelta(t, 2.5, c.EffectiveDelay(), 1e-9)

	assert.Zero(t, (&Case{}).EffectiveDelay())
}

func TestRequiresContact(t *testing.T) {
	assert.True(t, ActionMail.RequiresContact())
	assert.True(t, ActionEscalate.RequiresContact())
	assert.False(t, ActionNone.RequiresContact())
	assert.False(t, ActionResolved.RequiresContact())
}
