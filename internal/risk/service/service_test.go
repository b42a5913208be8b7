package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	caserepository "github.com/smallbiznis/recovery/internal/cases/repository"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/notify/notifytest"
	"github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	clock     *clock.FakeClock
	repo      casedomain.Repository
	publisher *notifytest.Recorder
	svc       domain.Service
}

func newFixture(t *testing.T, now time.Time) fixture {
	t.Helper()
	db := storetest.OpenDB(t)
	node := storetest.NewNode(t)
	clk := clock.NewFakeClock(now)
	repo := caserepository.Provide()
	publisher := &notifytest.Recorder{}
	cfg := config.Config{Scheduler: config.SchedulerConfig{BatchSize: 2}}

	svc := New(Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Config:    cfg,
		Policy:    domain.DefaultPolicy(),
		CaseRepo:  repo,
		Publisher: publisher,
	})
	return fixture{db: db, node: node, clock: clk, repo: repo, publisher: publisher, svc: svc}
}

func (f fixture) seed(t *testing.T, c casedomain.Case) *casedomain.Case {
	return storetest.SeedCase(t, f.db, f.node, decimal.NewFromInt(1000), c)
}

func (f fixture) reload(t *testing.T, id snowflake.ID) *casedomain.Case {
	c, err := f.repo.FindByID(context.Background(), f.db, id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func TestReclassifyMovesZonesAndNotifies(t *testing.T) {
	f := newFixture(t, storetest.Date(t, "2024-01-12"))
	ctx := context.Background()

	orange := f.seed(t, casedomain.Case{
		InvoiceID:            "INV-1",
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-25"),
	})
	yellow := f.seed(t, casedomain.Case{
		InvoiceID:            "INV-2",
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-15"),
	})
	green := f.seed(t, casedomain.Case{
		InvoiceID:            "INV-3",
		DueDate:              storetest.DatePtr(t, "2024-02-10"),
		SLADate:              storetest.DatePtr(t, "2024-02-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-02-12"),
	})
	agreed := f.seed(t, casedomain.Case{
		InvoiceID:            "INV-4",
		Status:               casedomain.StatusPlanAgreed,
		IsOpen:               true,
		Zone:                 casedomain.ZoneGreen,
		DueDate:              storetest.DatePtr(t, "2024-01-01"),
		SLADate:              storetest.DatePtr(t, "2024-01-02"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-30"),
	})

	report, err := f.svc.Reclassify(ctx, storetest.Date(t, "2024-01-12"))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 3, report.Changed)
	assert.Equal(t, 2, report.Notified)

	got := f.reload(t, orange.ID)
	assert.Equal(t, casedomain.ZoneOrange, got.Zone)
	assert.Equal(t, casedomain.ActionCall, got.Action)
	assert.False(t, got.Escalated)
	assert.Equal(t, int64(1), got.Version)

	assert.Equal(t, casedomain.ZoneYellow, f.reload(t, yellow.ID).Zone)
	assert.Equal(t, casedomain.ActionMail, f.reload(t, yellow.ID).Action)
	assert.Equal(t, casedomain.ZoneGreen, f.reload(t, green.ID).Zone)
	assert.Equal(t, casedomain.ZoneGreen, f.reload(t, agreed.ID).Zone)
	assert.Equal(t, int64(0), storetest.HistoryCount(t, f.db, agreed.ID))

	history, err := f.repo.ListHistory(ctx, f.db, orange.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, casedomain.HistoryReclassified, history[0].ActionLabel)
	assert.Equal(t, "ORANGE", history[0].Outcome)
	assert.Equal(t, 1, history[0].Seq)

	events := f.publisher.Events()
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, "case.action_required", ev.Type)
	}
}

func TestReclassifyIsIdempotent(t *testing.T) {
	f := newFixture(t, storetest.Date(t, "2024-01-12"))
	ctx := context.Background()
	c := f.seed(t, casedomain.Case{
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-25"),
	})

	_, err := f.svc.Reclassify(ctx, storetest.Date(t, "2024-01-12"))
	require.NoError(t, err)
	report, err := f.svc.Reclassify(ctx, storetest.Date(t, "2024-01-12"))
	require.NoError(t, err)

	assert.Equal(t, 0, report.Changed)
	assert.Equal(t, int64(1), storetest.HistoryCount(t, f.db, c.ID))
	assert.Len(t, f.publisher.Events(), 1)
}

func TestReclassifyPastSLAEscalates(t *testing.T) {
	f := newFixture(t, storetest.Date(t, "2024-01-21"))
	ctx := context.Background()
	c := f.seed(t, casedomain.Case{
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-25"),
		Zone:                 casedomain.ZoneOrange,
		Action:               casedomain.ActionCall,
	})

	_, err := f.svc.Reclassify(ctx, storetest.Date(t, "2024-01-21").Add(9*time.Hour))
	require.NoError(t, err)

	got := f.reload(t, c.ID)
	assert.Equal(t, casedomain.ZoneRed, got.Zone)
	assert.Equal(t, casedomain.ActionEscalate, got.Action)
	assert.True(t, got.Escalated)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ESCALATE", events[0].Action)
}

func TestReclassifyAfterDatesAreAccelerated(t *testing.T) {
	now := storetest.Date(t, "2024-01-12")
	f := newFixture(t, now)
	ctx := context.Background()
	acc := storetest.NewAccelerator(f.db)

	expired := f.seed(t, casedomain.Case{
		InvoiceID:            "INV-SLA",
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-25"),
	})
	shifted := f.seed(t, casedomain.Case{
		InvoiceID:            "INV-SHIFT",
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-25"),
	})

	require.NoError(t, acc.ExpireSLA(ctx, expired.ID, now))
	n, err := acc.ShiftAllDates(ctx, -10*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = f.svc.Reclassify(ctx, now)
	require.NoError(t, err)

	for _, id := range []snowflake.ID{expired.ID, shifted.ID} {
		got := f.reload(t, id)
		assert.Equal(t, casedomain.ZoneRed, got.Zone)
		assert.Equal(t, casedomain.ActionEscalate, got.Action)
		assert.True(t, got.Escalated)
	}
}

func TestReclassifyCasesOnlyTouchesGivenIDs(t *testing.T) {
	f := newFixture(t, storetest.Date(t, "2024-01-12"))
	ctx := context.Background()
	a := f.seed(t, casedomain.Case{
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-15"),
	})
	b := f.seed(t, casedomain.Case{
		DueDate:              storetest.DatePtr(t, "2024-01-10"),
		SLADate:              storetest.DatePtr(t, "2024-01-20"),
		PredictedPaymentDate: storetest.DatePtr(t, "2024-01-15"),
	})

	report, err := f.svc.ReclassifyCases(ctx, []snowflake.ID{a.ID}, storetest.Date(t, "2024-01-12"))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, casedomain.ZoneYellow, f.reload(t, a.ID).Zone)
	assert.Equal(t, casedomain.ZoneUnknown, f.reload(t, b.ID).Zone)
}

func TestRecordPredictionDerivesDateFromDelay(t *testing.T) {
	f := newFixture(t, storetest.Date(t, "2024-01-12"))
	ctx := context.Background()
	c := f.seed(t, casedomain.Case{
		DueDate: storetest.DatePtr(t, "2024-01-10"),
		SLADate: storetest.DatePtr(t, "2024-01-20"),
	})

	delay := 3.0
	got, err := f.svc.RecordPrediction(ctx, domain.RecordPredictionRequest{
		CaseID:         c.ID.String(),
		PredictedDelay: &delay,
	})
	require.NoError(t, err)

	require.NotNil(t, got.PredictedPaymentDate)
	assert.True(t, got.PredictedPaymentDate.Equal(storetest.Date(t, "2024-01-13")))
	assert.Equal(t, casedomain.ZoneYellow, got.Zone)
	assert.Equal(t, casedomain.ActionMail, got.Action)

	history, err := f.repo.ListHistory(ctx, f.db, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, casedomain.HistoryPrediction, history[0].ActionLabel)
	assert.Equal(t, "Predicted payment 2024-01-13", history[0].Note)
}

func TestRecordPredictionRejections(t *testing.T) {
	f := newFixture(t, storetest.Date(t, "2024-01-12"))
	ctx := context.Background()
	paid := f.seed(t, casedomain.Case{Status: casedomain.StatusPaid})
	date := storetest.Date(t, "2024-02-01")

	_, err := f.svc.RecordPrediction(ctx, domain.RecordPredictionRequest{CaseID: "nope", PredictedPaymentDate: &date})
	assert.ErrorIs(t, err, casedomain.ErrInvalidID)

	_, err = f.svc.RecordPrediction(ctx, domain.RecordPredictionRequest{CaseID: paid.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidPrediction)

	_, err = f.svc.RecordPrediction(ctx, domain.RecordPredictionRequest{CaseID: paid.ID.String(), PredictedPaymentDate: &date})
	assert.ErrorIs(t, err, casedomain.ErrCaseClosed)

	_, err = f.svc.RecordPrediction(ctx, domain.RecordPredictionRequest{CaseID: f.node.Generate().String(), PredictedPaymentDate: &date})
	assert.ErrorIs(t, err, casedomain.ErrNotFound)
}
