package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	caserepository "github.com/smallbiznis/recovery/internal/cases/repository"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/ingestion/domain"
	"github.com/smallbiznis/recovery/internal/ingestion/feed"
	obscontext "github.com/smallbiznis/recovery/internal/observability/context"
	paymentdomain "github.com/smallbiznis/recovery/internal/payment/domain"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	profilerepository "github.com/smallbiznis/recovery/internal/profile/repository"
	profileservice "github.com/smallbiznis/recovery/internal/profile/service"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/internal/runguard"
	"github.com/smallbiznis/recovery/internal/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	repo  casedomain.Repository
	guard *runguard.Local
	svc   domain.Service
}

func newFixture(t *testing.T, batchSize int) fixture {
	t.Helper()
	db := storetest.OpenDB(t)
	node := storetest.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC))
	repo := caserepository.Provide()
	guard := runguard.NewLocal()
	cfg := config.Config{Ingestion: config.IngestionConfig{BatchSize: batchSize}}

	profiles := profileservice.New(profileservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Config: cfg,
		Repo:   profilerepository.Provide(),
	})

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Config:   cfg,
		CaseRepo: repo,
		Policy:   riskdomain.DefaultPolicy(),
		Profiles: profiles,
		Guard:    guard,
	})
	return fixture{db: db, node: node, repo: repo, guard: guard, svc: svc}
}

func (f fixture) find(t *testing.T, key string) *casedomain.Case {
	t.Helper()
	c, err := f.repo.FindBySourceKey(context.Background(), f.db, key)
	require.NoError(t, err)
	return c
}

func invoiceRow(id, amount, isOpen string) map[string]string {
	return map[string]string{
		"invoice_id":        id,
		"cust_number":       "0200769623",
		"name_customer":     "WAL-MAR corp",
		"total_open_amount": amount,
		"due_in_date":       "20200210.0",
		"isOpen":            isOpen,
	}
}

func TestIngestCreatesCasesInBatches(t *testing.T) {
	f := newFixture(t, 2)
	src := feed.NewStatic("static", []map[string]string{
		invoiceRow("1930438491.0", "100.00", "1"),
		invoiceRow("1930438492.0", "250.50", "1"),
		invoiceRow("1930438493.0", "75", "1"),
		{"name_customer": "no key"},
	})

	report, err := f.svc.Ingest(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 1, report.Malformed)
	assert.Equal(t, 2, report.Batches)
	assert.Len(t, report.RunID, 26)

	c := f.find(t, "1930438492")
	require.NotNil(t, c)
	assert.True(t, c.OriginalAmount.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, c.OutstandingAmount.Equal(c.OriginalAmount))
	assert.Equal(t, casedomain.StatusOpen, c.Status)
	assert.Equal(t, casedomain.ZoneUnknown, c.Zone)
	require.NotNil(t, c.SLADate)
	assert.Equal(t, "2020-02-25", c.SLADate.Format("2006-01-02"))
	assert.Equal(t, 15, c.SLADays)
}

func TestIngestIsIdempotent(t *testing.T) {
	f := newFixture(t, 10)
	rows := []map[string]string{
		invoiceRow("1", "100", "1"),
		invoiceRow("2", "200", "1"),
	}
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, feed.NewStatic("static", rows))
	require.NoError(t, err)
	before := f.find(t, "1")

	report, err := f.svc.Ingest(ctx, feed.NewStatic("static", rows))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 2, report.Skipped)

	after := f.find(t, "1")
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.ID, after.ID)
}

func TestIngestKeepsCallerRunID(t *testing.T) {
	f := newFixture(t, 10)
	ctx := obscontext.WithRunID(context.Background(), "sched-42")

	report, err := f.svc.Ingest(ctx, feed.NewStatic("static", []map[string]string{invoiceRow("7", "10", "1")}))
	require.NoError(t, err)
	assert.Equal(t, "sched-42", report.RunID)
}

func TestIngestRefreshKeepsLifecycleRules(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, feed.NewStatic("static", []map[string]string{
		invoiceRow("1", "100", "1"),
		invoiceRow("2", "100", "1"),
		invoiceRow("3", "100", "1"),
	}))
	require.NoError(t, err)

	// a local payment brings case 3 down and marks it paid
	paid := f.find(t, "3")
	require.NoError(t, f.db.Model(&casedomain.Case{}).Where("id = ?", paid.ID).Updates(map[string]any{
		"status":             casedomain.StatusPaid,
		"outstanding_amount": decimal.Zero,
		"is_open":            false,
	}).Error)

	report, err := f.svc.Ingest(ctx, feed.NewStatic("static", []map[string]string{
		invoiceRow("1", "150", "1"),
		invoiceRow("2", "60", "0"),
		invoiceRow("3", "90", "1"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)

	raised := f.find(t, "1")
	assert.True(t, raised.OriginalAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, raised.OutstandingAmount.Equal(decimal.NewFromInt(100)))

	closed := f.find(t, "2")
	assert.Equal(t, casedomain.StatusClosed, closed.Status)
	assert.True(t, closed.OutstandingAmount.IsZero())
	assert.Equal(t, casedomain.ZoneGreen, closed.Zone)
	assert.Equal(t, casedomain.ActionResolved, closed.Action)
	assert.False(t, closed.IsOpen)

	stillPaid := f.find(t, "3")
	assert.Equal(t, casedomain.StatusPaid, stillPaid.Status)
	assert.True(t, stillPaid.OutstandingAmount.IsZero())
}

func TestIngestCountsDecodeErrorsButWritesRow(t *testing.T) {
	f := newFixture(t, 10)
	row := invoiceRow("9", "abc", "1")
	row["due_in_date"] = "not-a-date"

	report, err := f.svc.Ingest(context.Background(), feed.NewStatic("static", []map[string]string{row}))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Errors)

	c := f.find(t, "9")
	require.NotNil(t, c)
	assert.Nil(t, c.DueDate)
	assert.Equal(t, casedomain.ZoneUnknown, c.Zone)
}

func TestIngestMergesDuplicateKeysInOneBatch(t *testing.T) {
	f := newFixture(t, 10)
	report, err := f.svc.Ingest(context.Background(), feed.NewStatic("static", []map[string]string{
		invoiceRow("5", "100", "1"),
		invoiceRow("5", "80", "1"),
	}))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	c := f.find(t, "5")
	assert.True(t, c.OriginalAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, c.OutstandingAmount.Equal(decimal.NewFromInt(80)))
}

type cancelingSource struct {
	rows     []map[string]string
	cancelAt int
	cancel   context.CancelFunc
}

func (s *cancelingSource) Name() string { return "canceling" }

func (s *cancelingSource) Open(context.Context) (domain.Iterator, error) {
	return &cancelingIterator{src: s}, nil
}

type cancelingIterator struct {
	src *cancelingSource
	pos int
}

func (it *cancelingIterator) Next() (map[string]string, error) {
	if it.pos >= len(it.src.rows) {
		return nil, io.EOF
	}
	if it.pos == it.src.cancelAt {
		it.src.cancel()
	}
	row := it.src.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *cancelingIterator) Close() error { return nil }

func TestIngestCommitsInFlightBatchOnCancel(t *testing.T) {
	f := newFixture(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &cancelingSource{
		rows: []map[string]string{
			invoiceRow("1", "10", "1"),
			invoiceRow("2", "20", "1"),
			invoiceRow("3", "30", "1"),
		},
		cancelAt: 1,
		cancel:   cancel,
	}

	report, err := f.svc.Ingest(ctx, src)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrIngestionAborted))
	assert.Equal(t, 2, report.Processed)
	assert.NotNil(t, f.find(t, "1"))
	assert.NotNil(t, f.find(t, "2"))
	assert.Nil(t, f.find(t, "3"))
}

func TestIngestRejectsOverlappingRun(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	lease, err := f.guard.Acquire(ctx, "ingestion:static", time.Minute)
	require.NoError(t, err)
	defer lease.Release(ctx)

	_, err = f.svc.Ingest(ctx, feed.NewStatic("static", nil))
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
}

type brokenSource struct{}

func (brokenSource) Name() string { return "broken" }

func (brokenSource) Open(context.Context) (domain.Iterator, error) {
	return nil, errors.New("connection refused")
}

func TestIngestSourceUnavailable(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.svc.Ingest(context.Background(), brokenSource{})
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestRunWithoutFeedURL(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.svc.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoSource)
}

// hookSource runs a hook before yielding the row at the same position.
type hookSource struct {
	rows  []map[string]string
	hooks map[int]func()
}

func (s *hookSource) Name() string { return "static" }

func (s *hookSource) Open(context.Context) (domain.Iterator, error) {
	return &hookIterator{src: s}, nil
}

type hookIterator struct {
	src *hookSource
	pos int
}

func (it *hookIterator) Next() (map[string]string, error) {
	if hook, ok := it.src.hooks[it.pos]; ok {
		hook()
	}
	if it.pos >= len(it.src.rows) {
		return nil, io.EOF
	}
	row := it.src.rows[it.pos]
	it.pos++
	return row, nil
}

func (it *hookIterator) Close() error { return nil }

func TestIngestKeepsPaymentCommittedMidRun(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	now := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.Ingest(ctx, feed.NewStatic("static", []map[string]string{invoiceRow("1", "100", "1")}))
	require.NoError(t, err)

	renamed := invoiceRow("1", "100", "1")
	renamed["name_customer"] = "WAL-MAR inc"
	src := &hookSource{
		rows: []map[string]string{renamed, invoiceRow("2", "50", "1")},
		hooks: map[int]func(){
			// case 1 is staged by now; pay it off before the batch commits
			1: func() {
				c := f.find(t, "1")
				entry, _, _, err := paymentdomain.Apply(c, decimal.NewFromInt(100), now)
				require.NoError(t, err)
				entry.ID = f.node.Generate()
				require.NoError(t, f.repo.Mutate(ctx, f.db, c, &entry))
			},
		},
	}

	report, err := f.svc.Ingest(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)

	c := f.find(t, "1")
	require.NotNil(t, c)
	assert.Equal(t, casedomain.StatusPaid, c.Status)
	assert.False(t, c.IsOpen)
	assert.True(t, c.OutstandingAmount.IsZero())
	assert.NotNil(t, c.ClearedAt)
	assert.Equal(t, "WAL-MAR inc", c.CustomerName)
	assert.Equal(t, int64(2), c.Version)
	assert.Equal(t, int64(1), storetest.HistoryCount(t, f.db, c.ID))
}

func TestIngestKeepsSLAFromCaseCreation(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()

	_, err := f.svc.Ingest(ctx, feed.NewStatic("static", []map[string]string{invoiceRow("1", "100", "1")}))
	require.NoError(t, err)
	before := f.find(t, "1")
	require.Equal(t, 15, before.SLADays)

	profile := profiledomain.NewSynthetic("0200769623", "WAL-MAR corp", time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC))
	profile.Synthetic = false
	profile.LatePaymentRatio = 0.9
	require.NoError(t, f.db.Create(&profile).Error)

	_, err = f.svc.Ingest(ctx, feed.NewStatic("static", []map[string]string{
		invoiceRow("1", "90", "1"),
		invoiceRow("2", "40", "1"),
	}))
	require.NoError(t, err)

	after := f.find(t, "1")
	assert.Equal(t, 15, after.SLADays)
	assert.True(t, after.SLADate.Equal(*before.SLADate))
	assert.True(t, after.OutstandingAmount.Equal(decimal.NewFromInt(90)))

	fresh := f.find(t, "2")
	assert.Equal(t, 3, fresh.SLADays)
}

func TestIngestBatchCommitFailureKeepsEarlierBatches(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	failing := true
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_key_3", func(tx *gorm.DB) {
		c, ok := tx.Statement.Dest.(*casedomain.Case)
		if failing && ok && c.SourceKey != nil && *c.SourceKey == "3" {
			_ = tx.AddError(errors.New("quota exceeded"))
		}
	}))

	rows := []map[string]string{
		invoiceRow("1", "10", "1"),
		invoiceRow("2", "20", "1"),
		invoiceRow("3", "30", "1"),
		invoiceRow("4", "40", "1"),
	}

	report, err := f.svc.Ingest(ctx, feed.NewStatic("static", rows))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBatchCommit)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Batches)
	assert.NotNil(t, f.find(t, "1"))
	assert.NotNil(t, f.find(t, "2"))
	assert.Nil(t, f.find(t, "3"))
	assert.Nil(t, f.find(t, "4"))

	failing = false
	report, err = f.svc.Ingest(ctx, feed.NewStatic("static", rows))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 2, report.Processed)
	assert.NotNil(t, f.find(t, "3"))
	assert.NotNil(t, f.find(t, "4"))
}
