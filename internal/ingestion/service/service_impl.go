package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/ingestion/domain"
	"github.com/smallbiznis/recovery/internal/ingestion/feed"
	obscontext "github.com/smallbiznis/recovery/internal/observability/context"
	"github.com/smallbiznis/recovery/internal/observability/metrics"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/internal/runguard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 500
	defaultLockTTL   = 15 * time.Minute
	maxReplays       = 3
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	CaseRepo casedomain.Repository
	Policy   riskdomain.PolicySource
	Profiles profiledomain.Service
	Risk     riskdomain.Service
	Guard    runguard.Guard
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	cfg      config.Config
	caseRepo casedomain.Repository
	policy   riskdomain.PolicySource
	profiles profiledomain.Service
	risk     riskdomain.Service
	guard    runguard.Guard
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	guard := p.Guard
	if guard == nil {
		guard = runguard.NewLocal()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("ingestion.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		cfg:      p.Config,
		caseRepo: p.CaseRepo,
		policy:   p.Policy,
		profiles: p.Profiles,
		risk:     p.Risk,
		guard:    guard,
		metrics:  p.Metrics,
	}
}

func (s *Service) Run(ctx context.Context) (domain.Report, error) {
	src, err := feed.NewSource(s.cfg.Feed.URL, feed.OptionsFromConfig(s.cfg.Feed))
	if err != nil {
		return domain.Report{}, err
	}
	return s.Ingest(ctx, src)
}

func (s *Service) Ingest(ctx context.Context, src domain.Source) (domain.Report, error) {
	// scheduler runs carry their own id; CLI and HTTP triggers get a fresh one
	runID := obscontext.RunIDFromContext(ctx)
	if runID == "" {
		runID = ulid.Make().String()
		ctx = obscontext.WithRunID(ctx, runID)
	}
	report := domain.Report{RunID: runID, Source: src.Name()}
	started := s.clock.Now()

	lockTTL := s.cfg.Ingestion.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	lease, err := s.guard.Acquire(ctx, "ingestion:"+src.Name(), lockTTL)
	if err != nil {
		if errors.Is(err, runguard.ErrNotAcquired) {
			return report, domain.ErrRunInProgress
		}
		return report, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release ingestion lock failed", zap.Error(err))
		}
	}()

	if timeout := s.cfg.Ingestion.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run := &run{
		Service: s,
		source:  src.Name(),
		size:    s.batchSize(),
		policy:  s.policy.Current(),
		grace:   make(map[string]int),
		pending: make(map[string]*pendingCase),
		report:  &report,
	}
	err = run.execute(ctx, src)

	status := "success"
	if err != nil {
		status = "failed"
	}
	s.metrics.ObserveIngestRun(ctx, report.Source, status, s.clock.Now().Sub(started))
	s.metrics.RecordIngestRows(ctx, report.Source, "processed", report.Processed)
	s.metrics.RecordIngestRows(ctx, report.Source, "skipped", report.Skipped)
	s.metrics.RecordIngestRows(ctx, report.Source, "error", report.Errors)
	s.metrics.RecordIngestRows(ctx, report.Source, "malformed", report.Malformed)

	fields := []zap.Field{
		zap.String("run_id", report.RunID),
		zap.String("source", report.Source),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
		zap.Int("malformed", report.Malformed),
		zap.Int("batches", report.Batches),
	}
	if err != nil {
		s.log.Error("ingestion run failed", append(fields, zap.Error(err))...)
		return report, err
	}
	s.log.Info("ingestion run finished", fields...)
	return report, nil
}

func (s *Service) batchSize() int {
	if s.cfg.Ingestion.BatchSize > 0 {
		return s.cfg.Ingestion.BatchSize
	}
	return defaultBatchSize
}

type pendingCase struct {
	c      casedomain.Case
	exists bool
	rows   int
	// merges are replayed onto a fresher copy when the case changed
	// after it was staged.
	merges []feedMerge
}

type feedMerge struct {
	rec         domain.Record
	row         domain.Row
	fingerprint string
}

// run holds the state of one pass over a source.
type run struct {
	*Service

	source  string
	size    int
	policy  riskdomain.Policy
	grace   map[string]int
	pending map[string]*pendingCase
	order   []string
	report  *domain.Report
}

func (r *run) execute(ctx context.Context, src domain.Source) error {
	it, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer it.Close()

	for {
		raw, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return r.abort(ctx)
			}
			if flushErr := r.flush(ctx); flushErr != nil {
				return flushErr
			}
			return fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
		}

		if err := r.stage(ctx, domain.Normalize(raw)); err != nil {
			return err
		}

		if len(r.order) >= r.size {
			if err := r.flush(ctx); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return r.abort(ctx)
			}
		}
	}
	return r.flush(ctx)
}

// abort commits whatever is staged before reporting the cancellation.
func (r *run) abort(ctx context.Context) error {
	if err := r.flush(ctx); err != nil {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrIngestionAborted, context.Cause(ctx))
}

func (r *run) stage(ctx context.Context, row domain.Row) error {
	key := row.NaturalKey()
	if key == "" {
		r.report.Malformed++
		r.log.Debug("skipping row without natural key", zap.String("source", r.source))
		return nil
	}

	// an unhashable row is written as changed
	fingerprint, err := domain.Fingerprint(row)
	if err != nil {
		r.log.Warn("fingerprint row failed", zap.String("key", key), zap.Error(err))
		fingerprint = ""
	}

	entry, staged := r.pending[key]
	if !staged {
		existing, err := r.caseRepo.FindBySourceKey(context.WithoutCancel(ctx), r.db, key)
		if err != nil {
			return err
		}
		if existing != nil {
			entry = &pendingCase{c: *existing, exists: true}
		}
	}
	if entry != nil && fingerprint != "" && entry.c.Fingerprint == fingerprint {
		r.report.Skipped++
		return nil
	}

	rec := domain.Decode(row)
	if len(rec.Problems) > 0 {
		r.report.Errors += len(rec.Problems)
		r.log.Debug("row decoded with problems",
			zap.String("key", key),
			zap.Strings("problems", rec.Problems),
		)
	}

	now := r.clock.Now()
	if entry == nil {
		graceDays := r.graceDays(ctx, rec.CustomerID)
		entry = &pendingCase{c: domain.NewCase(r.genID.Generate(), rec, row, fingerprint, graceDays, now)}
	} else {
		domain.MergeInto(&entry.c, rec, row, fingerprint, now)
		if entry.exists {
			entry.merges = append(entry.merges, feedMerge{rec: rec, row: row, fingerprint: fingerprint})
		}
	}
	entry.rows++

	if !staged {
		r.pending[key] = entry
		r.order = append(r.order, key)
	}
	return nil
}

// updateExisting writes a refreshed case. When a payment, decision or close
// committed after the case was staged, the feed rows are replayed onto the
// stored case so lifecycle changes are kept.
func (r *run) updateExisting(ctx context.Context, tx *gorm.DB, key string, entry *pendingCase) error {
	for attempt := 0; ; attempt++ {
		err := r.caseRepo.UpdateFromFeed(ctx, tx, &entry.c)
		if !errors.Is(err, casedomain.ErrConcurrentUpdate) || attempt >= maxReplays {
			return err
		}

		current, err := r.caseRepo.FindBySourceKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return casedomain.ErrConcurrentUpdate
		}
		now := r.clock.Now()
		for _, m := range entry.merges {
			domain.MergeInto(current, m.rec, m.row, m.fingerprint, now)
		}
		r.log.Debug("replayed feed rows onto updated case",
			zap.String("key", key),
			zap.Int64("version", current.Version),
		)
		entry.c = *current
	}
}

func (r *run) graceDays(ctx context.Context, customerID string) int {
	if days, ok := r.grace[customerID]; ok {
		return days
	}
	ratio := 0.0
	if customerID != "" {
		var err error
		ratio, err = r.profiles.LatePaymentRatio(context.WithoutCancel(ctx), customerID)
		if err != nil {
			r.log.Warn("late payment ratio lookup failed", zap.String("customer_id", customerID), zap.Error(err))
			ratio = 0
		}
	}
	days := r.policy.GraceDays(ratio)
	r.grace[customerID] = days
	return days
}

// flush commits the staged cases in one transaction. The commit ignores
// cancellation so an in-flight batch always lands.
func (r *run) flush(ctx context.Context) error {
	if len(r.order) == 0 {
		return nil
	}
	commitCtx := context.WithoutCancel(ctx)
	commitCtx, span := otel.Tracer("recovery/ingestion").Start(commitCtx, "ingestion.batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", r.source),
		attribute.Int("batch.cases", len(r.order)),
	)

	ids := make([]snowflake.ID, 0, len(r.order))
	rows := 0
	err := r.db.WithContext(commitCtx).Transaction(func(tx *gorm.DB) error {
		for _, key := range r.order {
			entry := r.pending[key]
			var err error
			if entry.exists {
				err = r.updateExisting(commitCtx, tx, key, entry)
			} else {
				err = r.caseRepo.UpsertFromFeed(commitCtx, tx, &entry.c)
			}
			if err != nil {
				return fmt.Errorf("case %s: %w", key, err)
			}
			ids = append(ids, entry.c.ID)
			rows += entry.rows
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordIngestBatch(commitCtx, r.source, "failed")
		r.pending = make(map[string]*pendingCase)
		r.order = nil
		return fmt.Errorf("%w: %v", domain.ErrBatchCommit, err)
	}

	r.report.Processed += rows
	r.report.Batches++
	r.metrics.RecordIngestBatch(commitCtx, r.source, "committed")
	r.pending = make(map[string]*pendingCase)
	r.order = nil

	if r.cfg.Ingestion.ClassifyInline && r.risk != nil {
		if _, err := r.risk.ReclassifyCases(commitCtx, ids, r.clock.Now()); err != nil {
			r.log.Warn("inline reclassification failed", zap.Error(err))
		}
	}
	return nil
}
