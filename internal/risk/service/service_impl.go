package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/notify"
	"github.com/smallbiznis/recovery/internal/observability/metrics"
	"github.com/smallbiznis/recovery/internal/risk/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultPageSize = 200

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Policy    domain.PolicySource
	CaseRepo  casedomain.Repository
	Publisher notify.Publisher
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	policy    domain.PolicySource
	caseRepo  casedomain.Repository
	publisher notify.Publisher
	metrics   *metrics.Metrics
	pageSize  int
}

func New(p Params) domain.Service {
	pageSize := p.Config.Scheduler.BatchSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("risk.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		policy:    p.Policy,
		caseRepo:  p.CaseRepo,
		publisher: publisher,
		metrics:   p.Metrics,
		pageSize:  pageSize,
	}
}

func (s *Service) Reclassify(ctx context.Context, now time.Time) (domain.ReclassifyReport, error) {
	ctx, span := otel.Tracer("recovery/risk").Start(ctx, "risk.reclassify")
	defer span.End()

	now = casedomain.StartOfDay(now)
	policy := s.policy.Current()

	var report domain.ReclassifyReport
	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		items, err := s.caseRepo.ListReclassifiable(ctx, s.db, afterID, s.pageSize)
		if err != nil {
			return report, err
		}
		if len(items) == 0 {
			break
		}
		for _, c := range items {
			report.Merge(s.reclassifyOne(ctx, c, policy, now))
		}
		afterID = items[len(items)-1].ID
		if len(items) < s.pageSize {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("cases.scanned", report.Scanned),
		attribute.Int("cases.changed", report.Changed),
	)
	s.log.Info("reclassification finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("changed", report.Changed),
		zap.Int("conflicts", report.Conflicts),
		zap.Int("notified", report.Notified),
	)
	return report, nil
}

func (s *Service) ReclassifyCases(ctx context.Context, ids []snowflake.ID, now time.Time) (domain.ReclassifyReport, error) {
	var report domain.ReclassifyReport
	if len(ids) == 0 {
		return report, nil
	}
	items, err := s.caseRepo.ListByIDs(ctx, s.db, ids)
	if err != nil {
		return report, err
	}

	now = casedomain.StartOfDay(now)
	policy := s.policy.Current()
	for _, c := range items {
		if !c.Status.Reclassifiable() {
			continue
		}
		report.Merge(s.reclassifyOne(ctx, c, policy, now))
	}
	return report, nil
}

// reclassifyOne writes c only when its assessment moved. A concurrent writer
// wins; the next pass picks the case up again.
func (s *Service) reclassifyOne(ctx context.Context, c *casedomain.Case, policy domain.Policy, now time.Time) domain.ReclassifyReport {
	report := domain.ReclassifyReport{Scanned: 1}

	assessment := domain.Assess(c, policy, now)
	if !assessment.Changed(c) {
		return report
	}

	prevZone, prevAction := c.Zone, c.Action
	assessment.ApplyTo(c)
	c.UpdatedAt = s.clock.Now()

	entry := casedomain.NewHistoryEntry(c, casedomain.HistoryReclassified, string(c.Zone),
		fmt.Sprintf("Zone %s -> %s, action %s -> %s", prevZone, c.Zone, prevAction, c.Action), now)
	entry.ID = s.genID.Generate()

	if err := s.caseRepo.Mutate(ctx, s.db, c, &entry); err != nil {
		if errors.Is(err, casedomain.ErrConcurrentUpdate) {
			report.Conflicts++
			s.log.Debug("reclassify skipped on concurrent update", zap.String("case_id", c.ID.String()))
			return report
		}
		s.log.Warn("reclassify write failed", zap.String("case_id", c.ID.String()), zap.Error(err))
		return report
	}

	report.Changed++
	s.metrics.RecordReclassification(ctx, string(c.Zone), string(c.Action))
	if c.Action != prevAction && c.Action.RequiresContact() {
		if s.notify(ctx, c, now) {
			report.Notified++
		}
	}
	return report
}

func (s *Service) notify(ctx context.Context, c *casedomain.Case, now time.Time) bool {
	event := notify.Event{
		Type:         notify.EventActionRequired,
		CaseID:       c.ID.String(),
		InvoiceID:    c.InvoiceID,
		CustomerID:   c.CustomerID,
		CustomerName: c.CustomerName,
		Zone:         string(c.Zone),
		Action:       string(c.Action),
		Outstanding:  c.OutstandingAmount.StringFixed(2),
		OccurredAt:   now,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.RecordActionEvent(ctx, string(c.Action), "failed")
		s.log.Warn("action event publish failed", zap.String("case_id", c.ID.String()), zap.Error(err))
		return false
	}
	s.metrics.RecordActionEvent(ctx, string(c.Action), "published")
	return true
}

func (s *Service) RecordPrediction(ctx context.Context, req domain.RecordPredictionRequest) (casedomain.Case, error) {
	id, err := casedomain.ParseID(req.CaseID)
	if err != nil {
		return casedomain.Case{}, err
	}
	if req.PredictedPaymentDate == nil && req.PredictedDelay == nil {
		return casedomain.Case{}, domain.ErrInvalidPrediction
	}
	if req.PredictedDelay != nil && (math.IsNaN(*req.PredictedDelay) || math.IsInf(*req.PredictedDelay, 0)) {
		return casedomain.Case{}, domain.ErrInvalidPrediction
	}

	c, err := s.caseRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return casedomain.Case{}, err
	}
	if c == nil {
		return casedomain.Case{}, casedomain.ErrNotFound
	}
	if c.Status.Terminal() {
		return casedomain.Case{}, casedomain.ErrCaseClosed
	}

	predicted := req.PredictedPaymentDate
	if predicted == nil {
		if c.DueDate == nil {
			return casedomain.Case{}, domain.ErrInvalidPrediction
		}
		derived := c.DueDate.Add(time.Duration(*req.PredictedDelay * 24 * float64(time.Hour)))
		predicted = &derived
	}
	p := predicted.UTC()
	c.PredictedPaymentDate = &p
	c.PredictedDelay = req.PredictedDelay

	now := s.clock.Now()
	prevAction := c.Action
	if c.Status.Reclassifiable() {
		domain.Assess(c, s.policy.Current(), casedomain.StartOfDay(now)).ApplyTo(c)
	}
	c.UpdatedAt = now

	entry := casedomain.NewHistoryEntry(c, casedomain.HistoryPrediction, string(c.Zone),
		fmt.Sprintf("Predicted payment %s", p.Format("2006-01-02")), now)
	entry.ID = s.genID.Generate()
	if err := s.caseRepo.Mutate(ctx, s.db, c, &entry); err != nil {
		return casedomain.Case{}, err
	}

	if c.Action != prevAction && c.Action.RequiresContact() {
		s.notify(ctx, c, now)
	}
	return *c, nil
}
