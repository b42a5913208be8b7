package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/notify"
	obsmetrics "github.com/smallbiznis/recovery/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/recovery/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CaseRepo   casedomain.Repository
	Publisher  notify.Publisher
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	caseRepo   casedomain.Repository
	publisher  notify.Publisher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		caseRepo:   p.CaseRepo,
		publisher:  publisher,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) ApplyPayment(ctx context.Context, req paymentdomain.ApplyPaymentRequest) (paymentdomain.ApplyPaymentResponse, error) {
	if err := casedomain.ValidateAmount(req.Amount); err != nil {
		return paymentdomain.ApplyPaymentResponse{}, err
	}
	id, err := casedomain.ParseID(req.CaseID)
	if err != nil {
		return paymentdomain.ApplyPaymentResponse{}, err
	}

	c, err := s.caseRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return paymentdomain.ApplyPaymentResponse{}, err
	}
	if c == nil {
		return paymentdomain.ApplyPaymentResponse{}, casedomain.ErrNotFound
	}

	entry, kind, deducted, err := paymentdomain.Apply(c, req.Amount, s.clock.Now())
	if err != nil {
		return paymentdomain.ApplyPaymentResponse{}, err
	}
	entry.ID = s.genID.Generate()

	if err := s.caseRepo.Mutate(ctx, s.db, c, &entry); err != nil {
		if errors.Is(err, casedomain.ErrConcurrentUpdate) {
			s.log.Info("payment lost version race", zap.String("case_id", c.ID.String()))
		}
		return paymentdomain.ApplyPaymentResponse{}, err
	}

	s.obsMetrics.RecordPayment(ctx, string(kind))
	s.log.Info("payment applied",
		zap.String("case_id", c.ID.String()),
		zap.String("kind", string(kind)),
		zap.String("deducted", deducted.StringFixed(2)),
		zap.String("outstanding", c.OutstandingAmount.StringFixed(2)),
	)
	if kind == paymentdomain.KindFull {
		s.notifySettled(ctx, c)
	}
	return paymentdomain.ApplyPaymentResponse{Case: *c, Kind: kind, Deducted: deducted}, nil
}

// notifySettled tells downstream workflows to stop chasing the case. A
// failed publish does not undo the payment.
func (s *Service) notifySettled(ctx context.Context, c *casedomain.Case) {
	event := notify.Event{
		Type:         notify.EventCaseSettled,
		CaseID:       c.ID.String(),
		InvoiceID:    c.InvoiceID,
		CustomerID:   c.CustomerID,
		CustomerName: c.CustomerName,
		Zone:         string(c.Zone),
		Action:       string(c.Action),
		Outstanding:  c.OutstandingAmount.StringFixed(2),
		AgentID:      c.AssignedAgentID,
		OccurredAt:   c.UpdatedAt,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.obsMetrics.RecordActionEvent(ctx, string(c.Action), "failed")
		s.log.Warn("settled event publish failed", zap.String("case_id", c.ID.String()), zap.Error(err))
		return
	}
	s.obsMetrics.RecordActionEvent(ctx, string(c.Action), "published")
}
