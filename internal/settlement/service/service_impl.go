package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/notify"
	"github.com/smallbiznis/recovery/internal/observability/metrics"
	"github.com/smallbiznis/recovery/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	CaseRepo  casedomain.Repository
	Publisher notify.Publisher
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	caseRepo  casedomain.Repository
	roster    domain.Roster
	publisher notify.Publisher
	metrics   *metrics.Metrics
}

func New(p Params) (domain.Service, error) {
	roster, err := domain.ParseRoster(p.Config.AgentRoster)
	if err != nil {
		return nil, err
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("settlement.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		caseRepo:  p.CaseRepo,
		roster:    roster,
		publisher: publisher,
		metrics:   p.Metrics,
	}, nil
}

func (s *Service) load(ctx context.Context, rawID string) (*casedomain.Case, error) {
	id, err := casedomain.ParseID(strings.TrimSpace(rawID))
	if err != nil {
		return nil, err
	}
	c, err := s.caseRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, casedomain.ErrNotFound
	}
	return c, nil
}

func (s *Service) Negotiate(ctx context.Context, req domain.NegotiateRequest) (domain.NegotiateResponse, error) {
	c, err := s.load(ctx, req.CaseID)
	if err != nil {
		return domain.NegotiateResponse{}, err
	}
	if err := domain.CanNegotiate(c); err != nil {
		return domain.NegotiateResponse{}, err
	}

	offer, err := domain.Evaluate(c.OutstandingAmount, req.CashBalance, req.MonthlyRevenue)
	if err != nil {
		return domain.NegotiateResponse{}, err
	}

	now := s.clock.Now()
	entry, err := domain.StartNegotiation(c, offer, s.roster, now)
	if err != nil {
		return domain.NegotiateResponse{}, err
	}
	entry.ID = s.genID.Generate()
	if err := s.caseRepo.Mutate(ctx, s.db, c, &entry); err != nil {
		return domain.NegotiateResponse{}, err
	}

	s.metrics.RecordNegotiation(ctx, string(offer.Kind), "offered")
	s.log.Info("settlement offered",
		zap.String("case_id", c.ID.String()),
		zap.String("kind", string(offer.Kind)),
		zap.String("agent_id", c.AssignedAgentID),
	)
	return domain.NegotiateResponse{
		Case:  *c,
		Offer: offer,
		Agent: domain.Agent{ID: c.AssignedAgentID, Name: c.AssignedAgentName},
	}, nil
}

func (s *Service) Decide(ctx context.Context, req domain.DecideRequest) (casedomain.Case, error) {
	c, err := s.load(ctx, req.CaseID)
	if err != nil {
		return casedomain.Case{}, err
	}

	now := s.clock.Now()
	entry, err := domain.ApplyDecision(c, req.Accepted, now)
	if err != nil {
		return casedomain.Case{}, err
	}
	entry.ID = s.genID.Generate()
	if err := s.caseRepo.Mutate(ctx, s.db, c, &entry); err != nil {
		return casedomain.Case{}, err
	}

	offer, _ := domain.PendingOffer(c)
	kind := ""
	if offer != nil {
		kind = string(offer.Kind)
	}
	outcome := "rejected"
	if req.Accepted {
		outcome = "accepted"
	}
	s.metrics.RecordNegotiation(ctx, kind, outcome)

	if !req.Accepted {
		s.notifyCollector(ctx, c)
	}
	return *c, nil
}

func (s *Service) notifyCollector(ctx context.Context, c *casedomain.Case) {
	event := notify.Event{
		Type:         notify.EventActionRequired,
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
		s.metrics.RecordActionEvent(ctx, string(c.Action), "failed")
		s.log.Warn("action event publish failed", zap.String("case_id", c.ID.String()), zap.Error(err))
		return
	}
	s.metrics.RecordActionEvent(ctx, string(c.Action), "published")
}
