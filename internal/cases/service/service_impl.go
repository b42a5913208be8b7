package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/internal/clock"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultForecastDays = 30
	maxForecastDays     = 365
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Policy   riskdomain.PolicySource
	Profiles profiledomain.Service
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	policy   riskdomain.PolicySource
	profiles profiledomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("cases.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		policy:   p.Policy,
		profiles: p.Profiles,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListCaseRequest) (domain.ListCaseResponse, error) {
	filter, err := buildFilter(req)
	if err != nil {
		return domain.ListCaseResponse{}, err
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	pageSize := page.Limit()

	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListCaseResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(c *domain.Case) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	cases := make([]domain.Case, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		cases = append(cases, *item)
	}

	resp := domain.ListCaseResponse{Cases: cases}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func buildFilter(req domain.ListCaseRequest) (domain.ListCaseFilter, error) {
	filter := domain.ListCaseFilter{
		CustomerID: strings.TrimSpace(req.CustomerID),
		IsOpen:     req.IsOpen,
		Escalated:  req.Escalated,
	}
	if strings.TrimSpace(req.Zone) != "" {
		zone, err := domain.ParseZone(req.Zone)
		if err != nil {
			return filter, err
		}
		filter.Zone = zone
	}
	if strings.TrimSpace(req.Action) != "" {
		action, err := domain.ParseAction(req.Action)
		if err != nil {
			return filter, err
		}
		filter.Action = action
	}
	if strings.TrimSpace(req.Status) != "" {
		status, err := domain.ParseStatus(req.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = status
	}
	return filter, nil
}

func (s *Service) Get(ctx context.Context, req domain.GetCaseRequest) (domain.Case, error) {
	id, err := domain.ParseID(req.ID)
	if err != nil {
		return domain.Case{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Case{}, err
	}
	if item == nil {
		return domain.Case{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) History(ctx context.Context, req domain.GetCaseRequest) ([]domain.HistoryEntry, error) {
	c, err := s.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListHistory(ctx, s.db, c.ID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func (s *Service) CreateManual(ctx context.Context, req domain.CreateCaseRequest) (domain.Case, error) {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return domain.Case{}, domain.ErrInvalidName
	}
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return domain.Case{}, err
	}
	if req.DueDate.IsZero() {
		return domain.Case{}, domain.ErrInvalidDueDate
	}

	profile, err := s.profiles.Resolve(ctx, name)
	if err != nil {
		return domain.Case{}, err
	}

	now := s.clock.Now()
	policy := s.policy.Current()
	id := s.genID.Generate()
	due := domain.StartOfDay(req.DueDate)
	predicted := due
	noDelay := 0.0

	invoiceID := strings.TrimSpace(req.InvoiceID)
	if invoiceID == "" {
		invoiceID = "INV-" + id.String()
	}

	c := domain.Case{
		ID:                   id,
		InvoiceID:            invoiceID,
		CustomerID:           profile.ID,
		CustomerName:         name,
		Currency:             strings.ToUpper(strings.TrimSpace(req.Currency)),
		OriginalAmount:       req.Amount,
		OutstandingAmount:    req.Amount,
		CollectedAmount:      decimal.Zero,
		DueDate:              &due,
		PredictedPaymentDate: &predicted,
		PredictedDelay:       &noDelay,
		Status:               domain.StatusOpen,
		IsOpen:               true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	c.ApplySLA(policy.GraceDays(profile.LatePaymentRatio))
	riskdomain.Assess(&c, policy, domain.StartOfDay(now)).ApplyTo(&c)

	entry := domain.NewHistoryEntry(&c, domain.HistoryCreated, string(c.Zone),
		fmt.Sprintf("Manual case for %s", name), now).WithAmounts(c.OriginalAmount, c.OutstandingAmount)
	entry.ID = s.genID.Generate()

	if err := s.repo.Insert(ctx, s.db, &c, &entry); err != nil {
		return domain.Case{}, err
	}

	s.log.Info("manual case created",
		zap.String("case_id", c.ID.String()),
		zap.String("customer_id", c.CustomerID),
		zap.String("zone", string(c.Zone)),
	)
	return c, nil
}

func (s *Service) Close(ctx context.Context, req domain.CloseCaseRequest) (domain.Case, error) {
	c, err := s.Get(ctx, domain.GetCaseRequest{ID: req.ID})
	if err != nil {
		return domain.Case{}, err
	}
	if c.Status.Terminal() {
		return domain.Case{}, domain.ErrCaseClosed
	}

	now := s.clock.Now()
	writtenOff := c.OutstandingAmount
	c.Resolve(domain.StatusClosed, now)
	c.UpdatedAt = now

	note := strings.TrimSpace(req.Reason)
	if note == "" {
		note = "Closed by operator"
	}
	entry := domain.NewHistoryEntry(&c, domain.HistoryClosed, "Closed", note, now).
		WithAmounts(writtenOff, decimal.Zero)
	entry.ID = s.genID.Generate()

	if err := s.repo.Mutate(ctx, s.db, &c, &entry); err != nil {
		return domain.Case{}, err
	}
	return c, nil
}

// ZoneSummary reports every zone, including empty ones, in a fixed order.
func (s *Service) ZoneSummary(ctx context.Context) ([]domain.ZoneTotal, error) {
	totals, err := s.repo.ZoneTotals(ctx, s.db)
	if err != nil {
		return nil, err
	}
	byZone := make(map[domain.Zone]domain.ZoneTotal, len(totals))
	for _, total := range totals {
		byZone[total.Zone] = total
	}

	out := make([]domain.ZoneTotal, 0, len(domain.Zones))
	for _, zone := range domain.Zones {
		total, ok := byZone[zone]
		if !ok {
			total = domain.ZoneTotal{Zone: zone, Outstanding: decimal.Zero}
		}
		out = append(out, total)
	}
	return out, nil
}

func (s *Service) Forecast(ctx context.Context, req domain.ForecastRequest) (domain.Forecast, error) {
	days := req.Days
	switch {
	case days == 0:
		days = defaultForecastDays
	case days < 0 || days > maxForecastDays:
		return domain.Forecast{}, domain.ErrInvalidDays
	}

	from := domain.StartOfDay(s.clock.Now())
	to := domain.AddDays(from, days)
	buckets, err := s.repo.ForecastBuckets(ctx, s.db, from, to)
	if err != nil {
		return domain.Forecast{}, err
	}

	total := decimal.Zero
	for _, bucket := range buckets {
		total = total.Add(bucket.Outstanding)
	}
	return domain.Forecast{From: from, To: to, Total: total, Buckets: buckets}, nil
}
