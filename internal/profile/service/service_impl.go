package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/recovery/internal/clock"
	"github.com/smallbiznis/recovery/internal/config"
	"github.com/smallbiznis/recovery/internal/profile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultUpsertBatch = 400
	maxSlugLen         = 32
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	batchSize int
}

func New(p Params) domain.Service {
	batchSize := p.Config.Scheduler.BatchSize
	if batchSize <= 0 {
		batchSize = defaultUpsertBatch
	}
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("profile.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		batchSize: batchSize,
	}
}

func (s *Service) Refresh(ctx context.Context) (domain.RefreshReport, error) {
	rows, err := s.repo.ListClearedCases(ctx, s.db)
	if err != nil {
		return domain.RefreshReport{}, err
	}

	now := s.clock.Now()
	profiles := make([]domain.Profile, 0)
	for start := 0; start < len(rows); {
		end := start
		for end < len(rows) && rows[end].CustomerID == rows[start].CustomerID {
			end++
		}
		profiles = append(profiles, domain.Aggregate(rows[start].CustomerID, rows[start:end], now))
		start = end
	}

	report := domain.RefreshReport{Cases: len(rows)}
	for start := 0; start < len(profiles); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := min(start+s.batchSize, len(profiles))
		if err := s.repo.UpsertBatch(ctx, s.db, profiles[start:end]); err != nil {
			return report, err
		}
		report.Customers += end - start
	}

	s.log.Info("customer profiles refreshed",
		zap.Int("customers", report.Customers),
		zap.Int("cases", report.Cases),
	)
	return report, nil
}

func (s *Service) Resolve(ctx context.Context, name string) (domain.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Profile{}, domain.ErrInvalidName
	}

	existing, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return domain.Profile{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	p := domain.NewSynthetic(s.syntheticID(name), name, s.clock.Now())
	if err := s.repo.Insert(ctx, s.db, &p); err != nil {
		return domain.Profile{}, err
	}
	s.log.Info("synthetic customer profile created", zap.String("customer_id", p.ID))
	return p, nil
}

// syntheticID keeps manual customers readable in case listings, e.g.
// MANUAL-new-co-1785532189.
func (s *Service) syntheticID(name string) string {
	base := slug.Make(name)
	if len(base) > maxSlugLen {
		base = strings.TrimRight(base[:maxSlugLen], "-")
	}
	id := s.genID.Generate().String()
	if base == "" {
		return domain.ManualIDPrefix + id
	}
	return domain.ManualIDPrefix + base + "-" + id
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Profile{}, domain.ErrNotFound
	}
	p, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Profile{}, err
	}
	if p == nil {
		return domain.Profile{}, domain.ErrNotFound
	}
	return *p, nil
}

func (s *Service) LatePaymentRatio(ctx context.Context, customerID string) (float64, error) {
	if strings.TrimSpace(customerID) == "" {
		return 0, nil
	}
	p, err := s.repo.FindByID(ctx, s.db, customerID)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, nil
	}
	return p.LatePaymentRatio, nil
}
