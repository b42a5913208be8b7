package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/recovery/internal/profile/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var aggregateColumns = []string{
	"name",
	"late_payment_ratio",
	"avg_payment_delay",
	"std_payment_delay",
	"min_payment_delay",
	"max_payment_delay",
	"avg_days_to_clear",
	"avg_due_days",
	"avg_invoice_amount",
	"total_lifetime_value",
	"transaction_count",
	"synthetic",
	"updated_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Raw(`SELECT * FROM customer_profiles WHERE id = ?`, id).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.Profile, error) {
	var p domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM customer_profiles
		 WHERE LOWER(name) = ?
		 ORDER BY synthetic ASC, transaction_count DESC, id ASC
		 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(name)),
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	return db.WithContext(ctx).Create(p).Error
}

func (r *repo) UpsertBatch(ctx context.Context, db *gorm.DB, profiles []domain.Profile) error {
	if len(profiles) == 0 {
		return nil
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(aggregateColumns),
	}).Create(&profiles).Error
}

func (r *repo) ListClearedCases(ctx context.Context, db *gorm.DB) ([]domain.ClearedCase, error) {
	var rows []domain.ClearedCase
	err := db.WithContext(ctx).Raw(
		`SELECT customer_id, customer_name, document_date, due_date, cleared_at, original_amount
		 FROM cases
		 WHERE is_open = ? AND cleared_at IS NOT NULL AND due_date IS NOT NULL AND customer_id <> ''
		 ORDER BY customer_id ASC, id ASC`,
		false,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
