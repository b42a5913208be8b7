package repository

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/recovery/internal/cases/domain"
	"github.com/smallbiznis/recovery/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// feedColumns are owned by ingestion; everything else is owned by the
// lifecycle (payments, negotiation, classification).
var feedColumns = []string{
	"invoice_id",
	"customer_id",
	"customer_name",
	"currency",
	"payment_terms",
	"original_amount",
	"outstanding_amount",
	"document_date",
	"due_date",
	"sla_date",
	"sla_days",
	"cleared_at",
	"zone",
	"action",
	"status",
	"is_open",
	"fingerprint",
	"source_fields",
	"updated_at",
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Case, error) {
	var c domain.Case
	err := db.WithContext(ctx).Raw(`SELECT * FROM cases WHERE id = ?`, id).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) FindBySourceKey(ctx context.Context, db *gorm.DB, sourceKey string) (*domain.Case, error) {
	var c domain.Case
	err := db.WithContext(ctx).Raw(`SELECT * FROM cases WHERE source_key = ?`, sourceKey).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Case, entry *domain.HistoryEntry) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		entry.CaseID = c.ID
		entry.Seq = 1
		return tx.Create(entry).Error
	})
}

func (r *repo) UpsertFromFeed(ctx context.Context, db *gorm.DB, c *domain.Case) error {
	assignments := clause.AssignmentColumns(feedColumns)
	assignments = append(assignments, clause.Assignment{
		Column: clause.Column{Name: "version"},
		Value:  gorm.Expr("cases.version + 1"),
	})
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_key"}},
		DoUpdates: assignments,
	}).Create(c).Error
}

func (r *repo) UpdateFromFeed(ctx context.Context, db *gorm.DB, c *domain.Case) error {
	res := db.WithContext(ctx).
		Model(&domain.Case{}).
		Where("id = ? AND version = ?", c.ID, c.Version).
		Updates(map[string]any{
			"invoice_id":         c.InvoiceID,
			"customer_id":        c.CustomerID,
			"customer_name":      c.CustomerName,
			"currency":           c.Currency,
			"payment_terms":      c.PaymentTerms,
			"original_amount":    c.OriginalAmount,
			"outstanding_amount": c.OutstandingAmount,
			"document_date":      c.DocumentDate,
			"due_date":           c.DueDate,
			"sla_date":           c.SLADate,
			"sla_days":           c.SLADays,
			"cleared_at":         c.ClearedAt,
			"zone":               c.Zone,
			"action":             c.Action,
			"status":             c.Status,
			"is_open":            c.IsOpen,
			"fingerprint":        c.Fingerprint,
			"source_fields":      c.SourceFields,
			"updated_at":         c.UpdatedAt,
			"version":            c.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	c.Version++
	return nil
}

func (r *repo) Mutate(ctx context.Context, db *gorm.DB, c *domain.Case, entry *domain.HistoryEntry) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Case{}).
			Where("id = ? AND version = ?", c.ID, c.Version).
			Updates(map[string]any{
				"outstanding_amount":     c.OutstandingAmount,
				"collected_amount":       c.CollectedAmount,
				"zone":                   c.Zone,
				"action":                 c.Action,
				"status":                 c.Status,
				"is_open":                c.IsOpen,
				"escalated":              c.Escalated,
				"cleared_at":             c.ClearedAt,
				"predicted_payment_date": c.PredictedPaymentDate,
				"predicted_delay":        c.PredictedDelay,
				"sla_date":               c.SLADate,
				"sla_days":               c.SLADays,
				"assigned_agent_id":      c.AssignedAgentID,
				"assigned_agent_name":    c.AssignedAgentName,
				"negotiation_offer":      c.NegotiationOffer,
				"updated_at":             c.UpdatedAt,
				"version":                c.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConcurrentUpdate
		}
		if entry == nil {
			return nil
		}

		var seq int
		if err := tx.Raw(`SELECT COALESCE(MAX(seq), 0) FROM case_history WHERE case_id = ?`, c.ID).Scan(&seq).Error; err != nil {
			return err
		}
		entry.CaseID = c.ID
		entry.Seq = seq + 1
		return tx.Create(entry).Error
	})
	if err != nil {
		return err
	}
	c.Version++
	return nil
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	err := db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("seq asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCaseFilter, page pagination.Pagination) ([]*domain.Case, error) {
	var items []*domain.Case
	stmt := db.WithContext(ctx).Model(&domain.Case{})
	if filter.Zone != "" {
		stmt = stmt.Where("zone = ?", filter.Zone)
	}
	if filter.Action != "" {
		stmt = stmt.Where("action = ?", filter.Action)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != "" {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.IsOpen != nil {
		stmt = stmt.Where("is_open = ?", *filter.IsOpen)
	}
	if filter.Escalated != nil {
		stmt = stmt.Where("escalated = ?", *filter.Escalated)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidID
		}
		stmt = stmt.Where("id < ?", afterID)
	}

	err := stmt.
		Order("id desc").
		Limit(page.Limit() + 1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListReclassifiable(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*domain.Case, error) {
	var items []*domain.Case
	err := db.WithContext(ctx).
		Where("status IN ? AND id > ?", []domain.Status{domain.StatusOpen, domain.StatusNegotiationActive}, afterID).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []*domain.Case
	err := db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ZoneTotals(ctx context.Context, db *gorm.DB) ([]domain.ZoneTotal, error) {
	var totals []domain.ZoneTotal
	err := db.WithContext(ctx).Raw(
		`SELECT zone, COUNT(*) AS count, COALESCE(SUM(outstanding_amount), 0) AS outstanding
		 FROM cases
		 WHERE is_open = ?
		 GROUP BY zone`,
		true,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

type forecastRow struct {
	PredictedPaymentDate time.Time
	OutstandingAmount    decimal.Decimal
}

func (r *repo) ForecastBuckets(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.ForecastBucket, error) {
	var rows []forecastRow
	err := db.WithContext(ctx).Raw(
		`SELECT predicted_payment_date, outstanding_amount
		 FROM cases
		 WHERE is_open = ? AND predicted_payment_date >= ? AND predicted_payment_date < ?`,
		true,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byDay := map[time.Time]*domain.ForecastBucket{}
	for _, row := range rows {
		day := domain.StartOfDay(row.PredictedPaymentDate)
		bucket, ok := byDay[day]
		if !ok {
			bucket = &domain.ForecastBucket{Date: day, Outstanding: decimal.Zero}
			byDay[day] = bucket
		}
		bucket.Count++
		bucket.Outstanding = bucket.Outstanding.Add(row.OutstandingAmount)
	}

	buckets := make([]domain.ForecastBucket, 0, len(byDay))
	for _, bucket := range byDay {
		buckets = append(buckets, *bucket)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Date.Before(buckets[j].Date)
	})
	return buckets, nil
}
