package storetest

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Accelerator rewrites case dates so tests can reach a zone without moving
// the clock far.
type Accelerator struct {
	db *gorm.DB
}

func NewAccelerator(db *gorm.DB) *Accelerator {
	return &Accelerator{db: db}
}

// ExpireSLA moves the SLA date of a case to the day before now.
func (a *Accelerator) ExpireSLA(ctx context.Context, caseID snowflake.ID, now time.Time) error {
	return a.db.WithContext(ctx).Exec(
		`UPDATE cases SET sla_date = ?, updated_at = ? WHERE id = ?`,
		now.AddDate(0, 0, -1),
		now,
		caseID,
	).Error
}

// ShiftAllDates moves due, sla and predicted dates of every open case by d.
func (a *Accelerator) ShiftAllDates(ctx context.Context, d time.Duration, now time.Time) (int64, error) {
	var items []struct {
		ID                   snowflake.ID
		DueDate              *time.Time
		SLADate              *time.Time `gorm:"column:sla_date"`
		PredictedPaymentDate *time.Time
	}
	if err := a.db.WithContext(ctx).Raw(
		`SELECT id, due_date, sla_date, predicted_payment_date FROM cases WHERE is_open = ?`, true,
	).Scan(&items).Error; err != nil {
		return 0, err
	}

	shift := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := t.Add(d)
		return &v
	}
	var affected int64
	for _, item := range items {
		res := a.db.WithContext(ctx).Exec(
			`UPDATE cases SET due_date = ?, sla_date = ?, predicted_payment_date = ?, updated_at = ? WHERE id = ?`,
			shift(item.DueDate),
			shift(item.SLADate),
			shift(item.PredictedPaymentDate),
			now,
			item.ID,
		)
		if res.Error != nil {
			return affected, res.Error
		}
		affected += res.RowsAffected
	}
	return affected, nil
}
