package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id string) (*Profile, error)
	// FindByName matches case-insensitively, preferring profiles with history.
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Profile, error)
	Insert(ctx context.Context, db *gorm.DB, p *Profile) error
	// UpsertBatch overwrites the aggregated columns of existing profiles.
	UpsertBatch(ctx context.Context, db *gorm.DB, profiles []Profile) error
	// ListClearedCases returns closed cases with a clear date, ordered by
	// customer.
	ListClearedCases(ctx context.Context, db *gorm.DB) ([]ClearedCase, error)
}
