package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recovery/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Case, error)
	FindBySourceKey(ctx context.Context, db *gorm.DB, sourceKey string) (*Case, error)
	Insert(ctx context.Context, db *gorm.DB, c *Case, entry *HistoryEntry) error

	// UpsertFromFeed inserts a case keyed by source_key; on conflict it
	// overwrites the feed-owned columns (last write wins).
	UpsertFromFeed(ctx context.Context, db *gorm.DB, c *Case) error
	// UpdateFromFeed rewrites the feed-owned columns of an existing case and
	// bumps its version without appending history. It is guarded by c.Version
	// like Mutate and returns ErrConcurrentUpdate when the case moved on.
	UpdateFromFeed(ctx context.Context, db *gorm.DB, c *Case) error

	// Mutate persists a read-decide-write change guarded by c.Version and
	// appends entry in the same transaction. On success c.Version is bumped.
	Mutate(ctx context.Context, db *gorm.DB, c *Case, entry *HistoryEntry) error

	ListHistory(ctx context.Context, db *gorm.DB, caseID snowflake.ID) ([]HistoryEntry, error)
	List(ctx context.Context, db *gorm.DB, filter ListCaseFilter, page pagination.Pagination) ([]*Case, error)
	ListReclassifiable(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Case, error)
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Case, error)
	ZoneTotals(ctx context.Context, db *gorm.DB) ([]ZoneTotal, error)
	ForecastBuckets(ctx context.Context, db *gorm.DB, from, to time.Time) ([]ForecastBucket, error)
}
