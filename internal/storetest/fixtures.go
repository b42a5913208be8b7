package storetest

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	"gorm.io/gorm"
)

func NewNode(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Date parses YYYY-MM-DD as midnight UTC.
func Date(t testing.TB, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return d
}

func DatePtr(t testing.TB, value string) *time.Time {
	t.Helper()
	d := Date(t, value)
	return &d
}

// SeedCase stores an open case with amount as both original and
// outstanding, filling whatever c leaves empty.
func SeedCase(t testing.TB, db *gorm.DB, node *snowflake.Node, amount decimal.Decimal, c casedomain.Case) *casedomain.Case {
	t.Helper()
	if c.ID == 0 {
		c.ID = node.Generate()
	}
	if c.OriginalAmount.IsZero() {
		c.OriginalAmount = amount
	}
	if c.OutstandingAmount.IsZero() {
		c.OutstandingAmount = amount
	}
	if c.Status == "" {
		c.Status = casedomain.StatusOpen
		c.IsOpen = true
	}
	if c.Zone == "" {
		c.Zone = casedomain.ZoneUnknown
	}
	if c.Action == "" {
		c.Action = casedomain.ActionNone
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	c.UpdatedAt = c.CreatedAt
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("seed case: %v", err)
	}
	return &c
}

// HistoryCount returns the number of history rows for a case.
func HistoryCount(t testing.TB, db *gorm.DB, caseID snowflake.ID) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&casedomain.HistoryEntry{}).Where("case_id = ?", caseID).Count(&n).Error; err != nil {
		t.Fatalf("count history: %v", err)
	}
	return n
}
