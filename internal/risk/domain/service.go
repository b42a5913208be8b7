package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
)

type ReclassifyReport struct {
	Scanned   int `json:"scanned"`
	Changed   int `json:"changed"`
	Conflicts int `json:"conflicts"`
	Notified  int `json:"notified"`
}

func (r *ReclassifyReport) Merge(other ReclassifyReport) {
	r.Scanned += other.Scanned
	r.Changed += other.Changed
	r.Conflicts += other.Conflicts
	r.Notified += other.Notified
}

// RecordPredictionRequest carries the external model output. A missing date
// is derived from the due date plus the delay.
type RecordPredictionRequest struct {
	CaseID               string
	PredictedPaymentDate *time.Time
	PredictedDelay       *float64
}

type Service interface {
	// Reclassify recomputes zone and action of every reclassifiable case.
	Reclassify(ctx context.Context, now time.Time) (ReclassifyReport, error)
	ReclassifyCases(ctx context.Context, ids []snowflake.ID, now time.Time) (ReclassifyReport, error)
	RecordPrediction(ctx context.Context, req RecordPredictionRequest) (casedomain.Case, error)
}
