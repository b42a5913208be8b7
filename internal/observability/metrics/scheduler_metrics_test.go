package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	ingestiondomain "github.com/smallbiznis/recovery/internal/ingestion/domain"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, SchedulerJobReasonDeadlineExceeded},
		{"aborted", fmt.Errorf("ingest: %w", ingestiondomain.ErrIngestionAborted), SchedulerJobReasonDeadlineExceeded},
		{"run_in_progress", ingestiondomain.ErrRunInProgress, SchedulerJobReasonRunInProgress},
		{"batch_commit", fmt.Errorf("%w: disk full", ingestiondomain.ErrBatchCommit), SchedulerJobReasonBatchCommit},
		{"concurrent_update", casedomain.ErrConcurrentUpdate, SchedulerJobReasonConcurrentUpdate},
		{"db_lock_timeout", &pgconn.PgError{Code: "55P03"}, SchedulerJobReasonDBLockTimeout},
		{"serialization_failure", &pgconn.PgError{Code: "40001"}, SchedulerJobReasonSerializationFailure},
		{"unique_violation", gorm.ErrDuplicatedKey, SchedulerJobReasonUniqueViolation},
		{"unknown", errors.New("boom"), SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(ingestiondomain.ErrRunInProgress) {
		t.Fatalf("overlapping runs should be retried on the next tick")
	}
	if IsSchedulerErrorRetryable(errors.New("invalid policy")) {
		t.Fatalf("business errors are not retryable")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "recovery",
		Environment: "test",
	})

	metrics.AddBatchProcessed("ingestion", ResourceRows, 3)
	metrics.AddBatchProcessed("ingestion", ResourceRows, 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("ingestion", ResourceRows))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}
