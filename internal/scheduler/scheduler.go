package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/recovery/internal/clock"
	ingestiondomain "github.com/smallbiznis/recovery/internal/ingestion/domain"
	obsmetrics "github.com/smallbiznis/recovery/internal/observability/metrics"
	profiledomain "github.com/smallbiznis/recovery/internal/profile/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log          *zap.Logger
	IngestionSvc ingestiondomain.Service
	RiskSvc      riskdomain.Service
	ProfileSvc   profiledomain.Service
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config `optional:"true"`
}

type Scheduler struct {
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	ingestionSvc ingestiondomain.Service
	riskSvc      riskdomain.Service
	profileSvc   profiledomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.IngestionSvc == nil || p.RiskSvc == nil || p.ProfileSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		ingestionSvc: p.IngestionSvc,
		riskSvc:      p.RiskSvc,
		profileSvc:   p.ProfileSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	schedMetrics.IncJobError(name, err)

	// a deadline stops work at a batch boundary; the next tick resumes it
	isTimeout := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ingestiondomain.ErrIngestionAborted)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}
	if errors.Is(err, ingestiondomain.ErrRunInProgress) {
		log.Info("job skipped, another run holds the lock")
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job in order: fresh feed data first, then
// profiles and classification on top of it.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context) error
	}{
		{JobIngestion, s.cfg.IngestionTimeout, s.IngestionJob},
		{JobProfileRefresh, s.cfg.ProfileTimeout, s.ProfileRefreshJob},
		{JobReclassify, s.cfg.ReclassifyTimeout, s.ReclassifyJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, job.Timeout, job.Run))
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// an empty list enables every job
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

func (s *Scheduler) IngestionJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobIngestion, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	report, err := s.ingestionSvc.Run(ctx)
	if errors.Is(err, ingestiondomain.ErrNoSource) {
		s.logger(ctx).Debug("ingestion skipped, no feed configured")
		return nil
	}
	run.AddProcessed(report.Processed)
	obsmetrics.Scheduler().AddBatchProcessed(JobIngestion, obsmetrics.ResourceRows, report.Processed)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.ingestion.failed", JobIngestion, err,
			zap.String("source", report.Source),
			zap.Int("processed", report.Processed),
		)
		return err
	}
	return nil
}

func (s *Scheduler) ReclassifyJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReclassify, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	report, err := s.riskSvc.Reclassify(ctx, s.clock.Now())
	run.AddProcessed(report.Changed)
	obsmetrics.Scheduler().AddBatchProcessed(JobReclassify, obsmetrics.ResourceCases, report.Changed)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.reclassify.failed", JobReclassify, err,
			zap.Int("scanned", report.Scanned),
		)
		return err
	}
	return nil
}

func (s *Scheduler) ProfileRefreshJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobProfileRefresh, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	report, err := s.profileSvc.Refresh(ctx)
	run.AddProcessed(report.Customers)
	obsmetrics.Scheduler().AddBatchProcessed(JobProfileRefresh, obsmetrics.ResourceProfiles, report.Customers)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.profile_refresh.failed", JobProfileRefresh, err)
		return err
	}
	return nil
}
