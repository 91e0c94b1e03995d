package scheduler

import (
	"context"
	"fmt"
	"time"

	"backend-nearvibe/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// jobTimeout bounds a single run so a stuck query cannot pile up runs.
const jobTimeout = 5 * time.Minute

// Job is a named unit of background work. Run reports how many rows it touched.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{cron: cron.New(), log: log}
}

// Add registers a job. An empty schedule disables the job.
func (s *Scheduler) Add(job Job) error {
	if job.Spec == "" {
		s.log.Info("job disabled", zap.String("job", job.Name))
		return nil
	}
	if _, err := s.cron.AddFunc(job.Spec, func() { s.run(job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", job.Name, err)
	}
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := job.Run(ctx)
	metrics.ObserveJob(job.Name, err)
	if err != nil {
		s.log.Error("job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	s.log.Info("job finished",
		zap.String("job", job.Name),
		zap.Int64("rows", n),
		zap.Duration("took", time.Since(start)),
	)
}

func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

type TokenPruner interface {
	PruneRefreshTokens(ctx context.Context) (int64, error)
}

type RatingReconciler interface {
	ReconcileRatings(ctx context.Context) (int, error)
}

// PruneTokensJob deletes expired and revoked refresh tokens.
func PruneTokensJob(spec string, p TokenPruner) Job {
	return Job{Name: "prune_refresh_tokens", Spec: spec, Run: p.PruneRefreshTokens}
}

// ReconcileRatingsJob recomputes cached adventure ratings.
func ReconcileRatingsJob(spec string, r RatingReconciler) Job {
	return Job{
		Name: "reconcile_ratings",
		Spec: spec,
		Run: func(ctx context.Context) (int64, error) {
			n, err := r.ReconcileRatings(ctx)
			return int64(n), err
		},
	}
}
