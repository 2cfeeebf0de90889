package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

type Reconciler interface {
	ReconcilePending(ctx context.Context, limit int) (int, error)
}

// ReconcileJob retries payment reconciliation for completed refunds whose
// payment status write failed.
type ReconcileJob struct {
	ctx        context.Context
	reconciler Reconciler
	interval   time.Duration
	batchSize  int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewReconcileJob builds the sweep. ctx bounds every run; cancel it to stop
// a sweep in progress.
func NewReconcileJob(ctx context.Context, reconciler Reconciler, interval time.Duration, batchSize int, logger *slog.Logger) *ReconcileJob {
	return &ReconcileJob{
		ctx:        ctx,
		reconciler: reconciler,
		interval:   interval,
		batchSize:  batchSize,
		timeout:    interval,
		logger:     logger,
	}
}

func (j *ReconcileJob) Name() string {
	return "refund_reconciliation_sweep"
}

func (j *ReconcileJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(j.interval)
}

func (j *ReconcileJob) Execute() {
	if j.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.reconciler.ReconcilePending(ctx, j.batchSize)
	if err != nil {
		j.logger.Warn("reconciliation sweep finished with errors",
			"reconciled", n,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return
	}
	if n > 0 {
		j.logger.Info("reconciliation sweep finished",
			"reconciled", n,
			"duration_ms", time.Since(start).Milliseconds())
	}
}
