package jobs

import (
	"context"

	"github.com/wonny/salescast/pkg/logger"
)

// Pruner removes old run records and their predictions
type Pruner interface {
	PruneRuns(ctx context.Context, keep int) (int, error)
}

// PruneJob keeps only the most recent runs in the output directory
type PruneJob struct {
	pruner Pruner
	keep   int
	logger *logger.Logger
}

// NewPruneJob creates a new prune job
func NewPruneJob(p Pruner, keep int, log *logger.Logger) *PruneJob {
	return &PruneJob{
		pruner: p,
		keep:   keep,
		logger: log,
	}
}

// Name returns the job name
func (j *PruneJob) Name() string {
	return "run_prune"
}

// Schedule returns the cron schedule (Sunday 04:00)
func (j *PruneJob) Schedule() string {
	return "0 0 4 * * 0"
}

// Run executes the prune
func (j *PruneJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled run prune")

	count, err := j.pruner.PruneRuns(ctx, j.keep)
	if err != nil {
		return err
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("Run prune completed")
	}

	return nil
}
