package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/salescast/internal/brain"
	"github.com/wonny/salescast/pkg/logger"
)

// Pipeline runs training and inference end to end
type Pipeline interface {
	Run(ctx context.Context) (*brain.RunResult, error)
}

// RetrainJob retrains the model and refreshes predictions once new monthly data lands
// Schedule: SCHEDULE (default 03:00 on the 1st of every month)
type RetrainJob struct {
	pipeline Pipeline
	schedule string
	logger   *logger.Logger
}

// NewRetrainJob creates a new retrain job
func NewRetrainJob(p Pipeline, schedule string, log *logger.Logger) *RetrainJob {
	return &RetrainJob{
		pipeline: p,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RetrainJob) Name() string {
	return "monthly_retrain"
}

// Schedule returns the cron schedule
func (j *RetrainJob) Schedule() string {
	return j.schedule
}

// Run executes the full pipeline
func (j *RetrainJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled retrain")

	res, err := j.pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("retrain: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":      res.RunID,
		"rmse":        res.RMSE,
		"predictions": res.Predictions,
	}).Info("Scheduled retrain completed")

	return nil
}
