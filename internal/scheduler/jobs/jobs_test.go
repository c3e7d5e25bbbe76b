package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/brain"
	"github.com/wonny/salescast/pkg/logger"
)

type fakePipeline struct {
	err   error
	calls int
}

func (p *fakePipeline) Run(context.Context) (*brain.RunResult, error) {
	p.calls++
	if p.err != nil {
		return &brain.RunResult{Error: p.err.Error()}, p.err
	}
	return &brain.RunResult{RunID: "r1", Success: true, RMSE: 1.2, Predictions: 10}, nil
}

type fakePruner struct {
	keep    int
	removed int
}

func (p *fakePruner) PruneRuns(_ context.Context, keep int) (int, error) {
	p.keep = keep
	return p.removed, nil
}

func TestRetrainJob(t *testing.T) {
	p := &fakePipeline{}
	job := NewRetrainJob(p, "0 0 3 1 * *", logger.Nop())

	assert.Equal(t, "monthly_retrain", job.Name())
	assert.Equal(t, "0 0 3 1 * *", job.Schedule())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, p.calls)

	p.err = errors.New("no data")
	err := job.Run(context.Background())
	assert.ErrorIs(t, err, p.err)
}

func TestPruneJob(t *testing.T) {
	p := &fakePruner{removed: 3}
	job := NewPruneJob(p, 20, logger.Nop())

	assert.Equal(t, "run_prune", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 20, p.keep)
}
