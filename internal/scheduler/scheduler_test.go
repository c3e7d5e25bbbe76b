package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	calls    atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(context.Context) error {
	if j.calls.Add(1) <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestScheduler_AddRemove(t *testing.T) {
	s := New(logger.Nop())

	job := &countingJob{name: "retrain", schedule: "0 0 3 1 * *"}
	require.NoError(t, s.AddJob(job))
	assert.Error(t, s.AddJob(job))
	assert.Equal(t, []string{"retrain"}, s.GetAllJobs())

	assert.Error(t, s.AddJob(&countingJob{name: "bad", schedule: "not a schedule"}))

	require.NoError(t, s.RemoveJob("retrain"))
	assert.Error(t, s.RemoveJob("retrain"))
	assert.Empty(t, s.GetAllJobs())
}

func TestScheduler_NextRun(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&countingJob{name: "retrain", schedule: "0 0 3 1 * *"}))

	s.Start()
	defer s.Stop()

	next, err := s.NextRun("retrain")
	require.NoError(t, err)
	assert.Equal(t, 1, next.Day())
	assert.Equal(t, 3, next.Hour())

	_, err = s.NextRun("missing")
	assert.Error(t, err)
}

func TestScheduler_RunJobRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))

	job := &countingJob{name: "retrain", schedule: "@monthly", failures: 2}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJob(context.Background(), "retrain")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, int32(3), job.calls.Load())

	_, err = s.RunJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestScheduler_RunJobExhaustsRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))

	job := &countingJob{name: "prune", schedule: "@weekly", failures: 10}
	require.NoError(t, s.AddJob(job))

	res, err := s.RunJob(context.Background(), "prune")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "transient", res.Error)
	assert.Equal(t, int32(2), job.calls.Load())

	stats := s.GetJobStats()["prune"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestScheduler_CancelledRetry(t *testing.T) {
	s := New(logger.Nop(), WithRetry(3, time.Hour))

	job := &countingJob{name: "retrain", schedule: "@monthly", failures: 10}
	require.NoError(t, s.AddJob(job))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := s.RunJob(ctx, "retrain")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, context.Canceled.Error(), res.Error)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%4 != 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), 25)
	assert.InDelta(t, 0.75, h.GetSuccessRate(), 1e-9)
}

type blockingJob struct {
	started chan struct{}
	release chan struct{}
}

func (j *blockingJob) Name() string     { return "retrain" }
func (j *blockingJob) Schedule() string { return "@monthly" }

func (j *blockingJob) Run(context.Context) error {
	close(j.started)
	<-j.release
	return nil
}

func TestScheduler_NoOverlap(t *testing.T) {
	s := New(logger.Nop())
	job := &blockingJob{started: make(chan struct{}), release: make(chan struct{})}
	require.NoError(t, s.AddJob(job))

	done := make(chan JobResult, 1)
	go func() {
		res, _ := s.RunJob(context.Background(), "retrain")
		done <- res
	}()
	<-job.started

	_, err := s.RunJob(context.Background(), "retrain")
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.True(t, s.GetJobStats()["retrain"].Running)

	close(job.release)
	res := <-done
	assert.True(t, res.Success)
	assert.False(t, s.GetJobStats()["retrain"].Running)
}

func TestScheduler_LastSuccessSurvivesFailure(t *testing.T) {
	s := New(logger.Nop(), WithRetry(0, time.Millisecond))

	job := &countingJob{name: "prune", schedule: "@weekly"}
	require.NoError(t, s.AddJob(job))
	_, err := s.RunJob(context.Background(), "prune")
	require.NoError(t, err)

	// 이후 모든 호출 실패
	job.failures = 100
	_, err = s.RunJob(context.Background(), "prune")
	require.NoError(t, err)

	stats := s.GetJobStats()["prune"]
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	require.NotNil(t, stats.LastSuccess)
	require.NotNil(t, stats.LastFailure)
	assert.False(t, stats.LastFailure.Before(*stats.LastSuccess))
}
