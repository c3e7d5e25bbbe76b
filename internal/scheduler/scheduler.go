package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/pkg/logger"
)

// ErrJobRunning the job is still running from a previous trigger
var ErrJobRunning = errors.New("job already running")

// maxRetryDelay caps the exponential retry backoff
const maxRetryDelay = time.Hour

// Scheduler runs pipeline jobs on cron schedules.
// A job never overlaps with itself: a trigger that fires while the previous
// run is still going is skipped.
// ⭐ SSOT: 스케줄 관리는 이 스케줄러에서만
type Scheduler struct {
	cron   *cron.Cron
	logger *logger.Logger

	mu      sync.RWMutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	history map[string]*JobHistory
	running map[string]bool

	// 실행 중인 job은 Stop 시 취소됨
	ctx    context.Context
	cancel context.CancelFunc

	maxRetries int
	retryDelay time.Duration // first backoff, doubled per attempt
}

// Option configures a scheduler
type Option func(*Scheduler)

// WithRetry sets the retry count and the first retry delay of failed jobs
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(s *Scheduler) {
		s.maxRetries = maxRetries
		s.retryDelay = delay
	}
}

// New creates a scheduler. Schedules use the 6-field cron format with seconds.
func New(log *logger.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		logger:     log,
		jobs:       make(map[string]Job),
		entries:    make(map[string]cron.EntryID),
		history:    make(map[string]*JobHistory),
		running:    make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: 2,
		retryDelay: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddJob registers a job under its cron schedule
func (s *Scheduler) AddJob(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(job.Schedule(), func() {
		if _, err := s.trigger(s.ctx, job); errors.Is(err, ErrJobRunning) {
			s.logger.WithField("job", name).Warn("Skipping trigger, previous run still in progress")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule job %s: %w", name, err)
	}

	s.jobs[name] = job
	s.entries[name] = id
	s.history[name] = &JobHistory{}

	s.logger.WithFields(map[string]interface{}{
		"job":      name,
		"schedule": job.Schedule(),
	}).Info("Job added to scheduler")

	return nil
}

// RemoveJob unregisters a job; its history is kept
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(id)
	delete(s.jobs, name)
	delete(s.entries, name)
	s.logger.WithField("job", name).Info("Job removed from scheduler")

	return nil
}

// Start starts the cron loop
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// NextRun returns the next activation of a job (zero before Start)
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.RLock()
	id, exists := s.entries[name]
	s.mu.RUnlock()

	if !exists {
		return time.Time{}, fmt.Errorf("job %s not found", name)
	}
	return s.cron.Entry(id).Next, nil
}

// RunJob runs a job now and waits for the result.
// Returns ErrJobRunning when the job is already in progress.
func (s *Scheduler) RunJob(ctx context.Context, name string) (JobResult, error) {
	s.mu.RLock()
	job, exists := s.jobs[name]
	s.mu.RUnlock()

	if !exists {
		return JobResult{}, fmt.Errorf("job %s not found", name)
	}
	return s.trigger(ctx, job)
}

// trigger claims the job and runs it unless it is already running
func (s *Scheduler) trigger(ctx context.Context, job Job) (JobResult, error) {
	name := job.Name()

	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		return JobResult{}, ErrJobRunning
	}
	s.running[name] = true
	s.mu.Unlock()

	res := s.runJob(ctx, job)

	s.mu.Lock()
	delete(s.running, name)
	if h, ok := s.history[name]; ok {
		h.AddResult(res)
	}
	s.mu.Unlock()

	metrics.RecordJob(name, res.Success, res.Attempts, res.Duration)
	return res, nil
}

// runJob executes a job with exponential retry backoff
func (s *Scheduler) runJob(ctx context.Context, job Job) JobResult {
	name := job.Name()
	log := s.logger.WithField("job", name)
	res := JobResult{JobName: name, StartTime: time.Now()}

	log.Info("Job started")

	var lastErr error
	delay := s.retryDelay
retry:
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		res.Attempts++
		if lastErr = job.Run(ctx); lastErr == nil {
			break
		}
		if attempt == s.maxRetries {
			break
		}

		log.WithError(lastErr).WithFields(map[string]interface{}{
			"attempt": res.Attempts,
			"delay":   delay.String(),
		}).Warn("Job failed, retrying")

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}

	res.EndTime = time.Now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	res.Success = lastErr == nil

	if lastErr != nil {
		res.Error = lastErr.Error()
		log.WithError(lastErr).WithFields(map[string]interface{}{
			"attempts": res.Attempts,
			"duration": res.Duration.String(),
		}).Error("Job failed after all retries")
		return res
	}

	log.WithFields(map[string]interface{}{
		"attempts": res.Attempts,
		"duration": res.Duration.String(),
	}).Info("Job completed successfully")
	return res
}

// GetJobHistory returns the history of a job
func (s *Scheduler) GetJobHistory(name string) (*JobHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.history[name]
	if !exists {
		return nil, fmt.Errorf("job %s not found", name)
	}
	return h, nil
}

// GetAllJobs returns the registered job names sorted
func (s *Scheduler) GetAllJobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetJobStats summarizes the history of every registered job
func (s *Scheduler) GetJobStats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]JobStats, len(s.jobs))
	for name, job := range s.jobs {
		h := s.history[name]
		failed := len(h.GetFailedResults())

		st := JobStats{
			JobName:      name,
			Schedule:     job.Schedule(),
			Running:      s.running[name],
			TotalRuns:    len(h.Results),
			SuccessCount: len(h.Results) - failed,
			FailureCount: failed,
			SuccessRate:  h.GetSuccessRate(),
		}
		if last, ok := h.last(func(JobResult) bool { return true }); ok {
			st.LastRun = &last.StartTime
		}
		if last, ok := h.last(func(r JobResult) bool { return r.Success }); ok {
			st.LastSuccess = &last.StartTime
		}
		if last, ok := h.last(func(r JobResult) bool { return !r.Success }); ok {
			st.LastFailure = &last.StartTime
		}
		stats[name] = st
	}
	return stats
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	Running      bool       `json:"running"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
