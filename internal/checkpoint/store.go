package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/pipelineconfig"
)

// Run status
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// ErrNotFound no checkpoint for the request
var ErrNotFound = errors.New("checkpoint not found")

// Run 실행 기록
type Run struct {
	ID          string     `json:"run_id"`
	Mode        string     `json:"mode"`
	PipelineID  string     `json:"pipeline_id"`
	ConfigHash  string     `json:"config_hash"`
	ConfigYAML  string     `json:"config_yaml,omitempty"`
	Status      string     `json:"status"`
	RMSE        float64    `json:"rmse"`
	Predictions int        `json:"predictions"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// NewRun starts a run record from a config snapshot
func NewRun(snap *pipelineconfig.RunSnapshot) *Run {
	return &Run{
		ID:         snap.RunID,
		Mode:       snap.Mode,
		PipelineID: snap.PipelineID,
		ConfigHash: snap.ConfigHash,
		ConfigYAML: snap.ConfigYAML,
		Status:     RunRunning,
		StartedAt:  snap.CreatedAt,
	}
}

// Finish marks the run finished with the outcome of err
func (r *Run) Finish(err error) {
	now := time.Now()
	r.FinishedAt = &now
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	r.Status = RunSucceeded
}

// PredictionFilter 예측 조회 조건 (-1 = 전체)
type PredictionFilter struct {
	ShopID int
	ItemID int
}

// Match reports whether a prediction satisfies the filter
func (f PredictionFilter) Match(p contracts.Prediction) bool {
	return (f.ShopID < 0 || p.ShopID == f.ShopID) && (f.ItemID < 0 || p.ItemID == f.ItemID)
}

// Store persists stage outputs and run records
// ⭐ SSOT: 파이프라인 산출물 저장은 이 인터페이스로만
type Store interface {
	contracts.CheckpointStore

	SaveRun(ctx context.Context, run *Run) error

	// LatestRun returns the newest run; withPredictions restricts it to
	// succeeded runs that produced predictions
	LatestRun(ctx context.Context, withPredictions bool) (*Run, error)

	Prediction(ctx context.Context, runID string, id int) (*contracts.Prediction, error)
	FindPredictions(ctx context.Context, runID string, f PredictionFilter) ([]contracts.Prediction, error)
}

// Multi writes to every store and reads from the first one
type Multi []Store

// SaveAggregates implements contracts.CheckpointStore
func (m Multi) SaveAggregates(ctx context.Context, runID string, rows []contracts.MonthlyAggregate) error {
	return m.each(func(s Store) error { return s.SaveAggregates(ctx, runID, rows) })
}

// SaveHeat implements contracts.CheckpointStore
func (m Multi) SaveHeat(ctx context.Context, runID string, table *contracts.HeatTable) error {
	return m.each(func(s Store) error { return s.SaveHeat(ctx, runID, table) })
}

// SavePredictions implements contracts.CheckpointStore
func (m Multi) SavePredictions(ctx context.Context, runID string, preds []contracts.Prediction) error {
	return m.each(func(s Store) error { return s.SavePredictions(ctx, runID, preds) })
}

// SaveRun implements Store
func (m Multi) SaveRun(ctx context.Context, run *Run) error {
	return m.each(func(s Store) error { return s.SaveRun(ctx, run) })
}

// LatestRun implements Store
func (m Multi) LatestRun(ctx context.Context, withPredictions bool) (*Run, error) {
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return m[0].LatestRun(ctx, withPredictions)
}

// Prediction implements Store
func (m Multi) Prediction(ctx context.Context, runID string, id int) (*contracts.Prediction, error) {
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return m[0].Prediction(ctx, runID, id)
}

// FindPredictions implements Store
func (m Multi) FindPredictions(ctx context.Context, runID string, f PredictionFilter) ([]contracts.Prediction, error) {
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return m[0].FindPredictions(ctx, runID, f)
}

func (m Multi) each(fn func(Store) error) error {
	for i, s := range m {
		if err := fn(s); err != nil {
			return fmt.Errorf("checkpoint store %d: %w", i, err)
		}
	}
	return nil
}
