package contracts

import (
	"context"
	"time"
)

// Model 학습된 모델 (Predictor 소유, 외부에서는 불투명)
type Model interface {
	// Kind returns the predictor family name (e.g. "gbm")
	Kind() string
}

// Predictor trains and applies a regression model (S7)
// ⭐ SSOT: 학습/추론 경계 인터페이스
type Predictor interface {
	Train(ctx context.Context, X [][]float64, y []float64) (Model, error)
	Predict(ctx context.Context, m Model, X [][]float64) ([]float64, error)
}

// HeatCache stores heat tables between runs
type HeatCache interface {
	GetHeat(ctx context.Context, key string) (*HeatTable, bool, error)
	SetHeat(ctx context.Context, key string, table *HeatTable, ttl time.Duration) error
}

// CheckpointStore persists stage outputs
// ⭐ SSOT: CSV 디렉터리 또는 PostgreSQL
type CheckpointStore interface {
	SaveAggregates(ctx context.Context, runID string, rows []MonthlyAggregate) error
	SaveHeat(ctx context.Context, runID string, table *HeatTable) error
	SavePredictions(ctx context.Context, runID string, preds []Prediction) error
}

// EventSink receives run progress events; Publish must not block
type EventSink interface {
	Publish(ev RunEvent)
}
