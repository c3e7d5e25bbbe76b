package s7_model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/metrics"
)

// DefaultTestRatio hold-out share of the design rows
const DefaultTestRatio = 0.25

// EvalTrainer is implemented by predictors that can early-stop on a hold-out set
type EvalTrainer interface {
	TrainWithEval(ctx context.Context, X [][]float64, y []float64, evalX [][]float64, evalY []float64) (contracts.Model, error)
}

// TargetTransform 정규화된 타깃의 역변환 경계
type TargetTransform struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Inverse maps a scaled target back to sales units
func (t *TargetTransform) Inverse(v float64) float64 {
	if t == nil {
		return v
	}
	return v*(t.Max-t.Min) + t.Min
}

// TrainerConfig 학습 설정
type TrainerConfig struct {
	TestRatio float64
	Seed      int64
	Target    *TargetTransform // nil when the target is in sales units
}

// TrainResult 학습 결과
type TrainResult struct {
	Model     contracts.Model
	Features  []string
	TrainRows int
	TestRows  int
	RMSE      float64 // hold-out RMSE of rounded predictions, in sales units
	Duration  time.Duration
}

// Trainer S7 학습 어댑터
type Trainer struct {
	predictor contracts.Predictor
	cfg       TrainerConfig
	log       zerolog.Logger
}

// NewTrainer creates a trainer around a predictor
func NewTrainer(p contracts.Predictor, cfg TrainerConfig, log zerolog.Logger) *Trainer {
	if cfg.TestRatio <= 0 || cfg.TestRatio >= 1 {
		cfg.TestRatio = DefaultTestRatio
	}
	return &Trainer{
		predictor: p,
		cfg:       cfg,
		log:       log.With().Str("component", "s7_trainer").Logger(),
	}
}

// Train shuffles the design rows with a fixed seed, holds out TestRatio of them,
// trains on the rest and reports the hold-out RMSE of rounded predictions.
func (t *Trainer) Train(ctx context.Context, d *Design) (*TrainResult, error) {
	start := time.Now()

	if len(d.X) == 0 || len(d.X) != len(d.Y) {
		return nil, fmt.Errorf("train: design has %d rows and %d targets", len(d.X), len(d.Y))
	}

	trainX, trainY, testX, testY := t.split(d)

	var (
		model contracts.Model
		err   error
	)
	if et, ok := t.predictor.(EvalTrainer); ok && len(testX) > 0 {
		model, err = et.TrainWithEval(ctx, trainX, trainY, testX, testY)
	} else {
		model, err = t.predictor.Train(ctx, trainX, trainY)
	}
	if err != nil {
		return nil, fmt.Errorf("train model: %w", err)
	}

	result := &TrainResult{
		Model:     model,
		Features:  append([]string(nil), d.Features...),
		TrainRows: len(trainX),
		TestRows:  len(testX),
	}

	if len(testX) > 0 {
		pred, err := t.predictor.Predict(ctx, model, testX)
		if err != nil {
			return nil, fmt.Errorf("predict hold-out: %w", err)
		}
		result.RMSE = t.holdOutRMSE(pred, testY)
		metrics.SetModelRMSE(result.RMSE)
	}
	result.Duration = time.Since(start)

	t.log.Info().
		Str("model", model.Kind()).
		Int("features", len(d.Features)).
		Int("train_rows", result.TrainRows).
		Int("test_rows", result.TestRows).
		Float64("rmse", result.RMSE).
		Dur("duration", result.Duration).
		Msg("Model trained")

	return result, nil
}

func (t *Trainer) split(d *Design) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	idx := make([]int, len(d.X))
	for i := range idx {
		idx[i] = i
	}
	rng := rand.New(rand.NewSource(t.cfg.Seed))
	rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	nTest := int(float64(len(idx)) * t.cfg.TestRatio)
	if nTest >= len(idx) {
		nTest = len(idx) - 1
	}

	for n, i := range idx {
		if n < nTest {
			testX = append(testX, d.X[i])
			testY = append(testY, d.Y[i])
			continue
		}
		trainX = append(trainX, d.X[i])
		trainY = append(trainY, d.Y[i])
	}
	return trainX, trainY, testX, testY
}

func (t *Trainer) holdOutRMSE(pred, y []float64) float64 {
	var sum float64
	for i := range pred {
		diff := math.Round(t.cfg.Target.Inverse(pred[i])) - t.cfg.Target.Inverse(y[i])
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(pred)))
}
