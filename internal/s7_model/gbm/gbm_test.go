package gbm

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData y = 10 when x0 > 5 else 1; x1 is noise-free filler
func stepData(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x0 := float64(i % 11)
		X[i] = []float64{x0, float64(i % 3)}
		if x0 > 5 {
			y[i] = 10
		} else {
			y[i] = 1
		}
	}
	return X, y
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.NEstimators = 60
	cfg.LearningRate = 0.3
	cfg.MaxDepth = 3
	cfg.Subsample = 1
	cfg.ColsampleByTree = 1
	return cfg
}

func TestRegressor_LearnsStep(t *testing.T) {
	X, y := stepData(220)
	r := New(smallConfig(), zerolog.Nop())

	m, err := r.Train(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, Kind, m.Kind())

	pred, err := r.Predict(context.Background(), m, [][]float64{{2, 0}, {9, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred[0], 0.05)
	assert.InDelta(t, 10.0, pred[1], 0.05)
}

func TestRegressor_Deterministic(t *testing.T) {
	X, y := stepData(200)
	cfg := smallConfig()
	cfg.Subsample = 0.75
	cfg.ColsampleByTree = 0.5

	m1, err := New(cfg, zerolog.Nop()).Train(context.Background(), X, y)
	require.NoError(t, err)
	m2, err := New(cfg, zerolog.Nop()).Train(context.Background(), X, y)
	require.NoError(t, err)

	assert.Equal(t, m1, m2)
}

func TestRegressor_EarlyStopping(t *testing.T) {
	X, y := stepData(220)
	cfg := smallConfig()
	cfg.NEstimators = 500
	cfg.EarlyStoppingRounds = 5
	r := New(cfg, zerolog.Nop())

	m, err := r.TrainWithEval(context.Background(), X, y, X[:50], y[:50])
	require.NoError(t, err)

	model := m.(*Model)
	assert.Less(t, len(model.Trees), 500)
	assert.Equal(t, model.BestIteration+1, len(model.Trees))
	assert.Less(t, model.BestScore, 0.1)
}

func TestRegressor_EncodeDecode(t *testing.T) {
	X, y := stepData(120)
	r := New(smallConfig(), zerolog.Nop())

	m, err := r.Train(context.Background(), X, y)
	require.NoError(t, err)

	data, err := r.Encode(m)
	require.NoError(t, err)
	back, err := r.Decode(data)
	require.NoError(t, err)

	p1, err := r.Predict(context.Background(), m, X)
	require.NoError(t, err)
	p2, err := r.Predict(context.Background(), back, X)
	require.NoError(t, err)
	for i := range p1 {
		assert.InDelta(t, p1[i], p2[i], 1e-12)
	}
}

func TestRegressor_InvalidInput(t *testing.T) {
	r := New(smallConfig(), zerolog.Nop())

	_, err := r.Train(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = r.Train(context.Background(), [][]float64{{1}}, []float64{1, 2})
	assert.Error(t, err)

	m, err := r.Train(context.Background(), [][]float64{{1}, {2}}, []float64{1, 2})
	require.NoError(t, err)
	_, err = r.Predict(context.Background(), m, [][]float64{{1, 2}})
	assert.Error(t, err)
}

func TestRegressor_Cancelled(t *testing.T) {
	X, y := stepData(50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(smallConfig(), zerolog.Nop()).Train(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThresholdsFor(t *testing.T) {
	assert.Equal(t, []float64{1.5, 2.5}, thresholdsFor([]float64{3, 1, 2, 2}, 8))
	assert.Empty(t, thresholdsFor([]float64{4, 4, 4}, 8))

	many := make([]float64, 1000)
	for i := range many {
		many[i] = float64(i)
	}
	th := thresholdsFor(many, 16)
	assert.LessOrEqual(t, len(th), 15)
	for i := 1; i < len(th); i++ {
		assert.Less(t, th[i-1], th[i])
	}
}

func TestRMSE(t *testing.T) {
	assert.Equal(t, 0.0, rmse(nil, nil))
	assert.InDelta(t, math.Sqrt(2.5), rmse([]float64{1, 2}, []float64{2, 4}), 1e-12)
}
