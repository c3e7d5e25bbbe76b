package s7_model

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/s5_normalize"
	"github.com/wonny/salescast/internal/s6_timeseries"
	"github.com/wonny/salescast/internal/s7_model/gbm"
)

type fakeModel struct{}

func (fakeModel) Kind() string { return "fake" }

// lagPredictor predicts the first lag column plus an offset
type lagPredictor struct {
	offset    float64
	trainRows int
}

func (p *lagPredictor) Train(_ context.Context, X [][]float64, _ []float64) (contracts.Model, error) {
	p.trainRows = len(X)
	return fakeModel{}, nil
}

func (p *lagPredictor) Predict(_ context.Context, _ contracts.Model, X [][]float64) ([]float64, error) {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = x[len(KeyFeatures())] + p.offset
	}
	return out, nil
}

type evalPredictor struct {
	lagPredictor
	evalRows int
}

func (p *evalPredictor) TrainWithEval(ctx context.Context, X [][]float64, y []float64, evalX [][]float64, _ []float64) (contracts.Model, error) {
	p.evalRows = len(evalX)
	return p.Train(ctx, X, y)
}

func encodedTable(rows int) *contracts.EncodedTable {
	t := &contracts.EncodedTable{
		FeatureTable: contracts.FeatureTable{
			Columns: []string{contracts.FeatTotalSales, contracts.FeatAvgSalesPrice, "total_sales_p1"},
		},
		BaseColumns: []string{contracts.FeatTotalSales, contracts.FeatAvgSalesPrice},
		LagColumns:  []string{"total_sales_p1"},
		LagDepth:    1,
	}
	for i := 0; i < rows; i++ {
		t.Rows = append(t.Rows, contracts.FeatureRow{
			Key:    contracts.RowKey{Month: 13, Shop: 2, Item: i, Category: 7},
			Values: []float64{float64(i), 100, float64(i)},
		})
	}
	return t
}

func TestBuildDesign(t *testing.T) {
	d, err := BuildDesign(encodedTable(2), contracts.FeatTotalSales)
	require.NoError(t, err)

	assert.Equal(t, []string{FeatMonthOfYear, FeatShopID, FeatItemID, FeatCategoryID, "total_sales_p1"}, d.Features)
	assert.Equal(t, [][]float64{{1, 2, 0, 7, 0}, {1, 2, 1, 7, 1}}, d.X)
	assert.Equal(t, []float64{0, 1}, d.Y)

	// current-month columns never reach X
	assert.NotContains(t, d.Features, contracts.FeatAvgSalesPrice)
	assert.NotContains(t, d.Features, contracts.FeatTotalSales)

	_, err = BuildDesign(encodedTable(2), "missing")
	assert.ErrorIs(t, err, contracts.ErrMissingColumn)
}

func TestCheckFeatures(t *testing.T) {
	d, err := DesignMatrix(encodedTable(1))
	require.NoError(t, err)

	assert.NoError(t, CheckFeatures(d, d.Features))
	assert.ErrorIs(t, CheckFeatures(d, d.Features[:3]), contracts.ErrIntegrity)

	other := append([]string(nil), d.Features...)
	other[4] = "avg_sales_price_p1"
	assert.ErrorIs(t, CheckFeatures(d, other), contracts.ErrIntegrity)
}

func TestTrainer_SplitAndRMSE(t *testing.T) {
	p := &lagPredictor{offset: 0.3}
	tr := NewTrainer(p, TrainerConfig{TestRatio: 0.25, Seed: 7}, zerolog.Nop())

	d, err := BuildDesign(encodedTable(8), contracts.FeatTotalSales)
	require.NoError(t, err)

	res, err := tr.Train(context.Background(), d)
	require.NoError(t, err)

	assert.Equal(t, 6, res.TrainRows)
	assert.Equal(t, 2, res.TestRows)
	assert.Equal(t, 6, p.trainRows)
	// y + 0.3 rounds back to y
	assert.Equal(t, 0.0, res.RMSE)
	assert.Equal(t, d.Features, res.Features)
}

func TestTrainer_DeterministicSplit(t *testing.T) {
	d, err := BuildDesign(encodedTable(20), contracts.FeatTotalSales)
	require.NoError(t, err)

	tr := NewTrainer(&lagPredictor{}, TrainerConfig{Seed: 42}, zerolog.Nop())
	_, _, a, _ := tr.split(d)
	_, _, b, _ := tr.split(d)
	assert.Equal(t, a, b)
	assert.Len(t, a, 5)
}

func TestTrainer_UsesHoldOutForEarlyStopping(t *testing.T) {
	p := &evalPredictor{}
	tr := NewTrainer(p, TrainerConfig{Seed: 1}, zerolog.Nop())

	d, err := BuildDesign(encodedTable(12), contracts.FeatTotalSales)
	require.NoError(t, err)

	_, err = tr.Train(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 3, p.evalRows)
	assert.Equal(t, 9, p.trainRows)
}

func TestTrainer_RMSEInSalesUnits(t *testing.T) {
	// scaled predictions off by 0.1 map to 1.0 sales units off
	p := &lagPredictor{offset: 0.1}
	target := &TargetTransform{Column: contracts.FeatTotalSales, Min: 0, Max: 10}
	tr := NewTrainer(p, TrainerConfig{Seed: 3, Target: target}, zerolog.Nop())

	d, err := BuildDesign(encodedTable(8), contracts.FeatTotalSales)
	require.NoError(t, err)
	for i := range d.Y {
		d.Y[i] = 0.5
		d.X[i][4] = 0.5
	}

	res, err := tr.Train(context.Background(), d)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.RMSE, 1e-9)
}

func TestTrainer_EmptyDesign(t *testing.T) {
	tr := NewTrainer(&lagPredictor{}, TrainerConfig{}, zerolog.Nop())
	_, err := tr.Train(context.Background(), &Design{})
	assert.Error(t, err)
}

func inferenceTable(lags ...float64) *s6_timeseries.InferenceTable {
	t := &s6_timeseries.InferenceTable{
		EncodedTable: contracts.EncodedTable{
			FeatureTable: contracts.FeatureTable{Columns: []string{"total_sales_p1"}},
			LagColumns:   []string{"total_sales_p1"},
			LagDepth:     1,
		},
	}
	for i, v := range lags {
		t.Rows = append(t.Rows, contracts.FeatureRow{
			Key:    contracts.RowKey{Month: 34, Shop: 5, Item: 100 + i, Category: 3},
			Values: []float64{v},
		})
		t.IDs = append(t.IDs, 10-i)
	}
	return t
}

func TestInferencer_Predict(t *testing.T) {
	in := NewInferencer(&lagPredictor{}, zerolog.Nop())
	tbl := inferenceTable(2.5, -1, 0)

	d, err := DesignMatrix(&tbl.EncodedTable)
	require.NoError(t, err)

	preds, err := in.Predict(context.Background(), fakeModel{}, d.Features, tbl, nil)
	require.NoError(t, err)

	assert.Equal(t, []contracts.Prediction{
		{ID: 10, ShopID: 5, ItemID: 100, ItemCntMonth: 2.5},
		{ID: 9, ShopID: 5, ItemID: 101, ItemCntMonth: 0},
		{ID: 8, ShopID: 5, ItemID: 102, ItemCntMonth: 0},
	}, preds)

	assert.Equal(t, 3.0, Round(preds)[0].ItemCntMonth)
}

func TestInferencer_InverseTarget(t *testing.T) {
	in := NewInferencer(&lagPredictor{}, zerolog.Nop())
	tbl := inferenceTable(0.5)

	d, err := DesignMatrix(&tbl.EncodedTable)
	require.NoError(t, err)

	preds, err := in.Predict(context.Background(), fakeModel{}, d.Features, tbl, &TargetTransform{Min: 2, Max: 12})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, preds[0].ItemCntMonth, 1e-9)
}

func TestInferencer_FeatureMismatch(t *testing.T) {
	in := NewInferencer(&lagPredictor{}, zerolog.Nop())
	_, err := in.Predict(context.Background(), fakeModel{}, []string{"a"}, inferenceTable(1), nil)
	assert.ErrorIs(t, err, contracts.ErrIntegrity)
}

func TestArtifact_SaveLoad(t *testing.T) {
	reg := gbm.New(gbm.Config{NEstimators: 5, LearningRate: 0.3, MaxDepth: 2, Subsample: 1, ColsampleByTree: 1, Seed: 1}, zerolog.Nop())
	tr := NewTrainer(reg, TrainerConfig{Seed: 1}, zerolog.Nop())

	d, err := BuildDesign(encodedTable(16), contracts.FeatTotalSales)
	require.NoError(t, err)
	res, err := tr.Train(context.Background(), d)
	require.NoError(t, err)

	scaler := &s5_normalize.Scaler{Columns: []string{contracts.FeatAvgSalesPrice}, Min: []float64{1}, Max: []float64{9}}
	a, err := NewArtifact(reg, res, 1, s6_timeseries.DefaultLagPolicy(), scaler, nil)
	require.NoError(t, err)
	a.RunID = "run-1"

	path := filepath.Join(t.TempDir(), "out", ArtifactFile)
	require.NoError(t, SaveArtifact(path, a))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, gbm.Kind, loaded.Kind)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, d.Features, loaded.Features)
	assert.Equal(t, s6_timeseries.DefaultLagPolicy(), loaded.Policy)
	assert.Equal(t, scaler, loaded.Scaler)
	assert.Nil(t, loaded.Target)

	m, err := loaded.DecodeModel(reg)
	require.NoError(t, err)

	want, err := reg.Predict(context.Background(), res.Model, d.X)
	require.NoError(t, err)
	got, err := reg.Predict(context.Background(), m, d.X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadArtifact_Missing(t *testing.T) {
	_, err := LoadArtifact(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestTargetFromScaler(t *testing.T) {
	s := &s5_normalize.Scaler{Columns: []string{"a", contracts.FeatTotalSales}, Min: []float64{0, 1}, Max: []float64{1, 21}}

	tt := TargetFromScaler(s, contracts.FeatTotalSales)
	require.NotNil(t, tt)
	assert.Equal(t, 11.0, tt.Inverse(0.5))

	assert.Nil(t, TargetFromScaler(s, "b"))
	assert.Nil(t, TargetFromScaler(nil, "a"))

	var none *TargetTransform
	assert.Equal(t, 3.0, none.Inverse(3))
}
