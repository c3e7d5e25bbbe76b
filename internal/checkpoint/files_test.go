package checkpoint

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/pipelineconfig"
)

func heatTable() *contracts.HeatTable {
	key := func(month, item int) contracts.StatKey {
		return contracts.NewStatKey().With(contracts.DimMonth, month).With(contracts.DimItem, item)
	}
	return &contracts.HeatTable{
		Name:     "monthly_item_heat_value",
		Keys:     []contracts.Dimension{contracts.DimMonth, contracts.DimItem},
		Slice:    []contracts.Dimension{contracts.DimMonth},
		Clusters: 5,
		Rows: []contracts.HeatLabel{
			{Key: key(0, 1), Sum: 0, Mean: 0, Heat: 0},
			{Key: key(0, 2), Sum: 12.5, Mean: 6.25, Heat: 2},
		},
	}
}

func TestFileStore_Aggregates(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LoadAggregates(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	rows := []contracts.MonthlyAggregate{{MonthIndex: 1, ShopID: 2, ItemID: 3, AvgSalesPrice: 4.5, TotalSales: 6, TotalRecordCount: 7}}
	require.NoError(t, s.SaveAggregates(ctx, "r1", rows))

	got, err := s.LoadAggregates(ctx)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestFileStore_Heat(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	want := heatTable()
	require.NoError(t, s.SaveHeat(ctx, "r1", want))

	data, err := os.ReadFile(filepath.Join(s.Dir(), "monthly_item_heat_value.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "date_block_num,item_id,total_sales_sum,total_sales_mean,heat\n"))

	got, err := s.LoadHeat(ctx, want.Name)
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Keys, got.Keys)
	assert.Equal(t, want.Rows, got.Rows)

	_, err = s.LoadHeat(ctx, "category_heat_value")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadHeat_BadHeader(t *testing.T) {
	_, err := ReadHeat(strings.NewReader("date_block_num,item_id,sum,mean\n"))
	assert.ErrorIs(t, err, contracts.ErrMissingColumn)

	_, err = ReadHeat(strings.NewReader("date,total_sales_sum,total_sales_mean,heat\n"))
	assert.Error(t, err)
}

func TestFileStore_Predictions(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	preds := []contracts.Prediction{
		{ID: 2, ShopID: 5, ItemID: 30, ItemCntMonth: 1},
		{ID: 0, ShopID: 5, ItemID: 10, ItemCntMonth: 0.5},
		{ID: 1, ShopID: 4, ItemID: 10, ItemCntMonth: 3},
	}
	require.NoError(t, s.SavePredictions(ctx, "r1", preds))

	sub, err := os.ReadFile(filepath.Join(dir, SubmissionFile))
	require.NoError(t, err)
	assert.Equal(t, "ID,item_cnt_month\n2,1\n0,0.5\n1,3\n", string(sub))

	// fresh store reads from disk
	s2, err := NewFileStore(dir)
	require.NoError(t, err)

	p, err := s2.Prediction(ctx, "r1", 1)
	require.NoError(t, err)
	assert.Equal(t, contracts.Prediction{ID: 1, ShopID: 4, ItemID: 10, ItemCntMonth: 3}, *p)

	_, err = s2.Prediction(ctx, "r1", 9)
	assert.ErrorIs(t, err, ErrNotFound)

	byItem, err := s2.FindPredictions(ctx, "r1", PredictionFilter{ShopID: -1, ItemID: 10})
	require.NoError(t, err)
	assert.Len(t, byItem, 2)
	assert.Equal(t, 0, byItem[0].ID)

	byShop, err := s.FindPredictions(ctx, "r1", PredictionFilter{ShopID: 5, ItemID: -1})
	require.NoError(t, err)
	assert.Len(t, byShop, 2)

	_, err = s2.FindPredictions(ctx, "r2", PredictionFilter{ShopID: -1, ItemID: -1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStore_Runs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.LatestRun(ctx, false)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	infer := NewRun(&pipelineconfig.RunSnapshot{RunID: "a", Mode: "infer", CreatedAt: base})
	infer.Predictions = 3
	infer.Finish(nil)
	require.NoError(t, s.SaveRun(ctx, infer))

	failed := NewRun(&pipelineconfig.RunSnapshot{RunID: "b", Mode: "train", CreatedAt: base.Add(time.Hour)})
	failed.Finish(errors.New("boom"))
	require.NoError(t, s.SaveRun(ctx, failed))

	latest, err := s.LatestRun(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "b", latest.ID)
	assert.Equal(t, RunFailed, latest.Status)
	assert.Equal(t, "boom", latest.Error)

	latest, err = s.LatestRun(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "a", latest.ID)
	assert.Equal(t, RunSucceeded, latest.Status)
	assert.NotNil(t, latest.FinishedAt)
}

func TestFileStore_PruneRuns(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		r := NewRun(&pipelineconfig.RunSnapshot{RunID: id, Mode: "run", CreatedAt: base.Add(time.Duration(i) * time.Hour)})
		r.Predictions = 1
		r.Finish(nil)
		require.NoError(t, s.SaveRun(ctx, r))
		require.NoError(t, s.SavePredictions(ctx, id, []contracts.Prediction{{ID: 0, ItemCntMonth: float64(i)}}))
	}

	_, err = s.PruneRuns(ctx, 0)
	assert.Error(t, err)

	n, err := s.PruneRuns(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.Prediction(ctx, "old", 0)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoFileExists(t, filepath.Join(s.Dir(), "runs", "old.json"))

	p, err := s.Prediction(ctx, "new", 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.ItemCntMonth)

	n, err = s.PruneRuns(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMulti(t *testing.T) {
	a, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	b, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	m := Multi{a, b}
	require.NoError(t, m.SaveHeat(ctx, "r1", heatTable()))
	require.NoError(t, m.SavePredictions(ctx, "r1", []contracts.Prediction{{ID: 0, ItemCntMonth: 1}}))

	for _, s := range []*FileStore{a, b} {
		_, err := s.LoadHeat(ctx, "monthly_item_heat_value")
		assert.NoError(t, err)
	}

	p, err := m.Prediction(ctx, "r1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.ItemCntMonth)

	_, err = Multi{}.LatestRun(ctx, false)
	assert.ErrorIs(t, err, ErrNotFound)
}
