package s6_timeseries

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
)

// history builds a base feature table where total_sales = 10*month + item
func history(months int, items ...int) *contracts.FeatureTable {
	t := &contracts.FeatureTable{Columns: contracts.BaseFeatureColumns()}
	for m := 0; m < months; m++ {
		for _, it := range items {
			sales := float64(10*m + it)
			t.Rows = append(t.Rows, contracts.FeatureRow{
				Key:    contracts.RowKey{Month: m, Shop: 0, Item: it, Category: 1},
				Values: []float64{100, sales, 1, 1, 2, 3},
			})
		}
	}
	return t
}

func value(t *testing.T, tbl *contracts.EncodedTable, row int, col string) float64 {
	t.Helper()
	idx, err := tbl.ColumnIndex(contracts.StageTimeSeries, col)
	require.NoError(t, err)
	return tbl.Rows[row].Values[idx]
}

func TestLagPolicy_SchemaFor(t *testing.T) {
	p := DefaultLagPolicy()

	assert.Equal(t, SchemaFull, p.SchemaFor(1))
	assert.Equal(t, SchemaReduced, p.SchemaFor(2))
	assert.Equal(t, SchemaFull, p.SchemaFor(12))
	assert.Equal(t, SchemaReduced, p.SchemaFor(13))
	assert.Equal(t, SchemaFull, p.SchemaFor(24))
}

func TestLagPolicy_Plan(t *testing.T) {
	plan, err := DefaultLagPolicy().plan(contracts.BaseFeatureColumns(), 3)
	require.NoError(t, err)

	// lag1: 6 full, lag2 and lag3: 1 reduced
	assert.Equal(t, 8, plan.width())
	assert.Equal(t, "avg_sales_price_p1", plan.columns[0])
	assert.Equal(t, "monthly_total_item_cat_sales_heat_p1", plan.columns[5])
	assert.Equal(t, "total_record_count_p2", plan.columns[6])
	assert.Equal(t, "total_record_count_p3", plan.columns[7])

	_, err = DefaultLagPolicy().plan(contracts.BaseFeatureColumns(), 0)
	assert.Error(t, err)

	_, err = LagPolicy{Anchors: []int{1}, Reduced: []string{"nope"}}.plan(contracts.BaseFeatureColumns(), 2)
	assert.ErrorIs(t, err, contracts.ErrMissingColumn)
}

func TestEncoder_CurrentRowsAndNoLookahead(t *testing.T) {
	e := NewEncoder(LagPolicy{Anchors: []int{1, 2, 3}}, zerolog.Nop())
	in := history(6, 0, 1)

	out, err := e.Encode(in, 3, 0)
	require.NoError(t, err)

	// months 3, 4, 5 × 2 items
	require.Equal(t, 6, out.Len())
	for _, r := range out.Rows {
		assert.GreaterOrEqual(t, r.Key.Month, 3)
	}

	for i, r := range out.Rows {
		for lag := 1; lag <= 3; lag++ {
			got := value(t, out, i, contracts.LagColumn(contracts.FeatTotalSales, lag))
			want := float64(10*(r.Key.Month-lag) + r.Key.Item)
			assert.Equal(t, want, got, "row %+v lag %d", r.Key, lag)
			// 과거 값은 항상 현재 값보다 작음 (월 증가에 따라 증가하는 데이터)
			assert.Less(t, got, value(t, out, i, contracts.FeatTotalSales))
		}
	}
	assert.Equal(t, 6+3*6, len(out.Columns))
	assert.Equal(t, contracts.BaseFeatureColumns(), out.BaseColumns)
}

func TestEncoder_BaseMonth(t *testing.T) {
	e := NewEncoder(DefaultLagPolicy(), zerolog.Nop())

	out, err := e.Encode(history(6, 0), 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, 4, out.Rows[0].Key.Month)
}

func TestEncoder_LagFillIn(t *testing.T) {
	e := NewEncoder(DefaultLagPolicy(), zerolog.Nop())
	in := history(3, 0)
	// item 9 only exists in month 2
	in.Rows = append(in.Rows, contracts.FeatureRow{
		Key:    contracts.RowKey{Month: 2, Shop: 0, Item: 9, Category: 1},
		Values: []float64{5, 5, 5, 5, 5, 5},
	})

	out, err := e.Encode(in, 2, 0)
	require.NoError(t, err)

	var found bool
	for i, r := range out.Rows {
		if r.Key.Item != 9 {
			continue
		}
		found = true
		for _, col := range out.LagColumns {
			assert.Equal(t, 0.0, value(t, out, i, col), col)
		}
	}
	assert.True(t, found)
}

func TestEncoder_NonFinite(t *testing.T) {
	e := NewEncoder(DefaultLagPolicy(), zerolog.Nop())
	in := history(2, 0)
	in.Rows[0].Values[1] = math.Inf(1)

	_, err := e.Encode(in, 1, 0)
	assert.ErrorIs(t, err, contracts.ErrIntegrity)
}

func TestEncoder_EncodeInference(t *testing.T) {
	e := NewEncoder(DefaultLagPolicy(), zerolog.Nop())
	in := history(4, 0, 1)

	reqs := []contracts.InferenceRequest{
		{ID: 7, ShopID: 0, ItemID: 1, CategoryID: 1},
		{ID: 3, ShopID: 5, ItemID: 1, CategoryID: 1},
	}

	out, err := e.EncodeInference(reqs, in, 4, 2)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []int{7, 3}, out.IDs)
	assert.Empty(t, out.BaseColumns)

	assert.Equal(t, 31.0, value(t, &out.EncodedTable, 0, "total_sales_p1"))
	assert.Equal(t, 1.0, value(t, &out.EncodedTable, 0, "total_record_count_p2"))
	for _, v := range out.Rows[1].Values {
		assert.Equal(t, 0.0, v)
	}

	_, err = e.EncodeInference(reqs, in, 1, 2)
	assert.Error(t, err)
}
