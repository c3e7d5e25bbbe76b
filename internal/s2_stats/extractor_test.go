package s2_stats

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
)

func testDomain() *contracts.Domain {
	return &contracts.Domain{
		Months:     []int{0, 1},
		Shops:      []int{0, 1, 2},
		Items:      []int{0, 1, 2, 3},
		Categories: []int{0, 1},
	}
}

func row(month, shop, item, cat int, price, total float64, count int) contracts.CategorizedSales {
	return contracts.CategorizedSales{
		MonthlyAggregate: contracts.MonthlyAggregate{
			MonthIndex: month, ShopID: shop, ItemID: item,
			AvgSalesPrice: price, TotalSales: total, TotalRecordCount: count,
		},
		CategoryID: cat,
	}
}

func testRows() []contracts.CategorizedSales {
	return []contracts.CategorizedSales{
		row(0, 0, 0, 0, 100, 2, 2),
		row(0, 1, 0, 0, 300, 4, 1),
		row(0, 1, 2, 1, 50, 1, 1),
		row(1, 2, 3, 1, 10, 7, 3),
	}
}

func TestExtractor_Coverage(t *testing.T) {
	d := testDomain()
	e := NewExtractor(d, zerolog.Nop())
	cols := []contracts.Column{contracts.ColTotalSales, contracts.ColAvgSalesPrice}

	tests := []struct {
		name string
		keys []contracts.Dimension
	}{
		{"month x item", []contracts.Dimension{contracts.DimMonth, contracts.DimItem}},
		{"month x category", []contracts.Dimension{contracts.DimMonth, contracts.DimCategory}},
		{"shop x item", []contracts.Dimension{contracts.DimShop, contracts.DimItem}},
		{"shop x category", []contracts.Dimension{contracts.DimShop, contracts.DimCategory}},
		{"month x shop x category", []contracts.Dimension{contracts.DimMonth, contracts.DimShop, contracts.DimCategory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := e.Extract(context.Background(), testRows(), tt.keys, cols)
			require.NoError(t, err)
			assert.Equal(t, d.Size(tt.keys...), tbl.Len())

			// 키 정렬 + 유일성
			for i := 1; i < tbl.Len(); i++ {
				assert.Less(t, tbl.Rows[i-1].Key.Pack(), tbl.Rows[i].Key.Pack())
			}
		})
	}
}

func TestExtractor_SumMeanAndZeroFill(t *testing.T) {
	e := NewExtractor(testDomain(), zerolog.Nop())
	cols := []contracts.Column{contracts.ColTotalSales, contracts.ColAvgSalesPrice}

	tbl, err := e.Extract(context.Background(), testRows(),
		[]contracts.Dimension{contracts.DimMonth, contracts.DimItem}, cols)
	require.NoError(t, err)

	// month 0 item 0: two rows (2 + 4), mean price (100 + 300) / 2
	first := tbl.Rows[0]
	assert.Equal(t, contracts.StatKey{Month: 0, Shop: contracts.Unset, Item: 0, Category: contracts.Unset}, first.Key)
	assert.Equal(t, []float64{6, 400}, first.Sums)
	assert.Equal(t, []float64{3, 200}, first.Means)
	assert.Equal(t, 2, first.Count)

	// month 0 item 1: no source rows
	zero := tbl.Rows[1]
	assert.Equal(t, 1, zero.Key.Item)
	assert.Equal(t, []float64{0, 0}, zero.Sums)
	assert.Equal(t, []float64{0, 0}, zero.Means)
	assert.Equal(t, 0, zero.Count)
}

func TestExtractor_OutOfDomainRow(t *testing.T) {
	e := NewExtractor(testDomain(), zerolog.Nop())
	rows := append(testRows(), row(5, 0, 0, 0, 1, 1, 1))

	_, err := e.Extract(context.Background(), rows,
		[]contracts.Dimension{contracts.DimMonth, contracts.DimItem},
		[]contracts.Column{contracts.ColTotalSales})
	assert.ErrorIs(t, err, contracts.ErrCardinality)
}

func TestExtractor_InvalidKeys(t *testing.T) {
	e := NewExtractor(testDomain(), zerolog.Nop())
	cols := []contracts.Column{contracts.ColTotalSales}

	_, err := e.Extract(context.Background(), testRows(), nil, cols)
	assert.Error(t, err)

	_, err = e.Extract(context.Background(), testRows(),
		[]contracts.Dimension{contracts.DimMonth, contracts.DimMonth}, cols)
	assert.Error(t, err)

	_, err = e.Extract(context.Background(), testRows(),
		[]contracts.Dimension{contracts.DimMonth}, []contracts.Column{"unknown"})
	assert.ErrorIs(t, err, contracts.ErrMissingColumn)
}

func TestExtractor_Totals(t *testing.T) {
	d := testDomain()
	e := NewExtractor(d, zerolog.Nop())
	ctx := context.Background()

	shopCat, err := e.ShopCategoryMonthTotals(ctx, testRows())
	require.NoError(t, err)
	assert.Equal(t, ShopCategoryTableName, shopCat.Name)
	assert.Equal(t, 2*3*2, shopCat.Len())

	item, err := e.ItemMonthTotals(ctx, testRows())
	require.NoError(t, err)
	assert.Equal(t, 2*4, item.Len())

	cat, err := e.CategoryMonthTotals(ctx, testRows())
	require.NoError(t, err)
	assert.Equal(t, 2*2, cat.Len())

	// month 1 category 1 = 7
	var found bool
	for _, r := range cat.Rows {
		if r.Key.Month == 1 && r.Key.Category == 1 {
			assert.Equal(t, 7.0, r.Sums[0])
			found = true
		}
	}
	assert.True(t, found)
}

func TestExtractor_Report(t *testing.T) {
	e := NewExtractor(testDomain(), zerolog.Nop())

	tables, err := e.Report(context.Background(), testRows())
	require.NoError(t, err)
	require.Len(t, tables, 4)
	for _, tbl := range tables {
		assert.Len(t, tbl.Columns, 3)
	}
}

func TestExtractor_Cancelled(t *testing.T) {
	e := NewExtractor(testDomain(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, testRows(), []contracts.Dimension{contracts.DimMonth}, totalSalesOnly)
	assert.ErrorIs(t, err, context.Canceled)
}
