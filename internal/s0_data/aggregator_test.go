package s0_data

import (
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/contracts"
)

func sale(month, shop, item int, price, qty float64) contracts.RawSale {
	return contracts.RawSale{MonthIndex: month, ShopID: shop, ItemID: item, UnitPrice: price, Quantity: qty}
}

func TestAggregator_Aggregate(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	tests := []struct {
		name  string
		sales []contracts.RawSale
		want  []contracts.MonthlyAggregate
	}{
		{
			name: "sales net of refunds",
			sales: []contracts.RawSale{
				sale(0, 1, 10, 100, 3),
				sale(0, 1, 10, 200, 2),
				sale(0, 1, 10, 999, -1),
			},
			want: []contracts.MonthlyAggregate{
				{MonthIndex: 0, ShopID: 1, ItemID: 10, AvgSalesPrice: 150, TotalSales: 4, TotalRecordCount: 3},
			},
		},
		{
			name: "refund only group is dropped",
			sales: []contracts.RawSale{
				sale(0, 1, 10, 100, -2),
				sale(0, 2, 11, 50, 1),
			},
			want: []contracts.MonthlyAggregate{
				{MonthIndex: 0, ShopID: 2, ItemID: 11, AvgSalesPrice: 50, TotalSales: 1, TotalRecordCount: 1},
			},
		},
		{
			name: "net zero is dropped",
			sales: []contracts.RawSale{
				sale(1, 1, 10, 100, 2),
				sale(1, 1, 10, 100, -2),
			},
			want: []contracts.MonthlyAggregate{},
		},
		{
			name: "zero quantity counts nowhere",
			sales: []contracts.RawSale{
				sale(0, 1, 10, 100, 1),
				sale(0, 1, 10, 500, 0),
			},
			want: []contracts.MonthlyAggregate{
				{MonthIndex: 0, ShopID: 1, ItemID: 10, AvgSalesPrice: 100, TotalSales: 1, TotalRecordCount: 1},
			},
		},
		{
			name: "output sorted by month shop item",
			sales: []contracts.RawSale{
				sale(1, 0, 5, 10, 1),
				sale(0, 2, 1, 10, 1),
				sale(0, 1, 9, 10, 1),
				sale(0, 1, 3, 10, 1),
			},
			want: []contracts.MonthlyAggregate{
				{MonthIndex: 0, ShopID: 1, ItemID: 3, AvgSalesPrice: 10, TotalSales: 1, TotalRecordCount: 1},
				{MonthIndex: 0, ShopID: 1, ItemID: 9, AvgSalesPrice: 10, TotalSales: 1, TotalRecordCount: 1},
				{MonthIndex: 0, ShopID: 2, ItemID: 1, AvgSalesPrice: 10, TotalSales: 1, TotalRecordCount: 1},
				{MonthIndex: 1, ShopID: 0, ItemID: 5, AvgSalesPrice: 10, TotalSales: 1, TotalRecordCount: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := agg.Aggregate(tt.sales)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregator_TotalEqualsGeneralPlusRefund(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	sales := []contracts.RawSale{
		sale(3, 7, 42, 10, 5),
		sale(3, 7, 42, 12, 4),
		sale(3, 7, 42, 11, -3),
		sale(3, 7, 42, 11, -1),
	}

	got, err := agg.Aggregate(sales)
	require.NoError(t, err)
	require.Len(t, got, 1)

	generalSum, refundSum := 9.0, -4.0
	assert.Equal(t, generalSum+refundSum, got[0].TotalSales)
	assert.Equal(t, 4, got[0].TotalRecordCount)
	assert.InDelta(t, 11.0, got[0].AvgSalesPrice, 1e-9)
	assert.Greater(t, got[0].TotalSales, 0.0)
}

func TestAggregator_NonFinite(t *testing.T) {
	agg := NewAggregator(zerolog.Nop())

	_, err := agg.Aggregate([]contracts.RawSale{sale(0, 0, 0, math.Inf(1), 1)})
	assert.ErrorIs(t, err, contracts.ErrIntegrity)

	_, err = agg.Aggregate([]contracts.RawSale{sale(0, 0, 0, 1, math.NaN())})
	assert.ErrorIs(t, err, contracts.ErrIntegrity)
}

func TestReadSales(t *testing.T) {
	in := "date,date_block_num,shop_id,item_id,item_price,item_cnt_day\n" +
		"02.01.2013,0,59,22154,999.00,1.0\n" +
		"03.01.2013,0,25,2552,899.00,-1.0\n"

	got, err := ReadSales(strings.NewReader(in), "sales_train.csv")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 59, got[0].ShopID)
	assert.Equal(t, 22154, got[0].ItemID)
	assert.Equal(t, 999.0, got[0].UnitPrice)
	assert.Equal(t, 2013, got[0].Date.Year())
	assert.Equal(t, 2, got[0].Date.Day())
	assert.Equal(t, -1.0, got[1].Quantity)
}

func TestReadSales_MissingColumn(t *testing.T) {
	in := "date,date_block_num,shop_id,item_id,item_price\n02.01.2013,0,59,22154,999.00\n"

	_, err := ReadSales(strings.NewReader(in), "sales_train.csv")
	assert.ErrorIs(t, err, contracts.ErrMissingColumn)
}

func TestReadItemsAndRequests(t *testing.T) {
	items, err := ReadItems(strings.NewReader("item_name,item_id,item_category_id\n\"A, B\",0,40\nC,1,76\n"), "items.csv")
	require.NoError(t, err)
	assert.Equal(t, []contracts.Item{{ItemID: 0, CategoryID: 40}, {ItemID: 1, CategoryID: 76}}, items)

	reqs, err := ReadRequests(strings.NewReader("ID,shop_id,item_id\n0,5,5037\n"), "test.csv")
	require.NoError(t, err)
	assert.Equal(t, []contracts.InferenceRequest{{ID: 0, ShopID: 5, ItemID: 5037}}, reqs)

	_, err = ReadRequests(strings.NewReader("ID,shop_id,item_id\nx,5,5037\n"), "test.csv")
	assert.Error(t, err)
}

func TestAggregates_WriteRead(t *testing.T) {
	rows := []contracts.MonthlyAggregate{
		{MonthIndex: 0, ShopID: 1, ItemID: 10, AvgSalesPrice: 149.5, TotalSales: 4, TotalRecordCount: 3},
		{MonthIndex: 33, ShopID: 59, ItemID: 22167, AvgSalesPrice: 0.1, TotalSales: 1, TotalRecordCount: 1},
	}

	var buf strings.Builder
	require.NoError(t, WriteAggregates(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), "date_block_num,shop_id,item_id,"))

	got, err := ReadAggregates(strings.NewReader(buf.String()), AggregatesFile)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}
