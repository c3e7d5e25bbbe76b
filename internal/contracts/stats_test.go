package contracts

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatKey_PackRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  StatKey
	}{
		{"all unset", NewStatKey()},
		{"month only", NewStatKey().With(DimMonth, 33)},
		{"shop category", StatKey{Month: 5, Shop: 59, Item: Unset, Category: 83}},
		{"full", StatKey{Month: 33, Shop: 59, Item: 22169, Category: 83}},
		{"limits", StatKey{Month: MaxMonthID, Shop: MaxShopID, Item: MaxItemID, Category: MaxCategoryID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, UnpackStatKey(tt.key.Pack()))
		})
	}
}

func TestStatKey_PackOrdering(t *testing.T) {
	keys := []StatKey{
		{Month: 1, Shop: 0, Item: 5, Category: Unset},
		{Month: 0, Shop: 2, Item: 1, Category: Unset},
		{Month: 0, Shop: 2, Item: 0, Category: Unset},
		{Month: 1, Shop: Unset, Item: 3, Category: Unset},
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Pack() < keys[j].Pack() })

	assert.Equal(t, StatKey{Month: 0, Shop: 2, Item: 0, Category: Unset}, keys[0])
	assert.Equal(t, StatKey{Month: 0, Shop: 2, Item: 1, Category: Unset}, keys[1])
	// Unset sorts before any concrete value
	assert.Equal(t, StatKey{Month: 1, Shop: Unset, Item: 3, Category: Unset}, keys[2])
	assert.Equal(t, StatKey{Month: 1, Shop: 0, Item: 5, Category: Unset}, keys[3])
}

func TestStatKey_Project(t *testing.T) {
	k := StatKey{Month: 3, Shop: 4, Item: 5, Category: 6}

	p := k.Project([]Dimension{DimMonth, DimCategory})

	assert.Equal(t, StatKey{Month: 3, Shop: Unset, Item: Unset, Category: 6}, p)
}

func TestDomain_Size(t *testing.T) {
	d := &Domain{
		Months:     []int{0, 1},
		Shops:      []int{0, 1, 2},
		Items:      []int{10, 11, 12, 13},
		Categories: []int{7},
	}

	assert.Equal(t, 2, d.Size(DimMonth))
	assert.Equal(t, 6, d.Size(DimMonth, DimShop))
	assert.Equal(t, 24, d.Size(DimMonth, DimShop, DimItem, DimCategory))
	assert.Equal(t, 1, d.Size())
}

func TestDomain_Validate(t *testing.T) {
	ok := &Domain{Months: []int{0}, Shops: []int{0}, Items: []int{MaxItemID}, Categories: []int{0}}
	require.NoError(t, ok.Validate())

	bad := &Domain{Months: []int{0}, Shops: []int{-1}, Items: []int{0}, Categories: []int{0}}
	assert.Error(t, bad.Validate())
}

func TestErrors_Unwrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"integrity", &IntegrityError{Stage: StageHeat, Detail: "unlabeled row"}, ErrIntegrity},
		{"cardinality", &CardinalityError{Stage: StageStatistics, Table: "t", Expected: 4, Actual: 3}, ErrCardinality},
		{"unmatched", &UnmatchedKeyError{Stage: StageCatalog, ItemID: 9}, ErrUnmatchedKey},
		{"missing column", &MissingColumnError{Stage: StageTimeSeries, Column: "total_sales"}, ErrMissingColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.err, tt.sentinel))
			assert.Contains(t, tt.err.Error(), tt.sentinel.Error())
		})
	}
}

func TestFeatureTable_CheckFinite(t *testing.T) {
	tbl := &FeatureTable{
		Columns: []string{FeatTotalSales},
		Rows: []FeatureRow{
			{Key: RowKey{Month: 0}, Values: []float64{1}},
		},
	}
	require.NoError(t, tbl.CheckFinite(StageClean))

	tbl.Rows[0].Values[0] = nan()
	err := tbl.CheckFinite(StageClean)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestFeatureTable_ColumnIndex(t *testing.T) {
	tbl := &FeatureTable{Columns: BaseFeatureColumns()}

	idx, err := tbl.ColumnIndex(StageTimeSeries, FeatItemHeat)
	require.NoError(t, err)
	assert.Equal(t, 4, idx)

	_, err = tbl.ColumnIndex(StageTimeSeries, "nope")
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLagColumn(t *testing.T) {
	assert.Equal(t, "total_sales_p1", LagColumn(FeatTotalSales, 1))
	assert.Equal(t, "cat_shop_sales_heat_p12", LagColumn(FeatShopCategoryHeat, 12))
}

func TestCatalog(t *testing.T) {
	c := NewCatalog([]Item{{ItemID: 2, CategoryID: 1}, {ItemID: 1, CategoryID: 3}, {ItemID: 2, CategoryID: 4}})

	assert.Equal(t, 2, c.Len())
	cat, ok := c.Category(2)
	assert.True(t, ok)
	assert.Equal(t, 4, cat)
	_, ok = c.Category(99)
	assert.False(t, ok)
	assert.Equal(t, []Item{{ItemID: 2, CategoryID: 4}, {ItemID: 1, CategoryID: 3}}, c.Items())
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestParseDimension(t *testing.T) {
	for _, d := range []Dimension{DimMonth, DimShop, DimItem, DimCategory} {
		got, err := ParseDimension(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}

	_, err := ParseDimension("date")
	assert.Error(t, err)
}
