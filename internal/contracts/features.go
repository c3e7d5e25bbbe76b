package contracts

import (
	"fmt"
	"math"
)

// Feature column names
const (
	FeatAvgSalesPrice    = "avg_sales_price"
	FeatTotalSales       = "total_sales"
	FeatRecordCount      = "total_record_count"
	FeatShopCategoryHeat = "cat_shop_sales_heat"
	FeatItemHeat         = "monthly_total_item_sales_heat"
	FeatCategoryHeat     = "monthly_total_item_cat_sales_heat"
)

// BaseFeatureColumns is the column order of the feature table produced by the heat join
func BaseFeatureColumns() []string {
	return []string{
		FeatAvgSalesPrice,
		FeatTotalSales,
		FeatRecordCount,
		FeatShopCategoryHeat,
		FeatItemHeat,
		FeatCategoryHeat,
	}
}

// LagColumn returns the name of a column copied from i months ago
func LagColumn(name string, lag int) string {
	return fmt.Sprintf("%s_p%d", name, lag)
}

// RowKey 피처 테이블 식별 키
type RowKey struct {
	Month    int `json:"date_block_num"`
	Shop     int `json:"shop_id"`
	Item     int `json:"item_id"`
	Category int `json:"item_category_id"`
}

// Shift returns the key of the same (shop, item, category) n months earlier
func (k RowKey) Shift(n int) RowKey {
	k.Month -= n
	return k
}

// StatKey converts the row key to a statistic key
func (k RowKey) StatKey() StatKey {
	return StatKey{Month: k.Month, Shop: k.Shop, Item: k.Item, Category: k.Category}
}

// FeatureRow 피처 테이블 row
type FeatureRow struct {
	Key    RowKey    `json:"key"`
	Values []float64 `json:"values"`
}

// FeatureTable 스키마 고정 피처 테이블
type FeatureTable struct {
	Columns []string     `json:"columns"`
	Rows    []FeatureRow `json:"rows"`
}

// Len returns the number of rows
func (t *FeatureTable) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a column or a MissingColumnError
func (t *FeatureTable) ColumnIndex(stage Stage, name string) (int, error) {
	for i, c := range t.Columns {
		if c == name {
			return i, nil
		}
	}
	return 0, &MissingColumnError{Stage: stage, Column: name}
}

// Column returns a copy of one column
func (t *FeatureTable) Column(stage Stage, name string) ([]float64, error) {
	idx, err := t.ColumnIndex(stage, name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out, nil
}

// Copy returns a deep copy of the table
func (t *FeatureTable) Copy() *FeatureTable {
	out := &FeatureTable{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]FeatureRow, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = FeatureRow{Key: r.Key, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// CheckFinite returns an IntegrityError for the first NaN/±Inf cell
func (t *FeatureTable) CheckFinite(stage Stage) error {
	for _, r := range t.Rows {
		for j, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &IntegrityError{
					Stage:  stage,
					Detail: fmt.Sprintf("column %s has non-finite value %v at %+v", t.Columns[j], v, r.Key),
				}
			}
		}
	}
	return nil
}

// EncodedTable S6 출력: 현재 월 피처 + lag 피처
// Columns = BaseColumns + LagColumns
type EncodedTable struct {
	FeatureTable
	BaseColumns []string `json:"base_columns"`
	LagColumns  []string `json:"lag_columns"`
	LagDepth    int      `json:"lag_depth"`
}
