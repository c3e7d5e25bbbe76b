package s2_stats

import (
	"context"
	"fmt"

	"github.com/wonny/salescast/internal/contracts"
)

// Heat 입력 테이블 이름 (체크포인트 파일명과 동일)
const (
	ShopCategoryTableName = "category_heat_value"
	ItemTableName         = "monthly_item_heat_value"
	CategoryTableName     = "monthly_item_cat_heat_value"
)

var totalSalesOnly = []contracts.Column{contracts.ColTotalSales}

// ShopCategoryMonthTotals total sales per (month, shop, category)
func (e *Extractor) ShopCategoryMonthTotals(ctx context.Context, rows []contracts.CategorizedSales) (*contracts.StatTable, error) {
	return e.named(ctx, ShopCategoryTableName, rows,
		[]contracts.Dimension{contracts.DimMonth, contracts.DimShop, contracts.DimCategory})
}

// ItemMonthTotals total sales per (month, item)
func (e *Extractor) ItemMonthTotals(ctx context.Context, rows []contracts.CategorizedSales) (*contracts.StatTable, error) {
	return e.named(ctx, ItemTableName, rows,
		[]contracts.Dimension{contracts.DimMonth, contracts.DimItem})
}

// CategoryMonthTotals total sales per (month, category)
func (e *Extractor) CategoryMonthTotals(ctx context.Context, rows []contracts.CategorizedSales) (*contracts.StatTable, error) {
	return e.named(ctx, CategoryTableName, rows,
		[]contracts.Dimension{contracts.DimMonth, contracts.DimCategory})
}

func (e *Extractor) named(ctx context.Context, name string, rows []contracts.CategorizedSales, keys []contracts.Dimension) (*contracts.StatTable, error) {
	t, err := e.Extract(ctx, rows, keys, totalSalesOnly)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	t.Name = name
	return t, nil
}

// ReportGroupings key combinations of the descriptive statistics report
func ReportGroupings() [][]contracts.Dimension {
	return [][]contracts.Dimension{
		{contracts.DimMonth, contracts.DimItem},
		{contracts.DimMonth, contracts.DimCategory},
		{contracts.DimShop, contracts.DimItem},
		{contracts.DimShop, contracts.DimCategory},
	}
}

// Report extracts every report grouping over all value columns
func (e *Extractor) Report(ctx context.Context, rows []contracts.CategorizedSales) ([]*contracts.StatTable, error) {
	cols := []contracts.Column{contracts.ColTotalSales, contracts.ColAvgSalesPrice, contracts.ColRecordCount}

	var out []*contracts.StatTable
	for _, keys := range ReportGroupings() {
		t, err := e.Extract(ctx, rows, keys, cols)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", contracts.DimensionNames(keys), err)
		}
		out = append(out, t)
	}
	return out, nil
}
