package s3_heat

import (
	"fmt"

	"github.com/wonny/salescast/internal/contracts"
)

// Attach joins the three heat tables onto the categorized monthly rows and
// returns the base feature table. Every row must find a label in every table.
func Attach(
	rows []contracts.CategorizedSales,
	shopCategory, item, category *contracts.HeatTable,
) (*contracts.FeatureTable, error) {
	type lookup struct {
		name  string
		index map[uint64]contracts.HeatLabel
		keys  []contracts.Dimension
	}
	lookups := []lookup{
		{name: shopCategory.Name, index: shopCategory.Index(), keys: shopCategory.Keys},
		{name: item.Name, index: item.Index(), keys: item.Keys},
		{name: category.Name, index: category.Index(), keys: category.Keys},
	}

	out := &contracts.FeatureTable{
		Columns: contracts.BaseFeatureColumns(),
		Rows:    make([]contracts.FeatureRow, len(rows)),
	}
	for i, r := range rows {
		key := r.Key()
		values := []float64{r.AvgSalesPrice, r.TotalSales, float64(r.TotalRecordCount), 0, 0, 0}

		for j, l := range lookups {
			h, ok := l.index[key.StatKey().Project(l.keys).Pack()]
			if !ok {
				return nil, &contracts.IntegrityError{
					Stage:  contracts.StageHeat,
					Detail: fmt.Sprintf("no %s heat for %+v", l.name, key),
				}
			}
			values[3+j] = float64(h.Heat)
		}

		out.Rows[i] = contracts.FeatureRow{Key: key, Values: values}
	}

	if err := out.CheckFinite(contracts.StageHeat); err != nil {
		return nil, err
	}
	return out, nil
}
