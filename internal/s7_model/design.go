package s7_model

import (
	"fmt"

	"github.com/wonny/salescast/internal/contracts"
)

// Key feature names of the design matrix
const (
	FeatMonthOfYear = "month_of_year"
	FeatShopID      = "shop_id"
	FeatItemID      = "item_id"
	FeatCategoryID  = "item_category_id"
)

// Design 모델 입력 행렬 + 타깃
type Design struct {
	Features []string
	X        [][]float64
	Y        []float64 // nil for inference
}

// KeyFeatures leading columns of every design matrix
func KeyFeatures() []string {
	return []string{FeatMonthOfYear, FeatShopID, FeatItemID, FeatCategoryID}
}

// BuildDesign builds X from the row keys and every lag column, and y from the
// current-month target column. Current-month feature columns never enter X.
func BuildDesign(encoded *contracts.EncodedTable, target string) (*Design, error) {
	d, err := DesignMatrix(encoded)
	if err != nil {
		return nil, err
	}

	y, err := encoded.Column(contracts.StageModel, target)
	if err != nil {
		return nil, err
	}
	d.Y = y
	return d, nil
}

// DesignMatrix builds X only (inference)
func DesignMatrix(encoded *contracts.EncodedTable) (*Design, error) {
	lagIdx := make([]int, len(encoded.LagColumns))
	for i, c := range encoded.LagColumns {
		j, err := encoded.ColumnIndex(contracts.StageModel, c)
		if err != nil {
			return nil, err
		}
		lagIdx[i] = j
	}

	d := &Design{
		Features: append(KeyFeatures(), encoded.LagColumns...),
		X:        make([][]float64, len(encoded.Rows)),
	}
	for i, r := range encoded.Rows {
		x := make([]float64, 0, len(d.Features))
		x = append(x,
			float64(r.Key.Month%12),
			float64(r.Key.Shop),
			float64(r.Key.Item),
			float64(r.Key.Category),
		)
		for _, j := range lagIdx {
			x = append(x, r.Values[j])
		}
		d.X[i] = x
	}
	return d, nil
}

// CheckFeatures verifies that a design matches the feature list a model was trained on
func CheckFeatures(d *Design, want []string) error {
	if len(d.Features) != len(want) {
		return &contracts.IntegrityError{
			Stage:  contracts.StageModel,
			Detail: fmt.Sprintf("design has %d features, model expects %d", len(d.Features), len(want)),
		}
	}
	for i := range want {
		if d.Features[i] != want[i] {
			return &contracts.IntegrityError{
				Stage:  contracts.StageModel,
				Detail: fmt.Sprintf("feature %d is %s, model expects %s", i, d.Features[i], want[i]),
			}
		}
	}
	return nil
}
