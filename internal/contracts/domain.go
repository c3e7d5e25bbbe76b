package contracts

import "fmt"

// Domain 키 차원별 값 집합
// ⭐ SSOT: 한 번 계산되어 모든 stage에 명시적으로 전달됨 (전역 상수 없음)
type Domain struct {
	Months     []int `json:"months"`
	Shops      []int `json:"shops"`
	Items      []int `json:"items"`
	Categories []int `json:"categories"`
}

// Values returns the value set of a dimension
func (d *Domain) Values(dim Dimension) []int {
	switch dim {
	case DimMonth:
		return d.Months
	case DimShop:
		return d.Shops
	case DimItem:
		return d.Items
	case DimCategory:
		return d.Categories
	default:
		return nil
	}
}

// Size returns the cross-product cardinality of the given dimensions
func (d *Domain) Size(dims ...Dimension) int {
	n := 1
	for _, dim := range dims {
		n *= len(d.Values(dim))
	}
	return n
}

// Validate checks that every value is non-negative and fits a packed StatKey
func (d *Domain) Validate() error {
	limits := []struct {
		dim Dimension
		max int
	}{
		{DimMonth, MaxMonthID},
		{DimShop, MaxShopID},
		{DimItem, MaxItemID},
		{DimCategory, MaxCategoryID},
	}
	for _, l := range limits {
		for _, v := range d.Values(l.dim) {
			if v < 0 || v > l.max {
				return fmt.Errorf("domain %s value %d out of range [0, %d]", l.dim, v, l.max)
			}
		}
	}
	return nil
}
