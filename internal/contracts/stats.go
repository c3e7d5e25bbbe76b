package contracts

import (
	"fmt"
	"strings"
)

// Dimension 통계 키 차원
type Dimension int

const (
	DimMonth Dimension = iota
	DimShop
	DimItem
	DimCategory
)

// String returns the source column name of the dimension
func (d Dimension) String() string {
	switch d {
	case DimMonth:
		return "date_block_num"
	case DimShop:
		return "shop_id"
	case DimItem:
		return "item_id"
	case DimCategory:
		return "item_category_id"
	default:
		return fmt.Sprintf("dimension(%d)", int(d))
	}
}

// ParseDimension maps a source column name back to its dimension
func ParseDimension(name string) (Dimension, error) {
	for _, d := range []Dimension{DimMonth, DimShop, DimItem, DimCategory} {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown dimension %q", name)
}

// DimensionNames joins dimension names with "x" (e.g. "date_block_num x shop_id")
func DimensionNames(dims []Dimension) string {
	names := make([]string, len(dims))
	for i, d := range dims {
		names[i] = d.String()
	}
	return strings.Join(names, " x ")
}

// Unset marks a key component that is not part of a grouping
const Unset = -1

// 키 패킹 비트 폭 (month 12, shop 14, item 24, category 14 = 64)
const (
	monthBits    = 12
	shopBits     = 14
	itemBits     = 24
	categoryBits = 14

	categoryShift = 0
	itemShift     = categoryShift + categoryBits
	shopShift     = itemShift + itemBits
	monthShift    = shopShift + shopBits
)

// Maximum identifier values that fit a packed key
const (
	MaxMonthID    = 1<<monthBits - 2
	MaxShopID     = 1<<shopBits - 2
	MaxItemID     = 1<<itemBits - 2
	MaxCategoryID = 1<<categoryBits - 2
)

// StatKey is a (month, shop, item, category) tuple where unused components are Unset.
type StatKey struct {
	Month    int `json:"date_block_num"`
	Shop     int `json:"shop_id"`
	Item     int `json:"item_id"`
	Category int `json:"item_category_id"`
}

// NewStatKey returns a key with every component unset
func NewStatKey() StatKey {
	return StatKey{Month: Unset, Shop: Unset, Item: Unset, Category: Unset}
}

// Get returns the component for a dimension
func (k StatKey) Get(d Dimension) int {
	switch d {
	case DimMonth:
		return k.Month
	case DimShop:
		return k.Shop
	case DimItem:
		return k.Item
	case DimCategory:
		return k.Category
	default:
		return Unset
	}
}

// With returns a copy of the key with one component replaced
func (k StatKey) With(d Dimension, v int) StatKey {
	switch d {
	case DimMonth:
		k.Month = v
	case DimShop:
		k.Shop = v
	case DimItem:
		k.Item = v
	case DimCategory:
		k.Category = v
	}
	return k
}

// Project keeps only the given dimensions
func (k StatKey) Project(dims []Dimension) StatKey {
	out := NewStatKey()
	for _, d := range dims {
		out = out.With(d, k.Get(d))
	}
	return out
}

// Pack encodes the key into a single ordered integer.
// Ordering of packed keys equals lexicographic (month, shop, item, category) ordering.
func (k StatKey) Pack() uint64 {
	return uint64(k.Month+1)<<monthShift |
		uint64(k.Shop+1)<<shopShift |
		uint64(k.Item+1)<<itemShift |
		uint64(k.Category+1)<<categoryShift
}

// UnpackStatKey reverses Pack
func UnpackStatKey(p uint64) StatKey {
	return StatKey{
		Month:    int(p>>monthShift&(1<<monthBits-1)) - 1,
		Shop:     int(p>>shopShift&(1<<shopBits-1)) - 1,
		Item:     int(p>>itemShift&(1<<itemBits-1)) - 1,
		Category: int(p>>categoryShift&(1<<categoryBits-1)) - 1,
	}
}

// Column 통계 대상 값 컬럼
type Column string

const (
	ColTotalSales    Column = "total_sales"
	ColAvgSalesPrice Column = "avg_sales_price"
	ColRecordCount   Column = "total_record_count"
)

// Value reads the column from a categorized row
func (c Column) Value(r CategorizedSales) (float64, error) {
	switch c {
	case ColTotalSales:
		return r.TotalSales, nil
	case ColAvgSalesPrice:
		return r.AvgSalesPrice, nil
	case ColRecordCount:
		return float64(r.TotalRecordCount), nil
	default:
		return 0, &MissingColumnError{Stage: StageStatistics, Column: string(c)}
	}
}

// KeyedStatistic S2 출력 row: 키별 컬럼 sum/mean
// Sums/Means 인덱스는 StatTable.Columns 순서
type KeyedStatistic struct {
	Key   StatKey   `json:"key"`
	Sums  []float64 `json:"sums"`
	Means []float64 `json:"means"`
	Count int       `json:"count"`
}

// StatTable 키 정렬된 통계 테이블 (cross-product 전체 커버)
type StatTable struct {
	Name    string           `json:"name"`
	Keys    []Dimension      `json:"keys"`
	Columns []Column         `json:"columns"`
	Rows    []KeyedStatistic `json:"rows"`
}

// Len returns the number of rows
func (t *StatTable) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of a value column
func (t *StatTable) ColumnIndex(c Column) (int, error) {
	for i, col := range t.Columns {
		if col == c {
			return i, nil
		}
	}
	return 0, &MissingColumnError{Stage: StageStatistics, Column: string(c)}
}

// HeatLabel S3 출력 row
// Heat 0 = 판매 없음, 1..K = 판매 합계 구간 오름차순
type HeatLabel struct {
	Key  StatKey `json:"key"`
	Sum  float64 `json:"sum"`
	Mean float64 `json:"mean"`
	Heat int     `json:"heat"`
}

// HeatTable 키 정렬된 heat 테이블
type HeatTable struct {
	Name     string      `json:"name"`
	Keys     []Dimension `json:"keys"`
	Slice    []Dimension `json:"slice"`
	Clusters int         `json:"clusters"`
	Rows     []HeatLabel `json:"rows"`
}

// Len returns the number of rows
func (t *HeatTable) Len() int {
	return len(t.Rows)
}

// Index builds a packed-key lookup over the table rows
func (t *HeatTable) Index() map[uint64]HeatLabel {
	idx := make(map[uint64]HeatLabel, len(t.Rows))
	for _, r := range t.Rows {
		idx[r.Key.Pack()] = r
	}
	return idx
}
