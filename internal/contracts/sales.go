package contracts

import "time"

// RawSale 원본 거래 로그 한 줄 (불변)
// Quantity 음수 = 환불
type RawSale struct {
	Date       time.Time `json:"date"`
	MonthIndex int       `json:"date_block_num"`
	ShopID     int       `json:"shop_id"`
	ItemID     int       `json:"item_id"`
	UnitPrice  float64   `json:"item_price"`
	Quantity   float64   `json:"item_cnt_day"`
}

// Item 아이템 → 카테고리 정적 매핑
type Item struct {
	ItemID     int `json:"item_id"`
	CategoryID int `json:"item_category_id"`
}

// Catalog is the read-only item → category lookup shared by every stage.
// ⭐ SSOT: 어떤 stage도 Catalog를 수정하지 않음
type Catalog struct {
	categories map[int]int
	items      []int
}

// NewCatalog builds a catalog from item rows. Later duplicates win.
func NewCatalog(items []Item) *Catalog {
	c := &Catalog{categories: make(map[int]int, len(items))}
	for _, it := range items {
		if _, seen := c.categories[it.ItemID]; !seen {
			c.items = append(c.items, it.ItemID)
		}
		c.categories[it.ItemID] = it.CategoryID
	}
	return c
}

// Category returns the category of an item
func (c *Catalog) Category(itemID int) (int, bool) {
	cat, ok := c.categories[itemID]
	return cat, ok
}

// Len returns the number of catalog items
func (c *Catalog) Len() int {
	return len(c.categories)
}

// Items returns the catalog as rows in insertion order
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, id := range c.items {
		out = append(out, Item{ItemID: id, CategoryID: c.categories[id]})
	}
	return out
}

// MonthlyAggregate S0 출력: (month, shop, item) 별 순판매 통계
// 불변식: TotalSales > 0, TotalSales = 일반 판매 합 + 환불 합
type MonthlyAggregate struct {
	MonthIndex       int     `json:"date_block_num"`
	ShopID           int     `json:"shop_id"`
	ItemID           int     `json:"item_id"`
	AvgSalesPrice    float64 `json:"avg_sales_price"`
	TotalSales       float64 `json:"total_sales"`
	TotalRecordCount int     `json:"total_record_count"`
}

// CategorizedSales S1 출력: 카테고리가 조인된 월별 집계
type CategorizedSales struct {
	MonthlyAggregate
	CategoryID int `json:"item_category_id"`
}

// Key returns the row key of the categorized row
func (s CategorizedSales) Key() RowKey {
	return RowKey{Month: s.MonthIndex, Shop: s.ShopID, Item: s.ItemID, Category: s.CategoryID}
}

// InferenceRequest 추론 요청 (test.csv)
type InferenceRequest struct {
	ID         int `json:"ID"`
	ShopID     int `json:"shop_id"`
	ItemID     int `json:"item_id"`
	CategoryID int `json:"item_category_id"`
}

// Prediction 추론 결과 (submission)
type Prediction struct {
	ID           int     `json:"ID"`
	ShopID       int     `json:"shop_id"`
	ItemID       int     `json:"item_id"`
	ItemCntMonth float64 `json:"item_cnt_month"`
}
