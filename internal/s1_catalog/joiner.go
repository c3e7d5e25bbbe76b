package s1_catalog

import (
	"fmt"
	"sort"

	"github.com/wonny/salescast/internal/contracts"
)

// JoinCategory attaches the item category to every monthly aggregate.
// An item absent from the catalog aborts the join.
func JoinCategory(rows []contracts.MonthlyAggregate, catalog *contracts.Catalog) ([]contracts.CategorizedSales, error) {
	out := make([]contracts.CategorizedSales, len(rows))
	for i, r := range rows {
		cat, ok := catalog.Category(r.ItemID)
		if !ok {
			return nil, &contracts.UnmatchedKeyError{Stage: contracts.StageCatalog, ItemID: r.ItemID}
		}
		out[i] = contracts.CategorizedSales{MonthlyAggregate: r, CategoryID: cat}
	}
	return out, nil
}

// JoinRequests attaches the item category to inference requests
func JoinRequests(reqs []contracts.InferenceRequest, catalog *contracts.Catalog) ([]contracts.InferenceRequest, error) {
	out := make([]contracts.InferenceRequest, len(reqs))
	for i, r := range reqs {
		cat, ok := catalog.Category(r.ItemID)
		if !ok {
			return nil, &contracts.UnmatchedKeyError{Stage: contracts.StageCatalog, ItemID: r.ItemID}
		}
		r.CategoryID = cat
		out[i] = r
	}
	return out, nil
}

// DeriveDomain computes the key domains once for the whole run.
// months and shops are contiguous [0..max observed]; items and categories are
// the distinct catalog values.
// ⭐ SSOT: 도메인 경계는 여기서만 계산
func DeriveDomain(catalog *contracts.Catalog, sales []contracts.RawSale) (*contracts.Domain, error) {
	if catalog.Len() == 0 {
		return nil, fmt.Errorf("derive domain: empty catalog")
	}
	if len(sales) == 0 {
		return nil, fmt.Errorf("derive domain: empty sales log")
	}

	maxMonth, maxShop := 0, 0
	for _, s := range sales {
		if s.MonthIndex < 0 || s.ShopID < 0 {
			return nil, fmt.Errorf("derive domain: negative key month=%d shop=%d", s.MonthIndex, s.ShopID)
		}
		if s.MonthIndex > maxMonth {
			maxMonth = s.MonthIndex
		}
		if s.ShopID > maxShop {
			maxShop = s.ShopID
		}
	}

	d := &contracts.Domain{
		Months: contiguous(maxMonth),
		Shops:  contiguous(maxShop),
	}

	seenCat := make(map[int]bool)
	for _, it := range catalog.Items() {
		d.Items = append(d.Items, it.ItemID)
		if !seenCat[it.CategoryID] {
			seenCat[it.CategoryID] = true
			d.Categories = append(d.Categories, it.CategoryID)
		}
	}
	sort.Ints(d.Items)
	sort.Ints(d.Categories)

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("derive domain: %w", err)
	}
	return d, nil
}

// WithMonths returns a copy of the domain restricted to the given months
func WithMonths(d *contracts.Domain, months []int) *contracts.Domain {
	out := *d
	out.Months = append([]int(nil), months...)
	return &out
}

func contiguous(max int) []int {
	out := make([]int, max+1)
	for i := range out {
		out[i] = i
	}
	return out
}
