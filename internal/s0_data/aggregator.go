package s0_data

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// Aggregator 일별 거래 로그 → 월별 (month, shop, item) 순판매 집계
// ⭐ SSOT: 판매/환불 분리 집계는 여기서만
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a new aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "s0_aggregator").Logger(),
	}
}

type monthKey struct {
	month, shop, item int
}

// subsetStats 판매(qty>0) 또는 환불(qty<0) 부분집합 통계
type subsetStats struct {
	qtySum   float64
	priceSum float64
	count    int
}

type groupStats struct {
	general subsetStats
	refund  subsetStats
}

// Aggregate groups the raw log by (month, shop, item) and nets refunds against sales.
// Rows with zero quantity belong to neither subset; groups whose net total is not
// positive are dropped. Output is sorted by (month, shop, item).
func (a *Aggregator) Aggregate(sales []contracts.RawSale) ([]contracts.MonthlyAggregate, error) {
	groups := make(map[monthKey]*groupStats)

	var generalRows, refundRows, zeroRows int
	for _, s := range sales {
		if !contracts.IsFinite(s.Quantity) {
			return nil, &contracts.IntegrityError{
				Stage:  contracts.StageAggregate,
				Detail: fmt.Sprintf("non-finite quantity at month=%d shop=%d item=%d", s.MonthIndex, s.ShopID, s.ItemID),
			}
		}

		k := monthKey{month: s.MonthIndex, shop: s.ShopID, item: s.ItemID}
		g, ok := groups[k]
		if !ok {
			g = &groupStats{}
			groups[k] = g
		}

		switch {
		case s.Quantity > 0:
			g.general.qtySum += s.Quantity
			g.general.priceSum += s.UnitPrice
			g.general.count++
			generalRows++
		case s.Quantity < 0:
			g.refund.qtySum += s.Quantity
			g.refund.count++
			refundRows++
		default:
			zeroRows++
		}
	}

	out := make([]contracts.MonthlyAggregate, 0, len(groups))
	dropped := 0
	for k, g := range groups {
		// 외부 조인: 한쪽 부분집합이 없으면 0
		total := g.general.qtySum + g.refund.qtySum
		if total <= 0 {
			dropped++
			continue
		}

		avgPrice := 0.0
		if g.general.count > 0 {
			avgPrice = g.general.priceSum / float64(g.general.count)
		}

		row := contracts.MonthlyAggregate{
			MonthIndex:       k.month,
			ShopID:           k.shop,
			ItemID:           k.item,
			AvgSalesPrice:    avgPrice,
			TotalSales:       total,
			TotalRecordCount: g.general.count + g.refund.count,
		}
		if !contracts.IsFinite(row.AvgSalesPrice) || !contracts.IsFinite(row.TotalSales) {
			return nil, &contracts.IntegrityError{
				Stage:  contracts.StageAggregate,
				Detail: fmt.Sprintf("non-finite aggregate at month=%d shop=%d item=%d", k.month, k.shop, k.item),
			}
		}
		out = append(out, row)
	}

	SortAggregates(out)

	a.log.Info().
		Int("input_rows", len(sales)).
		Int("general_rows", generalRows).
		Int("refund_rows", refundRows).
		Int("zero_rows", zeroRows).
		Int("groups", len(groups)).
		Int("dropped_non_positive", dropped).
		Int("output_rows", len(out)).
		Msg("Aggregated monthly sales")

	return out, nil
}

// SortAggregates orders rows by (month, shop, item)
func SortAggregates(rows []contracts.MonthlyAggregate) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].MonthIndex != rows[j].MonthIndex {
			return rows[i].MonthIndex < rows[j].MonthIndex
		}
		if rows[i].ShopID != rows[j].ShopID {
			return rows[i].ShopID < rows[j].ShopID
		}
		return rows[i].ItemID < rows[j].ItemID
	})
}
