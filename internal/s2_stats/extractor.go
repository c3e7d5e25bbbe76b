package s2_stats

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/btree"

	"github.com/wonny/salescast/internal/contracts"
)

// Extractor 키 조합별 sum/mean 통계 추출기
// ⭐ SSOT: zero-patching (도메인 cross-product 전체 커버)은 여기서만
type Extractor struct {
	domain *contracts.Domain
	log    zerolog.Logger
}

// NewExtractor creates a new extractor bound to a domain
func NewExtractor(domain *contracts.Domain, log zerolog.Logger) *Extractor {
	return &Extractor{
		domain: domain,
		log:    log.With().Str("component", "s2_extractor").Logger(),
	}
}

// accumulator per-group running sums
type accumulator struct {
	sums  []float64
	count int
}

// Extract groups rows by keys and computes sum and mean of every value column.
// Every combination of the key domains appears exactly once; combinations without
// source rows have zero sums and means.
func (e *Extractor) Extract(
	ctx context.Context,
	rows []contracts.CategorizedSales,
	keys []contracts.Dimension,
	cols []contracts.Column,
) (*contracts.StatTable, error) {
	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("extract: no value columns")
	}

	name := contracts.DimensionNames(keys)

	// 1. 그룹별 누적
	groups := make(map[uint64]*accumulator)
	for i, r := range rows {
		if i%100000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		key := contracts.RowKey{Month: r.MonthIndex, Shop: r.ShopID, Item: r.ItemID, Category: r.CategoryID}.
			StatKey().Project(keys).Pack()
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{sums: make([]float64, len(cols))}
			groups[key] = acc
		}
		for j, c := range cols {
			v, err := c.Value(r)
			if err != nil {
				return nil, err
			}
			acc.sums[j] += v
		}
		acc.count++
	}

	// 2. 도메인 cross-product zero-patching
	tree := btree.NewMap[uint64, contracts.KeyedStatistic](64)
	zeroFilled := 0
	e.crossProduct(keys, func(k contracts.StatKey) {
		tree.Set(k.Pack(), contracts.KeyedStatistic{
			Key:   k,
			Sums:  make([]float64, len(cols)),
			Means: make([]float64, len(cols)),
		})
		zeroFilled++
	})

	for packed, acc := range groups {
		means := make([]float64, len(cols))
		for j := range cols {
			means[j] = acc.sums[j] / float64(acc.count)
		}
		if _, existed := tree.Set(packed, contracts.KeyedStatistic{
			Key:   contracts.UnpackStatKey(packed),
			Sums:  acc.sums,
			Means: means,
			Count: acc.count,
		}); existed {
			zeroFilled--
		}
	}

	// 3. 카디널리티 검증
	expected := e.domain.Size(keys...)
	if tree.Len() != expected {
		return nil, &contracts.CardinalityError{
			Stage:    contracts.StageStatistics,
			Table:    name,
			Expected: expected,
			Actual:   tree.Len(),
		}
	}

	table := &contracts.StatTable{
		Name:    name,
		Keys:    append([]contracts.Dimension(nil), keys...),
		Columns: append([]contracts.Column(nil), cols...),
		Rows:    make([]contracts.KeyedStatistic, 0, tree.Len()),
	}
	tree.Scan(func(_ uint64, s contracts.KeyedStatistic) bool {
		table.Rows = append(table.Rows, s)
		return true
	})

	e.log.Debug().
		Str("table", name).
		Int("groups", len(groups)).
		Int("zero_filled", zeroFilled).
		Int("rows", table.Len()).
		Msg("Extracted statistics")

	return table, nil
}

// crossProduct visits every key of the Cartesian product of the key domains
func (e *Extractor) crossProduct(keys []contracts.Dimension, visit func(contracts.StatKey)) {
	var walk func(depth int, k contracts.StatKey)
	walk = func(depth int, k contracts.StatKey) {
		if depth == len(keys) {
			visit(k)
			return
		}
		for _, v := range e.domain.Values(keys[depth]) {
			walk(depth+1, k.With(keys[depth], v))
		}
	}
	walk(0, contracts.NewStatKey())
}

func validateKeys(keys []contracts.Dimension) error {
	if len(keys) == 0 {
		return fmt.Errorf("extract: no key dimensions")
	}
	seen := make(map[contracts.Dimension]bool, len(keys))
	for _, k := range keys {
		if k < contracts.DimMonth || k > contracts.DimCategory {
			return fmt.Errorf("extract: unknown dimension %d", int(k))
		}
		if seen[k] {
			return fmt.Errorf("extract: duplicate dimension %s", k)
		}
		seen[k] = true
	}
	return nil
}
