package s3_heat

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/metrics"
)

// Clusterer 판매 합계 기반 heat 라벨러
// ⭐ SSOT: heat 라벨 (0 = 판매 없음, 1..K 오름차순)은 여기서만 결정
type Clusterer struct {
	workers int
	log     zerolog.Logger
}

// NewClusterer creates a clusterer running at most workers slices at once
func NewClusterer(workers int, log zerolog.Logger) *Clusterer {
	if workers < 1 {
		workers = 1
	}
	return &Clusterer{
		workers: workers,
		log:     log.With().Str("component", "s3_clusterer").Logger(),
	}
}

// sliceResult labels of one slice
type sliceResult struct {
	labels   []contracts.HeatLabel
	fallback string
}

// ClusterHeat labels every row of a total-sales table with a heat level.
// Rows are partitioned into independent slices sharing the values of the slice
// dimensions; each slice is clustered on its own.
func (c *Clusterer) ClusterHeat(
	ctx context.Context,
	table *contracts.StatTable,
	slice []contracts.Dimension,
	k int,
) (*contracts.HeatTable, error) {
	if k < 1 {
		return nil, fmt.Errorf("cluster heat %s: k must be >= 1, got %d", table.Name, k)
	}
	if err := checkSlice(table.Keys, slice); err != nil {
		return nil, fmt.Errorf("cluster heat %s: %w", table.Name, err)
	}
	col, err := table.ColumnIndex(contracts.ColTotalSales)
	if err != nil {
		return nil, err
	}

	// 1. 슬라이스 분할 (키 순서 유지)
	var order []uint64
	slices := make(map[uint64][]contracts.KeyedStatistic)
	for _, r := range table.Rows {
		sk := r.Key.Project(slice).Pack()
		if _, ok := slices[sk]; !ok {
			order = append(order, sk)
		}
		slices[sk] = append(slices[sk], r)
	}

	// 2. 슬라이스 병렬 클러스터링
	results := make([]sliceResult, len(order))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, sk := range order {
		i, rows := i, slices[sk]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := labelSlice(rows, col, k)
			if err != nil {
				return err
			}
			if len(res.labels) != len(rows) {
				return &contracts.CardinalityError{
					Stage:    contracts.StageHeat,
					Table:    fmt.Sprintf("%s[%+v]", table.Name, contracts.UnpackStatKey(order[i])),
					Expected: len(rows),
					Actual:   len(res.labels),
				}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cluster heat %s: %w", table.Name, err)
	}

	// 3. 병합 + 키 정렬
	out := &contracts.HeatTable{
		Name:     table.Name,
		Keys:     append([]contracts.Dimension(nil), table.Keys...),
		Slice:    append([]contracts.Dimension(nil), slice...),
		Clusters: k,
		Rows:     make([]contracts.HeatLabel, 0, table.Len()),
	}
	fallbacks := map[string]int{}
	for _, res := range results {
		out.Rows = append(out.Rows, res.labels...)
		if res.fallback != "" {
			fallbacks[res.fallback]++
			metrics.HeatFallback(table.Name, res.fallback)
		}
	}
	sort.Slice(out.Rows, func(a, b int) bool {
		return out.Rows[a].Key.Pack() < out.Rows[b].Key.Pack()
	})

	if out.Len() != table.Len() {
		return nil, &contracts.CardinalityError{
			Stage:    contracts.StageHeat,
			Table:    table.Name,
			Expected: table.Len(),
			Actual:   out.Len(),
		}
	}

	ev := c.log.Info().
		Str("table", table.Name).
		Str("slice", contracts.DimensionNames(slice)).
		Int("clusters", k).
		Int("slices", len(order)).
		Int("rows", out.Len())
	if fallbacks[metrics.FallbackBinary] > 0 || fallbacks[metrics.FallbackAllZero] > 0 {
		ev = ev.Int("binary_fallbacks", fallbacks[metrics.FallbackBinary]).
			Int("all_zero_fallbacks", fallbacks[metrics.FallbackAllZero])
	}
	ev.Msg("Clustered sales heat")

	return out, nil
}

// labelSlice assigns heat labels to the rows of one slice
func labelSlice(rows []contracts.KeyedStatistic, col, k int) (sliceResult, error) {
	seen := make(map[float64]bool)
	var distinct []float64
	for _, r := range rows {
		v := r.Sums[col]
		if v > 0 && !seen[v] {
			seen[v] = true
			distinct = append(distinct, v)
		}
	}

	res := sliceResult{labels: make([]contracts.HeatLabel, len(rows))}

	var ranges []valueRange
	switch {
	case len(distinct) == 0:
		res.fallback = metrics.FallbackAllZero
	case len(distinct) <= k:
		res.fallback = metrics.FallbackBinary
	default:
		ranges = clusterRanges(distinct, k)
	}

	for i, r := range rows {
		sum := r.Sums[col]
		label := contracts.HeatLabel{Key: r.Key, Sum: sum, Mean: r.Means[col]}

		switch {
		case sum == 0:
			label.Heat = 0
		case res.fallback == metrics.FallbackBinary && sum > 0:
			label.Heat = 1
		case ranges != nil:
			label.Heat = labelFor(ranges, sum)
		}

		if sum != 0 && label.Heat == 0 {
			return sliceResult{}, &contracts.IntegrityError{
				Stage:  contracts.StageHeat,
				Detail: fmt.Sprintf("no heat label for total %v at %+v", sum, r.Key),
			}
		}
		res.labels[i] = label
	}

	return res, nil
}

// checkSlice ensures slice dimensions are a subset of the table keys
func checkSlice(keys, slice []contracts.Dimension) error {
	for _, s := range slice {
		found := false
		for _, k := range keys {
			if k == s {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("slice dimension %s is not a key of the table", s)
		}
	}
	return nil
}
