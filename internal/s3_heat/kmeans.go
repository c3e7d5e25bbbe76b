package s3_heat

import (
	"math"
	"sort"
)

// compressionExponent flattens heavy-tailed sales totals before clustering
const compressionExponent = 0.125

const maxIterations = 100

// valueRange [Min, Max] of uncompressed totals of one cluster
type valueRange struct {
	Min float64
	Max float64
}

// clusterRanges partitions distinct positive values into k groups with
// 1-D Lloyd iterations over x^0.125 and returns the uncompressed ranges sorted
// ascending by Min. A cluster left empty is reseeded with the point farthest
// from its centroid, so exactly k ranges come back.
// values must be distinct, positive and len(values) > k.
func clusterRanges(values []float64, k int) []valueRange {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	compressed := make([]float64, n)
	for i, v := range sorted {
		compressed[i] = math.Pow(v, compressionExponent)
	}

	// 분위수 초기화 (결정적)
	centroids := make([]float64, k)
	for i := range centroids {
		centroids[i] = compressed[(2*i+1)*n/(2*k)]
	}

	assign := make([]int, n)
	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, c := range compressed {
			best := nearest(centroids, c)
			if iter == 0 || assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		fillEmpty(compressed, centroids, assign)

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, c := range compressed {
			sums[assign[i]] += c
			counts[assign[i]]++
		}
		for j := range centroids {
			if counts[j] > 0 {
				centroids[j] = sums[j] / float64(counts[j])
			}
		}
	}

	fillEmpty(compressed, centroids, assign)

	ranges := make([]valueRange, k)
	seen := make([]bool, k)
	for i, v := range sorted {
		j := assign[i]
		if !seen[j] {
			ranges[j] = valueRange{Min: v, Max: v}
			seen[j] = true
			continue
		}
		if v < ranges[j].Min {
			ranges[j].Min = v
		}
		if v > ranges[j].Max {
			ranges[j].Max = v
		}
	}

	out := make([]valueRange, 0, k)
	for j, r := range ranges {
		if seen[j] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Min < out[b].Min })
	return out
}

// fillEmpty moves the point farthest from its own centroid into every empty
// cluster. Donor clusters keep at least one point. In 1-D the farthest point is
// an end of its cluster, so clusters stay contiguous.
func fillEmpty(compressed, centroids []float64, assign []int) {
	counts := make([]int, len(centroids))
	for _, j := range assign {
		counts[j]++
	}

	for j := range centroids {
		if counts[j] > 0 {
			continue
		}
		far, farDist := -1, -1.0
		for i, c := range compressed {
			if counts[assign[i]] < 2 {
				continue
			}
			if d := math.Abs(c - centroids[assign[i]]); d > farDist {
				far, farDist = i, d
			}
		}
		if far < 0 {
			return
		}
		counts[assign[far]]--
		assign[far] = j
		counts[j]++
		centroids[j] = compressed[far]
	}
}

// nearest returns the index of the closest centroid; ties go to the lower index
func nearest(centroids []float64, v float64) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centroids {
		if d := math.Abs(v - c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// labelFor returns the 1-based canonical label of v or 0 when no range contains it
func labelFor(ranges []valueRange, v float64) int {
	i := sort.Search(len(ranges), func(i int) bool { return ranges[i].Max >= v })
	if i < len(ranges) && ranges[i].Min <= v {
		return i + 1
	}
	return 0
}
