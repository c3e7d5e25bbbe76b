package s4_clean

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/wonny/salescast/internal/contracts"
)

// Default outlier thresholds
const (
	DefaultMaxTotalSales = 50.0
	DefaultMaxAvgPrice   = 5000.0
)

// Config 이상치 임계값
type Config struct {
	MaxTotalSales float64
	MaxAvgPrice   float64
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{MaxTotalSales: DefaultMaxTotalSales, MaxAvgPrice: DefaultMaxAvgPrice}
}

// Cleaner 고정 임계값 기반 이상치 필터
type Cleaner struct {
	cfg Config
	log zerolog.Logger
}

// NewCleaner creates a new cleaner
func NewCleaner(cfg Config, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		cfg: cfg,
		log: log.With().Str("component", "s4_cleaner").Logger(),
	}
}

// Summary descriptive statistics of one column
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	SD     float64 `json:"sd"`
}

// Report before/after statistics of an outlier pass
type Report struct {
	RowsBefore  int     `json:"rows_before"`
	RowsAfter   int     `json:"rows_after"`
	SalesBefore Summary `json:"total_sales_before"`
	SalesAfter  Summary `json:"total_sales_after"`
	PriceBefore Summary `json:"avg_sales_price_before"`
	PriceAfter  Summary `json:"avg_sales_price_after"`
}

// RemoveOutliers keeps rows with total_sales ≤ MaxTotalSales and
// avg_sales_price ≤ MaxAvgPrice. The input table is not modified.
func (c *Cleaner) RemoveOutliers(table *contracts.FeatureTable) (*contracts.FeatureTable, *Report, error) {
	salesIdx, err := table.ColumnIndex(contracts.StageClean, contracts.FeatTotalSales)
	if err != nil {
		return nil, nil, err
	}
	priceIdx, err := table.ColumnIndex(contracts.StageClean, contracts.FeatAvgSalesPrice)
	if err != nil {
		return nil, nil, err
	}

	out := &contracts.FeatureTable{
		Columns: append([]string(nil), table.Columns...),
		Rows:    make([]contracts.FeatureRow, 0, table.Len()),
	}
	for _, r := range table.Rows {
		if r.Values[salesIdx] <= c.cfg.MaxTotalSales && r.Values[priceIdx] <= c.cfg.MaxAvgPrice {
			out.Rows = append(out.Rows, contracts.FeatureRow{
				Key:    r.Key,
				Values: append([]float64(nil), r.Values...),
			})
		}
	}

	report := &Report{
		RowsBefore:  table.Len(),
		RowsAfter:   out.Len(),
		SalesBefore: Describe(column(table, salesIdx)),
		SalesAfter:  Describe(column(out, salesIdx)),
		PriceBefore: Describe(column(table, priceIdx)),
		PriceAfter:  Describe(column(out, priceIdx)),
	}

	c.log.Info().
		Int("rows_before", report.RowsBefore).
		Int("rows_after", report.RowsAfter).
		Float64("max_total_sales", c.cfg.MaxTotalSales).
		Float64("max_avg_price", c.cfg.MaxAvgPrice).
		Msg("Removed outliers")
	c.logSummary("total_sales", report.SalesBefore, report.SalesAfter)
	c.logSummary("avg_sales_price", report.PriceBefore, report.PriceAfter)

	return out, report, nil
}

func (c *Cleaner) logSummary(col string, before, after Summary) {
	c.log.Debug().
		Str("column", col).
		Interface("before", before).
		Interface("after", after).
		Msg("Outlier report")
}

func column(t *contracts.FeatureTable, idx int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Values[idx]
	}
	return out
}

// Describe computes min, max, mean, median and sample standard deviation.
// An even count takes the midpoint of the two middle values as the median.
// An empty input returns a zero Summary.
func Describe(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if n%2 == 0 {
		median = (median + sorted[n/2]) / 2
	}

	sd := 0.0
	if n > 1 {
		sd = stat.StdDev(sorted, nil)
	}

	return Summary{
		Count:  n,
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: median,
		SD:     sd,
	}
}
