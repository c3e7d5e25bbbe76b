package s6_timeseries

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// Encoder 시계열 lag 피처 인코더
// ⭐ SSOT: lag 조인은 과거 방향만 (month - i, i ≥ 1)
type Encoder struct {
	policy LagPolicy
	log    zerolog.Logger
}

// NewEncoder creates an encoder with a lag policy
func NewEncoder(policy LagPolicy, log zerolog.Logger) *Encoder {
	return &Encoder{
		policy: policy,
		log:    log.With().Str("component", "s6_encoder").Logger(),
	}
}

// InferenceTable encoded inference rows with their request identifiers
type InferenceTable struct {
	contracts.EncodedTable
	IDs []int `json:"ids"`
}

// Encode keeps rows with month ≥ max(lagDepth, baseMonth) and appends for every
// lag i the retained columns of the row with the same (shop, item, category)
// at month-i. Missing history is filled with 0.
func (e *Encoder) Encode(table *contracts.FeatureTable, lagDepth, baseMonth int) (*contracts.EncodedTable, error) {
	plan, err := e.policy.plan(table.Columns, lagDepth)
	if err != nil {
		return nil, err
	}

	first := lagDepth
	if baseMonth > first {
		first = baseMonth
	}

	history := indexRows(table)

	out := newEncoded(table.Columns, plan, lagDepth)
	misses := 0
	for _, r := range table.Rows {
		if r.Key.Month < first {
			continue
		}
		values := make([]float64, 0, len(table.Columns)+plan.width())
		values = append(values, r.Values...)
		values, m := appendLags(values, history, r.Key, plan)
		misses += m
		out.Rows = append(out.Rows, contracts.FeatureRow{Key: r.Key, Values: values})
	}

	if err := out.CheckFinite(contracts.StageTimeSeries); err != nil {
		return nil, err
	}

	e.log.Info().
		Int("input_rows", table.Len()).
		Int("output_rows", out.Len()).
		Int("lag_depth", lagDepth).
		Int("first_month", first).
		Int("lag_columns", plan.width()).
		Int("zero_filled_lags", misses).
		Msg("Encoded time series")

	return out, nil
}

// EncodeInference builds the lag columns of inference requests at targetMonth
// from the history table. Request order is preserved.
func (e *Encoder) EncodeInference(
	requests []contracts.InferenceRequest,
	history *contracts.FeatureTable,
	targetMonth, lagDepth int,
) (*InferenceTable, error) {
	plan, err := e.policy.plan(history.Columns, lagDepth)
	if err != nil {
		return nil, err
	}
	if targetMonth < lagDepth {
		return nil, fmt.Errorf("target month %d has no full history for lag depth %d", targetMonth, lagDepth)
	}

	idx := indexRows(history)

	out := &InferenceTable{
		EncodedTable: *newEncoded(nil, plan, lagDepth),
		IDs:          make([]int, 0, len(requests)),
	}
	misses := 0
	for _, req := range requests {
		key := contracts.RowKey{Month: targetMonth, Shop: req.ShopID, Item: req.ItemID, Category: req.CategoryID}
		values, m := appendLags(make([]float64, 0, plan.width()), idx, key, plan)
		misses += m
		out.Rows = append(out.Rows, contracts.FeatureRow{Key: key, Values: values})
		out.IDs = append(out.IDs, req.ID)
	}

	if err := out.CheckFinite(contracts.StageTimeSeries); err != nil {
		return nil, err
	}

	e.log.Info().
		Int("requests", len(requests)).
		Int("target_month", targetMonth).
		Int("lag_depth", lagDepth).
		Int("zero_filled_lags", misses).
		Msg("Encoded inference requests")

	return out, nil
}

func newEncoded(base []string, plan *lagPlan, depth int) *contracts.EncodedTable {
	cols := make([]string, 0, len(base)+plan.width())
	cols = append(cols, base...)
	cols = append(cols, plan.columns...)
	return &contracts.EncodedTable{
		FeatureTable: contracts.FeatureTable{Columns: cols},
		BaseColumns:  append([]string(nil), base...),
		LagColumns:   append([]string(nil), plan.columns...),
		LagDepth:     depth,
	}
}

func indexRows(t *contracts.FeatureTable) map[contracts.RowKey][]float64 {
	idx := make(map[contracts.RowKey][]float64, len(t.Rows))
	for _, r := range t.Rows {
		idx[r.Key] = r.Values
	}
	return idx
}

// appendLags appends the lag columns of key and returns the number of lags without history
func appendLags(values []float64, history map[contracts.RowKey][]float64, key contracts.RowKey, plan *lagPlan) ([]float64, int) {
	misses := 0
	for _, step := range plan.steps {
		past, ok := history[key.Shift(step.lag)]
		if !ok {
			misses++
			for range step.idx {
				values = append(values, 0)
			}
			continue
		}
		for _, j := range step.idx {
			values = append(values, past[j])
		}
	}
	return values, misses
}
