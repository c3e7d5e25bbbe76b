package pipelineconfig

import (
	"fmt"

	"github.com/wonny/salescast/internal/contracts"
)

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
// 실패 시 error 반환 (프로그램 중단)
func Validate(cfg *Config) error {
	// === Meta ===
	if cfg.Meta.PipelineID == "" {
		return ValidationError{"meta.pipeline_id", "required"}
	}

	// === Heat ===
	if err := validateClusters(cfg.Heat.ShopCategoryClusters, "heat.shop_category_clusters"); err != nil {
		return err
	}
	if err := validateClusters(cfg.Heat.ItemClusters, "heat.item_clusters"); err != nil {
		return err
	}
	if err := validateClusters(cfg.Heat.CategoryClusters, "heat.category_clusters"); err != nil {
		return err
	}

	// === Outliers ===
	if cfg.Outliers.MaxTotalSales <= 0 {
		return ValidationError{"outliers.max_total_sales", "must be > 0"}
	}
	if cfg.Outliers.MaxAvgPrice <= 0 {
		return ValidationError{"outliers.max_avg_price", "must be > 0"}
	}

	// === Normalize ===
	for i, col := range cfg.Normalize.Columns {
		if !isFeatureColumn(col) {
			return ValidationError{fmt.Sprintf("normalize.columns[%d]", i), fmt.Sprintf("unknown column %q", col)}
		}
	}
	if len(cfg.NormalizedColumns()) == 0 {
		return ValidationError{"normalize.columns", "must not be empty"}
	}

	// === TimeSeries ===
	ts := cfg.TimeSeries
	if ts.LagDepth < 1 {
		return ValidationError{"timeseries.lag_depth", "must be >= 1"}
	}
	if ts.BaseMonth < 0 {
		return ValidationError{"timeseries.base_month", "must be >= 0"}
	}
	for i, a := range ts.Anchors {
		if a < 1 {
			return ValidationError{fmt.Sprintf("timeseries.anchors[%d]", i), "must be >= 1"}
		}
	}
	for i, col := range ts.Reduced {
		if !isFeatureColumn(col) {
			return ValidationError{fmt.Sprintf("timeseries.reduced[%d]", i), fmt.Sprintf("unknown column %q", col)}
		}
	}

	// === Model ===
	if !isFeatureColumn(cfg.Model.Target) {
		return ValidationError{"model.target", fmt.Sprintf("unknown column %q", cfg.Model.Target)}
	}
	if cfg.Model.TestRatio <= 0 || cfg.Model.TestRatio >= 1 {
		return ValidationError{"model.test_ratio", "must be in range (0, 1)"}
	}
	g := cfg.Model.GBM
	if g.NEstimators < 1 {
		return ValidationError{"model.gbm.n_estimators", "must be >= 1"}
	}
	if g.LearningRate <= 0 || g.LearningRate > 1 {
		return ValidationError{"model.gbm.learning_rate", "must be in range (0, 1]"}
	}
	if g.MaxDepth < 1 {
		return ValidationError{"model.gbm.max_depth", "must be >= 1"}
	}
	if err := validateRatio(g.Subsample, "model.gbm.subsample"); err != nil {
		return err
	}
	if err := validateRatio(g.ColsampleByTree, "model.gbm.colsample_bytree"); err != nil {
		return err
	}
	if g.EarlyStoppingRounds < 0 {
		return ValidationError{"model.gbm.early_stopping_rounds", "must be >= 0"}
	}

	// === Inference ===
	if cfg.Inference.TargetMonth < ts.LagDepth {
		return ValidationError{"inference.target_month", fmt.Sprintf("must be >= timeseries.lag_depth=%d", ts.LagDepth)}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	// 앵커가 lag 깊이 밖이면 full 스키마가 적용되지 않음
	for _, a := range cfg.TimeSeries.Anchors {
		if a > cfg.TimeSeries.LagDepth {
			warnings = append(warnings, Warning{
				Code:    "ANCHOR_BEYOND_DEPTH",
				Message: fmt.Sprintf("anchor lag %d exceeds lag_depth %d and is never encoded", a, cfg.TimeSeries.LagDepth),
			})
		}
	}

	if cfg.Model.GBM.EarlyStoppingRounds == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_EARLY_STOPPING",
			Message: "early_stopping_rounds = 0: all n_estimators rounds are trained",
		})
	}

	if cfg.Normalize.NormalizeTarget {
		warnings = append(warnings, Warning{
			Code:    "NORMALIZED_TARGET",
			Message: "target is normalized: predictions are mapped back with training bounds",
		})
	}

	return warnings
}

// === Helper Functions ===

func validateClusters(k int, field string) error {
	if k < 2 {
		return ValidationError{field, "must be >= 2"}
	}
	return nil
}

func validateRatio(v float64, field string) error {
	if v <= 0 || v > 1 {
		return ValidationError{field, "must be in range (0, 1]"}
	}
	return nil
}

func isFeatureColumn(col string) bool {
	for _, c := range contracts.BaseFeatureColumns() {
		if c == col {
			return true
		}
	}
	return false
}
