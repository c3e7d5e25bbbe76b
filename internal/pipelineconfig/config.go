package pipelineconfig

import (
	"time"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/s7_model/gbm"
)

// Config 예측 파이프라인 전체 설정
type Config struct {
	Meta       Meta       `yaml:"meta" json:"meta"`
	Heat       Heat       `yaml:"heat" json:"heat"`
	Outliers   Outliers   `yaml:"outliers" json:"outliers"`
	Normalize  Normalize  `yaml:"normalize" json:"normalize"`
	TimeSeries TimeSeries `yaml:"timeseries" json:"timeseries"`
	Model      Model      `yaml:"model" json:"model"`
	Inference  Inference  `yaml:"inference" json:"inference"`
}

// Meta 메타 정보
type Meta struct {
	PipelineID string `yaml:"pipeline_id" json:"pipeline_id"`
	Version    string `yaml:"version" json:"version"`
}

// Heat S3: 테이블별 클러스터 수
type Heat struct {
	ShopCategoryClusters int `yaml:"shop_category_clusters" json:"shop_category_clusters"`
	ItemClusters         int `yaml:"item_clusters" json:"item_clusters"`
	CategoryClusters     int `yaml:"category_clusters" json:"category_clusters"`
}

// Outliers S4: 고정 임계값
type Outliers struct {
	MaxTotalSales float64 `yaml:"max_total_sales" json:"max_total_sales"`
	MaxAvgPrice   float64 `yaml:"max_avg_price" json:"max_avg_price"`
}

// Normalize S5: 정규화 대상 컬럼
type Normalize struct {
	Columns         []string `yaml:"columns" json:"columns"`
	NormalizeTarget bool     `yaml:"normalize_target" json:"normalize_target"`
}

// TimeSeries S6: lag 정책
type TimeSeries struct {
	LagDepth  int      `yaml:"lag_depth" json:"lag_depth"`
	BaseMonth int      `yaml:"base_month" json:"base_month"`
	Anchors   []int    `yaml:"anchors" json:"anchors"`
	Reduced   []string `yaml:"reduced" json:"reduced"`
}

// Model S7: 학습 설정
type Model struct {
	Target    string     `yaml:"target" json:"target"`
	TestRatio float64    `yaml:"test_ratio" json:"test_ratio"`
	Seed      int64      `yaml:"seed" json:"seed"`
	GBM       gbm.Config `yaml:"gbm" json:"gbm"`
}

// Inference 추론 대상 월
type Inference struct {
	TargetMonth int `yaml:"target_month" json:"target_month"`
}

// Default returns the configuration used when no YAML file is given
func Default() *Config {
	return &Config{
		Meta: Meta{PipelineID: "monthly_sales_v1", Version: "1"},
		Heat: Heat{
			ShopCategoryClusters: 3,
			ItemClusters:         5,
			CategoryClusters:     5,
		},
		Outliers: Outliers{MaxTotalSales: 50, MaxAvgPrice: 5000},
		Normalize: Normalize{
			Columns: featureColumnsExcept(contracts.FeatTotalSales),
		},
		TimeSeries: TimeSeries{
			LagDepth:  24,
			BaseMonth: 0,
			Anchors:   []int{1, 12, 24},
			Reduced:   []string{contracts.FeatRecordCount},
		},
		Model: Model{
			Target:    contracts.FeatTotalSales,
			TestRatio: 0.25,
			Seed:      42,
			GBM:       gbm.DefaultConfig(),
		},
		Inference: Inference{TargetMonth: 34},
	}
}

// featureColumnsExcept returns the base feature columns without the target
func featureColumnsExcept(target string) []string {
	var cols []string
	for _, c := range contracts.BaseFeatureColumns() {
		if c != target {
			cols = append(cols, c)
		}
	}
	return cols
}

// NormalizedColumns returns the columns fitted by S5, including the target when requested
func (c *Config) NormalizedColumns() []string {
	cols := append([]string(nil), c.Normalize.Columns...)
	if !c.Normalize.NormalizeTarget {
		return cols
	}
	for _, col := range cols {
		if col == c.Model.Target {
			return cols
		}
	}
	return append(cols, c.Model.Target)
}

// RunSnapshot 실행 스냅샷 (재현성용)
type RunSnapshot struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	PipelineID string    `json:"pipeline_id"`
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	CreatedAt  time.Time `json:"created_at"`
}
