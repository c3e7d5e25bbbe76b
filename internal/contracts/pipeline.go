package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 체크포인트, DB row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5 → S6 → S7
//   Aggregate  Catalog  Stats  Heat  Clean  Normalize  TimeSeries  Model

// Stage represents a pipeline stage
type Stage string

const (
	// StageAggregate S0: 일별 거래 로그 → 월별 (month, shop, item) 집계
	// 위치: internal/s0_data/
	StageAggregate Stage = "S0_AGGREGATE"

	// StageCatalog S1: 아이템 → 카테고리 조인, 도메인 계산
	// 위치: internal/s1_catalog/
	StageCatalog Stage = "S1_CATALOG"

	// StageStatistics S2: 키 조합별 sum/mean 통계 (zero-patching)
	// 위치: internal/s2_stats/
	StageStatistics Stage = "S2_STATISTICS"

	// StageHeat S3: 클러스터링 기반 판매 heat 라벨링
	// 위치: internal/s3_heat/
	StageHeat Stage = "S3_HEAT"

	// StageClean S4: 이상치 제거
	// 위치: internal/s4_clean/
	StageClean Stage = "S4_CLEAN"

	// StageNormalize S5: min-max 정규화
	// 위치: internal/s5_normalize/
	StageNormalize Stage = "S5_NORMALIZE"

	// StageTimeSeries S6: lag 피처 인코딩
	// 위치: internal/s6_timeseries/
	StageTimeSeries Stage = "S6_TIMESERIES"

	// StageModel S7: 학습/추론 어댑터
	// 위치: internal/s7_model/
	StageModel Stage = "S7_MODEL"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageAggregate:
		return "S0"
	case StageCatalog:
		return "S1"
	case StageStatistics:
		return "S2"
	case StageHeat:
		return "S3"
	case StageClean:
		return "S4"
	case StageNormalize:
		return "S5"
	case StageTimeSeries:
		return "S6"
	case StageModel:
		return "S7"
	default:
		return "UNKNOWN"
	}
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageAggregate:
		return "월별 판매 집계"
	case StageCatalog:
		return "카테고리 조인"
	case StageStatistics:
		return "통계 피처 추출"
	case StageHeat:
		return "판매 heat 클러스터링"
	case StageClean:
		return "이상치 제거"
	case StageNormalize:
		return "정규화"
	case StageTimeSeries:
		return "시계열 인코딩"
	case StageModel:
		return "학습/추론"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageAggregate,
		StageCatalog,
		StageStatistics,
		StageHeat,
		StageClean,
		StageNormalize,
		StageTimeSeries,
		StageModel,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// PipelineResult represents the result of a pipeline stage execution
type PipelineResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
