package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/brain"
)

// stageFunc is one orchestrator entry point
type stageFunc func(o *brain.Orchestrator, ctx context.Context) (*brain.RunResult, error)

var (
	aggregateCmd = &cobra.Command{
		Use:   "aggregate",
		Short: "S0-S1: 월별 집계 체크포인트 생성",
		Long: `거래 로그를 (month, shop, item) 단위로 집계하고 카테고리를 조인합니다.

Output:
  $OUTPUT_DIR/train_monthly_sales.csv

Example:
  go run ./cmd/salescast aggregate
  go run ./cmd/salescast aggregate --data-dir ./data`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages("Monthly Aggregation", brain.ModeAggregate, (*brain.Orchestrator).Aggregate)
		},
	}

	heatCmd = &cobra.Command{
		Use:   "heat",
		Short: "S0-S3: 히트 클러스터 체크포인트 생성",
		Long: `통계 테이블을 k-means로 군집화하여 heat 테이블을 저장합니다.

REDIS_ENABLED=true이면 데이터 fingerprint 기준으로 캐시합니다.

Output:
  $OUTPUT_DIR/category_heat_value.csv          (shop x category)
  $OUTPUT_DIR/monthly_item_heat_value.csv      (item)
  $OUTPUT_DIR/monthly_item_cat_heat_value.csv  (category)

Example:
  go run ./cmd/salescast heat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages("Heat Clustering", brain.ModeHeat, (*brain.Orchestrator).Heat)
		},
	}

	trainCmd = &cobra.Command{
		Use:   "train",
		Short: "S0-S7: 모델 학습",
		Long: `전체 파이프라인을 실행하여 모델을 학습하고 artifact를 저장합니다.

Output:
  $OUTPUT_DIR/model.json
  검증 RMSE

Example:
  go run ./cmd/salescast train
  go run ./cmd/salescast train --pipeline config/pipeline/monthly_sales_v1.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages("Model Training", brain.ModeTrain, (*brain.Orchestrator).Train)
		},
	}

	inferCmd = &cobra.Command{
		Use:   "infer",
		Short: "저장된 모델로 test.csv 예측",
		Long: `저장된 artifact와 체크포인트로 요청 (shop, item) 쌍의 판매량을 예측합니다.

체크포인트가 없으면 S0-S3을 다시 계산합니다.

Example:
  go run ./cmd/salescast infer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages("Inference", brain.ModeInfer, (*brain.Orchestrator).Infer)
		},
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "학습 + 예측 전체 실행",
		Long: `S0-S7 학습 후 바로 test.csv 예측까지 수행합니다.
스케줄러의 monthly_retrain 작업과 동일합니다.

Example:
  go run ./cmd/salescast run
  go run ./cmd/salescast run -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages("Train + Inference", brain.ModeRun, (*brain.Orchestrator).Run)
		},
	}
)

func init() {
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(heatCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(runCmd)
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runStages(title, mode string, fn stageFunc) error {
	fmt.Printf("=== salescast %s ===\n", title)

	ctx, stop := signalContext()
	defer stop()

	deps, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	orch, err := deps.orchestrator()
	if err != nil {
		return fmt.Errorf("init orchestrator: %w", err)
	}

	deps.log.WithFields(map[string]interface{}{
		"mode":     mode,
		"pipeline": deps.pipeline.Meta.PipelineID,
		"data_dir": deps.cfg.Pipeline.DataDir,
	}).Info("Starting pipeline")

	PrintRunHeader(title)
	res, err := fn(orch, ctx)
	PrintRunResult(res)
	return err
}
