package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	pipelinePath string
	dataDir      string
	outputDir    string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "salescast",
	Short: "salescast - 월간 판매량 예측 파이프라인",
	Long: `salescast Unified CLI

거래 로그로부터 다음 달 (shop, item) 판매량을 예측.
8단계 파이프라인: 집계 → 카테고리 → 통계 → 히트 → 정제 → 정규화 → 시계열 → 모델.

Usage:
  go run ./cmd/salescast [command]

Examples:
  go run ./cmd/salescast generate
  go run ./cmd/salescast run
  go run ./cmd/salescast infer --pipeline config/pipeline/monthly_sales_v1.yaml
  go run ./cmd/salescast api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&pipelinePath, "pipeline", "", "pipeline YAML (default is PIPELINE_CONFIG or built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "input directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "checkpoint directory (overrides OUTPUT_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
