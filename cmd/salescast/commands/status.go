package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/checkpoint"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "최근 실행 상태 조회",
	Long: `체크포인트 저장소의 최근 실행 기록을 출력합니다.

DATABASE_URL이 설정되어 있으면 PostgreSQL 기록을 함께 사용합니다.

Example:
  go run ./cmd/salescast status
  go run ./cmd/salescast status --all`,
	RunE: runStatus,
}

var (
	statusAll bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "실패한 실행 포함")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== salescast Status ===")

	ctx, stop := signalContext()
	defer stop()

	deps, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Pipeline  : %s v%s\n", deps.pipeline.Meta.PipelineID, deps.pipeline.Meta.Version)
	fmt.Printf("  Data      : %s\n", deps.cfg.Pipeline.DataDir)
	fmt.Printf("  Output    : %s\n", deps.cfg.Pipeline.OutputDir)
	fmt.Printf("  Database  : %v\n", deps.db != nil)
	fmt.Printf("  Redis     : %v\n", deps.redis.Enabled())
	PrintSeparator()

	run, err := deps.store.LatestRun(ctx, !statusAll)
	if errors.Is(err, checkpoint.ErrNotFound) {
		PrintWarning("No runs recorded yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("latest run: %w", err)
	}

	PrintRun(run)
	PrintDoubleSeparator()
	return nil
}
