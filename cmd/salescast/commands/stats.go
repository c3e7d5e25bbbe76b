package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/contracts"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "S0-S2: 통계 테이블 요약",
	Long: `S2 통계 추출기의 보고용 테이블을 계산하고 상위 row를 출력합니다.

Tables:
  - date_block_num x shop_id x item_category_id
  - date_block_num x item_id
  - date_block_num x item_category_id
  - shop_id x item_id

Example:
  go run ./cmd/salescast stats
  go run ./cmd/salescast stats --top 20`,
	RunE: runStats,
}

var (
	statsTop int
)

func init() {
	rootCmd.AddCommand(statsCmd)

	// Flags
	statsCmd.Flags().IntVar(&statsTop, "top", 10, "테이블별 출력 row 수 (첫 컬럼 합계 기준)")
}

func runStats(cmd *cobra.Command, args []string) error {
	fmt.Println("=== salescast Statistics ===")

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

	tables, err := orch.Stats(ctx)
	if err != nil {
		return err
	}

	for _, t := range tables {
		printStatTable(t, statsTop)
	}
	return nil
}

func printStatTable(t *contracts.StatTable, top int) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s  (%s)\n", t.Name, contracts.DimensionNames(t.Keys))
	fmt.Printf("  Rows      : %d\n", t.Len())
	PrintSeparator()

	rows := make([]contracts.KeyedStatistic, len(t.Rows))
	copy(rows, t.Rows)
	if len(t.Columns) > 0 {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Sums[0] > rows[j].Sums[0]
		})
	}
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	for _, r := range rows {
		for _, d := range t.Keys {
			fmt.Printf("%s=%-6d ", d, r.Key.Get(d))
		}
		for i, c := range t.Columns {
			fmt.Printf(" %s sum=%.2f mean=%.2f", c, r.Sums[i], r.Means[i])
		}
		fmt.Println()
	}
}
