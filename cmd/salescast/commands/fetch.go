package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/salescast/internal/s0_data"
	"github.com/wonny/salescast/pkg/httputil"
	"github.com/wonny/salescast/pkg/logger"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "입력 데이터 다운로드",
	Long: `DATA_URL에서 입력 파일 3개를 DATA_DIR로 내려받습니다.

Files:
  $DATA_URL/sales_train.csv
  $DATA_URL/items.csv
  $DATA_URL/test.csv

5xx / 429 응답은 재시도합니다.

Example:
  DATA_URL=https://example.com/sales go run ./cmd/salescast fetch
  go run ./cmd/salescast fetch --url https://example.com/sales`,
	RunE: runFetch,
}

var (
	fetchURL string
)

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Flags
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "base URL (overrides DATA_URL)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	fmt.Println("=== salescast Dataset Fetch ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if fetchURL != "" {
		cfg.Fetch.BaseURL = fetchURL
	}
	if cfg.Fetch.BaseURL == "" {
		return fmt.Errorf("DATA_URL or --url is required")
	}
	log := logger.New(cfg)

	ctx, stop := signalContext()
	defer stop()

	client := httputil.New(cfg, log).WithRetry(3, 2*time.Second)
	base := strings.TrimRight(cfg.Fetch.BaseURL, "/")
	start := time.Now()

	files := []string{s0_data.SalesFile, s0_data.ItemsFile, s0_data.RequestsFile}
	sizes := make([]int64, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			n, err := client.Download(gctx, base+"/"+name, filepath.Join(cfg.Pipeline.DataDir, name))
			if err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
			sizes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, name := range files {
		fmt.Printf("  %-16s %10d bytes\n", name, sizes[i])
	}
	PrintSuccess(fmt.Sprintf("Fetched %d files in %.2fs", len(files), time.Since(start).Seconds()))
	return nil
}
