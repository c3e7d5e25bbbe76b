package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/api"
	"github.com/wonny/salescast/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `예측 결과 조회용 REST API 서버를 시작합니다.

이 명령어는:
- 최근 실행 기록 조회
- (shop, item) 예측값 조회
- Prometheus 메트릭 노출
- --schedule: 재학습 스케줄러 동시 실행 + 진행 스트림

Endpoints:
  GET  /health                       - Health check
  GET  /metrics                      - Prometheus metrics
  GET  /api/runs/latest              - 최근 성공 실행
  GET  /api/predictions?shop_id=&item_id=
  GET  /api/predictions/{id}
  GET  /ws/runs                      - 실행 진행 스트림 (--schedule)

Example:
  go run ./cmd/salescast api
  go run ./cmd/salescast api --port 8080
  go run ./cmd/salescast api --schedule`,
	RunE: runAPIServer,
}

var (
	apiPort     string
	apiSchedule bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default PORT)")
	apiCmd.Flags().BoolVar(&apiSchedule, "schedule", false, "스케줄러를 같은 프로세스에서 실행")
	apiCmd.Flags().IntVar(&keepRuns, "keep-runs", 12, "run_prune이 남길 실행 기록 수")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== salescast API Server ===")

	ctx, stop := signalContext()
	defer stop()

	deps, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	cfg := deps.cfg
	log := deps.log

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	routes := api.RouterDeps{
		Predictions:    handlers.NewPredictionHandler(deps.store, log),
		Health:         handlers.NewHealthHandler("salescast", deps.healthChecks()),
		Limiter:        deps.limiter(),
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         log,
	}

	if apiSchedule {
		hub := api.NewHub(log)
		deps.events = hub
		routes.Stream = hub

		sched, err := initScheduler(deps)
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
		log.WithField("jobs", sched.GetAllJobs()).Info("Scheduler started")
	}

	server := api.New(cfg, log, api.NewRouter(routes))

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	if cfg.MetricsEnabled {
		fmt.Println("  GET  /metrics")
	}
	fmt.Println("  GET  /api/runs/latest")
	fmt.Println("  GET  /api/predictions")
	fmt.Println("  GET  /api/predictions/{id}")
	if apiSchedule {
		fmt.Println("  GET  /ws/runs")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	if err := server.Run(ctx, 30*time.Second); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	log.Info("Server stopped")
	return nil
}

// healthChecks probes the checkpoint directory and every configured backend
func (d *appDeps) healthChecks() map[string]handlers.Check {
	checks := map[string]handlers.Check{
		"checkpoints": func(context.Context) error {
			_, err := os.Stat(d.files.Dir())
			return err
		},
	}
	if d.db != nil {
		checks["database"] = d.db.Ping
	}
	if d.redis.Enabled() {
		checks["redis"] = d.redis.Ping
	}
	return checks
}
