package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/salescast/internal/scheduler"
	"github.com/wonny/salescast/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `재학습 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/salescast scheduler start
  go run ./cmd/salescast scheduler list
  go run ./cmd/salescast scheduler run monthly_retrain`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- monthly_retrain: SCHEDULE (기본 매월 1일 03:00, 학습 + 예측)
- run_prune: 매주 일요일 04:00 (오래된 실행 기록 정리)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

var (
	keepRuns int
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	// Flags
	schedulerCmd.PersistentFlags().IntVar(&keepRuns, "keep-runs", 12, "run_prune이 남길 실행 기록 수")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== salescast Scheduler ===")

	ctx, stop := signalContext()
	defer stop()

	deps, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	sched, err := initScheduler(deps)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	// Start scheduler
	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.GetAllJobs() {
		next, _ := sched.NextRun(name)
		fmt.Printf("  - %-16s next %s\n", name, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	<-ctx.Done()

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	printJobStats(sched)
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	deps, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	sched, err := initScheduler(deps)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Println("Registered jobs:")
	for name, stat := range sched.GetJobStats() {
		fmt.Printf("  - %-16s %s\n", name, stat.Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	ctx, stop := signalContext()
	defer stop()

	deps, err := initDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	sched, err := initScheduler(deps)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	res, err := sched.RunJob(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("job %s failed: %s", jobName, res.Error)
	}

	PrintSuccess(fmt.Sprintf("Job %s completed in %.2fs", jobName, res.Duration.Seconds()))
	return nil
}

func printJobStats(sched *scheduler.Scheduler) {
	fmt.Println("Job Statistics:")
	fmt.Println()

	for jobName, stat := range sched.GetJobStats() {
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}
}

func initScheduler(deps *appDeps) (*scheduler.Scheduler, error) {
	orch, err := deps.orchestrator()
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	sched := scheduler.New(deps.log, scheduler.WithRetry(2, 5*time.Minute))

	if err := sched.AddJob(jobs.NewRetrainJob(orch, deps.cfg.Pipeline.Schedule, deps.log)); err != nil {
		return nil, err
	}
	if err := sched.AddJob(jobs.NewPruneJob(deps.files, keepRuns, deps.log)); err != nil {
		return nil, err
	}

	return sched, nil
}
