package commands

import (
	"fmt"
	"time"

	"github.com/wonny/salescast/internal/brain"
	"github.com/wonny/salescast/internal/checkpoint"
	"github.com/wonny/salescast/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintRunHeader prints a formatted run header
func PrintRunHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	fmt.Printf("  Started   : %s\n", time.Now().Format("2006-01-02 15:04:05"))
	PrintSeparator()
}

// PrintStages prints one line per executed stage
// Example: [S3] ok    1200 → 1200  (35ms)
func PrintStages(stages []contracts.PipelineResult) {
	for _, st := range stages {
		status := "ok"
		if !st.Success {
			status = "FAIL"
		}
		fmt.Printf("[%s] %-5s %8d → %-8d (%dms)  %s\n",
			st.Stage.ShortName(), status, st.InputCount, st.OutputCount, st.Duration, st.Stage.Description())
		if st.Error != "" {
			fmt.Printf("       %s\n", st.Error)
		}
	}
}

// PrintRunResult prints the stage table and run summary
func PrintRunResult(res *brain.RunResult) {
	if res == nil {
		return
	}
	PrintStages(res.Stages)
	PrintSeparator()
	fmt.Printf("  Run ID    : %s\n", res.RunID)
	fmt.Printf("  Mode      : %s\n", res.Mode)
	if res.RMSE > 0 {
		fmt.Printf("  RMSE      : %.4f\n", res.RMSE)
	}
	if res.Predictions > 0 {
		fmt.Printf("  Predicted : %d rows\n", res.Predictions)
	}
	if res.Artifact != "" {
		fmt.Printf("  Artifact  : %s\n", res.Artifact)
	}
	PrintDoubleSeparator()

	if res.Success {
		PrintSuccess(fmt.Sprintf("Run %s completed in %.2fs", res.RunID, res.Duration.Seconds()))
	} else {
		PrintWarning(fmt.Sprintf("Run %s failed: %s", res.RunID, res.Error))
	}
}

// PrintRun prints a stored run record
func PrintRun(run *checkpoint.Run) {
	fmt.Printf("  Run ID    : %s\n", run.ID)
	fmt.Printf("  Mode      : %s\n", run.Mode)
	fmt.Printf("  Status    : %s\n", run.Status)
	fmt.Printf("  Config    : %s (%.12s)\n", run.PipelineID, run.ConfigHash)
	fmt.Printf("  Started   : %s\n", run.StartedAt.Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Printf("  Duration  : %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.RMSE > 0 {
		fmt.Printf("  RMSE      : %.4f\n", run.RMSE)
	}
	if run.Predictions > 0 {
		fmt.Printf("  Predicted : %d rows\n", run.Predictions)
	}
	if run.Error != "" {
		fmt.Printf("  Error     : %s\n", run.Error)
	}
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Println()
	fmt.Printf("✅ %s\n", message)
	fmt.Println()
}
