package contracts

import "time"

// Event kinds
const (
	EventStage = "stage"
	EventRun   = "run"
)

// RunEvent 실행 진행 이벤트 (stage 완료 또는 run 종료)
type RunEvent struct {
	RunID  string          `json:"run_id"`
	Mode   string          `json:"mode"`
	Kind   string          `json:"kind"`
	Stage  *PipelineResult `json:"stage,omitempty"`
	Status string          `json:"status,omitempty"` // run events only
	Error  string          `json:"error,omitempty"`
	Time   time.Time       `json:"time"`
}
