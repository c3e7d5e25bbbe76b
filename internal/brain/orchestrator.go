package brain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/salescast/internal/checkpoint"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/pipelineconfig"
	"github.com/wonny/salescast/internal/s7_model"
	"github.com/wonny/salescast/internal/s7_model/gbm"
	"github.com/wonny/salescast/pkg/logger"
)

// Run modes
const (
	ModeAggregate = "aggregate"
	ModeStats     = "stats"
	ModeHeat      = "heat"
	ModeTrain     = "train"
	ModeInfer     = "infer"
	ModeRun       = "run"
)

// Deps 오케스트레이터 의존성
type Deps struct {
	Pipeline     *pipelineconfig.Config
	PipelineYAML []byte

	DataDir   string
	OutputDir string
	Workers   int

	Files     *checkpoint.FileStore // latest checkpoints, read back by infer
	Store     checkpoint.Store      // every write goes here (Files and/or PostgreSQL)
	HeatCache contracts.HeatCache   // optional
	HeatTTL   time.Duration
	Events    contracts.EventSink // optional

	Logger *logger.Logger
}

// Orchestrator coordinates the S0 → S7 forecasting pipeline
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	cfg   *pipelineconfig.Config
	yaml  []byte
	deps  Deps
	model *gbm.Regressor

	logger *logger.Logger
}

// RunResult holds the results of a pipeline run
type RunResult struct {
	RunID       string                     `json:"run_id"`
	Mode        string                     `json:"mode"`
	Success     bool                       `json:"success"`
	Error       string                     `json:"error,omitempty"`
	Stages      []contracts.PipelineResult `json:"stages"`
	RMSE        float64                    `json:"rmse,omitempty"`
	Predictions int                        `json:"predictions,omitempty"`
	Artifact    string                     `json:"artifact,omitempty"`
	Duration    time.Duration              `json:"duration"`
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline config is required")
	}
	if deps.Files == nil {
		return nil, fmt.Errorf("file checkpoint store is required")
	}
	if deps.Store == nil {
		deps.Store = deps.Files
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Workers < 1 {
		deps.Workers = 1
	}

	return &Orchestrator{
		cfg:    deps.Pipeline,
		yaml:   deps.PipelineYAML,
		deps:   deps,
		model:  gbm.New(deps.Pipeline.Model.GBM, deps.Logger.Zerolog()),
		logger: deps.Logger,
	}, nil
}

// ArtifactPath returns the model artifact location
func (o *Orchestrator) ArtifactPath() string {
	return filepath.Join(o.deps.OutputDir, s7_model.ArtifactFile)
}

// Aggregate runs S0 → S1 and checkpoints the monthly aggregates
func (o *Orchestrator) Aggregate(ctx context.Context) (*RunResult, error) {
	return o.execute(ctx, ModeAggregate, func(r *run) error {
		ds, err := r.loadDataset(ctx)
		if err != nil {
			return err
		}
		r.deferWrite(func(ctx context.Context) error {
			return o.deps.Store.SaveAggregates(ctx, r.id, ds.aggregates)
		})
		return nil
	})
}

// Stats runs S0 → S2 and returns the extractor report tables
func (o *Orchestrator) Stats(ctx context.Context) ([]*contracts.StatTable, error) {
	var tables []*contracts.StatTable
	_, err := o.execute(ctx, ModeStats, func(r *run) error {
		ds, err := r.loadDataset(ctx)
		if err != nil {
			return err
		}
		tables, err = r.report(ctx, ds)
		return err
	})
	return tables, err
}

// Heat runs S0 → S3 and checkpoints aggregates and heat tables
func (o *Orchestrator) Heat(ctx context.Context) (*RunResult, error) {
	return o.execute(ctx, ModeHeat, func(r *run) error {
		ds, err := r.loadDataset(ctx)
		if err != nil {
			return err
		}
		heat, err := r.heat(ctx, ds)
		if err != nil {
			return err
		}
		return r.saveCheckpoints(ctx, ds, heat)
	})
}

// Train runs S0 → S7 training and saves the model artifact with its checkpoints
func (o *Orchestrator) Train(ctx context.Context) (*RunResult, error) {
	return o.execute(ctx, ModeTrain, func(r *run) error {
		_, _, err := r.train(ctx)
		return err
	})
}

// Infer predicts the requests of test.csv with the saved model artifact
func (o *Orchestrator) Infer(ctx context.Context) (*RunResult, error) {
	return o.execute(ctx, ModeInfer, func(r *run) error {
		art, err := s7_model.LoadArtifact(o.ArtifactPath())
		if err != nil {
			return err
		}
		history, err := r.loadHistory(ctx)
		if err != nil {
			return err
		}
		return r.infer(ctx, art, history)
	})
}

// Run trains and predicts in one run
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	return o.execute(ctx, ModeRun, func(r *run) error {
		art, history, err := r.train(ctx)
		if err != nil {
			return err
		}
		return r.infer(ctx, art, history)
	})
}

// execute wraps a flow with a run record, logging and metrics
func (o *Orchestrator) execute(ctx context.Context, mode string, flow func(r *run) error) (*RunResult, error) {
	start := time.Now()
	id := uuid.NewString()
	log := o.logger.WithRun(id)

	snap, err := pipelineconfig.NewRunSnapshot(o.cfg, o.yaml, id, mode)
	if err != nil {
		return nil, fmt.Errorf("run snapshot: %w", err)
	}
	record := checkpoint.NewRun(snap)
	if err := o.deps.Store.SaveRun(ctx, record); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"mode":        mode,
		"pipeline_id": snap.PipelineID,
		"config_hash": snap.ConfigHash,
	}).Info("Starting pipeline run")

	r := &run{
		o:      o,
		id:     id,
		log:    log,
		result: &RunResult{RunID: id, Mode: mode},
	}
	flowErr := flow(r)
	if flowErr == nil {
		flowErr = r.commit(ctx)
	}

	r.result.Duration = time.Since(start)
	r.result.Success = flowErr == nil
	record.RMSE = r.result.RMSE
	record.Predictions = r.result.Predictions
	record.Finish(flowErr)
	metrics.RecordRun(mode, flowErr)
	r.publish(contracts.RunEvent{Kind: contracts.EventRun, Status: record.Status, Error: record.Error})

	// 실패 기록은 원래 에러를 가리지 않도록 별도 컨텍스트로 저장
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.deps.Store.SaveRun(saveCtx, record); err != nil {
		flowErr = errors.Join(flowErr, err)
	}

	if flowErr != nil {
		r.result.Error = flowErr.Error()
		log.WithError(flowErr).WithField("mode", mode).Error("Pipeline run failed")
		return r.result, flowErr
	}

	log.WithFields(map[string]interface{}{
		"mode":     mode,
		"duration": r.result.Duration.Seconds(),
		"stages":   len(r.result.Stages),
	}).Info("Pipeline run completed successfully")

	return r.result, nil
}
