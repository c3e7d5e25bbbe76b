package commands

import (
	"context"
	"fmt"

	"github.com/wonny/salescast/internal/api"
	"github.com/wonny/salescast/internal/brain"
	"github.com/wonny/salescast/internal/checkpoint"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/pipelineconfig"
	"github.com/wonny/salescast/pkg/config"
	"github.com/wonny/salescast/pkg/database"
	"github.com/wonny/salescast/pkg/logger"
	"github.com/wonny/salescast/pkg/redis"
)

// appDeps 커맨드 공통 의존성
type appDeps struct {
	cfg      *config.Config
	log      *logger.Logger
	pipeline *pipelineconfig.Config
	yaml     []byte
	files    *checkpoint.FileStore
	store    checkpoint.Store

	// nil when DATABASE_URL is unset
	db *database.DB
	// disabled client when REDIS_ENABLED=false
	redis *redis.Client
	// run progress sink, set by api --schedule
	events contracts.EventSink
}

// loadConfig reads env config and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dataDir != "" {
		cfg.Pipeline.DataDir = dataDir
	}
	if outputDir != "" {
		cfg.Pipeline.OutputDir = outputDir
	}
	if pipelinePath != "" {
		cfg.Pipeline.ConfigPath = pipelinePath
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// initDeps wires config, logger, checkpoint stores and optional backends
func initDeps(ctx context.Context) (*appDeps, error) {
	// 1. Load config
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Pipeline config
	pcfg, raw, err := pipelineconfig.LoadOrDefault(cfg.Pipeline.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load pipeline config: %w", err)
	}
	for _, w := range pipelineconfig.Warn(pcfg) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	// 4. File checkpoints
	files, err := checkpoint.NewFileStore(cfg.Pipeline.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("open output dir: %w", err)
	}

	d := &appDeps{
		cfg:      cfg,
		log:      log,
		pipeline: pcfg,
		yaml:     raw,
		files:    files,
		store:    files,
	}

	// 5. Optional PostgreSQL mirror
	if cfg.Database.Enabled() {
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		d.db = db
		d.store = checkpoint.Multi{files, checkpoint.NewPGStore(db.Pool, log.Zerolog())}
		log.Info("Connected to database")
	}

	// 6. Optional Redis
	rc, err := redis.New(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.redis = rc
	if rc.Enabled() {
		log.Info("Connected to redis")
	}

	return d, nil
}

// Close releases backend connections
func (d *appDeps) Close() {
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}

// orchestrator builds the pipeline orchestrator
func (d *appDeps) orchestrator() (*brain.Orchestrator, error) {
	deps := brain.Deps{
		Pipeline:     d.pipeline,
		PipelineYAML: d.yaml,
		DataDir:      d.cfg.Pipeline.DataDir,
		OutputDir:    d.cfg.Pipeline.OutputDir,
		Workers:      d.cfg.Pipeline.Workers,
		Files:        d.files,
		Store:        d.store,
		HeatTTL:      d.cfg.Redis.HeatTTL,
		Events:       d.events,
		Logger:       d.log,
	}
	if d.redis.Enabled() {
		deps.HeatCache = redis.NewHeatCache(d.redis, "salescast")
	}
	return brain.NewOrchestrator(deps)
}

// limiter picks the API rate limiter: Redis when enabled, in-process otherwise
func (d *appDeps) limiter() api.Limiter {
	if d.cfg.APIRateLimit == 0 {
		return nil
	}
	if d.redis.Enabled() {
		return api.NewRedisLimiter(redis.NewRateLimiter(d.redis, "salescast"), d.cfg.APIRateLimit)
	}
	return api.NewLocalLimiter(d.cfg.APIRateLimit)
}
