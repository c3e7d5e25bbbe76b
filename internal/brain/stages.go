package brain

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/wonny/salescast/internal/checkpoint"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/internal/pipelineconfig"
	"github.com/wonny/salescast/internal/s0_data"
	"github.com/wonny/salescast/internal/s1_catalog"
	"github.com/wonny/salescast/internal/s2_stats"
	"github.com/wonny/salescast/internal/s3_heat"
	"github.com/wonny/salescast/internal/s4_clean"
	"github.com/wonny/salescast/internal/s5_normalize"
	"github.com/wonny/salescast/internal/s6_timeseries"
	"github.com/wonny/salescast/internal/s7_model"
	"github.com/wonny/salescast/pkg/logger"
	"github.com/wonny/salescast/pkg/redis"
)

// run 한 번의 실행 상태
type run struct {
	o       *Orchestrator
	id      string
	log     *logger.Logger
	result  *RunResult
	pending []func(ctx context.Context) error
}

// dataset S0 → S1 출력
type dataset struct {
	catalog     *contracts.Catalog
	domain      *contracts.Domain
	aggregates  []contracts.MonthlyAggregate
	rows        []contracts.CategorizedSales
	fingerprint string
}

// heatTables S3 출력
type heatTables struct {
	shopCategory *contracts.HeatTable
	item         *contracts.HeatTable
	category     *contracts.HeatTable
}

// history 추론용 과거 데이터 (체크포인트 또는 재계산)
type history struct {
	catalog *contracts.Catalog
	rows    []contracts.CategorizedSales
	heat    *heatTables
}

// stage runs one pipeline stage with logging, timing and metrics.
// fn returns the output row count.
func (r *run) stage(s contracts.Stage, in int, fn func() (int, error)) error {
	r.log.WithStage(s).Infof("Running %s: %s", s.ShortName(), s.Description())

	start := time.Now()
	out, err := fn()
	d := time.Since(start)

	res := contracts.PipelineResult{
		Stage:       s,
		Success:     err == nil,
		InputCount:  in,
		OutputCount: out,
		Duration:    d.Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}
	r.result.Stages = append(r.result.Stages, res)
	r.publish(contracts.RunEvent{Kind: contracts.EventStage, Stage: &res})
	if err != nil {
		return fmt.Errorf("%s failed: %w", s.ShortName(), err)
	}
	metrics.ObserveStage(s, d, in, out)
	return nil
}

func (r *run) publish(ev contracts.RunEvent) {
	if r.o.deps.Events == nil {
		return
	}
	ev.RunID = r.id
	ev.Mode = r.result.Mode
	ev.Time = time.Now()
	r.o.deps.Events.Publish(ev)
}

// deferWrite schedules a write that only happens once the whole run succeeded
func (r *run) deferWrite(fn func(ctx context.Context) error) {
	r.pending = append(r.pending, fn)
}

func (r *run) commit(ctx context.Context) error {
	for _, fn := range r.pending {
		if err := fn(ctx); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	return nil
}

// loadDataset S0 → S1: raw log → monthly aggregates → categorized rows
func (r *run) loadDataset(ctx context.Context) (*dataset, error) {
	ds := &dataset{}
	dir := r.o.deps.DataDir

	var sales []contracts.RawSale
	err := r.stage(contracts.StageAggregate, 0, func() (int, error) {
		var err error
		if sales, err = s0_data.LoadSales(filepath.Join(dir, s0_data.SalesFile)); err != nil {
			return 0, err
		}
		if ds.aggregates, err = s0_data.NewAggregator(r.log.Zerolog()).Aggregate(sales); err != nil {
			return 0, err
		}
		return len(ds.aggregates), nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(contracts.StageCatalog, len(ds.aggregates), func() (int, error) {
		items, err := s0_data.LoadItems(filepath.Join(dir, s0_data.ItemsFile))
		if err != nil {
			return 0, err
		}
		ds.catalog = contracts.NewCatalog(items)
		if ds.domain, err = s1_catalog.DeriveDomain(ds.catalog, sales); err != nil {
			return 0, err
		}
		if ds.rows, err = s1_catalog.JoinCategory(ds.aggregates, ds.catalog); err != nil {
			return 0, err
		}
		ds.fingerprint = fingerprint(ds.rows)
		return len(ds.rows), nil
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}

// report S2: descriptive statistics over every report grouping
func (r *run) report(ctx context.Context, ds *dataset) ([]*contracts.StatTable, error) {
	var tables []*contracts.StatTable
	err := r.stage(contracts.StageStatistics, len(ds.rows), func() (int, error) {
		var err error
		tables, err = s2_stats.NewExtractor(ds.domain, r.log.Zerolog()).Report(ctx, ds.rows)
		if err != nil {
			return 0, err
		}
		n := 0
		for _, t := range tables {
			n += t.Len()
		}
		return n, nil
	})
	return tables, err
}

// heat S2 → S3: zero-patched totals → heat labels
func (r *run) heat(ctx context.Context, ds *dataset) (*heatTables, error) {
	cfg := r.o.cfg.Heat

	var totals [3]*contracts.StatTable
	err := r.stage(contracts.StageStatistics, len(ds.rows), func() (int, error) {
		ex := s2_stats.NewExtractor(ds.domain, r.log.Zerolog())
		var err error
		if totals[0], err = ex.ShopCategoryMonthTotals(ctx, ds.rows); err != nil {
			return 0, err
		}
		if totals[1], err = ex.ItemMonthTotals(ctx, ds.rows); err != nil {
			return 0, err
		}
		if totals[2], err = ex.CategoryMonthTotals(ctx, ds.rows); err != nil {
			return 0, err
		}
		return totals[0].Len() + totals[1].Len() + totals[2].Len(), nil
	})
	if err != nil {
		return nil, err
	}

	specs := []struct {
		slice []contracts.Dimension
		k     int
	}{
		{[]contracts.Dimension{contracts.DimMonth, contracts.DimShop}, cfg.ShopCategoryClusters},
		{[]contracts.Dimension{contracts.DimMonth}, cfg.ItemClusters},
		{[]contracts.Dimension{contracts.DimMonth}, cfg.CategoryClusters},
	}

	var out [3]*contracts.HeatTable
	err = r.stage(contracts.StageHeat, totals[0].Len()+totals[1].Len()+totals[2].Len(), func() (int, error) {
		cl := s3_heat.NewClusterer(r.o.deps.Workers, r.log.Zerolog())
		n := 0
		for i, spec := range specs {
			t, err := r.clusterCached(ctx, cl, ds.fingerprint, totals[i], spec.slice, spec.k)
			if err != nil {
				return 0, err
			}
			out[i] = t
			n += t.Len()
		}
		return n, nil
	})
	if err != nil {
		return nil, err
	}

	return &heatTables{shopCategory: out[0], item: out[1], category: out[2]}, nil
}

// clusterCached looks the heat table up in the cache before clustering.
// Cache failures only degrade to a recompute.
func (r *run) clusterCached(
	ctx context.Context,
	cl *s3_heat.Clusterer,
	dataHash string,
	table *contracts.StatTable,
	slice []contracts.Dimension,
	k int,
) (*contracts.HeatTable, error) {
	cache := r.o.deps.HeatCache
	key := redis.HeatKey(dataHash, table.Name, k)

	if cache != nil {
		cached, ok, err := cache.GetHeat(ctx, key)
		if err != nil {
			r.log.WithError(err).WithField("table", table.Name).Warn("Heat cache lookup failed")
		}
		metrics.HeatCacheLookup(ok)
		if ok && cached.Len() == table.Len() {
			return cached, nil
		}
	}

	t, err := cl.ClusterHeat(ctx, table, slice, k)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.SetHeat(ctx, key, t, r.o.deps.HeatTTL); err != nil {
			r.log.WithError(err).WithField("table", table.Name).Warn("Heat cache store failed")
		}
	}
	return t, nil
}

// saveCheckpoints schedules the aggregate and heat checkpoints of the run
func (r *run) saveCheckpoints(_ context.Context, ds *dataset, heat *heatTables) error {
	store := r.o.deps.Store
	r.deferWrite(func(ctx context.Context) error {
		if err := store.SaveAggregates(ctx, r.id, ds.aggregates); err != nil {
			return err
		}
		for _, t := range []*contracts.HeatTable{heat.shopCategory, heat.item, heat.category} {
			if err := store.SaveHeat(ctx, r.id, t); err != nil {
				return err
			}
		}
		return nil
	})
	return nil
}

// features S3 → S4: heat join then outlier removal
func (r *run) features(rows []contracts.CategorizedSales, heat *heatTables) (*contracts.FeatureTable, error) {
	var cleaned *contracts.FeatureTable
	err := r.stage(contracts.StageClean, len(rows), func() (int, error) {
		base, err := s3_heat.Attach(rows, heat.shopCategory, heat.item, heat.category)
		if err != nil {
			return 0, err
		}
		cfg := r.o.cfg.Outliers
		cleaner := s4_clean.NewCleaner(s4_clean.Config{
			MaxTotalSales: cfg.MaxTotalSales,
			MaxAvgPrice:   cfg.MaxAvgPrice,
		}, r.log.Zerolog())
		cleaned, _, err = cleaner.RemoveOutliers(base)
		if err != nil {
			return 0, err
		}
		return cleaned.Len(), nil
	})
	return cleaned, err
}

// train S0 → S7: fits the model and schedules the artifact and checkpoints.
// Returns the artifact and the history inference needs.
func (r *run) train(ctx context.Context) (*s7_model.Artifact, *history, error) {
	cfg := r.o.cfg

	ds, err := r.loadDataset(ctx)
	if err != nil {
		return nil, nil, err
	}
	heat, err := r.heat(ctx, ds)
	if err != nil {
		return nil, nil, err
	}
	cleaned, err := r.features(ds.rows, heat)
	if err != nil {
		return nil, nil, err
	}

	encoded, scaler, policy, err := r.encode(cleaned)
	if err != nil {
		return nil, nil, err
	}

	var target *s7_model.TargetTransform
	if cfg.Normalize.NormalizeTarget {
		target = s7_model.TargetFromScaler(scaler, cfg.Model.Target)
	}

	var art *s7_model.Artifact
	err = r.stage(contracts.StageModel, encoded.Len(), func() (int, error) {
		d, err := s7_model.BuildDesign(encoded, cfg.Model.Target)
		if err != nil {
			return 0, err
		}
		trainer := s7_model.NewTrainer(r.o.model, s7_model.TrainerConfig{
			TestRatio: cfg.Model.TestRatio,
			Seed:      cfg.Model.Seed,
			Target:    target,
		}, r.log.Zerolog())
		res, err := trainer.Train(ctx, d)
		if err != nil {
			return 0, err
		}

		if art, err = s7_model.NewArtifact(r.o.model, res, cfg.TimeSeries.LagDepth, policy, scaler, target); err != nil {
			return 0, err
		}
		art.RunID = r.id
		if art.ConfigHash, err = pipelineconfig.Hash(cfg); err != nil {
			return 0, err
		}
		r.result.RMSE = res.RMSE
		return res.TrainRows + res.TestRows, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := r.saveCheckpoints(ctx, ds, heat); err != nil {
		return nil, nil, err
	}
	path := r.o.ArtifactPath()
	r.deferWrite(func(context.Context) error {
		return s7_model.SaveArtifact(path, art)
	})
	r.result.Artifact = path

	return art, &history{catalog: ds.catalog, rows: ds.rows, heat: heat}, nil
}

// encode S5 → S6: fits the scaler on the cleaned table and builds the lag features
func (r *run) encode(cleaned *contracts.FeatureTable) (*contracts.EncodedTable, *s5_normalize.Scaler, s6_timeseries.LagPolicy, error) {
	cfg := r.o.cfg
	policy := s6_timeseries.LagPolicy{Anchors: cfg.TimeSeries.Anchors, Reduced: cfg.TimeSeries.Reduced}

	var normalized *contracts.FeatureTable
	var scaler *s5_normalize.Scaler
	err := r.stage(contracts.StageNormalize, cleaned.Len(), func() (int, error) {
		var err error
		normalized, scaler, err = s5_normalize.NormalizeColumns(cleaned, cfg.NormalizedColumns())
		if err != nil {
			return 0, err
		}
		return normalized.Len(), nil
	})
	if err != nil {
		return nil, nil, policy, err
	}

	var encoded *contracts.EncodedTable
	err = r.stage(contracts.StageTimeSeries, normalized.Len(), func() (int, error) {
		var err error
		encoded, err = s6_timeseries.NewEncoder(policy, r.log.Zerolog()).
			Encode(normalized, cfg.TimeSeries.LagDepth, cfg.TimeSeries.BaseMonth)
		if err != nil {
			return 0, err
		}
		return encoded.Len(), nil
	})
	return encoded, scaler, policy, err
}

// loadHistory restores the training history from the file checkpoints,
// recomputing S0 → S3 when none exist
func (r *run) loadHistory(ctx context.Context) (*history, error) {
	files := r.o.deps.Files

	aggregates, err := files.LoadAggregates(ctx)
	if errors.Is(err, checkpoint.ErrNotFound) {
		r.log.Warn("No checkpoints found, recomputing history")
		ds, err := r.loadDataset(ctx)
		if err != nil {
			return nil, err
		}
		heat, err := r.heat(ctx, ds)
		if err != nil {
			return nil, err
		}
		return &history{catalog: ds.catalog, rows: ds.rows, heat: heat}, nil
	}
	if err != nil {
		return nil, err
	}

	h := &history{heat: &heatTables{}}
	err = r.stage(contracts.StageCatalog, len(aggregates), func() (int, error) {
		items, err := s0_data.LoadItems(filepath.Join(r.o.deps.DataDir, s0_data.ItemsFile))
		if err != nil {
			return 0, err
		}
		h.catalog = contracts.NewCatalog(items)
		if h.rows, err = s1_catalog.JoinCategory(aggregates, h.catalog); err != nil {
			return 0, err
		}
		return len(h.rows), nil
	})
	if err != nil {
		return nil, err
	}

	for _, t := range []struct {
		name string
		dst  **contracts.HeatTable
	}{
		{s2_stats.ShopCategoryTableName, &h.heat.shopCategory},
		{s2_stats.ItemTableName, &h.heat.item},
		{s2_stats.CategoryTableName, &h.heat.category},
	} {
		if *t.dst, err = files.LoadHeat(ctx, t.name); err != nil {
			return nil, fmt.Errorf("load heat checkpoint: %w", err)
		}
	}

	r.log.WithFields(map[string]interface{}{
		"rows": len(h.rows),
		"dir":  files.Dir(),
	}).Info("Loaded history from checkpoints")

	return h, nil
}

// infer S4 → S7 over the history, then schedules the predictions
func (r *run) infer(ctx context.Context, art *s7_model.Artifact, h *history) error {
	cfg := r.o.cfg

	model, err := art.DecodeModel(r.o.model)
	if err != nil {
		return err
	}

	reqs, err := s0_data.LoadRequests(filepath.Join(r.o.deps.DataDir, s0_data.RequestsFile))
	if err != nil {
		return err
	}
	if reqs, err = s1_catalog.JoinRequests(reqs, h.catalog); err != nil {
		return err
	}

	cleaned, err := r.features(h.rows, h.heat)
	if err != nil {
		return err
	}

	hist := cleaned
	if art.Scaler != nil {
		err = r.stage(contracts.StageNormalize, cleaned.Len(), func() (int, error) {
			var err error
			hist, err = s5_normalize.ApplyColumns(cleaned, art.Scaler)
			if err != nil {
				return 0, err
			}
			return hist.Len(), nil
		})
		if err != nil {
			return err
		}
	}

	var table *s6_timeseries.InferenceTable
	err = r.stage(contracts.StageTimeSeries, len(reqs), func() (int, error) {
		var err error
		table, err = s6_timeseries.NewEncoder(art.Policy, r.log.Zerolog()).
			EncodeInference(reqs, hist, cfg.Inference.TargetMonth, art.LagDepth)
		if err != nil {
			return 0, err
		}
		return table.Len(), nil
	})
	if err != nil {
		return err
	}

	var preds []contracts.Prediction
	err = r.stage(contracts.StageModel, table.Len(), func() (int, error) {
		out, err := s7_model.NewInferencer(r.o.model, r.log.Zerolog()).
			Predict(ctx, model, art.Features, table, art.Target)
		if err != nil {
			return 0, err
		}
		preds = s7_model.Round(out)
		return len(preds), nil
	})
	if err != nil {
		return err
	}

	r.result.Predictions = len(preds)
	store := r.o.deps.Store
	r.deferWrite(func(ctx context.Context) error {
		return store.SavePredictions(ctx, r.id, preds)
	})
	return nil
}
