package checkpoint

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/s0_data"
)

// File names inside OUTPUT_DIR
const (
	SubmissionFile = "submission.csv"
	runsDir        = "runs"
	predictionsDir = "predictions"
)

// Heat checkpoint value columns
const (
	heatSumColumn  = "total_sales_sum"
	heatMeanColumn = "total_sales_mean"
	heatColumn     = "heat"
)

// FileStore CSV 디렉터리 체크포인트
// Aggregates and heat tables keep the latest run only; predictions and run
// records are kept per run.
type FileStore struct {
	dir string

	mu    sync.Mutex
	cache map[string][]contracts.Prediction // runID → predictions
}

// NewFileStore creates a store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	for _, d := range []string{dir, filepath.Join(dir, runsDir), filepath.Join(dir, predictionsDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	return &FileStore{dir: dir, cache: make(map[string][]contracts.Prediction)}, nil
}

// Dir returns the root directory
func (s *FileStore) Dir() string {
	return s.dir
}

// SaveAggregates writes train_monthly_sales.csv
func (s *FileStore) SaveAggregates(_ context.Context, _ string, rows []contracts.MonthlyAggregate) error {
	return s.writeAtomic(s0_data.AggregatesFile, func(w io.Writer) error {
		return s0_data.WriteAggregates(w, rows)
	})
}

// LoadAggregates reads the aggregate checkpoint
func (s *FileStore) LoadAggregates(_ context.Context) ([]contracts.MonthlyAggregate, error) {
	f, err := s.open(s0_data.AggregatesFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s0_data.ReadAggregates(f, f.Name())
}

// SaveHeat writes <table name>.csv
func (s *FileStore) SaveHeat(_ context.Context, _ string, table *contracts.HeatTable) error {
	return s.writeAtomic(table.Name+".csv", func(w io.Writer) error {
		return WriteHeat(w, table)
	})
}

// LoadHeat reads a heat checkpoint by table name
func (s *FileStore) LoadHeat(_ context.Context, name string) (*contracts.HeatTable, error) {
	f, err := s.open(name + ".csv")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadHeat(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}
	t.Name = name
	return t, nil
}

// SavePredictions writes submission.csv (ID,item_cnt_month) and the full per-run predictions
func (s *FileStore) SavePredictions(_ context.Context, runID string, preds []contracts.Prediction) error {
	err := s.writeAtomic(filepath.Join(predictionsDir, runID+".csv"), func(w io.Writer) error {
		return writePredictions(w, preds, true)
	})
	if err != nil {
		return err
	}
	if err := s.writeAtomic(SubmissionFile, func(w io.Writer) error {
		return writePredictions(w, preds, false)
	}); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache[runID] = sortedByID(preds)
	s.mu.Unlock()
	return nil
}

// SaveRun writes runs/<id>.json
func (s *FileStore) SaveRun(_ context.Context, run *Run) error {
	return s.writeAtomic(filepath.Join(runsDir, run.ID+".json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	})
}

// LatestRun scans the run records
func (s *FileStore) LatestRun(_ context.Context, withPredictions bool) (*Run, error) {
	runs, err := s.listRuns()
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		if withPredictions && (r.Status != RunSucceeded || r.Predictions == 0) {
			continue
		}
		return r, nil
	}
	return nil, ErrNotFound
}

// PruneRuns keeps the newest keep run records and deletes the others with their predictions
func (s *FileStore) PruneRuns(_ context.Context, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("prune runs: keep must be >= 1, got %d", keep)
	}
	runs, err := s.listRuns()
	if err != nil {
		return 0, err
	}
	if len(runs) <= keep {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, r := range runs[keep:] {
		err := os.Remove(filepath.Join(s.dir, predictionsDir, r.ID+".csv"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove predictions of %s: %w", r.ID, err)
		}
		if err := os.Remove(filepath.Join(s.dir, runsDir, r.ID+".json")); err != nil {
			return removed, fmt.Errorf("remove run %s: %w", r.ID, err)
		}
		delete(s.cache, r.ID)
		removed++
	}
	return removed, nil
}

// listRuns returns every run record, newest first
func (s *FileStore) listRuns() ([]*Run, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, runsDir))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	runs := make([]*Run, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, runsDir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read run: %w", err)
		}
		var r Run
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("parse run %s: %w", e.Name(), err)
		}
		runs = append(runs, &r)
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// Prediction looks up one prediction by request ID
func (s *FileStore) Prediction(_ context.Context, runID string, id int) (*contracts.Prediction, error) {
	preds, err := s.predictions(runID)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(preds), func(i int) bool { return preds[i].ID >= id })
	if i < len(preds) && preds[i].ID == id {
		p := preds[i]
		return &p, nil
	}
	return nil, ErrNotFound
}

// FindPredictions filters the predictions of a run
func (s *FileStore) FindPredictions(_ context.Context, runID string, f PredictionFilter) ([]contracts.Prediction, error) {
	preds, err := s.predictions(runID)
	if err != nil {
		return nil, err
	}
	var out []contracts.Prediction
	for _, p := range preds {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// predictions returns the run's predictions sorted by ID
func (s *FileStore) predictions(runID string) ([]contracts.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if preds, ok := s.cache[runID]; ok {
		return preds, nil
	}

	f, err := s.open(filepath.Join(predictionsDir, runID+".csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	preds, err := readPredictions(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name(), err)
	}

	sorted := sortedByID(preds)
	s.cache[runID] = sorted
	return sorted, nil
}

func sortedByID(preds []contracts.Prediction) []contracts.Prediction {
	out := append([]contracts.Prediction(nil), preds...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *FileStore) open(name string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// writeAtomic writes through a temp file and renames, so readers never see a partial file
func (s *FileStore) writeAtomic(name string, write func(io.Writer) error) error {
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// WriteHeat writes a heat table as CSV: key columns, sum, mean, heat
func WriteHeat(w io.Writer, t *contracts.HeatTable) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, len(t.Keys)+3)
	for _, d := range t.Keys {
		header = append(header, d.String())
	}
	header = append(header, heatSumColumn, heatMeanColumn, heatColumn)
	if err := cw.Write(header); err != nil {
		return err
	}

	rec := make([]string, len(header))
	for _, r := range t.Rows {
		for i, d := range t.Keys {
			rec[i] = strconv.Itoa(r.Key.Get(d))
		}
		n := len(t.Keys)
		rec[n] = strconv.FormatFloat(r.Sum, 'g', -1, 64)
		rec[n+1] = strconv.FormatFloat(r.Mean, 'g', -1, 64)
		rec[n+2] = strconv.Itoa(r.Heat)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHeat parses a table written by WriteHeat. Keys come from the header;
// Name, Slice and Clusters are left to the caller.
func ReadHeat(r io.Reader) (*contracts.HeatTable, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	n := len(header) - 3
	if n < 1 || header[n] != heatSumColumn || header[n+1] != heatMeanColumn || header[n+2] != heatColumn {
		return nil, &contracts.MissingColumnError{Stage: contracts.StageHeat, Column: heatColumn}
	}

	t := &contracts.HeatTable{Keys: make([]contracts.Dimension, n)}
	for i := 0; i < n; i++ {
		if t.Keys[i], err = contracts.ParseDimension(header[i]); err != nil {
			return nil, err
		}
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		row := contracts.HeatLabel{Key: contracts.NewStatKey()}
		for i, d := range t.Keys {
			v, err := strconv.Atoi(rec[i])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			row.Key = row.Key.With(d, v)
		}
		if row.Sum, err = strconv.ParseFloat(rec[n], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if row.Mean, err = strconv.ParseFloat(rec[n+1], 64); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if row.Heat, err = strconv.Atoi(rec[n+2]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func writePredictions(w io.Writer, preds []contracts.Prediction, full bool) error {
	cw := csv.NewWriter(w)
	header := []string{"ID", "item_cnt_month"}
	if full {
		header = []string{"ID", "shop_id", "item_id", "item_cnt_month"}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range preds {
		cnt := strconv.FormatFloat(p.ItemCntMonth, 'g', -1, 64)
		rec := []string{strconv.Itoa(p.ID), cnt}
		if full {
			rec = []string{strconv.Itoa(p.ID), strconv.Itoa(p.ShopID), strconv.Itoa(p.ItemID), cnt}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readPredictions(r io.Reader) ([]contracts.Prediction, error) {
	cr := csv.NewReader(r)
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var out []contracts.Prediction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) != 4 {
			return nil, fmt.Errorf("expected 4 columns, got %d", len(rec))
		}

		var p contracts.Prediction
		if p.ID, err = strconv.Atoi(rec[0]); err != nil {
			return nil, err
		}
		if p.ShopID, err = strconv.Atoi(rec[1]); err != nil {
			return nil, err
		}
		if p.ItemID, err = strconv.Atoi(rec[2]); err != nil {
			return nil, err
		}
		if p.ItemCntMonth, err = strconv.ParseFloat(rec[3], 64); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
