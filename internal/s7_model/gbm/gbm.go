// Package gbm implements gradient-boosted regression trees with squared-error loss.
// Features are pre-binned into quantile histograms; trees are grown depth-wise with
// per-tree row and column subsampling and optional early stopping on an eval set.
package gbm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// Kind model family name recorded in artifacts
const Kind = "gbm"

var ErrEmptyInput = errors.New("empty training input")

// Config boosting hyperparameters
type Config struct {
	NEstimators         int     `yaml:"n_estimators" json:"n_estimators"`
	LearningRate        float64 `yaml:"learning_rate" json:"learning_rate"`
	MaxDepth            int     `yaml:"max_depth" json:"max_depth"`
	Subsample           float64 `yaml:"subsample" json:"subsample"`
	ColsampleByTree     float64 `yaml:"colsample_bytree" json:"colsample_bytree"`
	EarlyStoppingRounds int     `yaml:"early_stopping_rounds" json:"early_stopping_rounds"`
	MinChildWeight      float64 `yaml:"min_child_weight" json:"min_child_weight"`
	Lambda              float64 `yaml:"lambda" json:"lambda"`
	MaxBins             int     `yaml:"max_bins" json:"max_bins"`
	Seed                int64   `yaml:"seed" json:"seed"`
}

// DefaultConfig n_estimators 1000, eta 0.1, depth 6, subsample/colsample 0.75, early stop 20
func DefaultConfig() Config {
	return Config{
		NEstimators:         1000,
		LearningRate:        0.1,
		MaxDepth:            6,
		Subsample:           0.75,
		ColsampleByTree:     0.75,
		EarlyStoppingRounds: 20,
		MinChildWeight:      1,
		Lambda:              1,
		MaxBins:             64,
		Seed:                42,
	}
}

// Node tree node; a leaf has Leaf=true and Value set
type Node struct {
	Feature   int     `json:"f,omitempty"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
	Leaf      bool    `json:"leaf,omitempty"`
}

// Tree flat node array, root at 0
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Model trained ensemble
type Model struct {
	BaseScore     float64 `json:"base_score"`
	Features      int     `json:"features"`
	BestIteration int     `json:"best_iteration"`
	BestScore     float64 `json:"best_score"`
	Trees         []Tree  `json:"trees"`
}

// Kind implements contracts.Model
func (m *Model) Kind() string {
	return Kind
}

// PredictRow scores one feature vector
func (m *Model) PredictRow(x []float64) float64 {
	out := m.BaseScore
	for i := range m.Trees {
		out += m.Trees[i].predict(x)
	}
	return out
}

// Regressor gradient boosting Predictor
type Regressor struct {
	cfg Config
	log zerolog.Logger
}

// New creates a regressor
func New(cfg Config, log zerolog.Logger) *Regressor {
	return &Regressor{
		cfg: cfg,
		log: log.With().Str("component", "gbm").Logger(),
	}
}

// Train fits the ensemble on all rows for NEstimators rounds
func (r *Regressor) Train(ctx context.Context, X [][]float64, y []float64) (contracts.Model, error) {
	return r.fit(ctx, X, y, nil, nil)
}

// TrainWithEval fits the ensemble and stops when eval RMSE has not improved for
// EarlyStoppingRounds rounds; the ensemble is truncated to the best round.
func (r *Regressor) TrainWithEval(ctx context.Context, X [][]float64, y []float64, evalX [][]float64, evalY []float64) (contracts.Model, error) {
	return r.fit(ctx, X, y, evalX, evalY)
}

// Predict scores every row
func (r *Regressor) Predict(ctx context.Context, m contracts.Model, X [][]float64) ([]float64, error) {
	model, ok := m.(*Model)
	if !ok {
		return nil, fmt.Errorf("gbm: unexpected model kind %q", m.Kind())
	}
	out := make([]float64, len(X))
	for i, x := range X {
		if i%50000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if len(x) != model.Features {
			return nil, fmt.Errorf("gbm: row %d has %d features, model expects %d", i, len(x), model.Features)
		}
		out[i] = model.PredictRow(x)
	}
	return out, nil
}

// Encode serializes a model
func (r *Regressor) Encode(m contracts.Model) ([]byte, error) {
	model, ok := m.(*Model)
	if !ok {
		return nil, fmt.Errorf("gbm: unexpected model kind %q", m.Kind())
	}
	return json.Marshal(model)
}

// Decode deserializes a model
func (r *Regressor) Decode(data []byte) (contracts.Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("gbm: decode model: %w", err)
	}
	return &m, nil
}

func (r *Regressor) fit(ctx context.Context, X [][]float64, y []float64, evalX [][]float64, evalY []float64) (*Model, error) {
	n := len(X)
	if n == 0 {
		return nil, ErrEmptyInput
	}
	if len(y) != n {
		return nil, fmt.Errorf("gbm: %d rows but %d targets", n, len(y))
	}
	if len(evalX) != len(evalY) {
		return nil, fmt.Errorf("gbm: %d eval rows but %d eval targets", len(evalX), len(evalY))
	}
	width := len(X[0])
	cfg := r.normalized()

	rng := rand.New(rand.NewSource(cfg.Seed))
	data := binFeatures(X, width, cfg.MaxBins)

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	model := &Model{BaseScore: base, Features: width, BestScore: math.Inf(1)}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	evalPred := make([]float64, len(evalX))
	for i := range evalPred {
		evalPred[i] = base
	}

	grad := make([]float64, n)
	sinceBest := 0
	for round := 0; round < cfg.NEstimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := range grad {
			grad[i] = pred[i] - y[i]
		}

		rows := sampleRows(rng, n, cfg.Subsample)
		cols := sampleCols(rng, width, cfg.ColsampleByTree)

		b := &builder{data: data, grad: grad, cfg: cfg, cols: cols}
		tree := b.build(rows)
		model.Trees = append(model.Trees, tree)

		for i, x := range X {
			pred[i] += tree.predict(x)
		}

		if len(evalX) == 0 {
			continue
		}

		for i, x := range evalX {
			evalPred[i] += tree.predict(x)
		}
		score := rmse(evalPred, evalY)
		if score < model.BestScore {
			model.BestScore = score
			model.BestIteration = round
			sinceBest = 0
		} else {
			sinceBest++
		}

		if round%50 == 0 {
			r.log.Debug().Int("round", round).Float64("eval_rmse", score).Msg("Boosting round")
		}

		if cfg.EarlyStoppingRounds > 0 && sinceBest >= cfg.EarlyStoppingRounds {
			r.log.Info().
				Int("round", round).
				Int("best_iteration", model.BestIteration).
				Float64("best_rmse", model.BestScore).
				Msg("Early stopping")
			break
		}
	}

	if len(evalX) > 0 {
		model.Trees = model.Trees[:model.BestIteration+1]
	} else {
		model.BestIteration = len(model.Trees) - 1
		model.BestScore = rmse(pred, y)
	}

	r.log.Info().
		Int("rows", n).
		Int("features", width).
		Int("trees", len(model.Trees)).
		Float64("best_rmse", model.BestScore).
		Msg("Trained gradient boosted trees")

	return model, nil
}

// normalized fills unset hyperparameters with defaults
func (r *Regressor) normalized() Config {
	cfg := r.cfg
	def := DefaultConfig()
	if cfg.NEstimators <= 0 {
		cfg.NEstimators = def.NEstimators
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = def.LearningRate
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.Subsample <= 0 || cfg.Subsample > 1 {
		cfg.Subsample = 1
	}
	if cfg.ColsampleByTree <= 0 || cfg.ColsampleByTree > 1 {
		cfg.ColsampleByTree = 1
	}
	if cfg.MaxBins < 2 || cfg.MaxBins > 256 {
		cfg.MaxBins = def.MaxBins
	}
	if cfg.Lambda < 0 {
		cfg.Lambda = 0
	}
	return cfg
}

// =============================================================================
// Feature binning
// =============================================================================

// binned column-major bin indexes plus split thresholds per feature
type binned struct {
	bins       [][]uint8   // [feature][row]
	thresholds [][]float64 // [feature] ascending; bin b covers (t[b-1], t[b]]
}

func binFeatures(X [][]float64, width, maxBins int) *binned {
	n := len(X)
	d := &binned{bins: make([][]uint8, width), thresholds: make([][]float64, width)}
	col := make([]float64, n)
	for j := 0; j < width; j++ {
		for i, x := range X {
			col[i] = x[j]
		}
		t := thresholdsFor(col, maxBins)
		d.thresholds[j] = t
		b := make([]uint8, n)
		for i, v := range col {
			b[i] = uint8(sort.SearchFloat64s(t, v))
		}
		d.bins[j] = b
	}
	return d
}

// thresholdsFor returns at most maxBins-1 ascending cut points
func thresholdsFor(col []float64, maxBins int) []float64 {
	sorted := append([]float64(nil), col...)
	sort.Float64s(sorted)

	distinct := sorted[:0:0]
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
		}
	}

	if len(distinct) <= maxBins {
		t := make([]float64, 0, len(distinct)-1)
		for i := 1; i < len(distinct); i++ {
			t = append(t, (distinct[i-1]+distinct[i])/2)
		}
		return t
	}

	t := make([]float64, 0, maxBins-1)
	for b := 1; b < maxBins; b++ {
		v := sorted[b*len(sorted)/maxBins]
		if len(t) == 0 || v > t[len(t)-1] {
			t = append(t, v)
		}
	}
	return t
}

// =============================================================================
// Tree building
// =============================================================================

type builder struct {
	data *binned
	grad []float64
	cfg  Config
	cols []int
	tree Tree
}

type split struct {
	feature int
	bin     int
	gain    float64
}

func (b *builder) build(rows []int) Tree {
	b.tree = Tree{}
	b.grow(rows, 0)
	return b.tree
}

// grow appends the subtree of rows and returns its node index
func (b *builder) grow(rows []int, depth int) int {
	g, h := 0.0, float64(len(rows))
	for _, i := range rows {
		g += b.grad[i]
	}

	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{})

	best, ok := b.bestSplit(rows, g, h)
	if depth >= b.cfg.MaxDepth || !ok {
		b.tree.Nodes[idx] = Node{Leaf: true, Value: -g / (h + b.cfg.Lambda) * b.cfg.LearningRate}
		return idx
	}

	fb := b.data.bins[best.feature]
	left := make([]int, 0, len(rows))
	right := make([]int, 0, len(rows))
	for _, i := range rows {
		if int(fb[i]) <= best.bin {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.Nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: b.data.thresholds[best.feature][best.bin],
		Left:      l,
		Right:     r,
	}
	return idx
}

func (b *builder) bestSplit(rows []int, g, h float64) (split, bool) {
	lambda := b.cfg.Lambda
	parent := g * g / (h + lambda)

	best := split{gain: 0}
	found := false
	for _, j := range b.cols {
		t := b.data.thresholds[j]
		if len(t) == 0 {
			continue
		}
		nb := len(t) + 1
		gs := make([]float64, nb)
		hs := make([]float64, nb)
		fb := b.data.bins[j]
		for _, i := range rows {
			gs[fb[i]] += b.grad[i]
			hs[fb[i]]++
		}

		gl, hl := 0.0, 0.0
		for bin := 0; bin < nb-1; bin++ {
			gl += gs[bin]
			hl += hs[bin]
			hr := h - hl
			if hl < b.cfg.MinChildWeight || hr < b.cfg.MinChildWeight {
				continue
			}
			gr := g - gl
			gain := gl*gl/(hl+lambda) + gr*gr/(hr+lambda) - parent
			if gain > best.gain {
				best = split{feature: j, bin: bin, gain: gain}
				found = true
			}
		}
	}
	return best, found
}

// =============================================================================
// Sampling / metrics
// =============================================================================

func sampleRows(rng *rand.Rand, n int, ratio float64) []int {
	if ratio >= 1 {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, 0, int(float64(n)*ratio)+1)
	for i := 0; i < n; i++ {
		if rng.Float64() < ratio {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		rows = append(rows, rng.Intn(n))
	}
	return rows
}

func sampleCols(rng *rand.Rand, width int, ratio float64) []int {
	k := int(math.Ceil(float64(width) * ratio))
	if k < 1 {
		k = 1
	}
	perm := rng.Perm(width)[:k]
	sort.Ints(perm)
	return perm
}

func rmse(pred, y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	ss := 0.0
	for i := range y {
		d := pred[i] - y[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(y)))
}
