package s6_timeseries

import (
	"fmt"

	"github.com/wonny/salescast/internal/contracts"
)

// Schema lag별 컬럼 보존 스키마
type Schema string

const (
	SchemaFull    Schema = "full"
	SchemaReduced Schema = "reduced"
)

// LagPolicy maps each lag to a column schema.
// Anchor lags keep every feature column; other lags keep only Reduced.
type LagPolicy struct {
	Anchors []int
	Reduced []string
}

// DefaultLagPolicy anchors 1, 12 and 24 months (immediate, yearly, bi-yearly)
func DefaultLagPolicy() LagPolicy {
	return LagPolicy{
		Anchors: []int{1, 12, 24},
		Reduced: []string{contracts.FeatRecordCount},
	}
}

// SchemaFor returns the schema of one lag
func (p LagPolicy) SchemaFor(lag int) Schema {
	for _, a := range p.Anchors {
		if a == lag {
			return SchemaFull
		}
	}
	return SchemaReduced
}

// lagStep resolved columns of one lag
type lagStep struct {
	lag   int
	idx   []int    // source column positions
	names []string // output column names
}

// lagPlan per-lag column plan, resolved once per encode call
type lagPlan struct {
	steps   []lagStep
	columns []string
}

// plan resolves the policy against a table schema for lags 1..depth
func (p LagPolicy) plan(columns []string, depth int) (*lagPlan, error) {
	if depth < 1 {
		return nil, fmt.Errorf("lag depth must be >= 1, got %d", depth)
	}

	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		pos[c] = i
	}

	reducedIdx := make([]int, len(p.Reduced))
	for i, c := range p.Reduced {
		j, ok := pos[c]
		if !ok {
			return nil, &contracts.MissingColumnError{Stage: contracts.StageTimeSeries, Column: c}
		}
		reducedIdx[i] = j
	}
	fullIdx := make([]int, len(columns))
	for i := range columns {
		fullIdx[i] = i
	}

	out := &lagPlan{steps: make([]lagStep, 0, depth)}
	for lag := 1; lag <= depth; lag++ {
		idx := reducedIdx
		if p.SchemaFor(lag) == SchemaFull {
			idx = fullIdx
		}
		step := lagStep{lag: lag, idx: idx, names: make([]string, len(idx))}
		for k, j := range idx {
			step.names[k] = contracts.LagColumn(columns[j], lag)
		}
		out.steps = append(out.steps, step)
		out.columns = append(out.columns, step.names...)
	}
	return out, nil
}

// width number of lag columns
func (lp *lagPlan) width() int {
	return len(lp.columns)
}
