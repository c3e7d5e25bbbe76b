package s5_normalize

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/wonny/salescast/internal/contracts"
)

// Matrix row-major numeric matrix
type Matrix [][]float64

// Scaler 컬럼별 min-max 경계 (학습 시 fit, 추론 시 재사용)
type Scaler struct {
	Columns []string  `json:"columns,omitempty"`
	Min     []float64 `json:"min"`
	Max     []float64 `json:"max"`
}

// FitNormalize scales every column of m into [0, 1] and returns the fitted scaler.
// A constant column maps to 0. The input is not modified.
func FitNormalize(m Matrix) (Matrix, *Scaler) {
	s := Fit(m)
	return s.Transform(m), s
}

// Fit computes per-column bounds
func Fit(m Matrix) *Scaler {
	if len(m) == 0 {
		return &Scaler{}
	}
	width := len(m[0])
	s := &Scaler{Min: make([]float64, width), Max: make([]float64, width)}
	col := make([]float64, len(m))
	for j := 0; j < width; j++ {
		for i, row := range m {
			col[i] = row[j]
		}
		s.Min[j] = floats.Min(col)
		s.Max[j] = floats.Max(col)
	}
	return s
}

// Transform applies the fitted bounds to new rows
func (s *Scaler) Transform(m Matrix) Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = s.scale(j, v)
		}
		out[i] = scaled
	}
	return out
}

func (s *Scaler) scale(j int, v float64) float64 {
	span := s.Max[j] - s.Min[j]
	if span == 0 {
		return 0
	}
	return (v - s.Min[j]) / span
}

// InverseColumn maps scaled values of column j back to the original range
func (s *Scaler) InverseColumn(j int, values []float64) []float64 {
	out := make([]float64, len(values))
	span := s.Max[j] - s.Min[j]
	for i, v := range values {
		out[i] = v*span + s.Min[j]
	}
	return out
}

// ColumnIndex returns the position of a named column in the scaler
func (s *Scaler) ColumnIndex(name string) (int, bool) {
	for i, c := range s.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// NormalizeColumns fits and scales the named columns of a feature table and copies
// the remaining columns through unchanged
func NormalizeColumns(table *contracts.FeatureTable, columns []string) (*contracts.FeatureTable, *Scaler, error) {
	idx, err := columnIndexes(table, columns)
	if err != nil {
		return nil, nil, err
	}

	sub := extract(table, idx)
	scaled, s := FitNormalize(sub)
	s.Columns = append([]string(nil), columns...)
	if len(sub) == 0 {
		s.Min = make([]float64, len(columns))
		s.Max = make([]float64, len(columns))
	}

	return replace(table, idx, scaled), s, nil
}

// ApplyColumns scales the named columns of a table with an already fitted scaler
func ApplyColumns(table *contracts.FeatureTable, s *Scaler) (*contracts.FeatureTable, error) {
	idx, err := columnIndexes(table, s.Columns)
	if err != nil {
		return nil, err
	}
	return replace(table, idx, s.Transform(extract(table, idx))), nil
}

func columnIndexes(table *contracts.FeatureTable, columns []string) ([]int, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("normalize: no columns selected")
	}
	idx := make([]int, len(columns))
	for i, c := range columns {
		j, err := table.ColumnIndex(contracts.StageNormalize, c)
		if err != nil {
			return nil, err
		}
		idx[i] = j
	}
	return idx, nil
}

func extract(table *contracts.FeatureTable, idx []int) Matrix {
	m := make(Matrix, len(table.Rows))
	for i, r := range table.Rows {
		row := make([]float64, len(idx))
		for k, j := range idx {
			row[k] = r.Values[j]
		}
		m[i] = row
	}
	return m
}

func replace(table *contracts.FeatureTable, idx []int, scaled Matrix) *contracts.FeatureTable {
	out := table.Copy()
	for i := range out.Rows {
		for k, j := range idx {
			out.Rows[i].Values[j] = scaled[i][k]
		}
	}
	return out
}
