package s7_model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/s5_normalize"
	"github.com/wonny/salescast/internal/s6_timeseries"
)

// ArtifactFile model artifact name inside OUTPUT_DIR
const ArtifactFile = "model.json"

// Codec serializes a predictor's model
type Codec interface {
	Encode(m contracts.Model) ([]byte, error)
	Decode(data []byte) (contracts.Model, error)
}

// Artifact 학습 결과물: 모델 + 추론 재현에 필요한 전처리 상태
type Artifact struct {
	Kind       string                  `json:"kind"`
	RunID      string                  `json:"run_id"`
	Features   []string                `json:"features"`
	LagDepth   int                     `json:"lag_depth"`
	Policy     s6_timeseries.LagPolicy `json:"lag_policy"`
	Scaler     *s5_normalize.Scaler    `json:"scaler,omitempty"`
	Target     *TargetTransform        `json:"target,omitempty"`
	ConfigHash string                  `json:"config_hash"`
	RMSE       float64                 `json:"rmse"`
	CreatedAt  time.Time               `json:"created_at"`
	Model      json.RawMessage         `json:"model"`
}

// NewArtifact encodes a trained model together with its preprocessing state
func NewArtifact(codec Codec, res *TrainResult, lagDepth int, policy s6_timeseries.LagPolicy, scaler *s5_normalize.Scaler, target *TargetTransform) (*Artifact, error) {
	raw, err := codec.Encode(res.Model)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return &Artifact{
		Kind:      res.Model.Kind(),
		Features:  res.Features,
		LagDepth:  lagDepth,
		Policy:    policy,
		Scaler:    scaler,
		Target:    target,
		RMSE:      res.RMSE,
		CreatedAt: time.Now().UTC(),
		Model:     raw,
	}, nil
}

// DecodeModel restores the trained model
func (a *Artifact) DecodeModel(codec Codec) (contracts.Model, error) {
	m, err := codec.Decode(a.Model)
	if err != nil {
		return nil, fmt.Errorf("decode %s model: %w", a.Kind, err)
	}
	if m.Kind() != a.Kind {
		return nil, fmt.Errorf("artifact holds %s model, codec produced %s", a.Kind, m.Kind())
	}
	return m, nil
}

// SaveArtifact writes the artifact as indented JSON
func SaveArtifact(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads an artifact written by SaveArtifact
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	if len(a.Features) == 0 || len(a.Model) == 0 {
		return nil, fmt.Errorf("artifact %s is incomplete", path)
	}
	return &a, nil
}

// TargetFromScaler returns the inverse transform of a normalized target column,
// or nil when the scaler does not cover it
func TargetFromScaler(s *s5_normalize.Scaler, column string) *TargetTransform {
	if s == nil {
		return nil
	}
	j, ok := s.ColumnIndex(column)
	if !ok {
		return nil
	}
	return &TargetTransform{Column: column, Min: s.Min[j], Max: s.Max[j]}
}
