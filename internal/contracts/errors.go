package contracts

import (
	"errors"
	"fmt"
	"math"
)

// =============================================================================
// Pipeline Errors - 모두 치명적 (run 중단, 출력 없음)
// =============================================================================

var (
	ErrIntegrity     = errors.New("integrity violation")
	ErrCardinality   = errors.New("cardinality mismatch")
	ErrUnmatchedKey  = errors.New("unmatched key")
	ErrMissingColumn = errors.New("missing column")
)

// IntegrityError NaN/Inf 또는 라벨 누락
type IntegrityError struct {
	Stage  Stage
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, ErrIntegrity, e.Detail)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// CardinalityError 출력 row 수가 도메인 cross-product와 불일치
type CardinalityError struct {
	Stage    Stage
	Table    string
	Expected int
	Actual   int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("%s: %s: table %s expected %d rows, got %d",
		e.Stage, ErrCardinality, e.Table, e.Expected, e.Actual)
}

func (e *CardinalityError) Unwrap() error {
	return ErrCardinality
}

// UnmatchedKeyError 카탈로그에 없는 아이템
type UnmatchedKeyError struct {
	Stage  Stage
	ItemID int
}

func (e *UnmatchedKeyError) Error() string {
	return fmt.Sprintf("%s: %s: item_id %d not in catalog", e.Stage, ErrUnmatchedKey, e.ItemID)
}

func (e *UnmatchedKeyError) Unwrap() error {
	return ErrUnmatchedKey
}

// MissingColumnError 필요한 컬럼이 테이블에 없음
type MissingColumnError struct {
	Stage  Stage
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Stage, ErrMissingColumn, e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// IsFinite reports whether v is neither NaN nor ±Inf
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
