package s7_model

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/s6_timeseries"
)

// Inferencer S7 추론 어댑터
type Inferencer struct {
	predictor contracts.Predictor
	log       zerolog.Logger
}

// NewInferencer creates an inferencer around a predictor
func NewInferencer(p contracts.Predictor, log zerolog.Logger) *Inferencer {
	return &Inferencer{
		predictor: p,
		log:       log.With().Str("component", "s7_inferencer").Logger(),
	}
}

// Predict scores encoded inference rows with a trained model. Predictions are mapped
// back to sales units when the target was normalized and clamped at 0.
// Output order follows the request order.
func (in *Inferencer) Predict(
	ctx context.Context,
	model contracts.Model,
	features []string,
	table *s6_timeseries.InferenceTable,
	target *TargetTransform,
) ([]contracts.Prediction, error) {
	if len(table.IDs) != len(table.Rows) {
		return nil, &contracts.IntegrityError{
			Stage:  contracts.StageModel,
			Detail: fmt.Sprintf("%d request ids for %d rows", len(table.IDs), len(table.Rows)),
		}
	}

	d, err := DesignMatrix(&table.EncodedTable)
	if err != nil {
		return nil, err
	}
	if err := CheckFeatures(d, features); err != nil {
		return nil, err
	}

	raw, err := in.predictor.Predict(ctx, model, d.X)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	out := make([]contracts.Prediction, len(raw))
	clamped := 0
	for i, v := range raw {
		v = target.Inverse(v)
		if !contracts.IsFinite(v) {
			return nil, &contracts.IntegrityError{
				Stage:  contracts.StageModel,
				Detail: fmt.Sprintf("non-finite prediction for request %d", table.IDs[i]),
			}
		}
		if v < 0 {
			v = 0
			clamped++
		}
		r := table.Rows[i].Key
		out[i] = contracts.Prediction{
			ID:           table.IDs[i],
			ShopID:       r.Shop,
			ItemID:       r.Item,
			ItemCntMonth: v,
		}
	}

	in.log.Info().
		Int("requests", len(out)).
		Int("clamped", clamped).
		Float64("mean", mean(out)).
		Msg("Predictions ready")

	return out, nil
}

func mean(preds []contracts.Prediction) float64 {
	if len(preds) == 0 {
		return 0
	}
	var sum float64
	for _, p := range preds {
		sum += p.ItemCntMonth
	}
	return sum / float64(len(preds))
}

// Round rounds predictions to whole units (submission format)
func Round(preds []contracts.Prediction) []contracts.Prediction {
	out := make([]contracts.Prediction, len(preds))
	for i, p := range preds {
		p.ItemCntMonth = math.Round(p.ItemCntMonth)
		out[i] = p
	}
	return out
}
