package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wonny/salescast/internal/checkpoint"
	"github.com/wonny/salescast/pkg/logger"
)

// PredictionHandler serves run records and predictions
// ⭐ SSOT: 예측 조회 API 핸들러는 여기서만
type PredictionHandler struct {
	store  checkpoint.Store
	logger *logger.Logger
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(store checkpoint.Store, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{
		store:  store,
		logger: log,
	}
}

// GetLatestRun returns the most recent run record
// GET /api/runs/latest?with_predictions=true
func (h *PredictionHandler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	withPreds, _ := strconv.ParseBool(r.URL.Query().Get("with_predictions"))

	run, err := h.store.LatestRun(r.Context(), withPreds)
	if errors.Is(err, checkpoint.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no runs recorded")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to get latest run")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest run")
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GetPrediction returns the prediction of one request ID
// GET /api/predictions/{id}?run_id=
func (h *PredictionHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 {
		respondError(w, http.StatusBadRequest, "id must be a non-negative integer")
		return
	}

	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	p, err := h.store.Prediction(r.Context(), runID, id)
	if errors.Is(err, checkpoint.ErrNotFound) {
		respondError(w, http.StatusNotFound, "prediction not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to get prediction")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve prediction")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     runID,
		"prediction": p,
	})
}

// FindPredictions filters the predictions of a run by shop and item
// GET /api/predictions?shop_id=&item_id=&run_id=
func (h *PredictionHandler) FindPredictions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := checkpoint.PredictionFilter{ShopID: -1, ItemID: -1}
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"shop_id", &filter.ShopID},
		{"item_id", &filter.ItemID},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respondError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
			return
		}
		*p.dst = v
	}
	if filter.ShopID < 0 && filter.ItemID < 0 {
		respondError(w, http.StatusBadRequest, "shop_id or item_id is required")
		return
	}

	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	preds, err := h.store.FindPredictions(r.Context(), runID, filter)
	if errors.Is(err, checkpoint.ErrNotFound) {
		respondError(w, http.StatusNotFound, "run has no predictions")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to find predictions")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve predictions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":      runID,
		"count":       len(preds),
		"predictions": preds,
	})
}

// runID resolves ?run_id= or falls back to the latest run with predictions
func (h *PredictionHandler) runID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if id := r.URL.Query().Get("run_id"); id != "" {
		return id, true
	}

	run, err := h.store.LatestRun(r.Context(), true)
	if errors.Is(err, checkpoint.ErrNotFound) {
		respondError(w, http.StatusNotFound, "no predictions available")
		return "", false
	}
	if err != nil {
		h.logger.WithError(err).Error("Failed to resolve latest run")
		respondError(w, http.StatusInternalServerError, "Failed to resolve run")
		return "", false
	}
	return run.ID, true
}
