package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	engine *service.Engine
	logger *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(engine *service.Engine, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		engine: engine,
		logger: log,
	}
}

type onHandRequest struct {
	OnHand  *int    `json:"on_hand" validate:"required,gte=0"`
	Remarks *string `json:"remarks" validate:"omitempty,max=500"`
}

type deleteBatchRequest struct {
	Remarks *string `json:"remarks" validate:"omitempty,max=500"`
}

// SetOnHand corrects the counted quantity of a batch
func (h *BatchHandler) SetOnHand(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req onHandRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.engine.AdjustBatch(r.Context(), id, *req.OnHand, performedBy(r), req.Remarks)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Dispense takes stock out of one batch
func (h *BatchHandler) Dispense(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req dispenseRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.engine.DispenseBatch(r.Context(), id, req.toService(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entry)
}

// Delete writes off and removes a batch
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req deleteBatchRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	if err := h.engine.DeleteBatch(r.Context(), id, performedBy(r), req.Remarks); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}
