package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// OrderHandler handles purchase order endpoints
type OrderHandler struct {
	engine *service.Engine
	logger *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(engine *service.Engine, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		engine: engine,
		logger: log,
	}
}

type cancelOrderRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type itemQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// Status returns the derived status and totals of an order
func (h *OrderHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.engine.GetOrderStatus(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Events lists the status history of an order
func (h *OrderHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	events, err := h.engine.ListOrderEvents(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, events)
}

// Cancel cancels an order that is not fully received
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req cancelOrderRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	order, err := h.engine.CancelOrder(r.Context(), id, performedBy(r), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().Str("order_id", order.ID).Str("actor", performedBy(r)).Msg("order cancelled")
	httputil.JSON(w, http.StatusOK, order)
}

// UpdateItemQuantity changes the ordered quantity of an order item
func (h *OrderHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req itemQuantityRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.engine.UpdateOrderItemQuantity(r.Context(), id, req.Quantity, performedBy(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}
