package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

// ReceiptHandler handles delivery endpoints
type ReceiptHandler struct {
	engine *service.Engine
	logger *logger.Logger
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(engine *service.Engine, log *logger.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		engine: engine,
		logger: log,
	}
}

type receiveRequest struct {
	Quantity   int     `json:"quantity" validate:"required,gt=0"`
	ExpiryDate *string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Remarks    *string `json:"remarks" validate:"omitempty,max=500"`
}

type adjustReceiptRequest struct {
	Quantity int     `json:"quantity" validate:"required,gt=0"`
	Remarks  *string `json:"remarks" validate:"omitempty,max=500"`
}

// Receive records a delivery against an order item
func (h *ReceiptHandler) Receive(w http.ResponseWriter, r *http.Request) {
	itemID, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req receiveRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	expiry, err := parseDate("expiry_date", req.ExpiryDate)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, err := h.engine.ReceiveItem(r.Context(), service.ReceiveRequest{
		OrderItemID: itemID,
		Quantity:    req.Quantity,
		PerformedBy: performedBy(r),
		ExpiryDate:  expiry,
		Remarks:     req.Remarks,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, receipt)
}

// Adjust raises the quantity of an existing receipt
func (h *ReceiptHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req adjustReceiptRequest
	if err := decode(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	receipt, err := h.engine.AdjustReceipt(r.Context(), id, req.Quantity, performedBy(r), req.Remarks)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, receipt)
}
