package handler

import (
	"net/http"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

const defaultLedgerLimit = 100

// ProductHandler handles per-product stock endpoints
type ProductHandler struct {
	engine *service.Engine
	logger *logger.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(engine *service.Engine, log *logger.Logger) *ProductHandler {
	return &ProductHandler{
		engine: engine,
		logger: log,
	}
}

type dispenseRequest struct {
	Quantity    int     `json:"quantity" validate:"required,gt=0"`
	ReferenceID *string `json:"reference_id" validate:"omitempty,max=100"`
	Remarks     *string `json:"remarks" validate:"omitempty,max=500"`
}

func (d dispenseRequest) toService(r *http.Request) service.DispenseRequest {
	return service.DispenseRequest{
		Quantity:    d.Quantity,
		PerformedBy: performedBy(r),
		ReferenceID: d.ReferenceID,
		Remarks:     d.Remarks,
	}
}

// Stock returns the product total, status and active batches
func (h *ProductHandler) Stock(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.engine.GetStockStatus(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

// Ledger lists the most recent ledger entries of a product
func (h *ProductHandler) Ledger(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	limit, err := httputil.QueryInt(r, "limit", defaultLedgerLimit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.engine.ListLedger(r.Context(), id, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, entries)
}

// Reconciliation compares the stock total with its batches and ledger
func (h *ProductHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	id, err := httputil.URLParam(r, "id")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.engine.ReconcileStock(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	if !rec.Consistent {
		h.logger.Warn().
			Str("product_id", rec.ProductID).
			Int("stock_total", rec.StockTotal).
			Int("batch_sum", rec.BatchSum).
			Int("ledger_sum", rec.LedgerSum).
			Msg("stock out of balance")
	}

	httputil.JSON(w, http.StatusOK, rec)
}

// Dispense takes stock out of a product, first expiry first out
func (h *ProductHandler) Dispense(w http.ResponseWriter, r *http.Request) {
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

	entries, err := h.engine.DispenseProduct(r.Context(), id, req.toService(r))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entries)
}
