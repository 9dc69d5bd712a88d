package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/permissions"
)

// Mount registers the pharmacy API under /api/v1/pharmacy. Reads are open to
// any gateway-authenticated caller; every write needs a pharmacy permission.
func Mount(r chi.Router, engine *service.Engine, log *logger.Logger) {
	receipts := NewReceiptHandler(engine, log)
	orders := NewOrderHandler(engine, log)
	products := NewProductHandler(engine, log)
	batches := NewBatchHandler(engine, log)

	receive := httputil.RequirePermission(permissions.Receive)
	dispense := httputil.RequirePermission(permissions.Dispense)
	adjust := httputil.RequirePermission(permissions.Adjust)
	manageOrders := httputil.RequirePermission(permissions.ManageOrders)

	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		r.Use(httputil.Actor)

		r.Route("/order-items", func(r chi.Router) {
			r.With(receive).Post("/{id}/receipts", receipts.Receive)
			r.With(manageOrders).Put("/{id}/quantity", orders.UpdateItemQuantity)
		})
		r.With(receive).Put("/receipts/{id}", receipts.Adjust)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{id}/status", orders.Status)
			r.Get("/{id}/events", orders.Events)
			r.With(manageOrders).Post("/{id}/cancel", orders.Cancel)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/{id}/stock", products.Stock)
			r.Get("/{id}/ledger", products.Ledger)
			r.Get("/{id}/reconciliation", products.Reconciliation)
			r.With(dispense).Post("/{id}/dispense", products.Dispense)
		})

		r.Route("/batches", func(r chi.Router) {
			r.With(adjust).Put("/{id}/on-hand", batches.SetOnHand)
			r.With(dispense).Post("/{id}/dispense", batches.Dispense)
			r.With(adjust).Delete("/{id}", batches.Delete)
		})
	})
}
