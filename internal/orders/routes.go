package orders

import (
	"github.com/go-chi/chi/v5"

	"github.com/plantdesk/plantdesk/internal/access"
)

const (
	module         = string(access.ModuleOrders)
	featureOrders  = "allOrders"
	featureReports = "orderReport"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.gate.Require(module, featureReports, access.ActionView)).Get("/stats", h.Stats)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(module, featureOrders, access.ActionView))
		r.Get("/", h.List)
		r.Get("/{id}", h.Show)
	})
	r.With(h.gate.Require(module, featureOrders, access.ActionAdd)).Post("/", h.Create)
	r.With(h.gate.Require(module, featureOrders, access.ActionEdit)).Put("/{id}", h.Update)
	r.With(h.gate.Require(module, featureOrders, access.ActionAlter)).Patch("/{id}/status", h.ChangeStatus)
	r.With(h.gate.Require(module, featureOrders, access.ActionDelete)).Delete("/{id}", h.Delete)
}
