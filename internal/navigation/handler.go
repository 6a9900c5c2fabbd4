package navigation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
)

// Handler serves the navigation view of the calling principal. It is
// computed fresh on every request; the per-session snapshot is owned by auth.
type Handler struct {
	gate rbac.Gate
}

func NewHandler(gate rbac.Gate) *Handler {
	return &Handler{gate: gate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.gate.Authenticated)
	r.Get("/", h.view)
	r.Get("/affordances", h.affordances)
}

func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, Build(p))
}

// affordances answers a single module/feature query so pages can decide
// which controls to render without pulling the whole view.
func (h *Handler) affordances(w http.ResponseWriter, r *http.Request) {
	p, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	module := r.URL.Query().Get("module")
	if _, known := access.ParseModule(module); !known {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown module")
		return
	}
	httpx.JSON(w, http.StatusOK, NewFilter(p).Affordances(module, r.URL.Query().Get("feature")))
}
