package rbac

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
)

// PermissionsHandler exposes the permission catalog and role defaults to the
// user administration screens.
type PermissionsHandler struct {
	gate Gate
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(gate Gate) *PermissionsHandler {
	return &PermissionsHandler{gate: gate}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(string(access.ModuleSettings), "users", access.ActionView))
		r.Get("/", h.catalog)
		r.Get("/defaults", h.defaults)
	})
}

type catalogResponse struct {
	Modules []access.ModuleSpec `json:"modules"`
	Roles   []access.Role       `json:"roles"`
	Units   []string            `json:"units"`
	Actions []access.Action     `json:"actions"`
}

func (h *PermissionsHandler) catalog(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, catalogResponse{
		Modules: access.Catalog(),
		Roles:   access.Roles(),
		Units:   access.Units(),
		Actions: access.Actions(),
	})
}

func (h *PermissionsHandler) defaults(w http.ResponseWriter, r *http.Request) {
	role, ok := access.ParseRole(r.URL.Query().Get("role"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown role")
		return
	}
	unit := strings.TrimSpace(r.URL.Query().Get("unit"))
	httpx.JSON(w, http.StatusOK, access.Generate(role, unit))
}
