package principals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
)

const usersFeature = "users"

// Handler serves user administration and self-service profile endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    rbac.Gate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate rbac.Gate) *Handler {
	return &Handler{logger: logger, service: service, gate: gate}
}

// MountRoutes registers user administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	settings := string(access.ModuleSettings)
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(settings, usersFeature, access.ActionView))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(settings, usersFeature, access.ActionAdd))
		r.Post("/", h.provisionUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(settings, usersFeature, access.ActionEdit))
		r.Put("/{id}/permissions", h.replacePermissions)
		r.Post("/{id}/permissions/reset", h.resetPermissions)
	})
}

// MountProfileRoutes registers the always-available profile routes.
func (h *Handler) MountProfileRoutes(r chi.Router) {
	profile := string(access.ModuleProfile)
	r.With(h.gate.Require(profile, "myProfile", access.ActionView)).Get("/", h.showProfile)
	r.With(h.gate.Require(profile, "myProfile", access.ActionEdit)).Put("/", h.updateProfile)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.caller(w, r)
	if !ok {
		return
	}
	users, err := h.service.List(r.Context(), actor, scope)
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	u, err := h.service.Get(r.Context(), actor, scope, id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) provisionUser(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in ProvisionInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	u, err := h.service.Provision(r.Context(), actor, scope, in)
	if err != nil {
		h.fail(w, "provision user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) replacePermissions(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var set access.PermissionSet
	if err := httpx.DecodeJSON(r, &set); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	u, err := h.service.ReplacePermissions(r.Context(), actor, scope, id, set)
	if err != nil {
		h.fail(w, "replace permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) resetPermissions(w http.ResponseWriter, r *http.Request) {
	actor, scope, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	u, err := h.service.ResetDefaults(r.Context(), actor, scope, id)
	if err != nil {
		h.fail(w, "reset permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.caller(w, r)
	if !ok {
		return
	}
	u, err := h.service.Profile(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, "show profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.caller(w, r)
	if !ok {
		return
	}
	var in ProfileInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), actor.ID, in)
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (access.Principal, rbac.Scope, bool) {
	actor, ok := rbac.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return access.Principal{}, rbac.Scope{}, false
	}
	scope, _ := rbac.ScopeFromContext(r.Context())
	return actor, scope, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var denied *access.DeniedError
	if h.logger != nil && !errors.As(err, &denied) {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}
