package orders

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

type Handler struct {
	logger  *slog.Logger
	service *Service
	gate    rbac.Gate
}

func NewHandler(logger *slog.Logger, service *Service, gate rbac.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, gate: gate}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 1 && limit > 0 {
		offset = (page - 1) * limit
	}
	result, err := h.service.List(r.Context(), h.scope(r), ListOrdersRequest{
		Unit:   q.Get("unit"),
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(r.Context(), h.scope(r), id)
	if err != nil {
		h.fail(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	o, err := h.service.Create(r.Context(), h.scope(r), req)
	if err != nil {
		h.fail(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	o, err := h.service.Update(r.Context(), h.scope(r), id, req)
	if err != nil {
		h.fail(w, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	o, err := h.service.ChangeStatus(r.Context(), h.scope(r), id, req.Status)
	if err != nil {
		h.fail(w, "change order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), h.scope(r), id); err != nil {
		h.fail(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), h.scope(r), r.URL.Query().Get("unit"))
	if err != nil {
		h.fail(w, "order stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// scope returns the scope stored by the gate. Without one the zero scope
// permits no unit.
func (h *Handler) scope(r *http.Request) rbac.Scope {
	scope, _ := rbac.ScopeFromContext(r.Context())
	return scope
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	var denied *access.DeniedError
	switch {
	case errors.As(err, &denied):
		h.logger.Warn(op+" denied", slog.String("reason", string(denied.Reason)))
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrNotFound):
	default:
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
