package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/plantdesk/plantdesk/internal/access"
	"github.com/plantdesk/plantdesk/internal/platform/httpx"
	"github.com/plantdesk/plantdesk/internal/rbac"
)

const featureSystem = "system"

// DriftEnqueuer queues manual drift scans.
type DriftEnqueuer interface {
	EnqueueDriftScan(ctx context.Context, trigger string) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue depth.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler serves the jobs admin endpoints under settings/system.
type Handler struct {
	inspector QueueInspector
	enqueuer  DriftEnqueuer
	gate      rbac.Gate
	logger    *slog.Logger
}

func NewHandler(inspector QueueInspector, enqueuer DriftEnqueuer, gate rbac.Gate, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, enqueuer: enqueuer, gate: gate, logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	settings := string(access.ModuleSettings)
	r.With(h.gate.Require(settings, featureSystem, access.ActionView)).Get("/health", h.health)
	r.With(h.gate.Require(settings, featureSystem, access.ActionAlter)).Post("/drift-scan", h.driftScan)
}

type queueHealth struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processedToday"`
	Failed    int    `json:"failedToday"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue unavailable")
		return
	}
	body := queueHealth{Queue: QueueDefault}
	if info != nil {
		body = queueHealth{
			Queue:     info.Queue,
			Pending:   info.Pending,
			Active:    info.Active,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
		}
	}
	httpx.JSON(w, http.StatusOK, body)
}

func (h *Handler) driftScan(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue not configured")
		return
	}
	info, err := h.enqueuer.EnqueueDriftScan(r.Context(), "manual")
	switch {
	case errors.Is(err, asynq.ErrDuplicateTask):
		httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "already queued"})
		return
	case err != nil:
		h.logger.Error("enqueue drift scan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	body := map[string]any{"status": "queued"}
	if info != nil {
		body["id"] = info.ID
	}
	httpx.JSON(w, http.StatusAccepted, body)
}
