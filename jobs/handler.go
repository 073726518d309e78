package jobs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/hanbit-erp/hanbit-erp/internal/platform/httpx"
)

// Handler exposes job submission and queue introspection over HTTP.
type Handler struct {
	client    *Client
	inspector *asynq.Inspector
	logger    *slog.Logger
	validate  *validator.Validate
}

// NewHandler constructs the jobs HTTP handler.
func NewHandler(client *Client, inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{client: client, inspector: inspector, logger: logger, validate: validator.New()}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/backfill", h.EnqueueBackfill)
	r.Get("/queue", h.QueueInfo)
}

type backfillRequest struct {
	BusinessUnit string `json:"business_unit" validate:"required"`
	StartDate    string `json:"start_date" validate:"required,len=8,numeric"`
	EndDate      string `json:"end_date" validate:"required,len=8,numeric"`
	PreparedBy   string `json:"prepared_by" validate:"required"`
	TaxPolicy    string `json:"tax_policy" validate:"omitempty,oneof=combined split"`
}

// EnqueueBackfill submits an on-demand backfill run.
func (h *Handler) EnqueueBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	info, err := h.client.EnqueueVoucherBackfill(r.Context(), VoucherBackfillPayload{
		BusinessUnit: req.BusinessUnit,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		PreparedBy:   req.PreparedBy,
		TaxPolicy:    req.TaxPolicy,
	})
	if err != nil {
		h.logger.Error("enqueue backfill", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
}

// QueueInfo reports default-queue depth for operators watching a run.
func (h *Handler) QueueInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Error("queue info", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"queue":     info.Queue,
		"pending":   info.Pending,
		"active":    info.Active,
		"retry":     info.Retry,
		"completed": info.Completed,
		"failed":    info.Failed,
	})
}
