package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

// QueueHandler exposes queue items for operator review and best-effort
// cancellation.
type QueueHandler struct {
	Queue usecase.EmailQueueRepository
	Log   *zap.SugaredLogger
}

func NewQueueHandler(queue usecase.EmailQueueRepository, log *zap.SugaredLogger) *QueueHandler {
	return &QueueHandler{Queue: queue, Log: log}
}

func (h *QueueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromHeader(w, r)
	if !ok {
		return
	}

	item, err := h.Queue.FindByID(r.Context(), tenantID, chi.URLParam(r, "itemID"))
	if errors.Is(err, entity.ErrQueueItemNotFound) {
		writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if err != nil {
		h.Log.Errorw("queue item lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// HandleCancel flags the item. In-flight work completes and its result is
// discarded afterwards; already-settled items cannot be cancelled.
func (h *QueueHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromHeader(w, r)
	if !ok {
		return
	}

	err := h.Queue.Cancel(r.Context(), tenantID, chi.URLParam(r, "itemID"))
	if errors.Is(err, entity.ErrQueueItemNotFound) {
		writeError(w, http.StatusConflict, "item not found or already settled")
		return
	}
	if err != nil {
		h.Log.Errorw("cancel failed", "error", err)
		writeError(w, http.StatusInternalServerError, "cancel failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
