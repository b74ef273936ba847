package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

// LeadHandler is the read-only surface dashboards and orchestrators consume.
// Every request is tenant-scoped through the X-Tenant-ID header.
type LeadHandler struct {
	Leads usecase.LeadRepository
	Logs  usecase.ProcessingLogRepository
	Log   *zap.SugaredLogger
}

func NewLeadHandler(leads usecase.LeadRepository, logs usecase.ProcessingLogRepository, log *zap.SugaredLogger) *LeadHandler {
	return &LeadHandler{Leads: leads, Logs: logs, Log: log}
}

func (h *LeadHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromHeader(w, r)
	if !ok {
		return
	}

	lead, err := h.Leads.FindByID(r.Context(), tenantID, chi.URLParam(r, "leadID"))
	if errors.Is(err, entity.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		h.Log.Errorw("lead lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func (h *LeadHandler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromHeader(w, r)
	if !ok {
		return
	}

	filter := usecase.LogFilter{
		LeadID:  chi.URLParam(r, "leadID"),
		Step:    entity.PipelineStep(r.URL.Query().Get("step")),
		Outcome: entity.StepOutcome(r.URL.Query().Get("outcome")),
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = t
		}
	}
	if until := r.URL.Query().Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = t
		}
	}

	entries, err := h.Logs.List(r.Context(), tenantID, filter)
	if err != nil {
		h.Log.Errorw("log query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "log query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func tenantFromHeader(w http.ResponseWriter, r *http.Request) (int64, bool) {
	tenantID, err := strconv.ParseInt(r.Header.Get("X-Tenant-ID"), 10, 64)
	if err != nil || tenantID <= 0 {
		writeError(w, http.StatusBadRequest, "X-Tenant-ID header is required")
		return 0, false
	}
	return tenantID, true
}
