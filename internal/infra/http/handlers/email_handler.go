package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/metrics"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

// EmailHandler receives inbound lead emails from the external listener.
type EmailHandler struct {
	Ingest *usecase.IngestEmailUseCase
	Log    *zap.SugaredLogger
}

func NewEmailHandler(ingest *usecase.IngestEmailUseCase, log *zap.SugaredLogger) *EmailHandler {
	return &EmailHandler{Ingest: ingest, Log: log}
}

type inboundEmailRequest struct {
	TenantID   int64  `json:"tenant_id"`
	MessageID  string `json:"message_id"`
	From       string `json:"from"`
	Subject    string `json:"subject"`
	ReceivedAt string `json:"received_at"`
	RawXML     string `json:"raw_xml"`
}

type inboundEmailResponse struct {
	QueueItemID string `json:"queue_item_id"`
	Duplicate   bool   `json:"duplicate"`
}

func (h *EmailHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req inboundEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TenantID <= 0 || req.MessageID == "" || req.RawXML == "" {
		writeError(w, http.StatusBadRequest, "tenant_id, message_id and raw_xml are required")
		return
	}

	receivedAt := time.Now()
	if req.ReceivedAt != "" {
		if t, err := time.Parse(time.RFC3339, req.ReceivedAt); err == nil {
			receivedAt = t
		}
	}

	out, err := h.Ingest.Execute(r.Context(), usecase.IngestEmailInput{
		TenantID:   req.TenantID,
		MessageID:  req.MessageID,
		From:       req.From,
		Subject:    req.Subject,
		ReceivedAt: receivedAt,
		RawXML:     req.RawXML,
	})
	if err != nil {
		h.Log.Errorw("email ingestion failed", "message_id", req.MessageID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not queue email")
		return
	}

	if !out.Duplicate {
		metrics.RecordEmailQueued()
	}

	status := http.StatusAccepted
	if out.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, inboundEmailResponse{QueueItemID: out.QueueItemID, Duplicate: out.Duplicate})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
