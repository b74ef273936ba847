package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/metrics"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

// CarrierWebhookHandler receives asynchronous carrier callbacks: delivery
// status updates keyed by the carrier message id, and inbound messages whose
// STOP/START keywords drive the opt-out registry.
type CarrierWebhookHandler struct {
	Reconcile *usecase.ReconcileDeliveryUseCase
	OptOuts   *usecase.OptOutKeywordUseCase
	Log       *zap.SugaredLogger
}

func NewCarrierWebhookHandler(reconcile *usecase.ReconcileDeliveryUseCase, optOuts *usecase.OptOutKeywordUseCase, log *zap.SugaredLogger) *CarrierWebhookHandler {
	return &CarrierWebhookHandler{Reconcile: reconcile, OptOuts: optOuts, Log: log}
}

// HandleStatus processes a delivery-status callback. Carriers retry on
// non-2xx, so everything that is not our fault answers 200.
func (h *CarrierWebhookHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	sid := r.PostFormValue("MessageSid")
	carrierStatus := r.PostFormValue("MessageStatus")
	if sid == "" || carrierStatus == "" {
		writeError(w, http.StatusBadRequest, "MessageSid and MessageStatus are required")
		return
	}

	status, ok := mapCarrierStatus(carrierStatus)
	if !ok {
		// Intermediate statuses we do not track (accepted, sending).
		w.WriteHeader(http.StatusOK)
		return
	}

	eventAt := time.Now()
	if ts := r.PostFormValue("Timestamp"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			eventAt = t
		}
	}

	input := usecase.CarrierStatusInput{
		CarrierMessageID: sid,
		Status:           status,
		ErrorCode:        r.PostFormValue("ErrorCode"),
		EventAt:          eventAt,
		RawPayload:       r.PostForm.Encode(),
	}
	if err := h.Reconcile.Execute(r.Context(), input); err != nil {
		h.Log.Errorw("delivery reconciliation failed", "carrier_message_id", sid, "error", err)
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	metrics.RecordWebhookEvent(string(status))
	w.WriteHeader(http.StatusOK)
}

// HandleInbound processes a message sent to a tenant's number. The tenant id
// is part of the webhook URL configured at the carrier.
func (h *CarrierWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil || tenantID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid tenant id")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		writeError(w, http.StatusBadRequest, "From is required")
		return
	}

	if err := h.OptOuts.Execute(r.Context(), tenantID, from, body); err != nil {
		h.Log.Errorw("opt-out processing failed", "tenant_id", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "opt-out processing failed")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func mapCarrierStatus(s string) (entity.DeliveryStatus, bool) {
	switch s {
	case "queued":
		return entity.DeliveryQueued, true
	case "sent":
		return entity.DeliverySent, true
	case "delivered":
		return entity.DeliveryDelivered, true
	case "failed":
		return entity.DeliveryFailed, true
	case "undelivered":
		return entity.DeliveryUndelivered, true
	}
	return "", false
}
