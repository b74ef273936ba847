package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

// CarrierStatusInput is one delivery-status callback from the carrier,
// keyed by the message id the carrier handed back at send time.
type CarrierStatusInput struct {
	CarrierMessageID string
	Status           entity.DeliveryStatus
	ErrorCode        string
	EventAt          time.Time
	RawPayload       string
}

// ReconcileDeliveryUseCase appends every carrier callback as an immutable
// event and then recomputes the canonical status from the whole event list in
// event-timestamp order. A late webhook carrying an earlier non-terminal
// status never regresses a terminal one.
type ReconcileDeliveryUseCase struct {
	Sms SmsRepository
	Log *zap.SugaredLogger
}

func NewReconcileDeliveryUseCase(sms SmsRepository, log *zap.SugaredLogger) *ReconcileDeliveryUseCase {
	return &ReconcileDeliveryUseCase{Sms: sms, Log: log}
}

// reconcileMaxAttempts bounds the CAS loop under webhook contention. The
// carrier retries on a non-2xx answer, so giving up here is recoverable.
const reconcileMaxAttempts = 3

func (uc *ReconcileDeliveryUseCase) Execute(ctx context.Context, input CarrierStatusInput) error {
	msg, err := uc.Sms.FindMessageByCarrierID(ctx, input.CarrierMessageID)
	if errors.Is(err, entity.ErrSmsNotFound) {
		// The carrier can call back before our send transaction commits, or
		// for a message from another environment. Log and accept.
		uc.Log.Warnw("webhook for unknown carrier message id", "carrier_message_id", input.CarrierMessageID)
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "find sms by carrier id", Err: err}
	}

	event, err := entity.NewSmsDeliveryEvent(msg.ID, input.Status, input.RawPayload, input.EventAt)
	if err != nil {
		return err
	}
	event.ErrorCode = input.ErrorCode
	if err := uc.Sms.AppendEvent(ctx, event); err != nil {
		return &PersistenceError{Op: "append delivery event", Err: err}
	}

	// A concurrent webhook that wins the CAS may have listed events before
	// ours landed, so a stale transition means reload and resolve again, not
	// give up. The event is already durable; only the projection is behind.
	for attempt := 0; attempt < reconcileMaxAttempts; attempt++ {
		events, err := uc.Sms.ListEvents(ctx, msg.ID)
		if err != nil {
			return &PersistenceError{Op: "list delivery events", Err: err}
		}

		resolved := entity.ResolveDeliveryStatus(msg.DeliveryStatus, events)
		if resolved == msg.DeliveryStatus {
			return nil
		}

		err = uc.Sms.UpdateStatus(ctx, msg.ID, msg.DeliveryStatus, resolved, msg.CarrierMessageID, msg.RetryCount)
		if err == nil {
			uc.Log.Infow("sms status reconciled",
				"sms_id", msg.ID, "from", msg.DeliveryStatus, "to", resolved,
				"carrier_message_id", input.CarrierMessageID)
			return nil
		}
		if !errors.Is(err, entity.ErrStaleTransition) {
			return &PersistenceError{Op: "reconcile sms status", Err: err}
		}

		msg, err = uc.Sms.FindMessageByCarrierID(ctx, input.CarrierMessageID)
		if errors.Is(err, entity.ErrSmsNotFound) {
			uc.Log.Warnw("sms row vanished during reconciliation", "carrier_message_id", input.CarrierMessageID)
			return nil
		}
		if err != nil {
			return &PersistenceError{Op: "reload sms for reconciliation", Err: err}
		}
	}

	uc.Log.Warnw("reconciliation contention, deferring to carrier retry",
		"carrier_message_id", input.CarrierMessageID)
	return &PersistenceError{Op: "reconcile sms status", Err: entity.ErrStaleTransition}
}

// OptOutKeywordUseCase handles inbound carrier messages. STOP-family keywords
// register an opt-out for the sender's number; START opts it back in.
type OptOutKeywordUseCase struct {
	OptOuts OptOutRepository
	Vault   PhoneHasher
	Log     *zap.SugaredLogger
}

// PhoneHasher is the slice of the phone vault this use case needs.
type PhoneHasher interface {
	Hash(phone string) string
}

func NewOptOutKeywordUseCase(optOuts OptOutRepository, vault PhoneHasher, log *zap.SugaredLogger) *OptOutKeywordUseCase {
	return &OptOutKeywordUseCase{OptOuts: optOuts, Vault: vault, Log: log}
}

func (uc *OptOutKeywordUseCase) Execute(ctx context.Context, tenantID int64, fromPhone, body string) error {
	keyword := strings.ToUpper(strings.TrimSpace(body))
	hash := uc.Vault.Hash(fromPhone)

	switch keyword {
	case "STOP", "STOPALL", "UNSUBSCRIBE", "CANCEL", "QUIT":
		if err := uc.OptOuts.OptOut(ctx, tenantID, hash); err != nil {
			return &PersistenceError{Op: "register opt-out", Err: err}
		}
		uc.Log.Infow("opt-out registered", "tenant_id", tenantID)
	case "START", "YES", "UNSTOP":
		if err := uc.OptOuts.OptBackIn(ctx, tenantID, hash); err != nil {
			return &PersistenceError{Op: "register opt-back-in", Err: err}
		}
		uc.Log.Infow("opt-back-in registered", "tenant_id", tenantID)
	default:
		// Regular replies belong to the conversation layer, not this pipeline.
	}
	return nil
}
