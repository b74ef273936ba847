package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/metrics"
	"github.com/rylieapp/adf-pipeline/internal/privacy"
)

const carrierBackoffBase = 2 * time.Second

// SendSmsUseCase owns outbound delivery. The opt-out registry is consulted
// synchronously before anything else: an opted-out number produces a message
// row already in opted_out and the carrier is never called.
type SendSmsUseCase struct {
	Sms     SmsRepository
	OptOuts OptOutRepository
	Logs    ProcessingLogRepository
	Carrier CarrierClient
	Vault   *privacy.PhoneVault
	Backoff time.Duration
	Log     *zap.SugaredLogger
}

func NewSendSmsUseCase(
	sms SmsRepository,
	optOuts OptOutRepository,
	logs ProcessingLogRepository,
	carrier CarrierClient,
	vault *privacy.PhoneVault,
	log *zap.SugaredLogger,
) *SendSmsUseCase {
	return &SendSmsUseCase{Sms: sms, OptOuts: optOuts, Logs: logs, Carrier: carrier, Vault: vault, Backoff: carrierBackoffBase, Log: log}
}

func (uc *SendSmsUseCase) Execute(ctx context.Context, job SmsJob) error {
	phoneHash := uc.Vault.Hash(job.Phone)

	optOut, err := uc.OptOuts.Find(ctx, job.TenantID, phoneHash)
	if err != nil {
		return &PersistenceError{Op: "opt-out lookup", Err: err}
	}

	encrypted, err := uc.Vault.Encrypt(job.Phone)
	if err != nil {
		return err
	}

	msg, err := entity.NewSmsMessage(
		job.TenantID, job.LeadID, encrypted, privacy.Mask(job.Phone), phoneHash, job.Body,
	)
	if err != nil {
		return err
	}

	if optOut != nil && optOut.Active() {
		msg.DeliveryStatus = entity.DeliveryOptedOut
		msg.OptedOut = true
		if _, created, err := uc.Sms.CreateMessage(ctx, msg); err != nil {
			return &PersistenceError{Op: "create opted-out sms", Err: err}
		} else if !created {
			uc.Log.Infow("redelivered sms job, message already recorded", "lead_id", job.LeadID)
			return nil
		}
		uc.appendSendLog(ctx, msg, entity.OutcomeWarning, "recipient opted out, send suppressed", nil)
		metrics.RecordSmsOutcome(string(entity.DeliveryOptedOut))
		uc.Log.Infow("sms suppressed by opt-out", "lead_id", job.LeadID, "phone", msg.PhoneMasked)
		return nil
	}

	stored, created, err := uc.Sms.CreateMessage(ctx, msg)
	if err != nil {
		return &PersistenceError{Op: "create sms", Err: err}
	}
	if !created {
		// A broker redelivery of a job we already started. Pick up the
		// existing row where the earlier execution left off.
		return uc.resume(ctx, stored, job)
	}
	return uc.deliver(ctx, msg, job.Phone)
}

// resume settles a redelivered job against the row a prior execution created.
// If any attempt already reached the carrier, it is never called again.
func (uc *SendSmsUseCase) resume(ctx context.Context, msg *entity.SmsMessage, job SmsJob) error {
	if msg.DeliveryStatus != entity.DeliveryPending && msg.DeliveryStatus != entity.DeliveryQueued {
		uc.Log.Infow("redelivered sms job already settled",
			"sms_id", msg.ID, "status", msg.DeliveryStatus)
		return nil
	}

	events, err := uc.Sms.ListEvents(ctx, msg.ID)
	if err != nil {
		return &PersistenceError{Op: "list delivery events", Err: err}
	}
	for _, ev := range events {
		if ev.Status == entity.DeliverySent {
			// The carrier accepted on a prior attempt but the status write was
			// lost. Repair the projection without another carrier call.
			if err := uc.Sms.UpdateStatus(ctx, msg.ID, msg.DeliveryStatus, entity.DeliverySent, msg.CarrierMessageID, msg.RetryCount); err != nil && !errors.Is(err, entity.ErrStaleTransition) {
				return &PersistenceError{Op: "repair sms status", Err: err}
			}
			metrics.RecordSmsOutcome(string(entity.DeliverySent))
			uc.Log.Infow("sms already accepted by carrier, send skipped", "sms_id", msg.ID)
			return nil
		}
	}
	return uc.deliver(ctx, msg, job.Phone)
}

func (uc *SendSmsUseCase) deliver(ctx context.Context, msg *entity.SmsMessage, phone string) error {
	if err := uc.Sms.UpdateStatus(ctx, msg.ID, entity.DeliveryPending, entity.DeliveryQueued, "", msg.RetryCount); err != nil && !errors.Is(err, entity.ErrStaleTransition) {
		// Stale means a prior execution already queued this row.
		return &PersistenceError{Op: "queue sms", Err: err}
	}

	carrierID, sendErr := uc.sendWithRetry(ctx, msg, phone)
	if sendErr != nil {
		if err := uc.Sms.UpdateStatus(ctx, msg.ID, entity.DeliveryQueued, entity.DeliveryFailed, "", entity.SmsMaxRetries); err != nil && !errors.Is(err, entity.ErrStaleTransition) {
			return &PersistenceError{Op: "fail sms", Err: err}
		}
		uc.appendSendLog(ctx, msg, entity.OutcomeError, "carrier rejected after retries", sendErr)
		metrics.RecordSmsOutcome(string(entity.DeliveryFailed))
		uc.Log.Errorw("sms failed permanently", "sms_id", msg.ID, "phone", msg.PhoneMasked, "error", sendErr)
		return nil
	}

	if err := uc.Sms.UpdateStatus(ctx, msg.ID, entity.DeliveryQueued, entity.DeliverySent, carrierID, msg.RetryCount); err != nil && !errors.Is(err, entity.ErrStaleTransition) {
		return &PersistenceError{Op: "mark sms sent", Err: err}
	}
	uc.appendSendLog(ctx, msg, entity.OutcomeSuccess, "sms accepted by carrier", nil)
	metrics.RecordSmsOutcome(string(entity.DeliverySent))
	uc.Log.Infow("sms sent", "sms_id", msg.ID, "carrier_message_id", carrierID, "phone", msg.PhoneMasked)
	return nil
}

// sendWithRetry drives the carrier call through bounded exponential backoff,
// appending one delivery event per attempt so every try is auditable.
func (uc *SendSmsUseCase) sendWithRetry(ctx context.Context, msg *entity.SmsMessage, phone string) (string, error) {
	var carrierID string
	backoff := retry.WithMaxRetries(entity.SmsMaxRetries-1, retry.NewExponential(uc.Backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		id, err := uc.Carrier.SendSMS(ctx, phone, msg.Body)
		status := entity.DeliverySent
		if err != nil {
			status = entity.DeliveryFailed
			msg.RetryCount++
		}
		if event, evErr := entity.NewSmsDeliveryEvent(msg.ID, status, "", time.Now()); evErr == nil {
			event.ErrorCode = carrierErrorCode(err)
			if appendErr := uc.Sms.AppendEvent(ctx, event); appendErr != nil {
				uc.Log.Errorw("delivery event append failed", "sms_id", msg.ID, "error", appendErr)
			}
		}
		if err != nil {
			return retry.RetryableError(&DeliveryError{CarrierCode: carrierErrorCode(err), Err: err})
		}
		carrierID = id
		return nil
	})
	return carrierID, err
}

func (uc *SendSmsUseCase) appendSendLog(ctx context.Context, msg *entity.SmsMessage, outcome entity.StepOutcome, message string, cause error) {
	entry, err := entity.NewProcessingLogEntry(msg.TenantID, entity.StepSmsSend, outcome, message)
	if err != nil {
		return
	}
	entry.LeadID = &msg.LeadID
	if cause != nil {
		entry.ErrorDetail = cause.Error()
	}
	if err := uc.Logs.Append(ctx, entry); err != nil {
		uc.Log.Errorw("processing log append failed", "step", entity.StepSmsSend, "error", err)
	}
}

func carrierErrorCode(err error) string {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.CarrierCode
	}
	return ""
}
