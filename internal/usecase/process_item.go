package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/adf"
	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/metrics"
)

const retryBaseBackoff = 30 * time.Second

// ProcessQueueItemUseCase runs the full pipeline for one claimed email:
// parse, dedup-check, persist, conversation link, sms-enqueue, each with its
// own audit entry. Transient failures requeue the item with backoff until the
// retry bound; exhaustion is terminal and alerts an operator.
type ProcessQueueItemUseCase struct {
	Queue         EmailQueueRepository
	Leads         LeadRepository
	Logs          ProcessingLogRepository
	Conversations ConversationRepository
	Producer      QueueProducer
	Alerts        AlertSender
	FollowUpBody  string
	Log           *zap.SugaredLogger
}

func NewProcessQueueItemUseCase(
	queue EmailQueueRepository,
	leads LeadRepository,
	logs ProcessingLogRepository,
	conversations ConversationRepository,
	producer QueueProducer,
	alerts AlertSender,
	followUpBody string,
	log *zap.SugaredLogger,
) *ProcessQueueItemUseCase {
	return &ProcessQueueItemUseCase{
		Queue:         queue,
		Leads:         leads,
		Logs:          logs,
		Conversations: conversations,
		Producer:      producer,
		Alerts:        alerts,
		FollowUpBody:  followUpBody,
		Log:           log,
	}
}

// Execute processes one job. A nil return means the job is settled (success,
// duplicate, terminal failure or scheduled retry); an error means the broker
// delivery itself should be retried.
func (uc *ProcessQueueItemUseCase) Execute(ctx context.Context, job EmailJob) error {
	item, err := uc.Queue.Claim(ctx, job.QueueItemID)
	if errors.Is(err, entity.ErrQueueItemNotFound) {
		// Already owned, settled, or cancelled-and-reaped. Nothing to do.
		uc.Log.Debugw("claim skipped", "queue_item_id", job.QueueItemID)
		return nil
	}
	if err != nil {
		return &PersistenceError{Op: "claim queue item", Err: err}
	}

	if item.Cancelled {
		// Cancellation is best-effort: the flag is honored here, before any
		// pipeline work, and the item never retries.
		uc.Log.Infow("queue item cancelled by operator", "queue_item_id", item.ID)
		return uc.Queue.MarkFailed(ctx, item.ID, item.Attempts+1, "cancelled by operator")
	}

	leadID, err := uc.runPipeline(ctx, item)
	if err != nil {
		return uc.settleFailure(ctx, item, err)
	}

	if err := uc.Queue.MarkProcessed(ctx, item.ID, leadID); err != nil {
		if errors.Is(err, entity.ErrStaleTransition) {
			// Cancelled mid-flight; the work is done but the result is
			// discarded post-hoc, per the cancellation contract.
			uc.Log.Infow("result discarded, item cancelled during processing",
				"queue_item_id", item.ID, "lead_id", leadID)
			return nil
		}
		return &PersistenceError{Op: "mark processed", Err: err}
	}
	return nil
}

func (uc *ProcessQueueItemUseCase) runPipeline(ctx context.Context, item *entity.EmailQueueItem) (string, error) {
	// Step 1: parse.
	start := time.Now()
	doc, err := adf.Parse([]byte(item.RawContent))
	if err != nil {
		uc.appendLog(ctx, item, nil, entity.StepParse, entity.OutcomeError, "unparsable adf document", err, time.Since(start))
		var parseErr *adf.ParseError
		if errors.As(err, &parseErr) {
			// Malformed XML never becomes valid on retry.
			return "", parseErr
		}
		return "", err
	}

	normalized, warnings := adf.Normalize(doc)
	if len(warnings) > 0 {
		uc.appendLog(ctx, item, nil, entity.StepParse, entity.OutcomeWarning, warningSummary(warnings), nil, time.Since(start))
	} else {
		uc.appendLog(ctx, item, nil, entity.StepParse, entity.OutcomeSuccess, "adf document parsed", nil, time.Since(start))
	}

	// Step 2: dedup-check.
	start = time.Now()
	hash := adf.Fingerprint(item.TenantID, normalized)
	uc.appendLog(ctx, item, nil, entity.StepDedupe, entity.OutcomeSuccess, "fingerprint "+hash[:12], nil, time.Since(start))

	// Step 3: persist via transactional upsert, the sole mutual-exclusion
	// point for lead creation.
	start = time.Now()
	lead, err := leadFromNormalized(item, normalized, hash)
	if err != nil {
		uc.appendLog(ctx, item, nil, entity.StepPersist, entity.OutcomeError, "lead rejected by validation", err, time.Since(start))
		return "", err
	}

	result, err := uc.Leads.UpsertByFingerprint(ctx, lead)
	if err != nil {
		wrapped := &PersistenceError{Op: "upsert lead", Err: err}
		uc.appendLog(ctx, item, nil, entity.StepPersist, entity.OutcomeError, "lead upsert failed", wrapped, time.Since(start))
		return "", wrapped
	}

	metrics.RecordLeadIngested(result.Created)
	if !result.Created {
		// The fingerprint can collide with another message's lead, or with a
		// lead this same item created on an earlier attempt that died before
		// finishing the follow-up. Only a fully processed lead is a duplicate.
		existing, err := uc.Leads.FindByID(ctx, item.TenantID, result.LeadID)
		if err != nil {
			wrapped := &PersistenceError{Op: "load colliding lead", Err: err}
			uc.appendLog(ctx, item, &result.LeadID, entity.StepPersist, entity.OutcomeError, "colliding lead lookup failed", wrapped, time.Since(start))
			return "", wrapped
		}
		if existing.ProcessingStatus == entity.ProcessingProcessed {
			dup := &DuplicateDetected{ExistingLeadID: result.LeadID}
			uc.appendLog(ctx, item, &result.LeadID, entity.StepPersist, entity.OutcomeSuccess, dup.Error(), nil, time.Since(start))
			uc.Log.Infow("duplicate lead collapsed",
				"queue_item_id", item.ID, "lead_id", result.LeadID, "dedupe_hash", hash)
			return result.LeadID, nil
		}
		uc.appendLog(ctx, item, &result.LeadID, entity.StepPersist, entity.OutcomeSuccess, "resuming partially processed lead", nil, time.Since(start))
		uc.Log.Infow("resuming partially processed lead",
			"queue_item_id", item.ID, "lead_id", result.LeadID)
	} else {
		uc.appendLog(ctx, item, &result.LeadID, entity.StepPersist, entity.OutcomeSuccess, "lead created", nil, time.Since(start))
	}

	// Step 4: conversation link + sms-enqueue. Runs for fresh leads and for
	// resumed ones; every piece is idempotent (the conversation create reuses
	// an existing active row, the SMS send is keyed on the lead).
	start = time.Now()
	if err := uc.attachFollowUp(ctx, item, result.LeadID, normalized); err != nil {
		uc.appendLog(ctx, item, &result.LeadID, entity.StepSmsEnqueue, entity.OutcomeError, "follow-up setup failed", err, time.Since(start))
		return "", err
	}
	uc.appendLog(ctx, item, &result.LeadID, entity.StepSmsEnqueue, entity.OutcomeSuccess, "follow-up scheduled", nil, time.Since(start))

	err = uc.Leads.UpdateProcessingStatus(ctx, item.TenantID, result.LeadID, entity.ProcessingPending, entity.ProcessingProcessed)
	if err != nil && !errors.Is(err, entity.ErrStaleTransition) {
		return "", &PersistenceError{Op: "finalize lead", Err: err}
	}
	return result.LeadID, nil
}

func (uc *ProcessQueueItemUseCase) attachFollowUp(ctx context.Context, item *entity.EmailQueueItem, leadID string, normalized *adf.NormalizedLead) error {
	conv, err := entity.NewConversation(item.TenantID, leadID, "sms")
	if err != nil {
		return err
	}
	linked, err := uc.Conversations.CreateForLead(ctx, conv)
	if err != nil {
		return &PersistenceError{Op: "create conversation", Err: err}
	}
	if err := uc.Leads.SetConversation(ctx, item.TenantID, leadID, linked.ID); err != nil {
		return &PersistenceError{Op: "link conversation", Err: err}
	}

	if normalized.Phone == "" {
		// No SMS without a number; the lead still lands for manual follow-up.
		uc.Log.Infow("lead has no phone, skipping sms enqueue", "lead_id", leadID)
		return nil
	}
	job := SmsJob{
		TenantID: item.TenantID,
		LeadID:   leadID,
		Phone:    normalized.Phone,
		Body:     uc.FollowUpBody,
	}
	if err := uc.Producer.PublishSmsJob(ctx, job); err != nil {
		return &PersistenceError{Op: "publish sms job", Err: err}
	}
	return nil
}

// settleFailure applies the retry policy: parse errors and exhausted retries
// are terminal, everything retryable is requeued with exponential backoff.
func (uc *ProcessQueueItemUseCase) settleFailure(ctx context.Context, item *entity.EmailQueueItem, procErr error) error {
	attempts := item.Attempts + 1

	var parseErr *adf.ParseError
	terminal := errors.As(procErr, &parseErr) || attempts >= item.MaxRetries

	if terminal {
		if err := uc.Queue.MarkFailed(ctx, item.ID, attempts, procErr.Error()); err != nil {
			return &PersistenceError{Op: "mark failed", Err: err}
		}
		uc.Log.Errorw("queue item failed permanently",
			"queue_item_id", item.ID, "message_id", item.MessageID,
			"attempts", attempts, "error", procErr)
		if uc.Alerts != nil {
			if alertErr := uc.Alerts.SendQueueFailureAlert(item.MessageID, attempts, procErr.Error()); alertErr != nil {
				uc.Log.Warnw("operator alert failed", "error", alertErr)
			}
		}
		return nil
	}

	delay := retryBaseBackoff << (attempts - 1)
	nextAttempt := time.Now().Add(delay)
	if err := uc.Queue.MarkRetrying(ctx, item.ID, attempts, nextAttempt, procErr.Error()); err != nil {
		return &PersistenceError{Op: "mark retrying", Err: err}
	}
	job := EmailJob{QueueItemID: item.ID, TenantID: item.TenantID, Attempt: attempts}
	if err := uc.Producer.PublishEmailRetry(ctx, job, delay); err != nil {
		return &PersistenceError{Op: "publish retry", Err: err}
	}
	uc.Log.Warnw("queue item scheduled for retry",
		"queue_item_id", item.ID, "attempt", attempts, "delay", delay, "error", procErr)
	return nil
}

func (uc *ProcessQueueItemUseCase) appendLog(
	ctx context.Context,
	item *entity.EmailQueueItem,
	leadID *string,
	step entity.PipelineStep,
	outcome entity.StepOutcome,
	message string,
	cause error,
	latency time.Duration,
) {
	entry, err := entity.NewProcessingLogEntry(item.TenantID, step, outcome, message)
	if err != nil {
		uc.Log.Errorw("could not build log entry", "step", step, "error", err)
		return
	}
	entry.QueueItemID = &item.ID
	entry.LeadID = leadID
	entry.Latency = latency
	if cause != nil {
		entry.ErrorDetail = cause.Error()
	}
	// Audit writes must never take the pipeline down with them.
	if err := uc.Logs.Append(ctx, entry); err != nil {
		uc.Log.Errorw("processing log append failed", "step", step, "error", err)
	}
}

func leadFromNormalized(item *entity.EmailQueueItem, n *adf.NormalizedLead, hash string) (*entity.Lead, error) {
	customer := entity.Customer{
		FirstName: n.FirstName,
		LastName:  n.LastName,
		Email:     n.Email,
		Phone:     n.Phone,
		Street:    n.Street,
		City:      n.City,
		State:     n.State,
		ZipCode:   n.ZipCode,
	}
	vehicle := entity.Vehicle{
		VIN:       n.Vehicle.VIN,
		Year:      n.Vehicle.Year,
		Make:      n.Vehicle.Make,
		Model:     n.Vehicle.Model,
		Trim:      n.Vehicle.Trim,
		StockNum:  n.Vehicle.StockNum,
		Condition: n.Vehicle.Condition,
	}

	lead, err := entity.NewLead(item.TenantID, customer, vehicle, hash, item.RawContent)
	if err != nil {
		return nil, err
	}
	lead.VendorName = n.VendorName
	lead.ProviderName = n.ProviderName
	lead.Comments = n.Comments
	if n.TradeIn != nil {
		lead.TradeIn = &entity.Vehicle{
			VIN:       n.TradeIn.VIN,
			Year:      n.TradeIn.Year,
			Make:      n.TradeIn.Make,
			Model:     n.TradeIn.Model,
			Trim:      n.TradeIn.Trim,
			StockNum:  n.TradeIn.StockNum,
			Condition: n.TradeIn.Condition,
		}
	}
	return lead, nil
}

func warningSummary(warnings []adf.Warning) string {
	parts := make([]string, len(warnings))
	for i, w := range warnings {
		parts[i] = w.String()
	}
	return "parsed with warnings: " + strings.Join(parts, "; ")
}
