package usecase

import (
	"context"
	"time"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

// UpsertResult tells a racing worker whether it created the lead or lost to
// an earlier identical delivery.
type UpsertResult struct {
	LeadID  string
	Created bool
}

type LeadRepository interface {
	// UpsertByFingerprint inserts the lead or, when (tenant_id, dedupe_hash)
	// already exists, returns the existing row's id. This is the only
	// mutual-exclusion point for lead creation.
	UpsertByFingerprint(ctx context.Context, lead *entity.Lead) (UpsertResult, error)
	FindByID(ctx context.Context, tenantID int64, id string) (*entity.Lead, error)
	SetConversation(ctx context.Context, tenantID int64, leadID, conversationID string) error
	UpdateProcessingStatus(ctx context.Context, tenantID int64, leadID string, from, to entity.ProcessingStatus) error
}

type EmailQueueRepository interface {
	// Enqueue inserts the item unless its message_id is already present, in
	// which case the existing item is returned with created=false.
	Enqueue(ctx context.Context, item *entity.EmailQueueItem) (existing *entity.EmailQueueItem, created bool, err error)
	// Claim moves one runnable item to processing using lock-and-skip-locked
	// semantics; it returns entity.ErrQueueItemNotFound when the item is gone
	// or already owned by another worker.
	Claim(ctx context.Context, itemID string) (*entity.EmailQueueItem, error)
	MarkProcessed(ctx context.Context, itemID, leadID string) error
	MarkRetrying(ctx context.Context, itemID string, attempts int, nextAttemptAt time.Time, procErr string) error
	MarkFailed(ctx context.Context, itemID string, attempts int, procErr string) error
	Cancel(ctx context.Context, tenantID int64, itemID string) error
	FindByID(ctx context.Context, tenantID int64, itemID string) (*entity.EmailQueueItem, error)
}

// LogFilter narrows audit queries; zero values mean "any".
type LogFilter struct {
	LeadID      string
	QueueItemID string
	Step        entity.PipelineStep
	Outcome     entity.StepOutcome
	Since       time.Time
	Until       time.Time
}

type ProcessingLogRepository interface {
	Append(ctx context.Context, entry *entity.ProcessingLogEntry) error
	List(ctx context.Context, tenantID int64, filter LogFilter) ([]entity.ProcessingLogEntry, error)
}

type SmsRepository interface {
	// CreateMessage is idempotent per lead: when a message for the lead
	// already exists, the stored row comes back with created=false.
	CreateMessage(ctx context.Context, msg *entity.SmsMessage) (*entity.SmsMessage, bool, error)
	FindMessageByID(ctx context.Context, id string) (*entity.SmsMessage, error)
	FindMessageByCarrierID(ctx context.Context, carrierMessageID string) (*entity.SmsMessage, error)
	// UpdateStatus is a compare-and-swap on the expected prior status; it
	// returns entity.ErrStaleTransition when a concurrent writer won.
	UpdateStatus(ctx context.Context, id string, from, to entity.DeliveryStatus, carrierMessageID string, retryCount int) error
	AppendEvent(ctx context.Context, event *entity.SmsDeliveryEvent) error
	ListEvents(ctx context.Context, smsMessageID string) ([]entity.SmsDeliveryEvent, error)
}

type OptOutRepository interface {
	Find(ctx context.Context, tenantID int64, phoneHash string) (*entity.SmsOptOut, error)
	OptOut(ctx context.Context, tenantID int64, phoneHash string) error
	OptBackIn(ctx context.Context, tenantID int64, phoneHash string) error
}

type ConversationRepository interface {
	// CreateForLead attaches a conversation unless the lead already has an
	// active one, in which case the existing conversation is returned.
	CreateForLead(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, error)
}

// CarrierClient sends one SMS and returns the carrier's message id.
type CarrierClient interface {
	SendSMS(ctx context.Context, to, body string) (carrierMessageID string, err error)
}

// EmailJob is the broker payload for one queued inbound email.
type EmailJob struct {
	QueueItemID string `json:"queue_item_id"`
	TenantID    int64  `json:"tenant_id"`
	Attempt     int    `json:"attempt"`
}

// SmsJob is the broker payload for one follow-up send.
type SmsJob struct {
	TenantID int64  `json:"tenant_id"`
	LeadID   string `json:"lead_id"`
	Phone    string `json:"phone"`
	Body     string `json:"body"`
}

type QueueProducer interface {
	PublishEmailJob(ctx context.Context, job EmailJob) error
	// PublishEmailRetry routes through the delay queue so the item comes back
	// after the backoff window.
	PublishEmailRetry(ctx context.Context, job EmailJob, delay time.Duration) error
	PublishSmsJob(ctx context.Context, job SmsJob) error
}

// AlertSender surfaces terminal queue failures to an operator.
type AlertSender interface {
	SendQueueFailureAlert(messageID string, attempts int, lastErr string) error
}
