package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxRetries = 3

// EmailQueueItem is the durable record of one inbound lead email. The unique
// message_id keeps at-least-once redelivery from creating a second item.
type EmailQueueItem struct {
	ID               string           `json:"id"`
	TenantID         int64            `json:"tenant_id"`
	MessageID        string           `json:"message_id"`
	FromAddress      string           `json:"from_address"`
	Subject          string           `json:"subject"`
	ReceivedAt       time.Time        `json:"received_at"`
	RawContent       string           `json:"-"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	Attempts         int              `json:"attempts"`
	MaxRetries       int              `json:"max_retries"`
	Errors           []string         `json:"errors,omitempty"`
	ResultingLeadID  *string          `json:"resulting_lead_id,omitempty"`
	Cancelled        bool             `json:"cancelled"`
	NextAttemptAt    time.Time        `json:"next_attempt_at"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func NewEmailQueueItem(tenantID int64, messageID, from, subject, rawContent string, receivedAt time.Time) (*EmailQueueItem, error) {
	item := &EmailQueueItem{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		MessageID:        messageID,
		FromAddress:      from,
		Subject:          subject,
		ReceivedAt:       receivedAt,
		RawContent:       rawContent,
		ProcessingStatus: ProcessingPending,
		MaxRetries:       DefaultMaxRetries,
		NextAttemptAt:    time.Now(),
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

func (i *EmailQueueItem) Validate() error {
	if i.TenantID <= 0 {
		return errors.New("tenant_id is required")
	}
	if i.MessageID == "" {
		return errors.New("message_id is required")
	}
	if i.RawContent == "" {
		return errors.New("raw content is required")
	}
	if i.MaxRetries <= 0 {
		return errors.New("max_retries must be positive")
	}
	return nil
}

// CanTransition encodes the queue state machine:
// pending -> processing -> {processed | failed | retrying}, retrying -> processing.
func (i *EmailQueueItem) CanTransition(to ProcessingStatus) bool {
	switch i.ProcessingStatus {
	case ProcessingPending, ProcessingRetrying:
		return to == ProcessingInProgress
	case ProcessingInProgress:
		return to == ProcessingProcessed || to == ProcessingFailed || to == ProcessingRetrying
	}
	return false
}

// RetriesExhausted reports whether another failure must be terminal.
func (i *EmailQueueItem) RetriesExhausted() bool {
	return i.Attempts >= i.MaxRetries
}
