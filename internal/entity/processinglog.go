package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PipelineStep names the stages the ingestion pipeline logs.
type PipelineStep string

const (
	StepParse      PipelineStep = "parse"
	StepDedupe     PipelineStep = "dedup-check"
	StepPersist    PipelineStep = "persist"
	StepSmsEnqueue PipelineStep = "sms-enqueue"
	StepSmsSend    PipelineStep = "sms-send"
)

type StepOutcome string

const (
	OutcomeSuccess StepOutcome = "success"
	OutcomeWarning StepOutcome = "warning"
	OutcomeError   StepOutcome = "error"
)

func (o StepOutcome) Valid() bool {
	return o == OutcomeSuccess || o == OutcomeWarning || o == OutcomeError
}

// ProcessingLogEntry is immutable once written. It is the audit trail for
// every pipeline step, kept for debugging and compliance.
type ProcessingLogEntry struct {
	ID          string        `json:"id"`
	TenantID    int64         `json:"tenant_id"`
	LeadID      *string       `json:"lead_id,omitempty"`
	QueueItemID *string       `json:"queue_item_id,omitempty"`
	Step        PipelineStep  `json:"step"`
	Outcome     StepOutcome   `json:"outcome"`
	Message     string        `json:"message"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Latency     time.Duration `json:"latency_ms"`
	CreatedAt   time.Time     `json:"created_at"`
}

func NewProcessingLogEntry(tenantID int64, step PipelineStep, outcome StepOutcome, message string) (*ProcessingLogEntry, error) {
	entry := &ProcessingLogEntry{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Step:      step,
		Outcome:   outcome,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if tenantID <= 0 {
		return nil, errors.New("tenant_id is required")
	}
	if step == "" {
		return nil, errors.New("step is required")
	}
	if !outcome.Valid() {
		return nil, errors.New("invalid outcome")
	}
	return entry, nil
}
