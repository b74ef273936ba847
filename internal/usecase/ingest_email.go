package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

// IngestEmailInput is what the external email listener hands us.
type IngestEmailInput struct {
	TenantID   int64     `json:"tenant_id"`
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	RawXML     string    `json:"raw_xml"`
}

type IngestEmailOutput struct {
	QueueItemID string `json:"queue_item_id"`
	Duplicate   bool   `json:"duplicate"`
}

// IngestEmailUseCase records one inbound email exactly once and hands it to
// the worker pool. Redelivery of a message_id we have already seen returns the
// existing queue item and publishes nothing.
type IngestEmailUseCase struct {
	Queue    EmailQueueRepository
	Producer QueueProducer
	Log      *zap.SugaredLogger
}

func NewIngestEmailUseCase(queue EmailQueueRepository, producer QueueProducer, log *zap.SugaredLogger) *IngestEmailUseCase {
	return &IngestEmailUseCase{Queue: queue, Producer: producer, Log: log}
}

func (uc *IngestEmailUseCase) Execute(ctx context.Context, input IngestEmailInput) (*IngestEmailOutput, error) {
	item, err := entity.NewEmailQueueItem(
		input.TenantID, input.MessageID, input.From, input.Subject, input.RawXML, input.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}

	existing, created, err := uc.Queue.Enqueue(ctx, item)
	if err != nil {
		return nil, &PersistenceError{Op: "enqueue email", Err: err}
	}
	if !created {
		uc.Log.Infow("duplicate email delivery ignored",
			"message_id", input.MessageID, "queue_item_id", existing.ID)
		return &IngestEmailOutput{QueueItemID: existing.ID, Duplicate: true}, nil
	}

	job := EmailJob{QueueItemID: item.ID, TenantID: item.TenantID, Attempt: 0}
	if err := uc.Producer.PublishEmailJob(ctx, job); err != nil {
		// The row exists, so a later sweep or manual requeue can recover it.
		uc.Log.Errorw("email queued in db but publish failed",
			"queue_item_id", item.ID, "error", err)
		return nil, &PersistenceError{Op: "publish email job", Err: err}
	}

	uc.Log.Infow("email queued", "queue_item_id", item.ID, "message_id", input.MessageID)
	return &IngestEmailOutput{QueueItemID: item.ID}, nil
}
