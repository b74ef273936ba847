package queue

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/rylieapp/adf-pipeline/internal/metrics"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

// EmailProcessor and SmsSender are the two use cases the worker pool drives.
type EmailProcessor interface {
	Execute(ctx context.Context, job usecase.EmailJob) error
}

type SmsSender interface {
	Execute(ctx context.Context, job usecase.SmsJob) error
}

// Worker consumes both work queues with a bounded pool of goroutines. Exactly
// one worker handles a given delivery; ownership of the queue item itself is
// taken by the database claim step, so even a redelivered broker message is
// safe.
type Worker struct {
	Ch       *amqp.Channel
	Emails   EmailProcessor
	Sms      SmsSender
	PoolSize int
	Log      *zap.SugaredLogger
}

func NewWorker(ch *amqp.Channel, emails EmailProcessor, sms SmsSender, poolSize int, log *zap.SugaredLogger) *Worker {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Worker{Ch: ch, Emails: emails, Sms: sms, PoolSize: poolSize, Log: log}
}

// Start blocks until ctx is cancelled and all in-flight handlers return.
func (w *Worker) Start(ctx context.Context) error {
	if err := w.Ch.Qos(w.PoolSize, 0, false); err != nil {
		return err
	}

	emailMsgs, err := w.Ch.Consume(EmailQueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}
	smsMsgs, err := w.Ch.Consume(SmsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < w.PoolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx, emailMsgs, smsMsgs)
		}()
	}

	w.Log.Infow("worker pool started", "size", w.PoolSize)
	wg.Wait()
	return nil
}

func (w *Worker) consume(ctx context.Context, emails, sms <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-emails:
			if !ok {
				return
			}
			w.handleEmail(ctx, d)
		case d, ok := <-sms:
			if !ok {
				return
			}
			w.handleSms(ctx, d)
		}
	}
}

func (w *Worker) handleEmail(ctx context.Context, d amqp.Delivery) {
	var job usecase.EmailJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.Log.Errorw("poison email job, sending to dlq", "error", err)
		d.Nack(false, false)
		return
	}

	if err := w.Emails.Execute(ctx, job); err != nil {
		// The use case settles its own retries; an error here means the
		// claim or settle write itself failed, so let the broker redeliver.
		w.Log.Errorw("email job errored, requeueing delivery",
			"queue_item_id", job.QueueItemID, "error", err)
		metrics.RecordPipelineError("email")
		d.Nack(false, !d.Redelivered)
		return
	}
	d.Ack(false)
}

func (w *Worker) handleSms(ctx context.Context, d amqp.Delivery) {
	var job usecase.SmsJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.Log.Errorw("poison sms job, sending to dlq", "error", err)
		d.Nack(false, false)
		return
	}

	if err := w.Sms.Execute(ctx, job); err != nil {
		w.Log.Errorw("sms job errored, requeueing delivery",
			"lead_id", job.LeadID, "error", err)
		metrics.RecordPipelineError("sms")
		d.Nack(false, !d.Redelivered)
		return
	}
	d.Ack(false)
}
