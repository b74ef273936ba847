package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

type Producer struct {
	Ch *amqp.Channel
}

func NewProducer(ch *amqp.Channel) *Producer {
	return &Producer{Ch: ch}
}

func (p *Producer) PublishEmailJob(ctx context.Context, job usecase.EmailJob) error {
	return p.publish(ctx, ExchangeName, EmailRoutingKey, job, 0)
}

// PublishEmailRetry parks the job on the retry queue; when its TTL expires it
// dead-letters back onto the work queue.
func (p *Producer) PublishEmailRetry(ctx context.Context, job usecase.EmailJob, delay time.Duration) error {
	return p.publish(ctx, RetryDLXName, EmailRoutingKey, job, delay)
}

func (p *Producer) PublishSmsJob(ctx context.Context, job usecase.SmsJob) error {
	return p.publish(ctx, ExchangeName, SmsRoutingKey, job, 0)
}

func (p *Producer) publish(ctx context.Context, exchange, key string, payload any, ttl time.Duration) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", key, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}

	if err := p.Ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s/%s: %w", exchange, key, err)
	}
	return nil
}
