package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "ex.leads"
	DLXName      = "ex.leads.dlx"
	RetryDLXName = "ex.leads.retry"

	EmailQueueName      = "q.email-ingest"
	EmailRetryQueueName = "q.email-ingest.retry"
	EmailDLQName        = "q.email-ingest.dlq"
	SmsQueueName        = "q.sms-send"
	SmsDLQName          = "q.sms-send.dlq"

	EmailRoutingKey = "k.email"
	SmsRoutingKey   = "k.sms"
)

type RabbitMQ struct {
	Conn *amqp.Connection
	Ch   *amqp.Channel
}

func NewRabbitMQ(user, pass, host, port string) (*RabbitMQ, error) {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%s/", user, pass, host, port)

	conn, err := amqp.Dial(dsn)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := setupTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQ{Conn: conn, Ch: ch}, nil
}

func (r *RabbitMQ) Close() {
	r.Ch.Close()
	r.Conn.Close()
}

// setupTopology declares:
//   - the work queues, dead-lettering poison messages to their DLQs;
//   - a retry queue with no consumer, whose per-message TTL dead-letters
//     expired messages back onto the email work queue. That is how backoff
//     delays are enforced without a scheduler.
func setupTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(DLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(RetryDLXName, "direct", true, false, false, false, nil); err != nil {
		return err
	}

	for queueName, key := range map[string]string{
		EmailDLQName: EmailRoutingKey,
		SmsDLQName:   SmsRoutingKey,
	} {
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
			return err
		}
		if err := ch.QueueBind(queueName, key, DLXName, false, nil); err != nil {
			return err
		}
	}

	workArgs := amqp.Table{"x-dead-letter-exchange": DLXName}
	for queueName, key := range map[string]string{
		EmailQueueName: EmailRoutingKey,
		SmsQueueName:   SmsRoutingKey,
	} {
		workArgs["x-dead-letter-routing-key"] = key
		if _, err := ch.QueueDeclare(queueName, true, false, false, false, workArgs); err != nil {
			return err
		}
		if err := ch.QueueBind(queueName, key, ExchangeName, false, nil); err != nil {
			return err
		}
	}

	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": EmailRoutingKey,
	}
	if _, err := ch.QueueDeclare(EmailRetryQueueName, true, false, false, false, retryArgs); err != nil {
		return err
	}
	return ch.QueueBind(EmailRetryQueueName, EmailRoutingKey, RetryDLXName, false, nil)
}
