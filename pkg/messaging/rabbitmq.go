package messaging

import (
	"context"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

// Publisher pushes persistent JSON messages onto a single durable queue.
type Publisher struct {
	conn    *amqp091.Connection
	queue   string
	mu      sync.Mutex
	channel *amqp091.Channel
}

// NewPublisher dials the broker and declares the target queue.
func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	p := &Publisher{conn: conn, queue: queue}
	if _, err := p.ensureChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Publisher) ensureChannel() (*amqp091.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}
	p.channel = ch
	return ch, nil
}

// Publish sends body to the queue. A closed channel is reopened once per call.
func (p *Publisher) Publish(ctx context.Context, messageType string, body []byte) error {
	ch, err := p.ensureChannel()
	if err != nil {
		return err
	}
	msg := amqp091.Publishing{
		ContentType:  contentTypeJSON,
		Body:         body,
		DeliveryMode: amqp091.Persistent,
		Type:         messageType,
		Headers: amqp091.Table{
			"message_type":     "JSON",
			"requeue_strategy": "DROP",
		},
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	return p.conn.Close()
}
