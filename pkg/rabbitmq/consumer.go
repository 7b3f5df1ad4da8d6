package rabbitmq

import (
	"context"
	"fmt"

	"smartassist/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes one delivery body. A nil error acks the delivery; an
// error nacks it without requeueing so a poison message cannot loop.
type Handler func(ctx context.Context, routingKey string, body []byte) error

type Consumer struct {
	conn    *amqp.Connection
	channel channel
	queue   string
	handler Handler
	log     *logger.Logger
}

// NewConsumer declares a durable queue bound to the exchange with each of the
// given binding keys.
func NewConsumer(url, queue string, bindingKeys []string, handler Handler, log *logger.Logger) (*Consumer, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}

	c, err := newConsumer(ch, queue, bindingKeys, handler, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newConsumer(ch channel, queue string, bindingKeys []string, handler Handler, log *logger.Logger) (*Consumer, error) {
	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	for _, key := range bindingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("rabbitmq queue bind %s: %w", key, err)
		}
	}

	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}

	return &Consumer{channel: ch, queue: q.Name, handler: handler, log: log}, nil
}

// Start consumes until ctx is done or the delivery channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	c.log.Info("Consuming from queue", "queue", c.queue, "exchange", ExchangeName)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("rabbitmq delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	if err := c.handler(ctx, d.RoutingKey, d.Body); err != nil {
		c.log.Error("Failed to handle delivery", "routing_key", d.RoutingKey, "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.log.Error("Failed to nack delivery", "message_id", d.MessageId, "error", nackErr)
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.log.Error("Failed to ack delivery", "message_id", d.MessageId, "error", ackErr)
	}
}

func (c *Consumer) Close() error {
	var firstErr error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
