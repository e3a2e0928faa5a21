package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, data json.RawMessage) error

// Consumer reads one routing key from its own durable queue
// ("<routing key>.q") with manual acknowledgement. Failed messages are
// requeued.
type Consumer struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	queue      amqp091.Queue
	routingKey string
	handler    MessageHandler
	logger     *zap.Logger
}

func NewConsumer(url, routingKey string, logger *zap.Logger) (*Consumer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		routingKey+".q",
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, routingKey, ExchangeName, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	return &Consumer{
		conn:       conn,
		channel:    ch,
		queue:      q,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks reading the queue; run it in a goroutine.
func (c *Consumer) StartConsuming() error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	msgs, err := c.channel.Consume(
		c.queue.Name,
		"worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("consumer started",
		zap.String("routing_key", c.routingKey),
		zap.String("queue", c.queue.Name))

	for msg := range msgs {
		c.handle(msg)
	}
	return nil
}

func (c *Consumer) handle(msg amqp091.Delivery) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("handler panic, requeueing message",
				zap.String("routing_key", c.routingKey),
				zap.Any("panic", rec))
			_ = msg.Nack(false, true)
		}
	}()

	if err := c.handler(context.Background(), msg.Body); err != nil {
		c.logger.Error("handler error",
			zap.String("routing_key", c.routingKey),
			zap.Error(err))
		_ = msg.Nack(false, true)
		return
	}
	if err := msg.Ack(false); err != nil {
		c.logger.Error("failed to ack message",
			zap.String("routing_key", c.routingKey),
			zap.Error(err))
	}
}
