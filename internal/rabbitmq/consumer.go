package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/fromelabs/chat-backend/internal/lib/sl"
)

// maxInFlight предельное число сообщений, обрабатываемых одновременно.
const maxInFlight = 10

// Consumer читает уведомления из очереди и передает их обработчику.
// Сообщение подтверждается после успешной обработки, при ошибке
// возвращается в очередь.
type Consumer struct {
	ch      *amqp.Channel
	queue   string
	handler func([]byte) error
	log     *slog.Logger
}

// NewConsumer создает потребителя для очереди queue.
func NewConsumer(ch *amqp.Channel, queue string, handler func([]byte) error, log *slog.Logger) *Consumer {
	return &Consumer{ch: ch, queue: queue, handler: handler, log: log}
}

// Run подписывается на очередь и обрабатывает сообщения до отмены контекста.
func (c *Consumer) Run(ctx context.Context) error {
	const op = "rabbitmq.Consumer.Run"

	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go c.loop(ctx, deliveries)
	return nil
}

func (c *Consumer) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	sem := make(chan struct{}, maxInFlight)
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				c.handle(d)
			}(d)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) handle(d amqp.Delivery) {
	if err := c.handler(d.Body); err != nil {
		c.log.Error("notification handling failed, requeueing", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.log.Error("failed to ack message", sl.Err(ackErr))
	}
}
