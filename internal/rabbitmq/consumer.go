package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
)

// ErrMalformed сообщение нельзя обработать ни при какой повторной доставке.
// Такие сообщения уходят в очередь недоставленных, а не обратно в рабочую.
var ErrMalformed = errors.New("malformed message")

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// Consumer читает очередь пулом из workers обработчиков.
type Consumer struct {
	ch      *amqp.Channel
	queue   string
	workers int
	log     *slog.Logger
}

// NewConsumer создаёт Consumer для очереди, объявленной через SetupChannel.
func NewConsumer(ch *amqp.Channel, queue string, workers int, log *slog.Logger) *Consumer {
	return &Consumer{
		ch:      ch,
		queue:   queue,
		workers: max(workers, 1),
		log:     log.With(slog.String("queue", queue)),
	}
}

// Run обрабатывает сообщения до отмены ctx или закрытия канала брокером.
// Перед возвратом дожидается уже запущенных обработчиков.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	const op = "rabbitmq.Consumer.Run"
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, c.workers)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer func() {
					<-sem
					wg.Done()
				}()
				c.settle(d, handle(ctx, d.Body))
			}()
		}
	}
}

// settle подтверждает, возвращает в очередь или отбрасывает сообщение по результату обработки.
func (c *Consumer) settle(d amqp.Delivery, err error) {
	log := c.log.With(slog.Uint64("delivery_tag", d.DeliveryTag), slog.Bool("redelivered", d.Redelivered))
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrMalformed):
		log.Error("dropping malformed message", sl.Err(err))
		if rejErr := d.Reject(false); rejErr != nil {
			log.Error("failed to reject message", sl.Err(rejErr))
		}
	default:
		log.Warn("message handler failed, requeue", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
