// Package rabbitmq подключается к RabbitMQ, объявляет обменник и очереди,
// публикует и потребляет JSON-сообщения.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, делая до attempts попыток с паузой delay между ними.
func Connect(url string, attempts int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	attempts = max(attempts, 1)

	var err error
	for i := range attempts {
		var conn *amqp.Connection
		if conn, err = amqp.Dial(url); err == nil {
			return conn, nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("%s: %d attempts: %w", op, attempts, err)
}

// SetupChannel открывает канал с лимитом prefetch неподтверждённых сообщений,
// объявляет Exchange и очереди. У каждой очереди есть парная <queue>.dead,
// куда попадают отклонённые сообщения.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig, prefetch int) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = setup(ch, queues, max(prefetch, 1)); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ch, nil
}

func setup(ch *amqp.Channel, queues []QueueConfig, prefetch int) error {
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	if err := ch.ExchangeDeclare(DeadLetterExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", DeadLetterExchange, err)
	}

	for _, q := range queues {
		dead := q.DeadLetterQueue()
		if _, err := ch.QueueDeclare(dead, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", dead, err)
		}
		if err := ch.QueueBind(dead, q.QueueName, DeadLetterExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", dead, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    DeadLetterExchange,
			"x-dead-letter-routing-key": q.QueueName,
		}
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s with routing key %s: %w", q.QueueName, q.RoutingKey, err)
		}
	}
	return nil
}
