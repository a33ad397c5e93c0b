// Package sender запускает потребителя очереди писем.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/predictions-backend/internal/config"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/predictions-backend/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/predictions-backend/internal/services/sender"
)

// App приложение отправки писем.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	consumer      *rabbitmq.Consumer
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к RabbitMQ и объявляет очередь писем.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEmailQueues(), cfg.RabbitMQPrefetch)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		consumer:      rabbitmq.NewConsumer(ch, rabbitmq.EmailQueue, cfg.RabbitMQPrefetch, logger),
		senderService: senderservice.NewSenderService(transport, logger),
		logger:        logger,
	}, nil
}

// Run обрабатывает письма до отмены ctx. Ошибка означает потерю канала брокера.
func (a *App) Run(ctx context.Context) error {
	err := a.consumer.Run(ctx, a.senderService.Handle)
	if err != nil {
		a.logger.Error("emails consumer stopped", sl.Err(err))
	} else {
		a.logger.Info("Sender service shutting down gracefully")
	}

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}

	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}

	return err
}
