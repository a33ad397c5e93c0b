// Package services ставит письма с формы обратной связи в очередь отправки.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// Publisher ставит задание в очередь.
type Publisher interface {
	Publish(ctx context.Context, message any) error
}

// ContactMessage сообщение с формы обратной связи.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
}

// EmailService отправляет сообщения администратору.
type EmailService struct {
	publisher  Publisher
	adminEmail string
	log        *slog.Logger
}

// NewEmailService создает новый экземпляр EmailService.
func NewEmailService(publisher Publisher, adminEmail string, log *slog.Logger) *EmailService {
	return &EmailService{publisher: publisher, adminEmail: adminEmail, log: log}
}

// Contact ставит письмо администратору в очередь. Ответ придёт на адрес отправителя.
func (s *EmailService) Contact(ctx context.Context, msg ContactMessage) error {
	const op = "services.email.Contact"
	err := s.publisher.Publish(ctx, models.EmailMessage{
		Kind:    models.EmailContact,
		To:      s.adminEmail,
		Name:    strings.TrimSpace(msg.Name),
		ReplyTo: strings.TrimSpace(msg.Email),
		Subject: strings.TrimSpace(msg.Subject),
		Message: msg.Message,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("contact message queued", slog.String("from", msg.Email))
	return nil
}
