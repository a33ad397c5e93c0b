// Package services собирает письма из заданий очереди и отправляет их через SMTP.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/rabbitmq"
)

// ErrUnknownKind задание с неизвестным видом письма.
var ErrUnknownKind = errors.New("unknown email kind")

// SenderService отправляет письма из очереди.
type SenderService struct {
	transport smtp.Sender
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.Sender, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		log:       log,
	}
}

type email struct {
	to      string
	replyTo string
	subject string
	body    string
}

// Handle разбирает задание из очереди и отправляет соответствующее письмо.
// Задания, которые нельзя разобрать или отрисовать, помечаются rabbitmq.ErrMalformed.
func (s *SenderService) Handle(ctx context.Context, body []byte) error {
	const op = "services.sender.Handle"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var message models.EmailMessage
	if err := json.Unmarshal(body, &message); err != nil {
		s.log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w: %w", op, rabbitmq.ErrMalformed, err)
	}

	e, err := render(message)
	if err != nil {
		s.log.Error("failed to render email", slog.String("kind", message.Kind), sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrMalformed, err)
	}
	return s.sendEmail(e)
}

func render(m models.EmailMessage) (email, error) {
	if m.To == "" {
		return email{}, errors.New("empty recipient")
	}
	name := html.EscapeString(m.Name)
	switch m.Kind {
	case models.EmailRegisterOTP:
		return email{
			to:      m.To,
			subject: "Verify your email",
			body: fmt.Sprintf("<p>Hello %s,</p><p>Your verification code is <b>%s</b>.</p>"+
				"<p>The code is valid for 5 minutes.</p>", name, html.EscapeString(m.OTP)),
		}, nil
	case models.EmailForgotPasswordOTP:
		return email{
			to:      m.To,
			subject: "Reset your password",
			body: fmt.Sprintf("<p>Hello %s,</p><p>Use code <b>%s</b> to reset your password.</p>"+
				"<p>If you did not request a reset, ignore this email.</p>", name, html.EscapeString(m.OTP)),
		}, nil
	case models.EmailContact:
		return email{
			to:      m.To,
			replyTo: m.ReplyTo,
			subject: "Contact form: " + strings.ReplaceAll(m.Subject, "\n", " "),
			body: fmt.Sprintf("<p><b>Name:</b> %s</p><p><b>Email:</b> %s</p><p><b>Subject:</b> %s</p><p>%s</p>",
				name, html.EscapeString(m.ReplyTo), html.EscapeString(m.Subject),
				strings.ReplaceAll(html.EscapeString(m.Message), "\n", "<br>")),
		}, nil
	default:
		return email{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
}

func (s *SenderService) sendEmail(e email) error {
	from := s.transport.GetSMTPUser()
	headers := []string{
		"From: " + from,
		"To: " + e.to,
	}
	if e.replyTo != "" {
		headers = append(headers, "Reply-To: "+strings.ReplaceAll(e.replyTo, "\r\n", ""))
	}
	headers = append(headers,
		"Subject: "+strings.ReplaceAll(e.subject, "\r", ""),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=\"UTF-8\"",
		"",
		e.body,
	)
	msg := strings.Join(headers, "\r\n")

	if err := s.transport.Send([]string{e.to}, []byte(msg)); err != nil {
		s.log.Error("failed to send email", slog.String("to", e.to), sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.String("to", e.to))
	return nil
}
