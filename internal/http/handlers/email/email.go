// Package email принимает сообщения с формы обратной связи.
package email

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/email"
)

// Service ставит письмо администратору в очередь.
type Service interface {
	Contact(ctx context.Context, msg services.ContactMessage) error
}

// Handler обрабатывает POST /email/send.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// Request сообщение с формы обратной связи.
type Request struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// ServeHTTP godoc
// @Summary Написать администратору
// @Tags Email
// @Accept json
// @Produce json
// @Param request body Request true "Сообщение"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Ошибка валидации"
// @Router /email/send [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.email.send"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	err := h.service.Contact(r.Context(), services.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		log.Error("failed to queue contact message", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to send message"))
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Message sent successfully", nil))
}
