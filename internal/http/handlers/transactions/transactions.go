// Package transactions реализует HTTP-обработчики оплаты: создание checkout-сессии,
// сводку для админ-панели, XLSX-выгрузку и вебхук Stripe.
package transactions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/transaction"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	// maxWebhookBody предел тела события Stripe.
	maxWebhookBody = 65536
)

// Service описывает интерфейс бизнес-логики транзакций.
type Service interface {
	Checkout(ctx context.Context, userID, promoCode string) (*models.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error)
	ValidateYear(year int) (int, error)
	Dashboard(ctx context.Context, year int) (*models.TransactionStats, error)
	Export(ctx context.Context, year int, w io.Writer) error
}

// Handler обрабатывает HTTP-запросы разделов /transactions и /webhooks.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// CheckoutRequest необязательный промокод.
type CheckoutRequest struct {
	PromoCode string `json:"promoCode"`
}

type webhookResponse struct {
	Success   bool   `json:"success"`
	Received  bool   `json:"received"`
	EventType string `json:"eventType"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrPackageNotFound), errors.Is(err, services.ErrPackageInactive):
		response.JSON(w, r, http.StatusNotFound, response.Error("Package not found or inactive"))
	case errors.Is(err, services.ErrUserNotFound):
		response.JSON(w, r, http.StatusNotFound, response.Error("User not found"))
	case errors.Is(err, services.ErrPromoNotFound),
		errors.Is(err, services.ErrPromoInactive),
		errors.Is(err, services.ErrPromoExpired),
		errors.Is(err, services.ErrPromoExhausted),
		errors.Is(err, services.ErrInvalidYear),
		errors.Is(err, services.ErrInvalidSignature):
		response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, services.ErrCheckoutInProcess):
		response.JSON(w, r, http.StatusConflict, response.Error(err.Error()))
	case errors.Is(err, services.ErrPaymentProvider):
		log.Error("payment provider failed", sl.Err(err))
		response.JSON(w, r, http.StatusBadGateway, response.Error("payment provider error"))
	default:
		log.Error("request failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("internal server error"))
	}
}

// year читает ?year и проверяет диапазон. Пишет 400 при ошибке.
func (h *Handler) year(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("year")
	year := 0
	if raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			response.JSON(w, r, http.StatusBadRequest, response.Error(services.ErrInvalidYear.Error()))
			return 0, false
		}
		year = v
	}
	year, err := h.service.ValidateYear(year)
	if err != nil {
		response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
		return 0, false
	}
	return year, true
}

// Checkout godoc
// @Summary Создать checkout-сессию
// @Description Оплата текущего пакета подписки с необязательным промокодом.
// @Tags Transactions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CheckoutRequest false "Промокод"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Пакет неактивен или промокод недействителен"
// @Failure 404 {object} response.ErrorResponse "Пакет не найден"
// @Failure 502 {object} response.ErrorResponse "Ошибка Stripe"
// @Router /transactions/checkout [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transactions.Checkout"
	log := h.logger(r, op)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.JSON(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}

	var req CheckoutRequest
	if r.ContentLength != 0 {
		if !request.Bind(w, r, log, h.validate, &req) {
			return
		}
	}

	res, err := h.service.Checkout(r.Context(), userID, req.PromoCode)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Checkout session created successfully", res))
}

// Dashboard godoc
// @Summary Сводка оплат за год
// @Tags Transactions
// @Security BearerAuth
// @Produce json
// @Param year query int false "Год, по умолчанию текущий"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Год вне диапазона"
// @Router /transactions/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transactions.Dashboard"
	log := h.logger(r, op)

	year, ok := h.year(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Dashboard(r.Context(), year)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Dashboard data retrieved successfully", stats))
}

// Export godoc
// @Summary XLSX-выгрузка транзакций за год
// @Tags Transactions
// @Security BearerAuth
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param year query int false "Год, по умолчанию текущий"
// @Success 200 {file} file
// @Router /transactions/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transactions.Export"
	log := h.logger(r, op)

	year, ok := h.year(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="transactions-`+strconv.Itoa(year)+`.xlsx"`)
	if err := h.service.Export(r.Context(), year, w); err != nil {
		w.Header().Del("Content-Disposition")
		h.fail(w, r, log, err)
		return
	}
	log.Info("transactions exported", slog.Int("year", year))
}

// Webhook godoc
// @Summary Вебхук Stripe
// @Description Проверяет подпись и применяет событие. Повторная доставка безопасна.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Подпись события"
// @Success 200 {object} webhookResponse
// @Failure 400 {object} response.ErrorResponse "Нет подписи или подпись неверна"
// @Router /webhooks/stripe [post]
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.transactions.Webhook"
	log := h.logger(r, op)

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		log.Warn("webhook without signature")
		response.JSON(w, r, http.StatusBadRequest, response.Error("missing Stripe-Signature header"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("invalid request body"))
		return
	}

	eventType, err := h.service.HandleWebhook(r.Context(), payload, signature)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("webhook handled", slog.String("event_type", eventType))
	response.JSON(w, r, http.StatusOK, webhookResponse{Success: true, Received: true, EventType: eventType})
}
