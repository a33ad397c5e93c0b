// Package subscription реализует HTTP-обработчики пакета подписки и промокодов.
package subscription

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/pagination"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/subscription"
)

// Service описывает интерфейс бизнес-логики подписки.
type Service interface {
	SavePackage(ctx context.Context, in models.PackageInput) (*models.SubscriptionPackage, bool, error)
	Package(ctx context.Context) (*models.SubscriptionPackage, error)
	CreatePromoCode(ctx context.Context, in services.PromoInput) (*models.PromoCode, error)
	ListPromoCodes(ctx context.Context, limit, offset int) ([]models.PromoCode, int, error)
	DeletePromoCode(ctx context.Context, id string) error
}

// Handler обрабатывает HTTP-запросы раздела /subscription.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// PromoRequest данные нового промокода.
type PromoRequest struct {
	Code      string     `json:"code" validate:"required"`
	Discount  *float64   `json:"discount" validate:"required"`
	ExpiresAt *time.Time `json:"expiresAt"`
	MaxUses   *int       `json:"maxUses"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPackage),
		errors.Is(err, services.ErrInvalidDiscount),
		errors.Is(err, services.ErrInvalidMaxUses),
		errors.Is(err, services.ErrPromoExists):
		response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, services.ErrPackageNotFound):
		response.JSON(w, r, http.StatusNotFound, response.Error("Subscription package not found"))
	case errors.Is(err, services.ErrPromoNotFound):
		response.JSON(w, r, http.StatusNotFound, response.Error("Promo code not found"))
	case errors.Is(err, services.ErrPaymentProvider):
		log.Error("payment provider failed", sl.Err(err))
		response.JSON(w, r, http.StatusBadGateway, response.Error("payment provider error"))
	default:
		log.Error("request failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("internal server error"))
	}
}

// SavePackage godoc
// @Summary Создать или обновить пакет подписки
// @Description Создаёт пакет, если его нет, иначе частично обновляет текущий.
// @Tags Subscription
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body models.PackageInput true "Данные пакета"
// @Success 200 {object} response.Response "Обновлён"
// @Success 201 {object} response.Response "Создан"
// @Failure 400 {object} response.ErrorResponse "Не хватает полей"
// @Failure 502 {object} response.ErrorResponse "Ошибка Stripe"
// @Router /subscription/package [post]
func (h *Handler) SavePackage(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.SavePackage"
	log := h.logger(r, op)

	var req models.PackageInput
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	pkg, created, err := h.service.SavePackage(r.Context(), req)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("subscription package saved", slog.String("id", pkg.ID), slog.Bool("created", created))
	if created {
		response.JSON(w, r, http.StatusCreated, response.OK("Subscription package created successfully", pkg))
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Subscription package updated successfully", pkg))
}

// Package godoc
// @Summary Текущий пакет подписки
// @Tags Subscription
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /subscription/package [get]
func (h *Handler) Package(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.Package"
	log := h.logger(r, op)

	pkg, err := h.service.Package(r.Context())
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Subscription package retrieved successfully", pkg))
}

// CreatePromoCode godoc
// @Summary Создать промокод
// @Tags Subscription
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body PromoRequest true "Промокод"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверная скидка или код уже существует"
// @Failure 502 {object} response.ErrorResponse "Ошибка Stripe"
// @Router /subscription/promo-code [post]
func (h *Handler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.CreatePromoCode"
	log := h.logger(r, op)

	var req PromoRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	promo, err := h.service.CreatePromoCode(r.Context(), services.PromoInput{
		Code:      req.Code,
		Discount:  *req.Discount,
		ExpiresAt: req.ExpiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("promo code created", slog.String("code", promo.Code))
	response.JSON(w, r, http.StatusCreated, response.OK("Promo code created successfully", promo))
}

// ListPromoCodes godoc
// @Summary Список промокодов
// @Tags Subscription
// @Security BearerAuth
// @Produce json
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Router /subscription/promo-code [get]
func (h *Handler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.ListPromoCodes"
	log := h.logger(r, op)

	page := pagination.FromQuery(r.URL.Query())
	items, total, err := h.service.ListPromoCodes(r.Context(), page.Limit, page.Offset())
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Page("Promo codes retrieved successfully", items, pagination.NewMeta(page, total)))
}

// DeletePromoCode godoc
// @Summary Удалить промокод
// @Tags Subscription
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID промокода"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /subscription/promo-code/{id} [delete]
func (h *Handler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.DeletePromoCode"
	log := h.logger(r, op)

	id := chi.URLParam(r, "id")
	if !request.ValidID(id) {
		response.JSON(w, r, http.StatusNotFound, response.Error("Promo code not found"))
		return
	}
	if err := h.service.DeletePromoCode(r.Context(), id); err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("promo code deleted", slog.String("id", id))
	response.JSON(w, r, http.StatusOK, response.OK("Promo code deleted successfully", nil))
}
