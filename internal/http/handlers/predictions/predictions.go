// Package predictions реализует HTTP-обработчики прогнозов: административное
// управление, пользовательскую ленту с курсором и статистику побед.
package predictions

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/pagination"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/predictions"
)

// Service описывает интерфейс бизнес-логики прогнозов.
type Service interface {
	Create(ctx context.Context, category string, description *string, image *filestore.Upload) (*models.Prediction, error)
	List(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error)
	Update(ctx context.Context, id string, upd models.PredictionUpdate, image *filestore.Upload) (*models.Prediction, error)
	Delete(ctx context.Context, ids []string) (*services.DeleteResult, error)
	Feed(ctx context.Context, q models.FeedQuery) (*services.FeedPage, error)
	WinRates(ctx context.Context) ([]models.CategoryStats, error)
}

// Handler обрабатывает HTTP-запросы раздела /predictions.
type Handler struct {
	log           *slog.Logger
	service       Service
	validate      *validator.Validate
	maxUploadSize int64
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, maxUploadSize int64) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		validate:      validator.New(),
		maxUploadSize: maxUploadSize,
	}
}

// DeleteRequest список удаляемых прогнозов.
type DeleteRequest struct {
	IDs []string `json:"ids" validate:"dive,uuid"`
}

type feedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*services.FeedPage
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCategory):
		response.JSON(w, r, http.StatusBadRequest, response.ErrorWithData("Invalid category",
			map[string]any{"validCategories": models.Categories}))
	case errors.Is(err, services.ErrInvalidStatus):
		response.JSON(w, r, http.StatusBadRequest, response.ErrorWithData("Invalid status",
			map[string]any{"validStatuses": models.PredictionStatuses}))
	case errors.Is(err, services.ErrPredictionNotFound):
		response.JSON(w, r, http.StatusNotFound, response.Error("Prediction not found"))
	case errors.Is(err, services.ErrNoIDs), errors.Is(err, services.ErrNothingToUpdate):
		response.JSON(w, r, http.StatusBadRequest, response.Error(err.Error()))
	case errors.Is(err, filestore.ErrUnsupportedType):
		response.JSON(w, r, http.StatusBadRequest, response.Error("Only image files are allowed"))
	case errors.Is(err, filestore.ErrTooLarge):
		response.JSON(w, r, http.StatusBadRequest, response.Error("Image is too large"))
	default:
		log.Error("request failed", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("internal server error"))
	}
}

// image читает необязательный файл image из формы и пишет 400 при ошибке.
func (h *Handler) image(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*filestore.Upload, func(), bool) {
	up, closeFn, err := request.FormFile(r, "image")
	if err != nil {
		log.Error("failed to read image", sl.Err(err))
		response.JSON(w, r, http.StatusBadRequest, response.Error("invalid image file"))
		return nil, closeFn, false
	}
	return up, closeFn, true
}

// Create godoc
// @Summary Создать прогноз
// @Description multipart-форма: image, category, description.
// @Tags Predictions
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Success 201 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверная категория"
// @Router /predictions/create [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.predictions.Create"
	log := h.logger(r, op)

	if !request.ParseMultipart(w, r, log, h.maxUploadSize) {
		return
	}
	category := request.OptionalValue(r, "category")
	if category == nil {
		response.JSON(w, r, http.StatusBadRequest, response.Error("field category is a required field"))
		return
	}
	img, closeFn, ok := h.image(w, r, log)
	defer closeFn()
	if !ok {
		return
	}

	p, err := h.service.Create(r.Context(), *category, request.OptionalValue(r, "description"), img)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("prediction created", slog.String("id", p.ID))
	response.JSON(w, r, http.StatusCreated, response.OK("Prediction created successfully", p))
}

// List godoc
// @Summary Список прогнозов для администратора
// @Tags Predictions
// @Security BearerAuth
// @Produce json
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Param category query string false "Категория"
// @Param status query string false "Статус"
// @Param search query string false "Поиск по описанию"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Неверная категория или статус"
// @Router /predictions/get-all [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.predictions.List"
	log := h.logger(r, op)

	q := r.URL.Query()
	page := pagination.FromQuery(q)
	items, total, err := h.service.List(r.Context(), models.PredictionFilter{
		Category: q.Get("category"),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
		Limit:    page.Limit,
		Offset:   page.Offset(),
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.Page("Predictions retrieved successfully", items, pagination.NewMeta(page, total)))
}

// Update godoc
// @Summary Обновить прогноз
// @Description multipart-форма: image, category, description, status.
// @Tags Predictions
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "ID прогноза"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Прогноз не найден или id не UUID"
// @Router /predictions/update/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.predictions.Update"
	log := h.logger(r, op)

	id := chi.URLParam(r, "id")
	if !request.ValidID(id) {
		response.JSON(w, r, http.StatusNotFound, response.Error("Prediction not found"))
		return
	}
	if !request.ParseMultipart(w, r, log, h.maxUploadSize) {
		return
	}
	img, closeFn, ok := h.image(w, r, log)
	defer closeFn()
	if !ok {
		return
	}

	upd := models.PredictionUpdate{
		Category:    request.OptionalValue(r, "category"),
		Description: request.OptionalValue(r, "description"),
		Status:      request.OptionalValue(r, "status"),
	}
	p, err := h.service.Update(r.Context(), id, upd, img)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("prediction updated", slog.String("id", id))
	response.JSON(w, r, http.StatusOK, response.OK("Prediction updated successfully", p))
}

// Delete godoc
// @Summary Удалить прогнозы
// @Tags Predictions
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body DeleteRequest true "ID прогнозов"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Пустой список"
// @Failure 404 {object} response.ErrorResponse "Ничего не найдено"
// @Router /predictions/delete [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.predictions.Delete"
	log := h.logger(r, op)

	var req DeleteRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Delete(r.Context(), req.IDs)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("predictions deleted", slog.Int64("count", res.DeletedCount))
	response.JSON(w, r, http.StatusOK, response.OK("Predictions deleted successfully", res))
}

// Feed godoc
// @Summary Лента активных прогнозов
// @Tags Predictions
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Размер страницы"
// @Param cursor query string false "ID последнего прогноза предыдущей страницы"
// @Param category query string false "Категория"
// @Success 200 {object} feedResponse
// @Failure 400 {object} response.ErrorResponse "Некорректный курсор"
// @Router /predictions/users/get-all [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.predictions.Feed"
	log := h.logger(r, op)

	q := r.URL.Query()
	cursor := q.Get("cursor")
	if cursor != "" && !request.ValidID(cursor) {
		response.JSON(w, r, http.StatusBadRequest, response.Error("invalid cursor"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, err := h.service.Feed(r.Context(), models.FeedQuery{
		Category: q.Get("category"),
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, feedResponse{Success: true, Message: "Predictions retrieved successfully", FeedPage: page})
}

// WinRates godoc
// @Summary Процент побед по категориям
// @Tags Predictions
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /predictions/win-rate [get]
func (h *Handler) WinRates(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.predictions.WinRates"
	log := h.logger(r, op)

	stats, err := h.service.WinRates(r.Context())
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Win rates retrieved successfully", stats))
}
