// Package setting реализует HTTP-обработчики настроек ключ-значение.
package setting

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/settings"
)

// Service описывает интерфейс работы с настройками.
type Service interface {
	List(ctx context.Context) ([]models.Setting, error)
	Get(ctx context.Context, key string) (*models.Setting, error)
	Put(ctx context.Context, key, value string) (*models.Setting, error)
	Delete(ctx context.Context, key string) error
}

// Handler обрабатывает HTTP-запросы раздела /setting.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, validate: validator.New()}
}

// PutRequest новое значение настройки.
type PutRequest struct {
	Value *string `json:"value" validate:"required"`
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	if errors.Is(err, services.ErrSettingNotFound) {
		response.JSON(w, r, http.StatusNotFound, response.Error("Setting not found"))
		return
	}
	log.Error("request failed", sl.Err(err))
	response.JSON(w, r, http.StatusInternalServerError, response.Error("internal server error"))
}

// List godoc
// @Summary Все настройки
// @Tags Setting
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /setting [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.setting.List"
	log := h.logger(r, op)

	items, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Settings retrieved successfully", items))
}

// Get godoc
// @Summary Настройка по ключу
// @Tags Setting
// @Security BearerAuth
// @Produce json
// @Param key path string true "Ключ"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /setting/{key} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.setting.Get"
	log := h.logger(r, op)

	item, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, log, err)
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Setting retrieved successfully", item))
}

// Put godoc
// @Summary Создать или обновить настройку
// @Tags Setting
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param key path string true "Ключ"
// @Param request body PutRequest true "Значение"
// @Success 200 {object} response.Response
// @Router /setting/{key} [put]
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.setting.Put"
	log := h.logger(r, op)

	var req PutRequest
	if !request.Bind(w, r, log, h.validate, &req) {
		return
	}

	key := chi.URLParam(r, "key")
	item, err := h.service.Put(r.Context(), key, *req.Value)
	if err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("setting saved", slog.String("key", key))
	response.JSON(w, r, http.StatusOK, response.OK("Setting saved successfully", item))
}

// Delete godoc
// @Summary Удалить настройку
// @Tags Setting
// @Security BearerAuth
// @Produce json
// @Param key path string true "Ключ"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /setting/{key} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.setting.Delete"
	log := h.logger(r, op)

	key := chi.URLParam(r, "key")
	if err := h.service.Delete(r.Context(), key); err != nil {
		h.fail(w, r, log, err)
		return
	}

	log.Info("setting deleted", slog.String("key", key))
	response.JSON(w, r, http.StatusOK, response.OK("Setting deleted successfully", nil))
}
