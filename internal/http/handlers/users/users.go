// Package users реализует административные HTTP-обработчики для пользователей:
// список с поиском, суммы оплат, карточку пользователя и XLSX-выгрузку.
package users

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/predictions-backend/internal/http/request"
	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/pagination"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/users"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service описывает интерфейс бизнес-логики пользователей.
type Service interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Earnings(ctx context.Context, limit, offset int) ([]models.UserEarning, int, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Export(ctx context.Context, w io.Writer) error
}

// Handler обрабатывает HTTP-запросы раздела /users.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// List godoc
// @Summary Список пользователей
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Param search query string false "Поиск по имени, email и телефону"
// @Success 200 {object} response.Response
// @Router /users/all [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.List"
	log := h.logger(r, op)

	page := pagination.FromQuery(r.URL.Query())
	items, total, err := h.service.List(r.Context(), models.UserFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  page.Limit,
		Offset: page.Offset(),
	})
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to get users"))
		return
	}
	response.JSON(w, r, http.StatusOK, response.Page("Users retrieved successfully", items, pagination.NewMeta(page, total)))
}

// Earnings godoc
// @Summary Суммы оплат по пользователям
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param page query int false "Страница"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} response.Response
// @Router /users/earnings-parser [get]
func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Earnings"
	log := h.logger(r, op)

	page := pagination.FromQuery(r.URL.Query())
	items, total, err := h.service.Earnings(r.Context(), page.Limit, page.Offset())
	if err != nil {
		log.Error("failed to list earnings", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to get earnings"))
		return
	}
	response.JSON(w, r, http.StatusOK, response.Page("Earnings retrieved successfully", items, pagination.NewMeta(page, total)))
}

// Get godoc
// @Summary Карточка пользователя
// @Tags Users
// @Security BearerAuth
// @Produce json
// @Param id path string true "ID пользователя"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse
// @Router /users/info/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Get"
	log := h.logger(r, op)

	id := chi.URLParam(r, "id")
	if !request.ValidID(id) {
		response.JSON(w, r, http.StatusNotFound, response.Error("User not found"))
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if errors.Is(err, services.ErrUserNotFound) {
		response.JSON(w, r, http.StatusNotFound, response.Error("User not found"))
		return
	}
	if err != nil {
		log.Error("failed to get user", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to get user"))
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("User retrieved successfully", user))
}

// Export godoc
// @Summary XLSX-выгрузка пользователей
// @Tags Users
// @Security BearerAuth
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Router /users/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Export"
	log := h.logger(r, op)

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="users.xlsx"`)
	if err := h.service.Export(r.Context(), w); err != nil {
		log.Error("failed to export users", sl.Err(err))
		w.Header().Del("Content-Disposition")
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to export users"))
		return
	}
	log.Info("users exported")
}
