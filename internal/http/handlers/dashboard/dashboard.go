// Package dashboard отдаёт сравнительные показатели админ-панели: текущий месяц против прошлого.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// Service описывает интерфейс сводных показателей.
type Service interface {
	Info(ctx context.Context) (*models.DashboardInfo, error)
	Predictions(ctx context.Context) (*models.PredictionSummary, error)
}

// Handler обрабатывает HTTP-запросы раздела /dashboard.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// Info godoc
// @Summary Показатели за месяц
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /dashboard/info [get]
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.Info"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	info, err := h.service.Info(r.Context())
	if err != nil {
		log.Error("failed to build dashboard info", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to get dashboard info"))
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Dashboard info retrieved successfully", info))
}

// Predictions godoc
// @Summary Итоги по прогнозам
// @Tags Dashboard
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Response
// @Router /dashboard/predictions [get]
func (h *Handler) Predictions(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.Predictions"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	summary, err := h.service.Predictions(r.Context())
	if err != nil {
		log.Error("failed to build predictions summary", sl.Err(err))
		response.JSON(w, r, http.StatusInternalServerError, response.Error("failed to get predictions summary"))
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("Predictions summary retrieved successfully", summary))
}
