// Package health отдаёт состояние сервиса и его зависимостей.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/http/response"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
)

// Check проверка одной зависимости.
type Check func(ctx context.Context) error

// Handler отвечает на /health.
type Handler struct {
	log    *slog.Logger
	checks map[string]Check
}

// New создает Handler с именованными проверками.
func New(log *slog.Logger, checks map[string]Check) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Error("dependency unhealthy", sl.Op(op), slog.String("dependency", name), sl.Err(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}

	if !healthy {
		status["status"] = "degraded"
		response.JSON(w, r, http.StatusServiceUnavailable, response.ErrorWithData("service degraded", status))
		return
	}
	response.JSON(w, r, http.StatusOK, response.OK("service is healthy", status))
}
