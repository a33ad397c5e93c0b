package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Info(ctx context.Context) (*models.DashboardInfo, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(*models.DashboardInfo)
	return info, args.Error(1)
}

func (m *MockService) Predictions(ctx context.Context) (*models.PredictionSummary, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(*models.PredictionSummary)
	return s, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_Info(t *testing.T) {
	svc := new(MockService)
	svc.On("Info", mock.Anything).Return(&models.DashboardInfo{
		OverallWinRate: models.WinRateTrend{WinRate: 67, LastMonth: 75, Status: "down"},
	}, nil)
	h := New(newNoopLogger(), svc)

	rec := httptest.NewRecorder()
	h.Info(rec, httptest.NewRequest(http.MethodGet, "/dashboard/info", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"overall_win_rate":{"win_rate":67,"last_month":75,"status":"down"}`)
}

func TestHandler_Predictions(t *testing.T) {
	tests := []struct {
		name       string
		summary    *models.PredictionSummary
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name: "ok",
			summary: &models.PredictionSummary{
				TotalRecords: models.RecordsTrend{TotalRecords: 10, LastMonth: 4, Status: "up"},
				TotalWin:     models.WinsTrend{TotalWin: 1, LastMonth: 2, Status: "down"},
			},
			wantStatus: http.StatusOK,
			wantBody:   `"total_records":{"total_records":10,"last_month":4,"status":"up"}`,
		},
		{name: "db error", err: errors.New("down"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Predictions", mock.Anything).Return(tt.summary, tt.err)
			h := New(newNoopLogger(), svc)

			rec := httptest.NewRecorder()
			h.Predictions(rec, httptest.NewRequest(http.MethodGet, "/dashboard/predictions", nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
