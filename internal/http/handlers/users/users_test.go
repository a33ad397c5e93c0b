package users

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
	services "github.com/magabrotheeeer/predictions-backend/internal/services/users"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	args := m.Called(ctx, filter)
	items, _ := args.Get(0).([]models.User)
	return items, args.Int(1), args.Error(2)
}

func (m *MockService) Earnings(ctx context.Context, limit, offset int) ([]models.UserEarning, int, error) {
	args := m.Called(ctx, limit, offset)
	items, _ := args.Get(0).([]models.UserEarning)
	return items, args.Int(1), args.Error(2)
}

func (m *MockService) Get(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockService) Export(ctx context.Context, w io.Writer) error {
	args := m.Called(ctx, w)
	if args.Error(0) == nil {
		_, _ = w.Write([]byte("xlsx"))
	}
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler_List(t *testing.T) {
	svc := new(MockService)
	svc.On("List", mock.Anything, models.UserFilter{Search: "ann", Limit: 2, Offset: 2}).
		Return([]models.User{{ID: "u3"}}, 5, nil)
	h := New(newNoopLogger(), svc)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/users/all?page=2&limit=2&search=ann", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	meta := got["pagination"].(map[string]any)
	assert.Equal(t, float64(3), meta["totalPages"])
	assert.Equal(t, true, meta["hasNextPage"])
	assert.Equal(t, true, meta["hasPrevPage"])
}

func TestHandler_Earnings(t *testing.T) {
	svc := new(MockService)
	svc.On("Earnings", mock.Anything, 10, 0).Return([]models.UserEarning{{UserID: "u1", Earnings: 23.99}}, 1, nil)
	h := New(newNoopLogger(), svc)

	rec := httptest.NewRecorder()
	h.Earnings(rec, httptest.NewRequest(http.MethodGet, "/users/earnings-parser", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalEarnings":23.99`)
}

func TestHandler_Get(t *testing.T) {
	const userID = "3c9d5e7f-1a2b-4c3d-8e4f-5a6b7c8d9e0f"
	tests := []struct {
		name       string
		id         string
		user       *models.User
		err        error
		wantStatus int
	}{
		{name: "found", id: userID, user: &models.User{ID: userID}, wantStatus: http.StatusOK},
		{name: "missing", id: userID, err: services.ErrUserNotFound, wantStatus: http.StatusNotFound},
		{name: "db error", id: userID, err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
		{name: "id is not a uuid", id: "u1", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.id == userID {
				svc.On("Get", mock.Anything, userID).Return(tt.user, tt.err)
			}
			h := New(newNoopLogger(), svc)

			r := chi.NewRouter()
			r.Get("/users/info/{id}", h.Get)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/info/"+tt.id, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandler_Export(t *testing.T) {
	svc := new(MockService)
	svc.On("Export", mock.Anything, mock.Anything).Return(nil)
	h := New(newNoopLogger(), svc)

	rec := httptest.NewRecorder()
	h.Export(rec, httptest.NewRequest(http.MethodGet, "/users/export", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "xlsx", rec.Body.String())
}
