package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/health"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/setting"
	"github.com/magabrotheeeer/predictions-backend/internal/http/handlers/transactions"
	"github.com/magabrotheeeer/predictions-backend/internal/http/middlewarectx"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

type stubTokens map[string]*jwt.CustomClaims

func (s stubTokens) ParseToken(token string) (*jwt.CustomClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, jwt.ErrInvalidToken
	}
	return claims, nil
}

type stubSettings struct{}

func (stubSettings) List(context.Context) ([]models.Setting, error) {
	return []models.Setting{{Key: "terms", Value: "v1"}}, nil
}

func (stubSettings) Get(_ context.Context, key string) (*models.Setting, error) {
	return &models.Setting{Key: key}, nil
}

func (stubSettings) Put(_ context.Context, key, value string) (*models.Setting, error) {
	return &models.Setting{Key: key, Value: value}, nil
}

func (stubSettings) Delete(context.Context, string) error {
	return nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestRouter(t *testing.T, uploadsDir string) http.Handler {
	t.Helper()
	log := newNoopLogger()
	registry := prometheus.NewRegistry()

	r := chi.NewRouter()
	RegisterRoutes(r, log, Infra{
		Tokens: stubTokens{
			"admin-token": {UserID: "1", Email: "admin@example.com", Role: models.RoleAdmin},
			"user-token":  {UserID: "2", Email: "user@example.com", Role: models.RoleUser},
		},
		Metrics:    middlewarectx.NewMetrics(registry),
		Gatherer:   registry,
		Limiter:    middlewarectx.NewRateLimiter(1000, 1000, rateLimitTTL),
		UploadsDir: uploadsDir,
	}, Handlers{
		Setting:      setting.New(log, stubSettings{}),
		Transactions: transactions.New(log, nil),
		Health:       health.New(log, map[string]health.Check{}),
	})
	return WithCORS(r, []string{"https://app.example.com"})
}

func TestRoutes_Access(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	tests := []struct {
		name       string
		method     string
		url        string
		token      string
		body       string
		wantStatus int
	}{
		{name: "no token", method: http.MethodGet, url: "/api/v1/setting", wantStatus: http.StatusUnauthorized},
		{name: "bad token", method: http.MethodGet, url: "/api/v1/setting", token: "forged", wantStatus: http.StatusUnauthorized},
		{name: "user reads settings", method: http.MethodGet, url: "/api/v1/setting", token: "user-token", wantStatus: http.StatusOK},
		{name: "user cannot write settings", method: http.MethodPut, url: "/api/v1/setting/banner", token: "user-token", body: `{"value":"x"}`, wantStatus: http.StatusForbidden},
		{name: "admin writes settings", method: http.MethodPut, url: "/api/v1/setting/banner", token: "admin-token", body: `{"value":"x"}`, wantStatus: http.StatusOK},
		{name: "user cannot open dashboard", method: http.MethodGet, url: "/api/v1/dashboard/info", token: "user-token", wantStatus: http.StatusForbidden},
		{name: "admin route without token", method: http.MethodGet, url: "/api/v1/users/all", wantStatus: http.StatusUnauthorized},
		{name: "webhook is public", method: http.MethodPost, url: "/api/v1/webhooks/stripe", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "health", method: http.MethodGet, url: "/health", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, url: "/api/v1/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRoutes_Metrics(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/setting/terms", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_requests_total")
	assert.Contains(t, body, `/setting/{key}",status="200"} 1`)
}

func TestRoutes_Uploads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatar.png"), []byte("png"), 0o600))
	router := newTestRouter(t, dir)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/avatar.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "png", rec.Body.String())
}

func TestWithCORS(t *testing.T) {
	router := newTestRouter(t, t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
