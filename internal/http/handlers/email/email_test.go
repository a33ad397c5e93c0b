package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	services "github.com/magabrotheeeer/predictions-backend/internal/services/email"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Contact(ctx context.Context, msg services.ContactMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestHandler(t *testing.T) {
	valid := `{"name":"Ann","email":"ann@example.com","subject":"Hi","message":"<b>hello</b>"}`
	msg := services.ContactMessage{Name: "Ann", Email: "ann@example.com", Subject: "Hi", Message: "<b>hello</b>"}

	tests := []struct {
		name       string
		body       string
		err        error
		call       bool
		wantStatus int
		wantMsg    string
	}{
		{name: "queued", body: valid, call: true, wantStatus: http.StatusOK, wantMsg: "Message sent successfully"},
		{name: "invalid email", body: `{"name":"Ann","email":"nope","subject":"Hi","message":"x"}`, wantStatus: http.StatusBadRequest, wantMsg: "field Email must be a valid email"},
		{name: "missing message", body: `{"name":"Ann","email":"ann@example.com","subject":"Hi"}`, wantStatus: http.StatusBadRequest, wantMsg: "field Message is a required field"},
		{name: "broker down", body: valid, call: true, err: errors.New("amqp"), wantStatus: http.StatusInternalServerError, wantMsg: "failed to send message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			if tt.call {
				svc.On("Contact", mock.Anything, msg).Return(tt.err)
			}
			h := New(newNoopLogger(), svc)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/email/send", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantMsg)
			svc.AssertExpectations(t)
		})
	}
}
