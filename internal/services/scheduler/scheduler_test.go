package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictions-backend/internal/lock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) DemoteExpiredTrials(ctx context.Context, createdBefore time.Time) (int64, error) {
	args := m.Called(ctx, createdBefore)
	return args.Get(0).(int64), args.Error(1)
}

type heldLocker struct{}

func (heldLocker) WithLock(context.Context, string, time.Duration, int, func(context.Context) error) error {
	return fmt.Errorf("lock.WithLock: %w", lock.ErrNotAcquired)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newLocker(t *testing.T) *lock.Locker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.New(client)
}

func TestSchedulerService_DemoteExpiredTrials(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		repoCount int64
		repoErr   error
		wantCount int64
		wantErr   bool
	}{
		{name: "demotes users", repoCount: 3, wantCount: 3},
		{name: "nothing to demote", repoCount: 0, wantCount: 0},
		{name: "repository error", repoCount: 0, repoErr: errors.New("db down"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			repo.On("DemoteExpiredTrials", mock.Anything, now.Add(-72*time.Hour)).Return(tt.repoCount, tt.repoErr).Once()

			svc := NewSchedulerService(repo, newLocker(t), 72*time.Hour, time.Minute, newNoopLogger())
			svc.now = func() time.Time { return now }

			n, err := svc.DemoteExpiredTrials(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantCount, n)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestSchedulerService_SkipsWhenLockHeld(t *testing.T) {
	repo := new(MockRepository)
	svc := NewSchedulerService(repo, heldLocker{}, 72*time.Hour, time.Minute, newNoopLogger())

	n, err := svc.DemoteExpiredTrials(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	repo.AssertNotCalled(t, "DemoteExpiredTrials", mock.Anything, mock.Anything)
}

func TestSchedulerService_RunDemoteExpiredTrialsLogsErrors(t *testing.T) {
	repo := new(MockRepository)
	repo.On("DemoteExpiredTrials", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down")).Once()
	svc := NewSchedulerService(repo, newLocker(t), time.Hour, time.Minute, newNoopLogger())

	assert.NotPanics(t, func() { svc.RunDemoteExpiredTrials(context.Background()) })
	repo.AssertExpectations(t)
}
