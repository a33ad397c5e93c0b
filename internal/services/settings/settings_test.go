package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/predictions-backend/internal/cache"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListSettings(ctx context.Context) ([]models.Setting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Setting), args.Error(1)
}

func (m *MockRepository) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Setting), args.Error(1)
}

func (m *MockRepository) UpsertSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	args := m.Called(ctx, key, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Setting), args.Error(1)
}

func (m *MockRepository) DeleteSetting(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func newService(t *testing.T) (*SettingsService, *MockRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	c := &cache.Cache{Db: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = c.Close() })
	repo := new(MockRepository)
	return NewSettingsService(repo, c, slog.New(slog.NewTextHandler(io.Discard, nil))), repo, mr
}

func TestSettingsService_ListIsCached(t *testing.T) {
	svc, repo, mr := newService(t)
	repo.On("ListSettings", mock.Anything).Return([]models.Setting{{Key: "terms", Value: "v1"}}, nil).Once()

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	second, err := svc.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v1", second[0].Value)
	assert.Equal(t, first[0].Key, second[0].Key)
	assert.True(t, mr.Exists(settingsCacheKey))
	repo.AssertNumberOfCalls(t, "ListSettings", 1)
}

func TestSettingsService_PutInvalidatesCache(t *testing.T) {
	svc, repo, mr := newService(t)
	repo.On("ListSettings", mock.Anything).Return([]models.Setting{{Key: "terms", Value: "v1"}}, nil).Once()
	_, err := svc.List(context.Background())
	require.NoError(t, err)

	repo.On("UpsertSetting", mock.Anything, "terms", "v2").Return(&models.Setting{Key: "terms", Value: "v2"}, nil)
	item, err := svc.Put(context.Background(), "terms", "v2")
	require.NoError(t, err)
	assert.Equal(t, "v2", item.Value)
	assert.False(t, mr.Exists(settingsCacheKey))
}

func TestSettingsService_NotFound(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.On("GetSetting", mock.Anything, "missing").Return(nil, repository.ErrNotFound)
	repo.On("DeleteSetting", mock.Anything, "missing").Return(repository.ErrNotFound)

	_, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSettingNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), ErrSettingNotFound)
}

func TestSettingsService_Delete(t *testing.T) {
	svc, repo, mr := newService(t)
	require.NoError(t, mr.Set(settingsCacheKey, "[]"))
	repo.On("DeleteSetting", mock.Anything, "terms").Return(nil).Once()

	require.NoError(t, svc.Delete(context.Background(), "terms"))
	assert.False(t, mr.Exists(settingsCacheKey))
}
