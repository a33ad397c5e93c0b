// Package services содержит работу с настройками приложения и их кешированием.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// ErrSettingNotFound настройка не найдена.
var ErrSettingNotFound = errors.New("setting not found")

const (
	settingsCacheKey = "settings:all"
	settingsCacheTTL = 10 * time.Minute
)

// SettingsRepository хранилище настроек.
type SettingsRepository interface {
	ListSettings(ctx context.Context) ([]models.Setting, error)
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	UpsertSetting(ctx context.Context, key, value string) (*models.Setting, error)
	DeleteSetting(ctx context.Context, key string) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// SettingsService настройки ключ-значение.
type SettingsService struct {
	repo  SettingsRepository
	cache Cache
	log   *slog.Logger
}

// NewSettingsService создает новый экземпляр SettingsService.
func NewSettingsService(repo SettingsRepository, cache Cache, log *slog.Logger) *SettingsService {
	return &SettingsService{repo: repo, cache: cache, log: log}
}

// List возвращает все настройки, по возможности из кеша.
func (s *SettingsService) List(ctx context.Context) ([]models.Setting, error) {
	const op = "services.settings.List"
	var cached []models.Setting
	found, err := s.cache.Get(ctx, settingsCacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read settings cache", sl.Op(op), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	items, err := s.repo.ListSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = s.cache.Set(ctx, settingsCacheKey, items, settingsCacheTTL); err != nil {
		s.log.Warn("failed to cache settings", sl.Op(op), sl.Err(err))
	}
	return items, nil
}

// Get возвращает настройку по ключу.
func (s *SettingsService) Get(ctx context.Context, key string) (*models.Setting, error) {
	const op = "services.settings.Get"
	item, err := s.repo.GetSetting(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSettingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

// Put создаёт или обновляет настройку.
func (s *SettingsService) Put(ctx context.Context, key, value string) (*models.Setting, error) {
	const op = "services.settings.Put"
	item, err := s.repo.UpsertSetting(ctx, key, value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op)
	return item, nil
}

// Delete удаляет настройку.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	const op = "services.settings.Delete"
	err := s.repo.DeleteSetting(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSettingNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, op)
	return nil
}

func (s *SettingsService) invalidate(ctx context.Context, op string) {
	if err := s.cache.Invalidate(ctx, settingsCacheKey); err != nil {
		s.log.Warn("failed to invalidate settings cache", sl.Op(op), sl.Err(err))
	}
}
