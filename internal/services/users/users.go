// Package services содержит административные операции над пользователями.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/magabrotheeeer/predictions-backend/internal/export"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// ErrUserNotFound пользователь не найден.
var ErrUserNotFound = errors.New("user not found")

// UserRepository чтение пользователей для админ-панели.
type UserRepository interface {
	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListUserEarnings(ctx context.Context, limit, offset int) ([]models.UserEarning, int, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ExportUsers(ctx context.Context) ([]models.User, error)
}

// URLResolver строит публичные ссылки на загруженные файлы.
type URLResolver interface {
	URL(name string) string
}

// UserService операции администратора над пользователями.
type UserService struct {
	repo  UserRepository
	files URLResolver
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(repo UserRepository, files URLResolver) *UserService {
	return &UserService{repo: repo, files: files}
}

func (s *UserService) avatar(a *string) *string {
	if a == nil {
		return nil
	}
	url := s.files.URL(*a)
	return &url
}

// List возвращает страницу пользователей и их общее количество.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	const op = "services.users.List"
	filter.Search = strings.TrimSpace(filter.Search)
	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	for i := range users {
		users[i].Avatar = s.avatar(users[i].Avatar)
	}
	return users, total, nil
}

// Earnings возвращает суммы оплат по пользователям.
func (s *UserService) Earnings(ctx context.Context, limit, offset int) ([]models.UserEarning, int, error) {
	const op = "services.users.Earnings"
	items, total, err := s.repo.ListUserEarnings(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	for i := range items {
		items[i].Avatar = s.avatar(items[i].Avatar)
	}
	return items, total, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	const op = "services.users.Get"
	u, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Avatar = s.avatar(u.Avatar)
	return u, nil
}

// Export пишет XLSX-выгрузку всех пользователей в w.
func (s *UserService) Export(ctx context.Context, w io.Writer) error {
	const op = "services.users.Export"
	users, err := s.repo.ExportUsers(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = export.Users(w, users); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
