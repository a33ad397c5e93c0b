// Package services содержит логику каталога прогнозов: администрирование,
// пользовательскую ленту и статистику побед по категориям.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/magabrotheeeer/predictions-backend/internal/filestore"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

// Ошибки каталога прогнозов.
var (
	ErrInvalidCategory    = errors.New("invalid category")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrNoIDs              = errors.New("ids are required")
	ErrNothingToUpdate    = errors.New("nothing to update")
)

const (
	// DefaultFeedLimit размер страницы ленты по умолчанию.
	DefaultFeedLimit = 10
	// MaxFeedLimit верхняя граница размера страницы ленты.
	MaxFeedLimit = 50
)

// PredictionRepository хранилище прогнозов.
type PredictionRepository interface {
	CreatePrediction(ctx context.Context, p models.Prediction) (*models.Prediction, error)
	GetPrediction(ctx context.Context, id string) (*models.Prediction, error)
	UpdatePrediction(ctx context.Context, id string, upd models.PredictionUpdate) (*models.Prediction, error)
	ListPredictions(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error)
	FindPredictionsByIDs(ctx context.Context, ids []string) ([]models.Prediction, error)
	DeletePredictions(ctx context.Context, ids []string) (int64, error)
	PredictionFeed(ctx context.Context, q models.FeedQuery) ([]models.Prediction, error)
	CategoryStats(ctx context.Context) ([]models.CategoryStats, error)
}

// FileStore хранилище изображений прогнозов.
type FileStore interface {
	Save(r io.Reader, originalName string) (string, error)
	Remove(name string) error
	URL(name string) string
}

// DeleteResult итог массового удаления.
type DeleteResult struct {
	DeletedCount int64    `json:"deletedCount"`
	DeletedIDs   []string `json:"deletedIds"`
}

// FeedPage страница пользовательской ленты.
type FeedPage struct {
	Items      []models.FeedItem `json:"data"`
	HasMore    bool              `json:"hasMore"`
	NextCursor *string           `json:"nextCursor"`
}

// PredictionService управляет прогнозами.
type PredictionService struct {
	repo  PredictionRepository
	files FileStore
	log   *slog.Logger
}

// NewPredictionService создает новый экземпляр PredictionService.
func NewPredictionService(repo PredictionRepository, files FileStore, log *slog.Logger) *PredictionService {
	return &PredictionService{repo: repo, files: files, log: log}
}

// WinRate процент побед, округлённый до целого. Без завершённых прогнозов 0.
func WinRate(win, lose int) int {
	if win+lose == 0 {
		return 0
	}
	return int(math.Round(float64(win) / float64(win+lose) * 100))
}

func (s *PredictionService) present(p *models.Prediction) {
	if p.Image != nil {
		url := s.files.URL(*p.Image)
		p.Image = &url
	}
}

func (s *PredictionService) removeFile(op, name string) {
	if err := s.files.Remove(name); err != nil {
		s.log.Warn("failed to remove image", sl.Op(op), slog.String("file", name), sl.Err(err))
	}
}

// Create публикует новый прогноз. Изображение удаляется, если запись не сохранилась.
func (s *PredictionService) Create(ctx context.Context, category string, description *string, image *filestore.Upload) (*models.Prediction, error) {
	const op = "services.predictions.Create"
	if !models.ValidCategory(category) {
		return nil, ErrInvalidCategory
	}

	p := models.Prediction{Category: category, Description: description, Status: models.StatusPending}
	if image != nil {
		name, err := s.files.Save(image.Reader, image.Filename)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		p.Image = &name
	}

	created, err := s.repo.CreatePrediction(ctx, p)
	if err != nil {
		if p.Image != nil {
			s.removeFile(op, *p.Image)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.present(created)
	return created, nil
}

// List административный список с фильтрами.
func (s *PredictionService) List(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error) {
	const op = "services.predictions.List"
	if filter.Category != "" && !models.ValidCategory(filter.Category) {
		return nil, 0, ErrInvalidCategory
	}
	if filter.Status != "" && !models.ValidPredictionStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}

	items, total, err := s.repo.ListPredictions(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", op, err)
	}
	for i := range items {
		s.present(&items[i])
	}
	return items, total, nil
}

// Update частично обновляет прогноз. Новое изображение заменяет старое.
func (s *PredictionService) Update(ctx context.Context, id string, upd models.PredictionUpdate, image *filestore.Upload) (*models.Prediction, error) {
	const op = "services.predictions.Update"
	if upd.Category != nil && !models.ValidCategory(*upd.Category) {
		return nil, ErrInvalidCategory
	}
	if upd.Status != nil && !models.ValidPredictionStatus(*upd.Status) {
		return nil, ErrInvalidStatus
	}

	current, err := s.repo.GetPrediction(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPredictionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if image != nil {
		name, err := s.files.Save(image.Reader, image.Filename)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		upd.Image = &name
	}
	if upd.Category == nil && upd.Description == nil && upd.Status == nil && upd.Image == nil {
		return nil, ErrNothingToUpdate
	}

	updated, err := s.repo.UpdatePrediction(ctx, id, upd)
	if err != nil {
		if upd.Image != nil {
			s.removeFile(op, *upd.Image)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if upd.Image != nil && current.Image != nil {
		s.removeFile(op, *current.Image)
	}
	s.present(updated)
	return updated, nil
}

// Delete удаляет найденные прогнозы вместе с изображениями.
func (s *PredictionService) Delete(ctx context.Context, ids []string) (*DeleteResult, error) {
	const op = "services.predictions.Delete"
	if len(ids) == 0 {
		return nil, ErrNoIDs
	}

	found, err := s.repo.FindPredictionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(found) == 0 {
		return nil, ErrPredictionNotFound
	}

	foundIDs := make([]string, 0, len(found))
	for _, p := range found {
		foundIDs = append(foundIDs, p.ID)
	}
	n, err := s.repo.DeletePredictions(ctx, foundIDs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, p := range found {
		if p.Image != nil {
			s.removeFile(op, *p.Image)
		}
	}
	return &DeleteResult{DeletedCount: n, DeletedIDs: foundIDs}, nil
}

func (s *PredictionService) winRates(ctx context.Context) (map[string]models.CategoryStats, error) {
	stats, err := s.repo.CategoryStats(ctx)
	if err != nil {
		return nil, err
	}
	byCategory := make(map[string]models.CategoryStats, len(stats))
	for _, c := range stats {
		c.WinRate = WinRate(c.Win, c.Lose)
		byCategory[c.Category] = c
	}
	return byCategory, nil
}

// Feed страница активных прогнозов для пользователей, от новых к старым.
func (s *PredictionService) Feed(ctx context.Context, q models.FeedQuery) (*FeedPage, error) {
	const op = "services.predictions.Feed"
	if q.Category != "" && !models.ValidCategory(q.Category) {
		return nil, ErrInvalidCategory
	}
	if q.Limit <= 0 {
		q.Limit = DefaultFeedLimit
	}
	q.Limit = min(q.Limit, MaxFeedLimit)
	limit := q.Limit
	q.Limit++

	items, err := s.repo.PredictionFeed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rates, err := s.winRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	page := &FeedPage{HasMore: len(items) > limit}
	if page.HasMore {
		items = items[:limit]
	}
	page.Items = make([]models.FeedItem, 0, len(items))
	for i := range items {
		s.present(&items[i])
		page.Items = append(page.Items, models.FeedItem{
			Prediction: items[i],
			WinRate:    rates[items[i].Category].WinRate,
		})
	}
	if page.HasMore {
		last := items[len(items)-1].ID
		page.NextCursor = &last
	}
	return page, nil
}

// WinRates статистика по всем категориям, включая категории без прогнозов.
func (s *PredictionService) WinRates(ctx context.Context) ([]models.CategoryStats, error) {
	const op = "services.predictions.WinRates"
	rates, err := s.winRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	result := make([]models.CategoryStats, 0, len(models.Categories))
	for _, c := range models.Categories {
		st := rates[c]
		st.Category = c
		result = append(result, st)
	}
	return result, nil
}
