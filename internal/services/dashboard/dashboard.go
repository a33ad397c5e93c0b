// Package services считает показатели главной страницы админ-панели,
// сравнивая текущий месяц с прошлым.
package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/month"
	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// StatsRepository агрегирующие запросы для дашборда.
type StatsRepository interface {
	PredictionCounts(ctx context.Context, from, to time.Time) (models.PredictionCounts, error)
	CountRealSubscribers(ctx context.Context) (int, error)
	CompletedBetween(ctx context.Context, from, to time.Time) (int, error)
	RevenueBetween(ctx context.Context, from, to time.Time) (float64, error)
}

// DashboardService показатели админ-панели.
type DashboardService struct {
	repo StatsRepository
	now  func() time.Time
}

// NewDashboardService создает новый экземпляр DashboardService.
func NewDashboardService(repo StatsRepository) *DashboardService {
	return &DashboardService{repo: repo, now: time.Now}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// winRate процент побед среди завершённых прогнозов, округлённый до целого.
func winRate(c models.PredictionCounts) float64 {
	if c.Win+c.Lose == 0 {
		return 0
	}
	return math.Round(float64(c.Win) / float64(c.Win+c.Lose) * 100)
}

// periodCounts счётчики прогнозов за всё время, текущий и прошлый месяц.
type periodCounts struct {
	all, cur, prev models.PredictionCounts
}

func (s *DashboardService) predictionCounts(ctx context.Context, cur, prev month.Range) (periodCounts, error) {
	var (
		c   periodCounts
		err error
	)
	if c.all, err = s.repo.PredictionCounts(ctx, time.Time{}, time.Time{}); err != nil {
		return c, err
	}
	if c.cur, err = s.repo.PredictionCounts(ctx, cur.Start, cur.End); err != nil {
		return c, err
	}
	c.prev, err = s.repo.PredictionCounts(ctx, prev.Start, prev.End)
	return c, err
}

func winRateTrend(c periodCounts) models.WinRateTrend {
	cur, prev := winRate(c.cur), winRate(c.prev)
	return models.WinRateTrend{WinRate: cur, LastMonth: prev, Status: month.Trend(cur, prev)}
}

// activeTrend все ожидающие прогнозы; статус сравнивает созданные в этом и прошлом месяце.
func activeTrend(c periodCounts) models.TrendValue {
	return models.TrendValue{
		Current:   float64(c.all.Pending),
		LastMonth: float64(c.prev.Pending),
		Status:    month.Trend(float64(c.cur.Pending), float64(c.prev.Pending)),
	}
}

// Info карточки дашборда: процент побед, активные прогнозы, подписчики и выручка.
func (s *DashboardService) Info(ctx context.Context) (*models.DashboardInfo, error) {
	const op = "services.dashboard.Info"
	now := s.now()
	cur, prev := month.Current(now), month.Previous(now)

	counts, err := s.predictionCounts(ctx, cur, prev)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subscribers, err := s.repo.CountRealSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	payments, err := s.repo.CompletedBetween(ctx, cur.Start, cur.End)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	lastMonthPayments, err := s.repo.CompletedBetween(ctx, prev.Start, prev.End)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	revenue, err := s.repo.RevenueBetween(ctx, cur.Start, cur.End)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	lastRevenue, err := s.repo.RevenueBetween(ctx, prev.Start, prev.End)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.DashboardInfo{
		OverallWinRate:    winRateTrend(counts),
		ActivePredictions: activeTrend(counts),
		TotalSubscribers: models.SubscribersTrend{
			Total:     subscribers,
			LastMonth: lastMonthPayments,
			Status:    month.Trend(float64(payments), float64(lastMonthPayments)),
		},
		MonthlyRevenue: models.RevenueTrend{
			Value:     round2(revenue),
			LastMonth: round2(lastRevenue),
			Status:    month.Trend(revenue, lastRevenue),
		},
	}, nil
}

// Predictions сводка по прогнозам: текущий месяц против прошлого.
func (s *DashboardService) Predictions(ctx context.Context) (*models.PredictionSummary, error) {
	const op = "services.dashboard.Predictions"
	now := s.now()

	c, err := s.predictionCounts(ctx, month.Current(now), month.Previous(now))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.PredictionSummary{
		TotalRecords: models.RecordsTrend{
			TotalRecords: c.all.Total,
			LastMonth:    c.prev.Total,
			Status:       month.Trend(float64(c.cur.Total), float64(c.prev.Total)),
		},
		ActivePredictions: activeTrend(c),
		TotalWin: models.WinsTrend{
			TotalWin:  c.cur.Win,
			LastMonth: c.prev.Win,
			Status:    month.Trend(float64(c.cur.Win), float64(c.prev.Win)),
		},
		OverallWinRate: winRateTrend(c),
	}, nil
}
