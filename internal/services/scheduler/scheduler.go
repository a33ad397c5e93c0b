// Package services содержит фоновые задачи планировщика.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/lock"
)

const demoteTrialsLock = "scheduler:demote-expired-trials"

// TrialRepository снимает истёкшие пробные подписки.
type TrialRepository interface {
	DemoteExpiredTrials(ctx context.Context, createdBefore time.Time) (int64, error)
}

// Locker выполняет функцию под распределённой блокировкой.
type Locker interface {
	WithLock(ctx context.Context, name string, expiry time.Duration, tries int, fn func(ctx context.Context) error) error
}

// SchedulerService задачи, запускаемые по расписанию.
type SchedulerService struct {
	repo        TrialRepository
	locker      Locker
	trialPeriod time.Duration
	lockExpiry  time.Duration
	log         *slog.Logger
	now         func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo TrialRepository, locker Locker, trialPeriod, lockExpiry time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:        repo,
		locker:      locker,
		trialPeriod: trialPeriod,
		lockExpiry:  lockExpiry,
		log:         log,
		now:         time.Now,
	}
}

// DemoteExpiredTrials снимает флаг подписчика у пользователей, чей пробный
// период закончился без оплаты. Если задачу уже выполняет другая реплика,
// запуск пропускается.
func (s *SchedulerService) DemoteExpiredTrials(ctx context.Context) (int64, error) {
	const op = "services.scheduler.DemoteExpiredTrials"
	var demoted int64
	err := s.locker.WithLock(ctx, demoteTrialsLock, s.lockExpiry, 1, func(ctx context.Context) error {
		cutoff := s.now().UTC().Add(-s.trialPeriod)
		n, err := s.repo.DemoteExpiredTrials(ctx, cutoff)
		if err != nil {
			return err
		}
		demoted = n
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		s.log.Info("demote job is running elsewhere, skipping")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return demoted, nil
}

// RunDemoteExpiredTrials обёртка для cron: ошибки только логируются.
func (s *SchedulerService) RunDemoteExpiredTrials(ctx context.Context) {
	s.log.Info("starting demote expired trials job")
	n, err := s.DemoteExpiredTrials(ctx)
	if err != nil {
		s.log.Error("failed to demote expired trials", sl.Err(err))
		return
	}
	s.log.Info("expired trials demoted", slog.Int64("count", n))
}
