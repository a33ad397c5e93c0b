// Package scheduler запускает фоновые задачи по расписанию cron.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/predictions-backend/internal/cache"
	"github.com/magabrotheeeer/predictions-backend/internal/config"
	"github.com/magabrotheeeer/predictions-backend/internal/lib/sl"
	"github.com/magabrotheeeer/predictions-backend/internal/lock"
	schedulerservice "github.com/magabrotheeeer/predictions-backend/internal/services/scheduler"
	"github.com/magabrotheeeer/predictions-backend/internal/storage/repository"
)

const (
	dbReadyAttempts = 10
	dbReadyDelay    = 3 * time.Second
)

// Job задача, выполняемая по расписанию.
type Job func(ctx context.Context)

// App представляет приложение планировщика.
type App struct {
	cron   *cron.Cron
	db     *repository.Storage
	cache  *cache.Cache
	logger *slog.Logger
}

func waitForDB(ctx context.Context, db *repository.Storage) error {
	for range dbReadyAttempts {
		if err := repository.CheckDatabaseReady(ctx, db); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dbReadyDelay):
		}
	}
	return errors.New("database not ready after retries")
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err = waitForDB(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	schedulerService := schedulerservice.NewSchedulerService(
		db, lock.New(cacheRedis.Db), cfg.TrialPeriod, cfg.LockExpiry, logger,
	)

	a := &App{
		cron:   newCron(),
		db:     db,
		cache:  cacheRedis,
		logger: logger,
	}
	if err = a.Schedule(ctx, cfg.DemoteTrialsSpec, schedulerService.RunDemoteExpiredTrials); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func newCron() *cron.Cron {
	return cron.New(cron.WithLocation(time.UTC))
}

// Schedule добавляет job по выражению spec. Задача получает ctx приложения.
func (a *App) Schedule(ctx context.Context, spec string, job Job) error {
	if _, err := a.cron.AddFunc(spec, func() { job(ctx) }); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	a.logger.Info("job scheduled", slog.String("spec", spec))
	return nil
}

// Run запускает планировщик и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.cron.Start()

	<-ctx.Done()

	a.logger.Info("shutting down scheduler service")
	// ждём завершения уже запущенных задач
	<-a.cron.Stop().Done()
	a.close()

	return nil
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
