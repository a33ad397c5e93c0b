// Package lock предоставляет распределённые блокировки поверх Redis (redsync).
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired возвращается, если блокировку удерживает другой процесс.
var ErrNotAcquired = errors.New("lock is held by another process")

// Locker выдаёт именованные мьютексы.
type Locker struct {
	rs *redsync.Redsync
}

// New создаёт Locker на клиенте go-redis.
func New(client *redis.Client) *Locker {
	return &Locker{rs: redsync.New(goredis.NewPool(client))}
}

// WithLock выполняет fn под мьютексом name. Если блокировку получить не удалось
// за tries попыток, возвращается ErrNotAcquired, а fn не вызывается.
func (l *Locker) WithLock(ctx context.Context, name string, expiry time.Duration, tries int, fn func(ctx context.Context) error) error {
	const op = "lock.WithLock"
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(expiry),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(100*time.Millisecond),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var takenPtr *redsync.ErrTaken
		var taken redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &takenPtr) || errors.As(err, &taken) {
			return fmt.Errorf("%s: %s: %w", op, name, ErrNotAcquired)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_, _ = mutex.UnlockContext(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}
