package cache

import (
	"context"
	"fmt"
	"time"
)

// PutHash записывает поля hash-записи и выставляет TTL одной транзакцией.
func (c *Cache) PutHash(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	const op = "cache.PutHash"
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	pipe := c.Db.TxPipeline()
	pipe.HSet(ctx, key, values)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetHash возвращает все поля hash-записи. Пустая карта означает, что записи нет.
func (c *Cache) GetHash(ctx context.Context, key string) (map[string]string, error) {
	const op = "cache.GetHash"
	res, err := c.Db.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}
