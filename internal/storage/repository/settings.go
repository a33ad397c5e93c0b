package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

// ListSettings возвращает все настройки, отсортированные по ключу.
func (s *Storage) ListSettings(ctx context.Context) ([]models.Setting, error) {
	const op = "storage.ListSettings"
	rows, err := s.DB.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Setting, 0)
	for rows.Next() {
		var st models.Setting
		if err = rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, mapError(op, err)
		}
		result = append(result, st)
	}
	if err = rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return result, nil
}

// GetSetting возвращает настройку по ключу.
func (s *Storage) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	const op = "storage.GetSetting"
	st := &models.Setting{}
	err := s.DB.QueryRowContext(ctx, `SELECT key, value, updated_at FROM settings WHERE key = $1`, key).
		Scan(&st.Key, &st.Value, &st.UpdatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	return st, nil
}

// UpsertSetting создаёт или перезаписывает настройку.
func (s *Storage) UpsertSetting(ctx context.Context, key, value string) (*models.Setting, error) {
	const op = "storage.UpsertSetting"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	st := &models.Setting{}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
		 RETURNING key, value, updated_at`, key, value).
		Scan(&st.Key, &st.Value, &st.UpdatedAt)
	if err != nil {
		return nil, mapError(op, err)
	}
	return st, nil
}

// DeleteSetting удаляет настройку.
func (s *Storage) DeleteSetting(ctx context.Context, key string) error {
	const op = "storage.DeleteSetting"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return mapError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
