package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

const promoColumns = `id, code, discount::float8, is_active, expires_at, max_uses, used_count,
		stripe_coupon_id, stripe_promotion_code_id, created_at`

func scanPromo(row rowScanner) (*models.PromoCode, error) {
	p := &models.PromoCode{}
	if err := row.Scan(&p.ID, &p.Code, &p.Discount, &p.IsActive, &p.ExpiresAt, &p.MaxUses, &p.UsedCount,
		&p.StripeCouponID, &p.StripePromotionCodeID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// CreatePromoCode сохраняет промокод. При дубликате кода возвращает ErrAlreadyExists.
func (s *Storage) CreatePromoCode(ctx context.Context, p models.PromoCode) (*models.PromoCode, error) {
	const op = "storage.CreatePromoCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO promo_codes
			      (code, discount, is_active, expires_at, max_uses, stripe_coupon_id, stripe_promotion_code_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING ` + promoColumns
	created, err := scanPromo(s.DB.QueryRowContext(ctx, query,
		p.Code, p.Discount, p.IsActive, p.ExpiresAt, p.MaxUses, p.StripeCouponID, p.StripePromotionCodeID))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

// GetPromoCodeByCode ищет промокод по коду.
func (s *Storage) GetPromoCodeByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCodeByCode"
	p, err := scanPromo(s.DB.QueryRowContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// GetPromoCodeByID ищет промокод по идентификатору.
func (s *Storage) GetPromoCodeByID(ctx context.Context, id string) (*models.PromoCode, error) {
	const op = "storage.GetPromoCodeByID"
	p, err := scanPromo(s.DB.QueryRowContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// ListPromoCodes возвращает страницу промокодов, новые первыми.
func (s *Storage) ListPromoCodes(ctx context.Context, limit, offset int) ([]models.PromoCode, int, error) {
	const op = "storage.ListPromoCodes"
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM promo_codes`).Scan(&total); err != nil {
		return nil, 0, mapError(op, err)
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, mapError(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.PromoCode, 0, limit)
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, 0, mapError(op, err)
		}
		result = append(result, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, mapError(op, err)
	}
	return result, total, nil
}

// DeletePromoCode удаляет промокод.
func (s *Storage) DeletePromoCode(ctx context.Context, id string) error {
	const op = "storage.DeletePromoCode"
	res, err := s.DB.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		return mapError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
