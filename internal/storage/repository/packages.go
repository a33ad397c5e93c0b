package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

const packageColumns = `id, name, title, description, amount::float8, currency, duration, is_active,
		stripe_product_id, stripe_price_id, created_at, updated_at`

func scanPackage(row rowScanner) (*models.SubscriptionPackage, error) {
	p := &models.SubscriptionPackage{}
	if err := row.Scan(&p.ID, &p.Name, &p.Title, textArray(&p.Description), &p.Amount, &p.Currency,
		&p.Duration, &p.IsActive, &p.StripeProductID, &p.StripePriceID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// LatestPackage возвращает последний созданный пакет подписки.
func (s *Storage) LatestPackage(ctx context.Context) (*models.SubscriptionPackage, error) {
	const op = "storage.LatestPackage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanPackage(s.DB.QueryRowContext(ctx,
		`SELECT `+packageColumns+` FROM subscription_packages ORDER BY created_at DESC LIMIT 1`))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// GetPackage возвращает пакет по идентификатору.
func (s *Storage) GetPackage(ctx context.Context, id string) (*models.SubscriptionPackage, error) {
	const op = "storage.GetPackage"
	p, err := scanPackage(s.DB.QueryRowContext(ctx,
		`SELECT `+packageColumns+` FROM subscription_packages WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// CreatePackage сохраняет новый пакет подписки.
func (s *Storage) CreatePackage(ctx context.Context, p models.SubscriptionPackage) (*models.SubscriptionPackage, error) {
	const op = "storage.CreatePackage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscription_packages
			      (name, title, description, amount, currency, duration, is_active, stripe_product_id, stripe_price_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + packageColumns
	created, err := scanPackage(s.DB.QueryRowContext(ctx, query,
		p.Name, p.Title, p.Description, p.Amount, p.Currency, p.Duration, p.IsActive,
		p.StripeProductID, p.StripePriceID))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

// UpdatePackage перезаписывает все изменяемые поля пакета.
func (s *Storage) UpdatePackage(ctx context.Context, p models.SubscriptionPackage) (*models.SubscriptionPackage, error) {
	const op = "storage.UpdatePackage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscription_packages
			  SET name = $1, title = $2, description = $3, amount = $4, currency = $5, duration = $6,
			      is_active = $7, stripe_product_id = $8, stripe_price_id = $9, updated_at = NOW()
			  WHERE id = $10
			  RETURNING ` + packageColumns
	updated, err := scanPackage(s.DB.QueryRowContext(ctx, query,
		p.Name, p.Title, p.Description, p.Amount, p.Currency, p.Duration, p.IsActive,
		p.StripeProductID, p.StripePriceID, p.ID))
	if err != nil {
		return nil, mapError(op, err)
	}
	return updated, nil
}
