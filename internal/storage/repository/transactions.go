package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

const transactionColumns = `id, user_id, subscription_package_id, promo_code_id, amount::float8,
		original_amount::float8, discount_amount::float8, currency, status, stripe_session_id,
		stripe_payment_intent_id, created_at, updated_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	if err := row.Scan(&t.ID, &t.UserID, &t.SubscriptionPackageID, &t.PromoCodeID, &t.Amount,
		&t.OriginalAmount, &t.DiscountAmount, &t.Currency, &t.Status, &t.StripeSessionID,
		&t.StripePaymentIntentID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateTransaction сохраняет транзакцию в статусе pending.
func (s *Storage) CreateTransaction(ctx context.Context, t models.Transaction) (*models.Transaction, error) {
	const op = "storage.CreateTransaction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO transactions
			      (user_id, subscription_package_id, promo_code_id, amount, original_amount,
			       discount_amount, currency, status, stripe_session_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
			  RETURNING ` + transactionColumns
	created, err := scanTransaction(s.DB.QueryRowContext(ctx, query,
		t.UserID, t.SubscriptionPackageID, t.PromoCodeID, t.Amount, t.OriginalAmount,
		t.DiscountAmount, t.Currency, t.StripeSessionID))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

// GetTransactionBySession возвращает транзакцию по идентификатору checkout-сессии.
func (s *Storage) GetTransactionBySession(ctx context.Context, sessionID string) (*models.Transaction, error) {
	const op = "storage.GetTransactionBySession"
	t, err := scanTransaction(s.DB.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE stripe_session_id = $1`, sessionID))
	if err != nil {
		return nil, mapError(op, err)
	}
	return t, nil
}

// CompletePayment в одной транзакции помечает оплату завершённой, увеличивает
// счётчик использований промокода и делает пользователя подписчиком.
// Если строки для сессии нет вовсе, пользователь и промокод берутся из p.
// Возвращает false, если сессия уже была обработана или пользователь неизвестен.
func (s *Storage) CompletePayment(ctx context.Context, p models.CompletedPayment) (bool, error) {
	const op = "storage.CompletePayment"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return false, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		userID   string
		promoID  sql.NullString
		orphaned bool
	)
	err = tx.QueryRowContext(ctx,
		`UPDATE transactions
		 SET status = 'completed', stripe_payment_intent_id = NULLIF($2, ''), updated_at = NOW()
		 WHERE stripe_session_id = $1 AND status = 'pending'
		 RETURNING user_id, promo_code_id`,
		p.SessionID, p.PaymentIntentID).Scan(&userID, &promoID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var known bool
		if err = tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE stripe_session_id = $1)`,
			p.SessionID).Scan(&known); err != nil {
			return false, mapError(op, err)
		}
		if known || !isUUID(p.UserID) {
			return false, nil
		}
		userID, orphaned = p.UserID, true
		promoID = sql.NullString{String: p.PromoCodeID, Valid: isUUID(p.PromoCodeID)}
	case err != nil:
		return false, mapError(op, err)
	}

	if promoID.Valid {
		if _, err = tx.ExecContext(ctx,
			`UPDATE promo_codes SET used_count = used_count + 1
			 WHERE id = $1 AND (max_uses IS NULL OR used_count < max_uses)`, promoID.String); err != nil {
			return false, mapError(op, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET is_subscriber = TRUE, real_subscriber = TRUE, updated_at = NOW() WHERE id = $1`,
		userID)
	if err != nil {
		return false, mapError(op, err)
	}
	if n, err := res.RowsAffected(); orphaned && err == nil && n == 0 {
		return false, nil
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: commit: %w", op, err)
	}
	return true, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// FailTransaction помечает pending-транзакцию неуспешной.
func (s *Storage) FailTransaction(ctx context.Context, sessionID string) error {
	const op = "storage.FailTransaction"
	_, err := s.DB.ExecContext(ctx,
		`UPDATE transactions SET status = 'failed', updated_at = NOW()
		 WHERE stripe_session_id = $1 AND status = 'pending'`, sessionID)
	if err != nil {
		return mapError(op, err)
	}
	return nil
}

// RevenueBetween возвращает сумму завершённых транзакций в интервале [from, to).
// Нулевые границы означают отсутствие ограничения.
func (s *Storage) RevenueBetween(ctx context.Context, from, to time.Time) (float64, error) {
	const op = "storage.RevenueBetween"
	var sum float64
	err := s.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0)::float8 FROM transactions
		 WHERE status = 'completed'
		   AND ($1::timestamptz IS NULL OR created_at >= $1)
		   AND ($2::timestamptz IS NULL OR created_at < $2)`,
		nullTime(from), nullTime(to)).Scan(&sum)
	if err != nil {
		return 0, mapError(op, err)
	}
	return sum, nil
}

// CompletedBetween возвращает количество завершённых транзакций в интервале [from, to).
func (s *Storage) CompletedBetween(ctx context.Context, from, to time.Time) (int, error) {
	const op = "storage.CompletedBetween"
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE status = 'completed'
		   AND ($1::timestamptz IS NULL OR created_at >= $1)
		   AND ($2::timestamptz IS NULL OR created_at < $2)`,
		nullTime(from), nullTime(to)).Scan(&n)
	if err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

// MonthlyEarnings возвращает выручку по месяцам года, индекс 0 соответствует январю.
func (s *Storage) MonthlyEarnings(ctx context.Context, year int) ([12]float64, error) {
	const op = "storage.MonthlyEarnings"
	var result [12]float64

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	rows, err := s.DB.QueryContext(ctx,
		`SELECT EXTRACT(MONTH FROM created_at AT TIME ZONE 'UTC')::int AS m, SUM(amount)::float8
		 FROM transactions
		 WHERE status = 'completed' AND created_at >= $1 AND created_at < $2
		 GROUP BY m`, start, end)
	if err != nil {
		return result, mapError(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		var m int
		var sum float64
		if err = rows.Scan(&m, &sum); err != nil {
			return result, mapError(op, err)
		}
		if m >= 1 && m <= 12 {
			result[m-1] = sum
		}
	}
	if err = rows.Err(); err != nil {
		return result, mapError(op, err)
	}
	return result, nil
}

// CountPayingUsers возвращает число пользователей хотя бы с одной завершённой транзакцией.
func (s *Storage) CountPayingUsers(ctx context.Context) (int, error) {
	const op = "storage.CountPayingUsers"
	var n int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM transactions WHERE status = 'completed'`).Scan(&n); err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

// ExportTransactions возвращает транзакции интервала [from, to) с данными пользователя для выгрузки.
func (s *Storage) ExportTransactions(ctx context.Context, from, to time.Time) ([]models.TransactionExportRow, error) {
	const op = "storage.ExportTransactions"
	rows, err := s.DB.QueryContext(ctx,
		`SELECT t.id, t.user_id, t.subscription_package_id, t.promo_code_id, t.amount::float8,
		        t.original_amount::float8, t.discount_amount::float8, t.currency, t.status,
		        t.stripe_session_id, t.stripe_payment_intent_id, t.created_at, t.updated_at,
		        u.name, u.email
		 FROM transactions t
		 JOIN users u ON u.id = t.user_id
		 WHERE ($1::timestamptz IS NULL OR t.created_at >= $1)
		   AND ($2::timestamptz IS NULL OR t.created_at < $2)
		 ORDER BY t.created_at DESC`, nullTime(from), nullTime(to))
	if err != nil {
		return nil, mapError(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.TransactionExportRow, 0)
	for rows.Next() {
		var r models.TransactionExportRow
		if err = rows.Scan(&r.ID, &r.UserID, &r.SubscriptionPackageID, &r.PromoCodeID, &r.Amount,
			&r.OriginalAmount, &r.DiscountAmount, &r.Currency, &r.Status, &r.StripeSessionID,
			&r.StripePaymentIntentID, &r.CreatedAt, &r.UpdatedAt, &r.UserName, &r.UserEmail); err != nil {
			return nil, mapError(op, err)
		}
		result = append(result, r)
	}
	if err = rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return result, nil
}
