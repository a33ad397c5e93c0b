package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

const userColumns = `id, name, email, password_hash, type, phone, gender, date_of_birth,
		category, avatar, is_subscriber, real_subscriber, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Type, &u.Phone, &u.Gender,
		&u.DateOfBirth, &u.Category, &u.Avatar, &u.IsSubscriber, &u.RealSubscriber,
		&u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser сохраняет нового пользователя и возвращает созданную запись.
func (s *Storage) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.CreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (name, email, password_hash, type, avatar)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Type, user.Avatar))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// UpdatePassword заменяет хэш пароля пользователя.
func (s *Storage) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const op = "storage.UpdatePassword"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, passwordHash, id)
	if err != nil {
		return mapError(op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// UpdateProfile обновляет только переданные поля профиля.
func (s *Storage) UpdateProfile(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 6)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("name", upd.Name)
	add("gender", upd.Gender)
	add("date_of_birth", upd.DateOfBirth)
	add("category", upd.Category)
	add("avatar", upd.Avatar)
	if len(sets) == 0 {
		return s.GetUserByID(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(op, err)
	}
	return u, nil
}

// ListUsers возвращает страницу обычных пользователей и общее количество по фильтру.
func (s *Storage) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	where := `WHERE type = 'user'`
	args := []any{}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		where += ` AND (name ILIKE $1 ESCAPE '\' OR email ILIKE $1 ESCAPE '\' OR phone ILIKE $1 ESCAPE '\')`
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(op, err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))
	users, err := s.queryUsers(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(op, err)
	}
	return users, total, nil
}

// ExportUsers возвращает всех обычных пользователей для выгрузки.
func (s *Storage) ExportUsers(ctx context.Context) ([]models.User, error) {
	const op = "storage.ExportUsers"
	users, err := s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE type = 'user' ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapError(op, err)
	}
	return users, nil
}

// RecentUsers возвращает последних зарегистрированных пользователей.
func (s *Storage) RecentUsers(ctx context.Context, limit int) ([]models.User, error) {
	const op = "storage.RecentUsers"
	users, err := s.queryUsers(ctx,
		`SELECT `+userColumns+` FROM users WHERE type = 'user' ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapError(op, err)
	}
	return users, nil
}

func (s *Storage) queryUsers(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

// ListUserEarnings считает сумму завершённых транзакций по каждому пользователю.
func (s *Storage) ListUserEarnings(ctx context.Context, limit, offset int) ([]models.UserEarning, int, error) {
	const op = "storage.ListUserEarnings"
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE type = 'user'`).Scan(&total); err != nil {
		return nil, 0, mapError(op, err)
	}

	query := `SELECT u.id, u.name, u.email, u.avatar,
			      COALESCE(SUM(t.amount) FILTER (WHERE t.status = 'completed'), 0)::float8 AS earnings
			  FROM users u
			  LEFT JOIN transactions t ON t.user_id = u.id
			  WHERE u.type = 'user'
			  GROUP BY u.id
			  ORDER BY earnings DESC, u.created_at DESC
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, mapError(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.UserEarning, 0, limit)
	for rows.Next() {
		var e models.UserEarning
		if err = rows.Scan(&e.UserID, &e.Name, &e.Email, &e.Avatar, &e.Earnings); err != nil {
			return nil, 0, mapError(op, err)
		}
		result = append(result, e)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, mapError(op, err)
	}
	return result, total, nil
}

// CountUsers возвращает количество обычных пользователей.
func (s *Storage) CountUsers(ctx context.Context) (int, error) {
	const op = "storage.CountUsers"
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE type = 'user'`).Scan(&n); err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

// CountRealSubscribers возвращает количество пользователей, оплативших подписку.
func (s *Storage) CountRealSubscribers(ctx context.Context) (int, error) {
	const op = "storage.CountRealSubscribers"
	var n int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE type = 'user' AND real_subscriber`).Scan(&n); err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

// DemoteExpiredTrials снимает пробную подписку у неоплативших пользователей,
// зарегистрированных не позже createdBefore. Возвращает число изменённых записей.
func (s *Storage) DemoteExpiredTrials(ctx context.Context, createdBefore time.Time) (int64, error) {
	const op = "storage.DemoteExpiredTrials"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET is_subscriber = FALSE, updated_at = NOW()
			  WHERE type = 'user'
			    AND real_subscriber = FALSE
			    AND is_subscriber = TRUE
			    AND created_at <= $1`
	res, err := s.DB.ExecContext(ctx, query, createdBefore)
	if err != nil {
		return 0, mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}
