package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/magabrotheeeer/predictions-backend/internal/models"
)

const predictionColumns = `id, category, description, image, status, created_at, updated_at`

func scanPrediction(row rowScanner) (*models.Prediction, error) {
	p := &models.Prediction{}
	if err := row.Scan(&p.ID, &p.Category, &p.Description, &p.Image, &p.Status,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Storage) queryPredictions(ctx context.Context, query string, args ...any) ([]models.Prediction, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Prediction, 0)
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// CreatePrediction сохраняет новый прогноз со статусом pending.
func (s *Storage) CreatePrediction(ctx context.Context, p models.Prediction) (*models.Prediction, error) {
	const op = "storage.CreatePrediction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO predictions (category, description, image)
			  VALUES ($1, $2, $3)
			  RETURNING ` + predictionColumns
	created, err := scanPrediction(s.DB.QueryRowContext(ctx, query, p.Category, p.Description, p.Image))
	if err != nil {
		return nil, mapError(op, err)
	}
	return created, nil
}

// GetPrediction возвращает прогноз по идентификатору.
func (s *Storage) GetPrediction(ctx context.Context, id string) (*models.Prediction, error) {
	const op = "storage.GetPrediction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	p, err := scanPrediction(s.DB.QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// UpdatePrediction обновляет переданные поля прогноза.
func (s *Storage) UpdatePrediction(ctx context.Context, id string, upd models.PredictionUpdate) (*models.Prediction, error) {
	const op = "storage.UpdatePrediction"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("category", upd.Category)
	add("description", upd.Description)
	add("status", upd.Status)
	add("image", upd.Image)
	if len(sets) == 0 {
		return s.GetPrediction(ctx, id)
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE predictions SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), predictionColumns)
	p, err := scanPrediction(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(op, err)
	}
	return p, nil
}

// ListPredictions возвращает страницу прогнозов по фильтру и общее количество.
func (s *Storage) ListPredictions(ctx context.Context, filter models.PredictionFilter) ([]models.Prediction, int, error) {
	const op = "storage.ListPredictions"
	select {
	case <-ctx.Done():
		return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	conds := []string{"TRUE"}
	args := []any{}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, containsPattern(filter.Search))
		conds = append(conds, fmt.Sprintf(`description ILIKE $%d ESCAPE '\'`, len(args)))
	}
	where := "WHERE " + strings.Join(conds, " AND ")

	var total int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions `+where, args...).Scan(&total); err != nil {
		return nil, 0, mapError(op, err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM predictions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		predictionColumns, where, len(args)-1, len(args))
	items, err := s.queryPredictions(ctx, query, args...)
	if err != nil {
		return nil, 0, mapError(op, err)
	}
	return items, total, nil
}

// FindPredictionsByIDs возвращает существующие прогнозы из списка идентификаторов.
func (s *Storage) FindPredictionsByIDs(ctx context.Context, ids []string) ([]models.Prediction, error) {
	const op = "storage.FindPredictionsByIDs"
	items, err := s.queryPredictions(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return nil, mapError(op, err)
	}
	return items, nil
}

// DeletePredictions удаляет прогнозы и возвращает количество удалённых строк.
func (s *Storage) DeletePredictions(ctx context.Context, ids []string) (int64, error) {
	const op = "storage.DeletePredictions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM predictions WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, mapError(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

// PredictionFeed возвращает до limit активных прогнозов, созданных раньше прогноза-курсора.
func (s *Storage) PredictionFeed(ctx context.Context, q models.FeedQuery) ([]models.Prediction, error) {
	const op = "storage.PredictionFeed"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	conds := []string{"status = 'pending'"}
	args := []any{}
	if q.Category != "" {
		args = append(args, q.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if q.Cursor != "" {
		args = append(args, q.Cursor)
		conds = append(conds, fmt.Sprintf(
			"(created_at, id) < (SELECT created_at, id FROM predictions WHERE id = $%d)", len(args)))
	}
	args = append(args, q.Limit)
	query := fmt.Sprintf(`SELECT %s FROM predictions WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d`,
		predictionColumns, strings.Join(conds, " AND "), len(args))

	items, err := s.queryPredictions(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, err)
	}
	return items, nil
}

// CategoryStats возвращает количество побед, поражений и активных прогнозов по категориям.
func (s *Storage) CategoryStats(ctx context.Context) ([]models.CategoryStats, error) {
	const op = "storage.CategoryStats"
	query := `SELECT category,
			      COUNT(*) FILTER (WHERE status = 'win'),
			      COUNT(*) FILTER (WHERE status = 'lose'),
			      COUNT(*) FILTER (WHERE status = 'pending')
			  FROM predictions
			  GROUP BY category`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.CategoryStats, 0, len(models.Categories))
	for rows.Next() {
		var c models.CategoryStats
		if err = rows.Scan(&c.Category, &c.Win, &c.Lose, &c.Active); err != nil {
			return nil, mapError(op, err)
		}
		result = append(result, c)
	}
	if err = rows.Err(); err != nil {
		return nil, mapError(op, err)
	}
	return result, nil
}

// PredictionCounts считает все прогнозы и прогнозы по статусам, созданные в интервале [from, to).
// Нулевые границы означают отсутствие ограничения.
func (s *Storage) PredictionCounts(ctx context.Context, from, to time.Time) (models.PredictionCounts, error) {
	const op = "storage.PredictionCounts"
	var c models.PredictionCounts

	query := `SELECT
			      COUNT(*),
			      COUNT(*) FILTER (WHERE status = 'win'),
			      COUNT(*) FILTER (WHERE status = 'lose'),
			      COUNT(*) FILTER (WHERE status = 'pending')
			  FROM predictions
			  WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			    AND ($2::timestamptz IS NULL OR created_at < $2)`
	if err := s.DB.QueryRowContext(ctx, query, nullTime(from), nullTime(to)).
		Scan(&c.Total, &c.Win, &c.Lose, &c.Pending); err != nil {
		return c, mapError(op, err)
	}
	return c, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
