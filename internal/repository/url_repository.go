package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrURLNotFound = errors.New("url not found")
	ErrIDExists    = errors.New("short id already exists")
)

// URLRepository постоянное хранилище коротких ссылок и их кликов.
// Клики принадлежат своей ссылке: history читается и дополняется только
// через shortId, отдельного доступа к кликам нет.
type URLRepository interface {
	Create(ctx context.Context, url *models.ShortURL) error
	GetByShortID(ctx context.Context, shortID string) (*models.ShortURL, error)
	// GetByShortIDAndUser возвращает ссылку только её владельцу. Чужая и
	// несуществующая ссылки неразличимы: обе дают ErrURLNotFound.
	GetByShortIDAndUser(ctx context.Context, shortID, userID string) (*models.ShortURL, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ShortURL, error)
	Delete(ctx context.Context, shortID, userID string) error
	// AppendClick добавляет клик и инкрементирует счётчик одной транзакцией
	AppendClick(ctx context.Context, shortID string, click *models.Click) error
	GetClicks(ctx context.Context, shortID string) ([]models.Click, error)
}

type urlRepository struct {
	db *PostgresDB
}

func NewURLRepository(db *PostgresDB) URLRepository {
	return &urlRepository{db: db}
}

func (r *urlRepository) Create(ctx context.Context, url *models.ShortURL) error {
	query := `
		INSERT INTO urls (short_id, original_url, user_id, title, click_count, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(
		ctx,
		query,
		url.ShortID,
		url.OriginalURL,
		url.UserID,
		url.Title,
		url.ClickCount,
		url.CreatedAt,
		url.ExpiresAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrIDExists
		}
		return fmt.Errorf("failed to create url: %w", err)
	}

	return nil
}

func (r *urlRepository) GetByShortID(ctx context.Context, shortID string) (*models.ShortURL, error) {
	query := `
		SELECT short_id, original_url, user_id, title, click_count, created_at, expires_at
		FROM urls
		WHERE short_id = $1 AND expires_at > NOW()
	`
	return r.scanURL(r.db.Pool.QueryRow(ctx, query, shortID))
}

func (r *urlRepository) GetByShortIDAndUser(ctx context.Context, shortID, userID string) (*models.ShortURL, error) {
	query := `
		SELECT short_id, original_url, user_id, title, click_count, created_at, expires_at
		FROM urls
		WHERE short_id = $1 AND user_id = $2
	`

	url, err := r.scanURL(r.db.Pool.QueryRow(ctx, query, shortID, userID))
	if err != nil {
		return nil, err
	}

	clicks, err := r.GetClicks(ctx, shortID)
	if err != nil {
		return nil, err
	}
	url.Clicks = clicks

	return url, nil
}

func (r *urlRepository) ListByUser(ctx context.Context, userID string) ([]*models.ShortURL, error) {
	query := `
		SELECT short_id, original_url, user_id, title, click_count, created_at, expires_at
		FROM urls
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var urls []*models.ShortURL
	for rows.Next() {
		url, err := r.scanURL(rows)
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating urls: %w", err)
	}

	return urls, nil
}

func (r *urlRepository) Delete(ctx context.Context, shortID, userID string) error {
	query := `DELETE FROM urls WHERE short_id = $1 AND user_id = $2`

	result, err := r.db.Pool.Exec(ctx, query, shortID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete url: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	return nil
}

func (r *urlRepository) AppendClick(ctx context.Context, shortID string, click *models.Click) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокировка строки urls сериализует конкурентные записи по одному shortId
	// и держит click_count равным количеству кликов
	result, err := tx.Exec(ctx,
		`UPDATE urls SET click_count = click_count + 1 WHERE short_id = $1`,
		shortID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump click count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrURLNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO clicks (short_id, clicked_at, country, country_code, city, region, latitude, longitude, ip, user_agent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		shortID,
		click.Timestamp,
		click.Country,
		click.CountryCode,
		click.City,
		click.Region,
		click.Latitude,
		click.Longitude,
		click.IP,
		click.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit click: %w", err)
	}

	return nil
}

func (r *urlRepository) GetClicks(ctx context.Context, shortID string) ([]models.Click, error) {
	// id serial — порядок поступления, клики не пересортировываются
	query := `
		SELECT clicked_at, country, country_code, city, region, latitude, longitude, ip, user_agent
		FROM clicks
		WHERE short_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, shortID)
	if err != nil {
		return nil, fmt.Errorf("failed to get clicks: %w", err)
	}
	defer rows.Close()

	clicks := []models.Click{}
	for rows.Next() {
		var click models.Click
		err := rows.Scan(
			&click.Timestamp,
			&click.Country,
			&click.CountryCode,
			&click.City,
			&click.Region,
			&click.Latitude,
			&click.Longitude,
			&click.IP,
			&click.UserAgent,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}

// rowScanner общий интерфейс pgx.Row и pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *urlRepository) scanURL(row rowScanner) (*models.ShortURL, error) {
	url := &models.ShortURL{Clicks: []models.Click{}}
	err := row.Scan(
		&url.ShortID,
		&url.OriginalURL,
		&url.UserID,
		&url.Title,
		&url.ClickCount,
		&url.CreatedAt,
		&url.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to scan url: %w", err)
	}

	return url, nil
}

// isUniqueViolation проверяет нарушение уникальности short_id (код 23505)
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
