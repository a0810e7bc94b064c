package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/shortlink/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	Pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB config: %w", err)
	}

	// Настрока пула соединений
	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверка подключения
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// Migrate создаёт схему, если её ещё нет. Клики лежат в отдельной таблице,
// но принадлежат своей ссылке: serial id фиксирует порядок поступления,
// click_count в urls денормализован и обновляется вместе со вставкой клика.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS urls (
			short_id     TEXT PRIMARY KEY,
			original_url TEXT NOT NULL,
			user_id      TEXT,
			title        TEXT NOT NULL DEFAULT '',
			click_count  INTEGER NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_urls_user_id ON urls (user_id);

		CREATE TABLE IF NOT EXISTS clicks (
			id           BIGSERIAL PRIMARY KEY,
			short_id     TEXT NOT NULL REFERENCES urls (short_id) ON DELETE CASCADE,
			clicked_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			country      TEXT NOT NULL DEFAULT 'Unknown',
			country_code TEXT NOT NULL DEFAULT '',
			city         TEXT NOT NULL DEFAULT '',
			region       TEXT NOT NULL DEFAULT '',
			latitude     DOUBLE PRECISION,
			longitude    DOUBLE PRECISION,
			ip           TEXT NOT NULL DEFAULT 'Unknown',
			user_agent   TEXT NOT NULL DEFAULT 'Unknown'
		);
		CREATE INDEX IF NOT EXISTS idx_clicks_short_id ON clicks (short_id);
	`

	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}
