package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trendwatch/trendwatch/internal/models"
)

// PostgresNewsRepository implements harvest.NewsRepository using PostgreSQL.
// Items are keyed by the normalized URL stored in url_key.
type PostgresNewsRepository struct {
	db *sql.DB
}

// NewPostgresNewsRepository creates a new PostgreSQL news repository.
func NewPostgresNewsRepository(db *sql.DB) *PostgresNewsRepository {
	return &PostgresNewsRepository{db: db}
}

const newsColumns = "id, title, url, source, published_at, summary, created_at, updated_at"

// GetByKey retrieves an item by its normalized-URL identity key.
func (r *PostgresNewsRepository) GetByKey(ctx context.Context, key string) (*models.NewsItem, error) {
	query := fmt.Sprintf("SELECT %s FROM news_items WHERE url_key = $1", newsColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, key))
}

// GetByID retrieves an item by ID.
func (r *PostgresNewsRepository) GetByID(ctx context.Context, id string) (*models.NewsItem, error) {
	query := fmt.Sprintf("SELECT %s FROM news_items WHERE id = $1", newsColumns)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresNewsRepository) scanOne(row *sql.Row) (*models.NewsItem, error) {
	var item models.NewsItem
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.URL,
		&item.Source,
		&item.PublishedAt,
		&item.Summary,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query news item: %w", err)
	}
	return &item, nil
}

// Insert stores a new item.
func (r *PostgresNewsRepository) Insert(ctx context.Context, item models.NewsItem) error {
	query := `
		INSERT INTO news_items (id, url_key, title, url, source, published_at, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID,
		models.NormalizeURL(item.URL),
		item.Title,
		item.URL,
		item.Source,
		item.PublishedAt,
		item.Summary,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert news item: %w", err)
	}
	return nil
}

// Update backfills title/summary on an existing item.
func (r *PostgresNewsRepository) Update(ctx context.Context, item models.NewsItem) error {
	query := `
		UPDATE news_items
		SET title = $2, summary = $3, updated_at = $4
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, item.ID, item.Title, item.Summary, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update news item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Count returns the total number of stored items.
func (r *PostgresNewsRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM news_items").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count news items: %w", err)
	}
	return count, nil
}
