package database

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/trendwatch/trendwatch/internal/models"
)

// PostgresSnapshotRepository implements aggregate.SnapshotRepository using
// PostgreSQL. The series is append-only.
type PostgresSnapshotRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewPostgresSnapshotRepository creates a new PostgreSQL snapshot repository.
func NewPostgresSnapshotRepository(db *sql.DB) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert appends a snapshot.
func (r *PostgresSnapshotRepository) Insert(ctx context.Context, snapshot models.KeywordSnapshot) error {
	query := `
		INSERT INTO keyword_snapshots (id, keyword, locale, collected_at, trend_score)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		snapshot.ID,
		snapshot.Keyword,
		snapshot.Locale,
		snapshot.CollectedAt,
		snapshot.TrendScore,
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Recent returns the most recent snapshots for a keyword/locale pair, newest
// first, up to limit.
func (r *PostgresSnapshotRepository) Recent(ctx context.Context, keyword, locale string, limit int) ([]models.KeywordSnapshot, error) {
	qb := r.builder.Select("id", "keyword", "locale", "collected_at", "trend_score").
		From("keyword_snapshots").
		Where(sq.Eq{"keyword": keyword, "locale": locale}).
		OrderBy("collected_at DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build snapshot query: %w", err)
	}
	return r.queryMany(ctx, query, args...)
}

// Latest returns the newest snapshot of every keyword/locale pair.
func (r *PostgresSnapshotRepository) Latest(ctx context.Context) ([]models.KeywordSnapshot, error) {
	query := `
		SELECT DISTINCT ON (keyword, locale) id, keyword, locale, collected_at, trend_score
		FROM keyword_snapshots
		ORDER BY keyword, locale, collected_at DESC
	`
	return r.queryMany(ctx, query)
}

func (r *PostgresSnapshotRepository) queryMany(ctx context.Context, query string, args ...any) ([]models.KeywordSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.KeywordSnapshot
	for rows.Next() {
		var s models.KeywordSnapshot
		if err := rows.Scan(&s.ID, &s.Keyword, &s.Locale, &s.CollectedAt, &s.TrendScore); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshots: %w", err)
	}
	return out, nil
}
