package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/trendwatch/trendwatch/internal/models"
)

// PostgresAlertRepository implements aggregate.AlertRepository using
// PostgreSQL. Alerts are append-only and never updated.
type PostgresAlertRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewPostgresAlertRepository creates a new PostgreSQL alert repository.
func NewPostgresAlertRepository(db *sql.DB) *PostgresAlertRepository {
	return &PostgresAlertRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Insert stores a new alert.
func (r *PostgresAlertRepository) Insert(ctx context.Context, alert models.Alert) error {
	query := `
		INSERT INTO alerts (id, keyword, locale, priority, spike_score, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.Keyword,
		alert.Locale,
		alert.Priority,
		alert.SpikeScore,
		alert.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// ExistsInWindow reports whether the keyword/locale pair already alerted in
// [from, to).
func (r *PostgresAlertRepository) ExistsInWindow(ctx context.Context, keyword, locale string, from, to time.Time) (bool, error) {
	query, args, err := r.builder.Select("1").
		From("alerts").
		Where(sq.Eq{"keyword": keyword, "locale": locale}).
		Where(sq.GtOrEq{"triggered_at": from}).
		Where(sq.Lt{"triggered_at": to}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build alert query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check alert window: %w", err)
	}
	return true, nil
}

// ListRecent returns alerts newest-first, up to limit.
func (r *PostgresAlertRepository) ListRecent(ctx context.Context, limit int) ([]models.Alert, error) {
	qb := r.builder.Select("id", "keyword", "locale", "priority", "spike_score", "triggered_at").
		From("alerts").
		OrderBy("triggered_at DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build alert query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var a models.Alert
		if err := rows.Scan(&a.ID, &a.Keyword, &a.Locale, &a.Priority, &a.SpikeScore, &a.TriggeredAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return out, nil
}
