package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/trendwatch/trendwatch/internal/models"
)

// PostgresCandidateRepository implements candidates.Repository using
// PostgreSQL. Candidates are retained forever; status transitions only.
type PostgresCandidateRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewPostgresCandidateRepository creates a new PostgreSQL candidate repository.
func NewPostgresCandidateRepository(db *sql.DB) *PostgresCandidateRepository {
	return &PostgresCandidateRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

var candidateColumns = []string{
	"id", "term", "source", "status", "llm_label", "llm_score",
	"captured_at", "expires_at", "queried_at", "rejection_reason", "news_item_id",
}

// Create stores a new candidate.
func (r *PostgresCandidateRepository) Create(ctx context.Context, candidate models.Candidate) error {
	query := `
		INSERT INTO candidates (id, term, source, status, llm_label, llm_score,
			captured_at, expires_at, queried_at, rejection_reason, news_item_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		candidate.ID,
		candidate.Term,
		candidate.Source,
		candidate.Status,
		candidate.LLMLabel,
		candidate.LLMScore,
		candidate.CapturedAt,
		candidate.ExpiresAt,
		candidate.QueriedAt,
		candidate.RejectionReason,
		nullableString(candidate.NewsItemID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// GetByID retrieves a candidate by its ID.
func (r *PostgresCandidateRepository) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	query, args, err := r.builder.Select(candidateColumns...).
		From("candidates").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}
	return r.scanOne(r.db.QueryRowContext(ctx, query, args...))
}

// FindActiveByTerm returns an unexpired pending or approved candidate for the
// term, if one exists.
func (r *PostgresCandidateRepository) FindActiveByTerm(ctx context.Context, term string, now time.Time) (*models.Candidate, error) {
	query, args, err := r.builder.Select(candidateColumns...).
		From("candidates").
		Where(sq.Eq{"term": term}).
		Where(sq.Eq{"status": []models.CandidateStatus{models.CandidateStatusPending, models.CandidateStatusApproved}}).
		Where(sq.Gt{"expires_at": now}).
		OrderBy("captured_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}
	return r.scanOne(r.db.QueryRowContext(ctx, query, args...))
}

// Update modifies an existing candidate.
func (r *PostgresCandidateRepository) Update(ctx context.Context, candidate models.Candidate) error {
	query := `
		UPDATE candidates
		SET status = $2, llm_label = $3, llm_score = $4, queried_at = $5, rejection_reason = $6
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		candidate.ID,
		candidate.Status,
		candidate.LLMLabel,
		candidate.LLMScore,
		candidate.QueriedAt,
		candidate.RejectionReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
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

// ListByStatus retrieves candidates whose stored status matches, newest first.
func (r *PostgresCandidateRepository) ListByStatus(ctx context.Context, status models.CandidateStatus, limit int) ([]models.Candidate, error) {
	qb := r.builder.Select(candidateColumns...).
		From("candidates").
		Where(sq.Eq{"status": status}).
		OrderBy("captured_at DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return r.queryMany(ctx, qb)
}

// List retrieves candidates regardless of status, newest first.
func (r *PostgresCandidateRepository) List(ctx context.Context, limit int) ([]models.Candidate, error) {
	qb := r.builder.Select(candidateColumns...).
		From("candidates").
		OrderBy("captured_at DESC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return r.queryMany(ctx, qb)
}

// SelectApproved returns approved, unexpired, never-queried candidates in
// selection order: llm score descending, then captured-at ascending.
func (r *PostgresCandidateRepository) SelectApproved(ctx context.Context, limit int, now time.Time) ([]models.Candidate, error) {
	qb := r.builder.Select(candidateColumns...).
		From("candidates").
		Where(sq.Eq{"status": models.CandidateStatusApproved}).
		Where(sq.Gt{"expires_at": now}).
		Where(sq.Eq{"queried_at": nil}).
		OrderBy("llm_score DESC NULLS LAST", "captured_at ASC")
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	return r.queryMany(ctx, qb)
}

func (r *PostgresCandidateRepository) queryMany(ctx context.Context, qb sq.SelectBuilder) ([]models.Candidate, error) {
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build candidate query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	var out []models.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	return out, nil
}

func (r *PostgresCandidateRepository) scanOne(row *sql.Row) (*models.Candidate, error) {
	candidate, err := scanCandidate(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return candidate, nil
}

func scanCandidate(scan func(dest ...any) error) (*models.Candidate, error) {
	var (
		candidate  models.Candidate
		newsItemID sql.NullString
	)
	err := scan(
		&candidate.ID,
		&candidate.Term,
		&candidate.Source,
		&candidate.Status,
		&candidate.LLMLabel,
		&candidate.LLMScore,
		&candidate.CapturedAt,
		&candidate.ExpiresAt,
		&candidate.QueriedAt,
		&candidate.RejectionReason,
		&newsItemID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}
	candidate.NewsItemID = newsItemID.String
	return &candidate, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
