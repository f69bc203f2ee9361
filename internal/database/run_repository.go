package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/trendwatch/trendwatch/internal/models"
)

// PostgresRunRepository implements orchestrator.RunRepository using
// PostgreSQL. Run options, task metadata, and probe payloads are stored as
// JSONB; counts live in plain columns so the run list stays cheap to query.
type PostgresRunRepository struct {
	db *sql.DB
}

// NewPostgresRunRepository creates a new PostgreSQL run repository.
func NewPostgresRunRepository(db *sql.DB) *PostgresRunRepository {
	return &PostgresRunRepository{db: db}
}

// CreateRun stores a new run.
func (r *PostgresRunRepository) CreateRun(ctx context.Context, run models.Run) error {
	rootKeywords, err := json.Marshal(run.RootKeywords)
	if err != nil {
		return fmt.Errorf("failed to marshal root keywords: %w", err)
	}
	metadata, err := json.Marshal(run.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}

	query := `
		INSERT INTO runs (id, triggered_at, status, trigger_source, root_keywords, metadata,
			tasks_total, tasks_completed, tasks_queued, tasks_error, cost_total)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.db.ExecContext(ctx, query,
		run.ID,
		run.TriggeredAt,
		run.Status,
		run.TriggerSource,
		rootKeywords,
		metadata,
		run.TaskCounts.Total,
		run.TaskCounts.Completed,
		run.TaskCounts.Queued,
		run.TaskCounts.Error,
		run.CostTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

const runColumns = `id, triggered_at, status, trigger_source, root_keywords, metadata,
	tasks_total, tasks_completed, tasks_queued, tasks_error, cost_total`

// GetRun retrieves a run by ID.
func (r *PostgresRunRepository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	query := fmt.Sprintf("SELECT %s FROM runs WHERE id = $1", runColumns)
	run, err := scanRun(r.db.QueryRowContext(ctx, query, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return run, err
}

// UpdateRun persists run status, counts, and cost.
func (r *PostgresRunRepository) UpdateRun(ctx context.Context, run models.Run) error {
	query := `
		UPDATE runs
		SET status = $2, tasks_total = $3, tasks_completed = $4, tasks_queued = $5,
			tasks_error = $6, cost_total = $7
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.Status,
		run.TaskCounts.Total,
		run.TaskCounts.Completed,
		run.TaskCounts.Queued,
		run.TaskCounts.Error,
		run.CostTotal,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
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

// ListRuns returns runs newest-first, up to limit.
func (r *PostgresRunRepository) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	query := fmt.Sprintf("SELECT %s FROM runs ORDER BY triggered_at DESC", runColumns)
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return out, nil
}

func scanRun(scan func(dest ...any) error) (*models.Run, error) {
	var (
		run          models.Run
		rootKeywords []byte
		metadata     []byte
	)
	err := scan(
		&run.ID,
		&run.TriggeredAt,
		&run.Status,
		&run.TriggerSource,
		&rootKeywords,
		&metadata,
		&run.TaskCounts.Total,
		&run.TaskCounts.Completed,
		&run.TaskCounts.Queued,
		&run.TaskCounts.Error,
		&run.CostTotal,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if len(rootKeywords) > 0 {
		if err := json.Unmarshal(rootKeywords, &run.RootKeywords); err != nil {
			return nil, fmt.Errorf("failed to unmarshal root keywords: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &run.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal run metadata: %w", err)
		}
	}
	return &run, nil
}

// CreateTask stores a new task.
func (r *PostgresRunRepository) CreateTask(ctx context.Context, task models.Task) error {
	metadata, request, result, err := marshalTaskPayloads(task)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (task_id, run_id, status, keyword, locale, timeframe,
			posted_at, completed_at, metadata, request, result, cost, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		task.TaskID,
		task.RunID,
		task.Status,
		task.Keyword,
		task.Locale,
		task.Timeframe,
		task.PostedAt,
		task.CompletedAt,
		metadata,
		request,
		result,
		task.Cost,
		task.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

// UpdateTask persists task status and result.
func (r *PostgresRunRepository) UpdateTask(ctx context.Context, task models.Task) error {
	_, _, result, err := marshalTaskPayloads(task)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET status = $2, completed_at = $3, result = $4, cost = $5, error_message = $6
		WHERE task_id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		task.TaskID,
		task.Status,
		task.CompletedAt,
		result,
		task.Cost,
		task.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListTasks returns all tasks of a run in creation order.
func (r *PostgresRunRepository) ListTasks(ctx context.Context, runID string) ([]models.Task, error) {
	query := `
		SELECT task_id, run_id, status, keyword, locale, timeframe,
			posted_at, completed_at, metadata, request, result, cost, error_message
		FROM tasks
		WHERE run_id = $1
		ORDER BY posted_at ASC, task_id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		var (
			task     models.Task
			metadata []byte
			request  []byte
			result   []byte
		)
		err := rows.Scan(
			&task.TaskID,
			&task.RunID,
			&task.Status,
			&task.Keyword,
			&task.Locale,
			&task.Timeframe,
			&task.PostedAt,
			&task.CompletedAt,
			&metadata,
			&request,
			&result,
			&task.Cost,
			&task.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &task.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal task metadata: %w", err)
			}
		}
		if len(request) > 0 {
			task.Request = &models.TrendQuery{}
			if err := json.Unmarshal(request, task.Request); err != nil {
				return nil, fmt.Errorf("failed to unmarshal task request: %w", err)
			}
		}
		if len(result) > 0 {
			task.Result = &models.TrendResult{}
			if err := json.Unmarshal(result, task.Result); err != nil {
				return nil, fmt.Errorf("failed to unmarshal task result: %w", err)
			}
		}

		out = append(out, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	return out, nil
}

func marshalTaskPayloads(task models.Task) (metadata, request, result []byte, err error) {
	metadata, err = json.Marshal(task.Metadata)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal task metadata: %w", err)
	}
	if task.Request != nil {
		request, err = json.Marshal(task.Request)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal task request: %w", err)
		}
	}
	if task.Result != nil {
		result, err = json.Marshal(task.Result)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal task result: %w", err)
		}
	}
	return metadata, request, result, nil
}
