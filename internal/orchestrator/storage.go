package orchestrator

import (
	"context"
	"sort"
	"sync"

	"github.com/trendwatch/trendwatch/internal/models"
)

// RunRepository defines the interface for persisting runs and their tasks.
// A run exclusively owns its tasks; nothing outside the orchestrator writes
// either.
type RunRepository interface {
	// CreateRun stores a new run.
	CreateRun(ctx context.Context, run models.Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, id string) (*models.Run, error)

	// UpdateRun persists run status, counts, and cost.
	UpdateRun(ctx context.Context, run models.Run) error

	// ListRuns returns runs newest-first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]models.Run, error)

	// CreateTask stores a new task.
	CreateTask(ctx context.Context, task models.Task) error

	// UpdateTask persists task status and result.
	UpdateTask(ctx context.Context, task models.Task) error

	// ListTasks returns all tasks of a run in creation order.
	ListTasks(ctx context.Context, runID string) ([]models.Task, error)
}

// MemoryRunRepository implements an in-memory run repository for development
// and tests.
type MemoryRunRepository struct {
	mu        sync.RWMutex
	runs      map[string]models.Run
	runOrder  []string
	tasks     map[string]models.Task
	taskOrder map[string][]string // runID -> task IDs in creation order
}

// NewMemoryRunRepository creates a new in-memory run repository.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{
		runs:      make(map[string]models.Run),
		tasks:     make(map[string]models.Task),
		taskOrder: make(map[string][]string),
	}
}

// CreateRun stores a new run.
func (r *MemoryRunRepository) CreateRun(ctx context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	r.runOrder = append(r.runOrder, run.ID)
	return nil
}

// GetRun retrieves a run by ID.
func (r *MemoryRunRepository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &run, nil
}

// UpdateRun persists run status, counts, and cost.
func (r *MemoryRunRepository) UpdateRun(ctx context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[run.ID]; !ok {
		return models.ErrNotFound
	}
	r.runs[run.ID] = run
	return nil
}

// ListRuns returns runs newest-first.
func (r *MemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Run, 0, len(r.runOrder))
	for i := len(r.runOrder) - 1; i >= 0; i-- {
		out = append(out, r.runs[r.runOrder[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	return out, nil
}

// CreateTask stores a new task.
func (r *MemoryRunRepository) CreateTask(ctx context.Context, task models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[task.TaskID] = task
	r.taskOrder[task.RunID] = append(r.taskOrder[task.RunID], task.TaskID)
	return nil
}

// UpdateTask persists task status and result.
func (r *MemoryRunRepository) UpdateTask(ctx context.Context, task models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.TaskID]; !ok {
		return models.ErrNotFound
	}
	r.tasks[task.TaskID] = task
	return nil
}

// ListTasks returns all tasks of a run in creation order.
func (r *MemoryRunRepository) ListTasks(ctx context.Context, runID string) ([]models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.taskOrder[runID]
	out := make([]models.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.tasks[id])
	}
	return out, nil
}
