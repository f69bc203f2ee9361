package candidates

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trendwatch/trendwatch/internal/models"
)

// Repository defines the interface for storing and retrieving candidates.
// Candidates are never physically deleted; they are retained for audit.
type Repository interface {
	// Create stores a new candidate.
	Create(ctx context.Context, candidate models.Candidate) error

	// GetByID retrieves a candidate by its ID.
	GetByID(ctx context.Context, id string) (*models.Candidate, error)

	// FindActiveByTerm returns an unexpired pending or approved candidate for
	// the term, if one exists.
	FindActiveByTerm(ctx context.Context, term string, now time.Time) (*models.Candidate, error)

	// Update modifies an existing candidate.
	Update(ctx context.Context, candidate models.Candidate) error

	// ListByStatus retrieves candidates whose stored status matches, newest
	// first. Callers heal expiry on read.
	ListByStatus(ctx context.Context, status models.CandidateStatus, limit int) ([]models.Candidate, error)

	// List retrieves candidates regardless of status, newest first.
	List(ctx context.Context, limit int) ([]models.Candidate, error)

	// SelectApproved returns approved, unexpired, never-queried candidates
	// ordered by llm score descending then captured-at ascending.
	SelectApproved(ctx context.Context, limit int, now time.Time) ([]models.Candidate, error)
}

// MemoryRepository implements an in-memory candidate repository used in
// development and tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	candidates map[string]models.Candidate
	order      []string // insertion order, oldest first
}

// NewMemoryRepository creates a new in-memory candidate repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{candidates: make(map[string]models.Candidate)}
}

// Create stores a new candidate.
func (r *MemoryRepository) Create(ctx context.Context, candidate models.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates[candidate.ID] = candidate
	r.order = append(r.order, candidate.ID)
	return nil
}

// GetByID retrieves a candidate by ID.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.candidates[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

// FindActiveByTerm returns an unexpired pending/approved candidate by term.
func (r *MemoryRepository) FindActiveByTerm(ctx context.Context, term string, now time.Time) (*models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.candidates {
		if c.Term != term {
			continue
		}
		switch c.EffectiveStatus(now) {
		case models.CandidateStatusPending, models.CandidateStatusApproved:
			out := c
			return &out, nil
		}
	}
	return nil, models.ErrNotFound
}

// Update modifies an existing candidate.
func (r *MemoryRepository) Update(ctx context.Context, candidate models.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.candidates[candidate.ID]; !ok {
		return models.ErrNotFound
	}
	r.candidates[candidate.ID] = candidate
	return nil
}

// ListByStatus retrieves candidates with the stored status, newest first.
func (r *MemoryRepository) ListByStatus(ctx context.Context, status models.CandidateStatus, limit int) ([]models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Candidate
	for i := len(r.order) - 1; i >= 0; i-- {
		c := r.candidates[r.order[i]]
		if c.Status != status {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// List retrieves candidates regardless of status, newest first.
func (r *MemoryRepository) List(ctx context.Context, limit int) ([]models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Candidate
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.candidates[r.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// SelectApproved returns selectable candidates in selection order.
func (r *MemoryRepository) SelectApproved(ctx context.Context, limit int, now time.Time) ([]models.Candidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var eligible []models.Candidate
	for _, c := range r.candidates {
		if c.Selectable(now) {
			eligible = append(eligible, c)
		}
	}

	// Score descending; ties broken by capture time ascending so older
	// candidates are not starved.
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Score() != eligible[j].Score() {
			return eligible[i].Score() > eligible[j].Score()
		}
		return eligible[i].CapturedAt.Before(eligible[j].CapturedAt)
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}
