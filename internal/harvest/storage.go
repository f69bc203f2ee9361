package harvest

import (
	"context"
	"sync"

	"github.com/trendwatch/trendwatch/internal/models"
)

// NewsRepository defines the interface for storing and retrieving news items.
// News is append-only: items are never deleted, only title/summary backfilled.
type NewsRepository interface {
	// GetByKey retrieves an item by its normalized-URL identity key.
	GetByKey(ctx context.Context, key string) (*models.NewsItem, error)

	// Insert stores a new item.
	Insert(ctx context.Context, item models.NewsItem) error

	// Update backfills title/summary on an existing item.
	Update(ctx context.Context, item models.NewsItem) error

	// GetByID retrieves an item by ID.
	GetByID(ctx context.Context, id string) (*models.NewsItem, error)

	// Count returns the total number of stored items.
	Count(ctx context.Context) (int, error)
}

// MemoryNewsRepository implements an in-memory news repository for
// development and tests.
type MemoryNewsRepository struct {
	mu    sync.RWMutex
	byKey map[string]models.NewsItem
	byID  map[string]string // id -> key
}

// NewMemoryNewsRepository creates a new in-memory news repository.
func NewMemoryNewsRepository() *MemoryNewsRepository {
	return &MemoryNewsRepository{
		byKey: make(map[string]models.NewsItem),
		byID:  make(map[string]string),
	}
}

// GetByKey retrieves an item by its identity key.
func (r *MemoryNewsRepository) GetByKey(ctx context.Context, key string) (*models.NewsItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.byKey[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &item, nil
}

// Insert stores a new item keyed by its normalized URL.
func (r *MemoryNewsRepository) Insert(ctx context.Context, item models.NewsItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := models.NormalizeURL(item.URL)
	r.byKey[key] = item
	r.byID[item.ID] = key
	return nil
}

// Update backfills an existing item.
func (r *MemoryNewsRepository) Update(ctx context.Context, item models.NewsItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.byID[item.ID]
	if !ok {
		return models.ErrNotFound
	}
	r.byKey[key] = item
	return nil
}

// GetByID retrieves an item by ID.
func (r *MemoryNewsRepository) GetByID(ctx context.Context, id string) (*models.NewsItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	item := r.byKey[key]
	return &item, nil
}

// Count returns the number of stored items.
func (r *MemoryNewsRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey), nil
}
