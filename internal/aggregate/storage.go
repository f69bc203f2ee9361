package aggregate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trendwatch/trendwatch/internal/models"
)

// SnapshotRepository defines the interface for the append-only trend series.
type SnapshotRepository interface {
	// Insert appends a snapshot.
	Insert(ctx context.Context, snapshot models.KeywordSnapshot) error

	// Recent returns the most recent snapshots for a keyword/locale pair,
	// newest first, up to limit.
	Recent(ctx context.Context, keyword, locale string, limit int) ([]models.KeywordSnapshot, error)

	// Latest returns the newest snapshot of every keyword/locale pair.
	Latest(ctx context.Context) ([]models.KeywordSnapshot, error)
}

// AlertRepository defines the interface for spike alerts. Alerts are
// append-only and never updated.
type AlertRepository interface {
	// Insert stores a new alert.
	Insert(ctx context.Context, alert models.Alert) error

	// ExistsInWindow reports whether the keyword/locale pair already alerted
	// in [from, to).
	ExistsInWindow(ctx context.Context, keyword, locale string, from, to time.Time) (bool, error)

	// ListRecent returns alerts newest-first, up to limit.
	ListRecent(ctx context.Context, limit int) ([]models.Alert, error)
}

// MemorySnapshotRepository implements an in-memory snapshot repository for
// development and tests.
type MemorySnapshotRepository struct {
	mu        sync.RWMutex
	snapshots []models.KeywordSnapshot
}

// NewMemorySnapshotRepository creates a new in-memory snapshot repository.
func NewMemorySnapshotRepository() *MemorySnapshotRepository {
	return &MemorySnapshotRepository{}
}

// Insert appends a snapshot.
func (r *MemorySnapshotRepository) Insert(ctx context.Context, snapshot models.KeywordSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, snapshot)
	return nil
}

// Recent returns the most recent snapshots for a pair, newest first.
func (r *MemorySnapshotRepository) Recent(ctx context.Context, keyword, locale string, limit int) ([]models.KeywordSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.KeywordSnapshot
	for _, s := range r.snapshots {
		if s.Keyword == keyword && s.Locale == locale {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CollectedAt.After(out[j].CollectedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Latest returns the newest snapshot of every keyword/locale pair.
func (r *MemorySnapshotRepository) Latest(ctx context.Context) ([]models.KeywordSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type pair struct{ keyword, locale string }
	latest := make(map[pair]models.KeywordSnapshot)
	for _, s := range r.snapshots {
		key := pair{s.Keyword, s.Locale}
		if cur, ok := latest[key]; !ok || s.CollectedAt.After(cur.CollectedAt) {
			latest[key] = s
		}
	}

	out := make([]models.KeywordSnapshot, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	return out, nil
}

// MemoryAlertRepository implements an in-memory alert repository for
// development and tests.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts []models.Alert
}

// NewMemoryAlertRepository creates a new in-memory alert repository.
func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{}
}

// Insert stores a new alert.
func (r *MemoryAlertRepository) Insert(ctx context.Context, alert models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, alert)
	return nil
}

// ExistsInWindow reports whether the pair already alerted in [from, to).
func (r *MemoryAlertRepository) ExistsInWindow(ctx context.Context, keyword, locale string, from, to time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.alerts {
		if a.Keyword != keyword || a.Locale != locale {
			continue
		}
		if !a.TriggeredAt.Before(from) && a.TriggeredAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

// ListRecent returns alerts newest-first.
func (r *MemoryAlertRepository) ListRecent(ctx context.Context, limit int) ([]models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, len(r.alerts))
	copy(out, r.alerts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TriggeredAt.After(out[j].TriggeredAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
