package candidates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trendwatch/trendwatch/internal/classify"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/models"
)

// Manager owns the candidate lifecycle: capture, classifier scoring,
// approval/rejection, lazy expiry, and selection for runs. It is the only
// writer of candidate status transitions.
type Manager struct {
	repo       Repository
	classifier classify.Classifier
	cfg        config.CandidateConfig
	logger     *slog.Logger
	collector  *metrics.Collector
	now        func() time.Time
	newsLookup NewsLookup
}

// NewsLookup resolves the news snippet a candidate was extracted from, giving
// the classifier context beyond the bare term. Optional.
type NewsLookup func(ctx context.Context, newsItemID string) string

// NewManager creates a candidate manager.
func NewManager(repo Repository, classifier classify.Classifier, cfg config.CandidateConfig, logger *slog.Logger) *Manager {
	return &Manager{
		repo:       repo,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Capture records a newly discovered keyword as a pending candidate. A term
// that already has an active (pending or approved, unexpired) candidate is
// skipped; the existing candidate keeps its place in the queue.
func (m *Manager) Capture(ctx context.Context, term string, source models.CandidateSource, newsItemID string) (*models.Candidate, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("candidate term is required")
	}

	now := m.now()

	if existing, err := m.repo.FindActiveByTerm(ctx, term, now); err == nil {
		return existing, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, models.NewStoreError("find candidate", err)
	}

	candidate := models.Candidate{
		ID:         uuid.NewString(),
		Term:       term,
		Source:     source,
		Status:     models.CandidateStatusPending,
		CapturedAt: now,
		ExpiresAt:  now.Add(m.cfg.TTL),
		NewsItemID: newsItemID,
	}

	if err := m.repo.Create(ctx, candidate); err != nil {
		return nil, models.NewStoreError("create candidate", err)
	}

	m.recordTransition(candidate.Status)
	m.logger.Debug("candidate captured", "term", term, "source", source, "expires_at", candidate.ExpiresAt)

	return &candidate, nil
}

// ScorePending runs the classifier over up to limit pending candidates and
// applies the approve/reject threshold. A classifier failure leaves the
// candidate pending for a later pass; it is not a batch failure.
func (m *Manager) ScorePending(ctx context.Context, limit int) (int, error) {
	pending, err := m.repo.ListByStatus(ctx, models.CandidateStatusPending, limit)
	if err != nil {
		return 0, models.NewStoreError("list pending candidates", err)
	}

	scored := 0
	for _, candidate := range pending {
		now := m.now()
		if candidate.EffectiveStatus(now) == models.CandidateStatusExpired {
			if err := m.heal(ctx, candidate, now); err != nil {
				return scored, err
			}
			continue
		}

		label, err := m.classifier.Classify(ctx, candidate.Term, m.newsContext(ctx, candidate))
		if err != nil {
			m.logger.Warn("classifier failed, leaving candidate pending",
				"term", candidate.Term, "error", err)
			continue
		}

		score := label.Score
		candidate.LLMLabel = label.Category
		candidate.LLMScore = &score

		if score >= m.cfg.ApproveThreshold {
			candidate.Status = models.CandidateStatusApproved
		} else {
			candidate.Status = models.CandidateStatusRejected
			candidate.RejectionReason = fmt.Sprintf("classifier score %.2f below threshold %.2f", score, m.cfg.ApproveThreshold)
		}

		if err := m.repo.Update(ctx, candidate); err != nil {
			return scored, models.NewStoreError("update candidate", err)
		}

		m.recordTransition(candidate.Status)
		m.logger.Info("candidate scored",
			"term", candidate.Term,
			"label", label.Category,
			"score", score,
			"status", candidate.Status,
		)
		scored++
	}

	return scored, nil
}

// SelectApproved returns up to limit selectable candidates ordered by score
// descending, then capture time ascending.
func (m *Manager) SelectApproved(ctx context.Context, limit int) ([]models.Candidate, error) {
	selected, err := m.repo.SelectApproved(ctx, limit, m.now())
	if err != nil {
		return nil, models.NewStoreError("select candidates", err)
	}
	return selected, nil
}

// MarkQueried records that a run consumed the candidate. Status is unchanged;
// the queried-at marker alone removes it from future selection.
func (m *Manager) MarkQueried(ctx context.Context, id string, at time.Time) error {
	candidate, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return models.NewStoreError("get candidate", err)
	}
	if candidate.QueriedAt != nil {
		return nil
	}
	candidate.QueriedAt = &at
	if err := m.repo.Update(ctx, *candidate); err != nil {
		return models.NewStoreError("update candidate", err)
	}
	return nil
}

// Reject explicitly rejects a pending candidate. A reason is required.
func (m *Manager) Reject(ctx context.Context, id, reason string) (*models.Candidate, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("rejection reason is required")
	}

	candidate, err := m.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, models.NewStoreError("get candidate", err)
	}

	now := m.now()
	if status := candidate.EffectiveStatus(now); status != models.CandidateStatusPending {
		return nil, fmt.Errorf("cannot reject candidate in status %s", status)
	}

	candidate.Status = models.CandidateStatusRejected
	candidate.RejectionReason = reason
	if err := m.repo.Update(ctx, *candidate); err != nil {
		return nil, models.NewStoreError("update candidate", err)
	}

	m.recordTransition(candidate.Status)
	m.logger.Info("candidate rejected", "term", candidate.Term, "reason", reason)

	return candidate, nil
}

// List returns recent candidates with expiry healed on read: a stored
// pending/approved row past its TTL is persisted as expired before returning.
func (m *Manager) List(ctx context.Context, status models.CandidateStatus, limit int) ([]models.Candidate, error) {
	var (
		rows []models.Candidate
		err  error
	)
	if status == "" {
		rows, err = m.repo.List(ctx, limit)
	} else {
		rows, err = m.repo.ListByStatus(ctx, status, limit)
	}
	if err != nil {
		return nil, models.NewStoreError("list candidates", err)
	}

	now := m.now()
	out := rows[:0]
	for _, candidate := range rows {
		effective := candidate.EffectiveStatus(now)
		if effective != candidate.Status {
			candidate.Status = effective
			if err := m.heal(ctx, candidate, now); err != nil {
				return nil, err
			}
			// A healed row no longer matches a requested non-expired filter.
			if status != "" && status != effective {
				continue
			}
		}
		out = append(out, candidate)
	}

	return out, nil
}

func (m *Manager) heal(ctx context.Context, candidate models.Candidate, now time.Time) error {
	candidate.Status = models.CandidateStatusExpired
	if err := m.repo.Update(ctx, candidate); err != nil {
		return models.NewStoreError("expire candidate", err)
	}
	m.recordTransition(candidate.Status)
	m.logger.Debug("candidate expired on read", "term", candidate.Term, "expired_at", candidate.ExpiresAt)
	return nil
}

func (m *Manager) recordTransition(status models.CandidateStatus) {
	if m.collector != nil {
		m.collector.RecordCandidateTransition(string(status))
	}
}

func (m *Manager) newsContext(ctx context.Context, candidate models.Candidate) string {
	if m.newsLookup == nil || candidate.NewsItemID == "" {
		return ""
	}
	return m.newsLookup(ctx, candidate.NewsItemID)
}

// SetNewsLookup wires the optional news-snippet resolver.
func (m *Manager) SetNewsLookup(lookup NewsLookup) {
	m.newsLookup = lookup
}

// SetCollector wires the optional metrics collector.
func (m *Manager) SetCollector(c *metrics.Collector) {
	m.collector = c
}

// SetClock overrides the time source; tests use this to drive TTL expiry.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}
