package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trendwatch/trendwatch/internal/candidates"
	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/models"
)

// Result reports the outcome of one harvest pass.
type Result struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// Harvester fetches candidate news, deduplicates against the store, and emits
// new keyword candidates. Harvesting is idempotent: repeating it over an
// unchanged feed window inserts nothing.
type Harvester struct {
	connector Connector
	newsRepo  NewsRepository
	manager   *candidates.Manager
	cfg       config.HarvestConfig
	retry     RetryPolicy
	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// NewHarvester creates a news harvester.
func NewHarvester(connector Connector, newsRepo NewsRepository, manager *candidates.Manager, cfg config.HarvestConfig, logger *slog.Logger) *Harvester {
	return &Harvester{
		connector: connector,
		newsRepo:  newsRepo,
		manager:   manager,
		cfg:       cfg,
		retry:     DefaultRetryPolicy(),
		logger:    logger,
		now:       time.Now,
	}
}

// SetCollector wires the optional metrics collector.
func (h *Harvester) SetCollector(c *metrics.Collector) {
	h.collector = c
}

// Harvest runs one pass: fetch a bounded batch, upsert each entry, and derive
// keyword candidates from freshly inserted items. A fetch or store failure
// aborts the batch with a single error; items already upserted stay durable,
// since each upsert is independently atomic.
func (h *Harvester) Harvest(ctx context.Context) (Result, error) {
	var entries []FeedEntry
	err := Retry(ctx, h.retry, func() error {
		var fetchErr error
		entries, fetchErr = h.connector.Fetch(ctx, h.cfg.BatchSize)
		if fetchErr != nil {
			return NewRetryableError(fetchErr)
		}
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("harvest fetch: %w", err)
	}

	var result Result
	for _, entry := range entries {
		if entry.Link == "" {
			result.Skipped++
			continue
		}

		outcome, err := h.upsert(ctx, entry)
		if err != nil {
			return result, err
		}

		switch outcome {
		case "inserted":
			result.Inserted++
		case "updated":
			result.Updated++
		default:
			result.Skipped++
		}
	}

	if h.collector != nil {
		h.collector.RecordHarvest("inserted", result.Inserted)
		h.collector.RecordHarvest("updated", result.Updated)
		h.collector.RecordHarvest("skipped", result.Skipped)
	}

	h.logger.Info("harvest complete",
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped,
	)

	return result, nil
}

func (h *Harvester) upsert(ctx context.Context, entry FeedEntry) (string, error) {
	key := models.NormalizeURL(entry.Link)

	existing, err := h.newsRepo.GetByKey(ctx, key)
	switch {
	case err == nil:
		if !existing.MateriallyDiffers(entry.Title, entry.Summary) {
			return "skipped", nil
		}
		if entry.Title != "" {
			existing.Title = entry.Title
		}
		if entry.Summary != "" {
			existing.Summary = entry.Summary
		}
		existing.UpdatedAt = h.now()
		if err := h.newsRepo.Update(ctx, *existing); err != nil {
			return "", models.NewStoreError("update news item", err)
		}
		return "updated", nil

	case errors.Is(err, models.ErrNotFound):
		item := models.NewsItem{
			ID:          uuid.NewString(),
			Title:       entry.Title,
			URL:         entry.Link,
			Source:      entry.Source,
			PublishedAt: entry.PublishedAt,
			Summary:     entry.Summary,
			CreatedAt:   h.now(),
			UpdatedAt:   h.now(),
		}
		if err := h.newsRepo.Insert(ctx, item); err != nil {
			return "", models.NewStoreError("insert news item", err)
		}
		if err := h.deriveCandidates(ctx, item); err != nil {
			return "", err
		}
		return "inserted", nil

	default:
		return "", models.NewStoreError("get news item", err)
	}
}

// deriveCandidates extracts keyword candidates from a freshly inserted item
// and hands them to the candidate manager as pending, rising-sourced rows.
func (h *Harvester) deriveCandidates(ctx context.Context, item models.NewsItem) error {
	text := item.Title + " " + item.Summary
	terms := ExtractKeywords(text, h.cfg.MaxKeywords, h.cfg.MinTermLen)

	for _, term := range terms {
		if _, err := h.manager.Capture(ctx, term, models.CandidateSourceRising, item.ID); err != nil {
			return fmt.Errorf("capture candidate %q: %w", term, err)
		}
	}

	if len(terms) > 0 {
		h.logger.Debug("candidates derived", "news_id", item.ID, "terms", terms)
	}

	return nil
}
