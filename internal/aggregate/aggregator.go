package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trendwatch/trendwatch/internal/config"
	"github.com/trendwatch/trendwatch/internal/metrics"
	"github.com/trendwatch/trendwatch/internal/models"
)

// Aggregator folds completed task results into the keyword trend series,
// detects score spikes against recent history, and serves the hotlist and
// overview projections.
type Aggregator struct {
	snapshots SnapshotRepository
	alerts    AlertRepository
	cfg       config.AggregateConfig
	logger    *slog.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// New creates a trend aggregator.
func New(snapshots SnapshotRepository, alerts AlertRepository, cfg config.AggregateConfig, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		snapshots: snapshots,
		alerts:    alerts,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// SetCollector wires the optional metrics collector.
func (a *Aggregator) SetCollector(c *metrics.Collector) {
	a.collector = c
}

// SetClock overrides the time source for tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.now = now
}

// Record folds one completed task into the trend series: derive the trend
// score, check it for a spike against the previous snapshots, then append the
// new snapshot. Called by the orchestrator for every completed task.
func (a *Aggregator) Record(ctx context.Context, task models.Task) error {
	if task.Status != models.TaskStatusCompleted || task.Result == nil {
		return fmt.Errorf("task %s is not a completed result", task.TaskID)
	}

	score := DeriveTrendScore(task.Result.Series)
	collectedAt := a.now()
	if task.CompletedAt != nil {
		collectedAt = *task.CompletedAt
	}

	previous, err := a.snapshots.Recent(ctx, task.Keyword, task.Locale, a.cfg.SpikeWindow)
	if err != nil {
		return models.NewStoreError("load snapshot history", err)
	}

	snapshot := models.KeywordSnapshot{
		ID:          uuid.NewString(),
		Keyword:     task.Keyword,
		Locale:      task.Locale,
		CollectedAt: collectedAt,
		TrendScore:  score,
	}
	if err := a.snapshots.Insert(ctx, snapshot); err != nil {
		return models.NewStoreError("insert snapshot", err)
	}

	spike, ok := a.spikeScore(score, previous)
	if !ok || spike < a.cfg.SpikeThreshold {
		return nil
	}

	return a.raiseAlert(ctx, snapshot, spike)
}

// spikeScore measures how far score sits above the recent history in units of
// its standard deviation. At least two previous snapshots are required; with
// fewer there is no baseline to spike against.
func (a *Aggregator) spikeScore(score float64, previous []models.KeywordSnapshot) (float64, bool) {
	if len(previous) < 2 {
		return 0, false
	}

	var sum float64
	for _, s := range previous {
		sum += s.TrendScore
	}
	mean := sum / float64(len(previous))

	var variance float64
	for _, s := range previous {
		d := s.TrendScore - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(previous)))

	return (score - mean) / math.Max(stddev, a.cfg.SpikeEpsilon), true
}

// raiseAlert creates a spike alert unless the pair already alerted within the
// current deduplication bucket.
func (a *Aggregator) raiseAlert(ctx context.Context, snapshot models.KeywordSnapshot, spike float64) error {
	bucket := models.AlertBucket(snapshot.CollectedAt, a.cfg.DedupWindow)
	exists, err := a.alerts.ExistsInWindow(ctx, snapshot.Keyword, snapshot.Locale, bucket, bucket.Add(a.cfg.DedupWindow))
	if err != nil {
		return models.NewStoreError("check alert window", err)
	}
	if exists {
		a.logger.Debug("spike suppressed by dedup window",
			"keyword", snapshot.Keyword, "locale", snapshot.Locale, "spike", spike)
		return nil
	}

	alert := models.Alert{
		ID:          uuid.NewString(),
		Keyword:     snapshot.Keyword,
		Locale:      snapshot.Locale,
		Priority:    models.PriorityForSpike(spike, a.cfg.MediumThreshold, a.cfg.HighThreshold),
		SpikeScore:  spike,
		TriggeredAt: snapshot.CollectedAt,
	}
	if err := a.alerts.Insert(ctx, alert); err != nil {
		return models.NewStoreError("insert alert", err)
	}

	if a.collector != nil {
		a.collector.RecordAlert(string(alert.Priority))
	}

	a.logger.Info("spike alert raised",
		"keyword", alert.Keyword,
		"locale", alert.Locale,
		"spike", spike,
		"priority", alert.Priority,
	)

	return nil
}

// Hotlist returns the ranked keyword list: the latest snapshot of every
// keyword/locale pair ordered by trend score descending, ties broken by
// keyword ascending so equal scores always rank deterministically.
func (a *Aggregator) Hotlist(ctx context.Context, timeframe string) (*models.Hotlist, error) {
	latest, err := a.snapshots.Latest(ctx)
	if err != nil {
		return nil, models.NewStoreError("load latest snapshots", err)
	}

	sort.Slice(latest, func(i, j int) bool {
		if latest[i].TrendScore != latest[j].TrendScore {
			return latest[i].TrendScore > latest[j].TrendScore
		}
		return latest[i].Keyword < latest[j].Keyword
	})
	if a.cfg.HotlistSize > 0 && len(latest) > a.cfg.HotlistSize {
		latest = latest[:a.cfg.HotlistSize]
	}

	entries := make([]models.HotlistEntry, 0, len(latest))
	for _, s := range latest {
		entries = append(entries, models.HotlistEntry{
			Keyword:     s.Keyword,
			Locale:      s.Locale,
			TrendScore:  s.TrendScore,
			CollectedAt: s.CollectedAt,
		})
	}

	return &models.Hotlist{Timeframe: timeframe, Keywords: entries}, nil
}

// OverviewMetric is one named summary figure on the dashboard surface.
type OverviewMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Overview combines summary metrics, hotlists and recent alerts for the
// dashboard surface.
type Overview struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Metrics     []OverviewMetric  `json:"metrics"`
	Hotlists    []*models.Hotlist `json:"hotlists"`
	Alerts      []models.Alert    `json:"alerts"`
}

// Overview returns the hotlists plus summary metrics and the most recent
// alerts.
func (a *Aggregator) Overview(ctx context.Context, timeframe string) (*Overview, error) {
	hotlist, err := a.Hotlist(ctx, timeframe)
	if err != nil {
		return nil, err
	}
	alerts, err := a.alerts.ListRecent(ctx, a.cfg.HotlistSize)
	if err != nil {
		return nil, models.NewStoreError("list alerts", err)
	}

	highPriority := 0
	for _, alert := range alerts {
		if alert.Priority == models.AlertPriorityHigh {
			highPriority++
		}
	}
	figures := []OverviewMetric{
		{Name: "tracked_keywords", Value: float64(len(hotlist.Keywords))},
		{Name: "recent_alerts", Value: float64(len(alerts))},
		{Name: "high_priority_alerts", Value: float64(highPriority)},
	}
	if len(hotlist.Keywords) > 0 {
		figures = append(figures, OverviewMetric{Name: "top_trend_score", Value: hotlist.Keywords[0].TrendScore})
	}

	return &Overview{
		GeneratedAt: a.now(),
		Metrics:     figures,
		Hotlists:    []*models.Hotlist{hotlist},
		Alerts:      alerts,
	}, nil
}

// DeriveTrendScore reduces an interest series to a single score: a
// recency-weighted mean where the newest point carries twice the weight of the
// oldest, growing linearly in between.
func DeriveTrendScore(series []models.TrendPoint) float64 {
	n := len(series)
	switch n {
	case 0:
		return 0
	case 1:
		return series[0].Value
	}

	points := make([]models.TrendPoint, n)
	copy(points, series)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Time.Before(points[j].Time)
	})

	var weighted, total float64
	for i, p := range points {
		w := 1.0 + float64(i)/float64(n-1)
		weighted += w * p.Value
		total += w
	}
	return weighted / total
}
