package models

import (
	"time"
)

// KeywordSnapshot is one point of the append-only trend time series keyed by
// (keyword, locale).
type KeywordSnapshot struct {
	ID          string    `json:"id"`
	Keyword     string    `json:"keyword"`
	Locale      string    `json:"locale"`
	CollectedAt time.Time `json:"collected_at"`
	TrendScore  float64   `json:"trend_score"`
}

// HotlistEntry is one ranked keyword in a hotlist projection.
type HotlistEntry struct {
	Keyword     string    `json:"keyword"`
	Locale      string    `json:"locale"`
	TrendScore  float64   `json:"trend_score"`
	CollectedAt time.Time `json:"collected_at"`
}

// Hotlist is a read-side projection: the ranked keyword list for a timeframe.
// It is derived on demand and carries no independently owned state.
type Hotlist struct {
	Timeframe string         `json:"timeframe"`
	Keywords  []HotlistEntry `json:"keywords"`
}
