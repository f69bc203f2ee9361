package models

import (
	"time"
)

// Alert records a statistically significant upward spike in a keyword's trend
// score. Alerts are derived, never updated after creation, and deduplicated by
// (keyword, locale, time bucket).
type Alert struct {
	ID          string        `json:"id"`
	Keyword     string        `json:"keyword"`
	Locale      string        `json:"locale"`
	Priority    AlertPriority `json:"priority"`
	SpikeScore  float64       `json:"spike_score"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertPriority buckets spike magnitude for display.
type AlertPriority string

const (
	AlertPriorityLow    AlertPriority = "low"
	AlertPriorityMedium AlertPriority = "medium"
	AlertPriorityHigh   AlertPriority = "high"
)

// PriorityForSpike maps a spike score to a priority bucket given the medium
// and high thresholds.
func PriorityForSpike(spike, medium, high float64) AlertPriority {
	switch {
	case spike >= high:
		return AlertPriorityHigh
	case spike >= medium:
		return AlertPriorityMedium
	default:
		return AlertPriorityLow
	}
}

// AlertBucket truncates a timestamp to the start of its deduplication window.
func AlertBucket(at time.Time, window time.Duration) time.Time {
	if window <= 0 {
		return at
	}
	return at.Truncate(window)
}
