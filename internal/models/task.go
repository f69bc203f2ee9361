package models

import (
	"time"
)

// Task is one keyword-research unit of work within a run, targeting a single
// keyword/locale/timeframe combination. A task belongs to exactly one run.
type Task struct {
	TaskID       string       `json:"task_id"`
	RunID        string       `json:"run_id"`
	Status       TaskStatus   `json:"status"`
	Keyword      string       `json:"keyword"`
	Locale       string       `json:"locale"`
	Timeframe    string       `json:"timeframe"`
	PostedAt     time.Time    `json:"posted_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	Metadata     TaskMetadata `json:"metadata"`
	Request      *TrendQuery  `json:"request,omitempty"`
	Result       *TrendResult `json:"result,omitempty"`
	Cost         *float64     `json:"cost,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusError     TaskStatus = "error"
)

// Terminal reports whether the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

// TaskMetadata links a task back to the keyword that seeded it and bounds
// recursive rising-keyword expansion.
type TaskMetadata struct {
	Source         CandidateSource `json:"source"`
	CandidateID    string          `json:"candidate_id,omitempty"`
	RootKeyword    string          `json:"root_keyword,omitempty"`
	DiscoveryDepth int             `json:"discovery_depth"`
	ParentTaskID   string          `json:"parent_task_id,omitempty"`
}

// TrendQuery is the request sent to the trend probe for one task.
type TrendQuery struct {
	Keyword   string `json:"keyword"`
	Locale    string `json:"locale"`
	Timeframe string `json:"timeframe"`
}

// TrendPoint is a single point of a trend time series.
type TrendPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// TrendResult is the probe's answer for one keyword: an interest-over-time
// series plus related rising queries that may seed child tasks.
type TrendResult struct {
	Keyword       string       `json:"keyword"`
	Locale        string       `json:"locale"`
	Timeframe     string       `json:"timeframe"`
	Series        []TrendPoint `json:"series"`
	RisingQueries []string     `json:"rising_queries,omitempty"`
	Cost          float64      `json:"cost"`
}
