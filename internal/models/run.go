package models

import (
	"time"
)

// Run is one batch execution of keyword-research tasks triggered together.
// A run exclusively owns its tasks; status and counts are mutated only by the
// orchestrator that created it and are immutable once terminal.
type Run struct {
	ID            string     `json:"id"`
	TriggeredAt   time.Time  `json:"triggered_at"`
	Status        RunStatus  `json:"status"`
	TriggerSource string     `json:"trigger_source,omitempty"`
	RootKeywords  []string   `json:"root_keywords"`
	Metadata      RunOptions `json:"metadata"`
	TaskCounts    TaskCounts `json:"task_counts"`
	CostTotal     float64    `json:"cost_total"`
}

// RunOptions captures the parameters a run was started with.
type RunOptions struct {
	MaxCandidates int     `json:"max_candidates"`
	CostBudget    float64 `json:"cost_budget"`
	Concurrency   int     `json:"concurrency"`
	Locale        string  `json:"locale"`
	Timeframe     string  `json:"timeframe"`
}

// TaskCounts aggregates task terminal states for a run. Total always equals
// the number of tasks ever created for the run, including ones left queued by
// budget exhaustion.
type TaskCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Queued    int `json:"queued"`
	Error     int `json:"error"`
}

// RunStatus represents the lifecycle state of a run. Transitions are
// monotonic through queued → running → running_with_errors → terminal.
type RunStatus string

const (
	RunStatusQueued              RunStatus = "queued"
	RunStatusRunning             RunStatus = "running"
	RunStatusRunningWithErrors   RunStatus = "running_with_errors"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusCompletedWithErrors, RunStatusFailed:
		return true
	}
	return false
}

var runStatusRank = map[RunStatus]int{
	RunStatusQueued:              0,
	RunStatusRunning:             1,
	RunStatusRunningWithErrors:   2,
	RunStatusCompleted:           3,
	RunStatusCompletedWithErrors: 3,
	RunStatusFailed:              3,
}

// CanTransition reports whether moving from s to next respects the status
// lattice: never regressing, never leaving a terminal state.
func (s RunStatus) CanTransition(next RunStatus) bool {
	if s.Terminal() {
		return false
	}
	return runStatusRank[next] >= runStatusRank[s]
}

// RollUp computes the terminal run status from final task counts. Tasks left
// queued by budget exhaustion degrade the run but are explicitly not errors:
// they can never make a run report failed on their own.
func (c TaskCounts) RollUp() RunStatus {
	switch {
	case c.Total == 0:
		return RunStatusCompleted
	case c.Error == c.Total:
		return RunStatusFailed
	case c.Error > 0 || c.Queued > 0:
		return RunStatusCompletedWithErrors
	default:
		return RunStatusCompleted
	}
}
