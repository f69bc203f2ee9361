package models

import (
	"testing"
)

func TestTaskCountsRollUp(t *testing.T) {
	tests := []struct {
		name   string
		counts TaskCounts
		want   RunStatus
	}{
		{"all completed", TaskCounts{Total: 5, Completed: 5}, RunStatusCompleted},
		{"partial failure", TaskCounts{Total: 5, Completed: 3, Error: 2}, RunStatusCompletedWithErrors},
		{"total failure", TaskCounts{Total: 4, Error: 4}, RunStatusFailed},
		{"empty run", TaskCounts{}, RunStatusCompleted},
		{"budget leftovers only", TaskCounts{Total: 3, Completed: 1, Queued: 2}, RunStatusCompletedWithErrors},
		{"errors and leftovers", TaskCounts{Total: 4, Completed: 1, Error: 1, Queued: 2}, RunStatusCompletedWithErrors},
		{"all queued is not failed", TaskCounts{Total: 2, Queued: 2}, RunStatusCompletedWithErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.counts.RollUp(); got != tt.want {
				t.Errorf("RollUp(%+v) = %s, want %s", tt.counts, got, tt.want)
			}
		})
	}
}

func TestRunStatusCanTransition(t *testing.T) {
	tests := []struct {
		from RunStatus
		to   RunStatus
		want bool
	}{
		{RunStatusQueued, RunStatusRunning, true},
		{RunStatusRunning, RunStatusRunningWithErrors, true},
		{RunStatusRunning, RunStatusCompleted, true},
		{RunStatusRunningWithErrors, RunStatusRunning, false},
		{RunStatusCompleted, RunStatusRunning, false},
		{RunStatusFailed, RunStatusCompleted, false},
		{RunStatusRunningWithErrors, RunStatusCompletedWithErrors, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
