package models

import (
	"testing"
	"time"
)

func TestCandidateEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    CandidateStatus
		expiresAt time.Time
		want      CandidateStatus
	}{
		{"pending unexpired", CandidateStatusPending, now.Add(time.Hour), CandidateStatusPending},
		{"pending expired", CandidateStatusPending, now.Add(-time.Hour), CandidateStatusExpired},
		{"approved unexpired", CandidateStatusApproved, now.Add(time.Hour), CandidateStatusApproved},
		{"approved expired", CandidateStatusApproved, now.Add(-time.Hour), CandidateStatusExpired},
		{"approved expiring exactly now", CandidateStatusApproved, now, CandidateStatusExpired},
		{"rejected never expires", CandidateStatusRejected, now.Add(-time.Hour), CandidateStatusRejected},
		{"expired stays expired", CandidateStatusExpired, now.Add(time.Hour), CandidateStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{Status: tt.status, ExpiresAt: tt.expiresAt}
			if got := c.EffectiveStatus(now); got != tt.want {
				t.Errorf("EffectiveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCandidateSelectable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queried := now.Add(-time.Minute)

	c := Candidate{Status: CandidateStatusApproved, ExpiresAt: now.Add(time.Hour)}
	if !c.Selectable(now) {
		t.Error("approved unqueried candidate should be selectable")
	}

	c.QueriedAt = &queried
	if c.Selectable(now) {
		t.Error("queried candidate must never be re-selected")
	}

	// 100h old with a 72h TTL: excluded even if never swept.
	stale := Candidate{
		Status:     CandidateStatusApproved,
		CapturedAt: now.Add(-100 * time.Hour),
		ExpiresAt:  now.Add(-28 * time.Hour),
	}
	if stale.Selectable(now) {
		t.Error("expired candidate should not be selectable")
	}
	if got := stale.EffectiveStatus(now); got != CandidateStatusExpired {
		t.Errorf("EffectiveStatus() = %s, want expired", got)
	}
}
