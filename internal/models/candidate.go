package models

import (
	"time"
)

// Candidate is a keyword discovered from news or other signals, pending
// approval before it can seed a research task.
type Candidate struct {
	ID              string          `json:"id"`
	Term            string          `json:"term"`
	Source          CandidateSource `json:"source"`
	Status          CandidateStatus `json:"status"`
	LLMLabel        string          `json:"llm_label,omitempty"`
	LLMScore        *float64        `json:"llm_score,omitempty"`
	CapturedAt      time.Time       `json:"captured_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	QueriedAt       *time.Time      `json:"queried_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	NewsItemID      string          `json:"news_item_id,omitempty"`
}

// CandidateStatus represents the lifecycle state of a candidate.
type CandidateStatus string

const (
	CandidateStatusPending  CandidateStatus = "pending"
	CandidateStatusApproved CandidateStatus = "approved"
	CandidateStatusRejected CandidateStatus = "rejected"
	CandidateStatusExpired  CandidateStatus = "expired"
)

// CandidateSource records where a candidate keyword came from.
type CandidateSource string

const (
	CandidateSourceRoot   CandidateSource = "root"
	CandidateSourceRising CandidateSource = "rising"
)

// EffectiveStatus computes the status a candidate should report at the given
// instant. Expiry is evaluated lazily on read rather than by a background
// sweeper: pending and approved candidates past their expiry read as expired.
func (c *Candidate) EffectiveStatus(now time.Time) CandidateStatus {
	switch c.Status {
	case CandidateStatusPending, CandidateStatusApproved:
		if !now.Before(c.ExpiresAt) {
			return CandidateStatusExpired
		}
	}
	return c.Status
}

// Selectable reports whether the orchestrator may still pick this candidate:
// approved, unexpired, and never consumed by a previous run.
func (c *Candidate) Selectable(now time.Time) bool {
	return c.EffectiveStatus(now) == CandidateStatusApproved && c.QueriedAt == nil
}

// Score returns the classifier score, treating an unscored candidate as zero.
func (c *Candidate) Score() float64 {
	if c.LLMScore == nil {
		return 0
	}
	return *c.LLMScore
}
