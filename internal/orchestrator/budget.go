package orchestrator

import "sync"

// budgetLedger tracks run spend with two-phase accounting: a task reserves the
// estimated cost before dispatch, then commits the actual cost on success or
// releases the reservation on failure. Concurrent tasks can therefore never
// overshoot the budget by racing each other's spend.
type budgetLedger struct {
	mu       sync.Mutex
	budget   float64
	reserved float64
	spent    float64
}

// newBudgetLedger creates a ledger. A budget <= 0 means unlimited.
func newBudgetLedger(budget float64) *budgetLedger {
	return &budgetLedger{budget: budget}
}

// Reserve claims estimate against the remaining budget. It reports false when
// the remaining budget cannot cover the estimate.
func (b *budgetLedger) Reserve(estimate float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.budget <= 0 {
		return true
	}
	if b.spent+b.reserved+estimate > b.budget {
		return false
	}
	b.reserved += estimate
	return true
}

// Commit converts a reservation into actual spend.
func (b *budgetLedger) Commit(estimate, actual float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.budget > 0 {
		b.reserved -= estimate
	}
	b.spent += actual
}

// Release returns a reservation unspent.
func (b *budgetLedger) Release(estimate float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.budget > 0 {
		b.reserved -= estimate
	}
}

// Spent returns the committed total.
func (b *budgetLedger) Spent() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.spent
}
