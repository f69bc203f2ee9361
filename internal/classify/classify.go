package classify

import (
	"context"
)

// Label is the classifier's judgement of a candidate keyword.
type Label struct {
	// Category is a short free-text label (e.g. "technology", "noise").
	Category string
	// Score is the classifier's confidence that the term is a researchable
	// trending topic, on a 0-1 scale.
	Score float64
}

// Classifier scores candidate keywords. Implementations may fail or time out;
// callers treat any error as an upstream failure and leave the candidate
// pending for a later pass.
type Classifier interface {
	Classify(ctx context.Context, term, newsContext string) (Label, error)
}
