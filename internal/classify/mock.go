package classify

import (
	"context"
	"strings"
	"unicode"
)

// MockClassifier provides a deterministic rule-based implementation for
// development and tests, used when no API key is configured.
type MockClassifier struct{}

// NewMockClassifier creates a classifier that scores without any API calls.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{}
}

var noiseTerms = map[string]struct{}{
	"news": {}, "update": {}, "report": {}, "today": {}, "read": {},
	"more": {}, "click": {}, "subscribe": {}, "breaking": {},
}

// Classify scores a term on simple heuristics: length, capitalization in the
// originating context, and a noise-word blacklist.
func (m *MockClassifier) Classify(ctx context.Context, term, newsContext string) (Label, error) {
	lower := strings.ToLower(strings.TrimSpace(term))
	if lower == "" {
		return Label{Category: "noise", Score: 0}, nil
	}

	if _, noisy := noiseTerms[lower]; noisy {
		return Label{Category: "noise", Score: 0.1}, nil
	}

	score := 0.5
	if len([]rune(lower)) >= 6 {
		score += 0.15
	}
	if strings.Contains(lower, " ") {
		score += 0.1 // multi-word terms tend to be real topics
	}
	if appearsCapitalized(term, newsContext) {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}

	return Label{Category: "topic", Score: score}, nil
}

// appearsCapitalized reports whether the term shows up capitalized in the
// surrounding news text, a weak proper-noun signal.
func appearsCapitalized(term, context string) bool {
	if term == "" {
		return false
	}
	first := []rune(term)[0]
	if unicode.IsUpper(first) {
		return true
	}
	capitalized := string(unicode.ToUpper(first)) + term[len(string(first)):]
	return strings.Contains(context, capitalized)
}
