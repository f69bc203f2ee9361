package api

import (
	"fmt"
	"strings"
)

// ValidationError represents a request validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const (
	maxRootKeywords   = 50
	maxRunConcurrency = 32
)

// validateRunRequest checks the bounds of a run creation request. Zero values
// mean "use the configured default" and always pass.
func validateRunRequest(req CreateRunRequest) error {
	if len(req.RootKeywords) > maxRootKeywords {
		return ValidationError{Field: "root_keywords", Message: fmt.Sprintf("at most %d root keywords", maxRootKeywords)}
	}
	for _, keyword := range req.RootKeywords {
		if strings.TrimSpace(keyword) == "" {
			return ValidationError{Field: "root_keywords", Message: "keywords must not be blank"}
		}
	}
	if req.MaxCandidates < 0 {
		return ValidationError{Field: "max_candidates", Message: "must not be negative"}
	}
	if req.CostBudget < 0 {
		return ValidationError{Field: "cost_budget", Message: "must not be negative"}
	}
	if req.Concurrency < 0 || req.Concurrency > maxRunConcurrency {
		return ValidationError{Field: "concurrency", Message: fmt.Sprintf("must be between 0 and %d", maxRunConcurrency)}
	}
	return nil
}
