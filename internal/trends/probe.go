package trends

import (
	"context"

	"github.com/trendwatch/trendwatch/internal/models"
)

// Probe measures interest over time for a keyword. Implementations may fail,
// time out, or rate-limit; callers record any error on the owning task and
// never retry within a run.
type Probe interface {
	Measure(ctx context.Context, query models.TrendQuery) (*models.TrendResult, error)
}
